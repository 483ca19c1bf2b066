// Package remotesync keeps local Markdown files in sync with documents of
// a remote document service.
package remotesync

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/mdedit/internal/filestore"
	"github.com/stateful/mdedit/internal/remote"
)

// ErrNotLinked is returned when pushing a file that no remote document
// is linked to.
var ErrNotLinked = errors.New("file is not linked to a remote document")

// Remote is the part of the remote client the manager needs.
type Remote interface {
	GetDocument(ctx context.Context, id string) (*remote.Document, error)
	CreateDocument(ctx context.Context, title, content string, format remote.Format, memberIDs ...string) (*remote.Document, error)
	ReplaceContent(ctx context.Context, id, content string, format remote.Format) (*remote.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

const DefaultFolder = ".quip-documents"

type Manager struct {
	remote   Remote
	files    *filestore.Store
	mappings MappingStore
	convert  Converter
	folder   string
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Manager)

func WithConverter(c Converter) Option {
	return func(m *Manager) { m.convert = c }
}

// WithFolder sets the directory pulled and created documents are
// written to.
func WithFolder(folder string) Option {
	return func(m *Manager) { m.folder = folder }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(r Remote, files *filestore.Store, mappings MappingStore, opts ...Option) *Manager {
	m := &Manager{
		remote:   r,
		files:    files,
		mappings: mappings,
		convert:  CoreConverter,
		folder:   DefaultFolder,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_-]`)

// LocalName returns the file name used for a remote document.
func LocalName(title, id string) string {
	safe := unsafeChars.ReplaceAllString(strings.ToLower(title), "_")
	if len(id) > 8 {
		id = id[:8]
	}
	return safe + "_" + id + ".md"
}

// Pull fetches a remote document, converts it to Markdown and writes it
// into the local folder, replacing an earlier pull.
func (m *Manager) Pull(ctx context.Context, id string) (Mapping, error) {
	doc, err := m.remote.GetDocument(ctx, id)
	if err != nil {
		return Mapping{}, errors.Wrapf(err, "failed to get remote document %s", id)
	}

	markdown, err := m.convert(doc.Content())
	if err != nil {
		return Mapping{}, err
	}

	title := doc.Thread.Title
	if title == "" {
		title = id
	}

	localPath, err := m.localPathFor(id, title)
	if err != nil {
		return Mapping{}, err
	}
	if err := m.files.Write(localPath, []byte(markdown)); err != nil {
		return Mapping{}, errors.Wrapf(err, "failed to write %s", localPath)
	}

	mapping := Mapping{
		ID:             id,
		LocalPath:      localPath,
		Title:          title,
		LastSyncedUsec: doc.Thread.UpdatedUsec,
	}
	if err := m.mappings.Put(mapping); err != nil {
		return Mapping{}, err
	}

	m.logger.Info("pulled remote document", zap.String("id", id), zap.String("path", localPath))
	return mapping, nil
}

// localPathFor keeps the file of an already linked document.
func (m *Manager) localPathFor(id, title string) (string, error) {
	existing, err := m.mappings.Get(id)
	switch {
	case err == nil:
		return existing.LocalPath, nil
	case errors.Is(err, ErrMappingNotFound):
		return path.Join(m.folder, LocalName(title, id)), nil
	default:
		return "", err
	}
}

// Push replaces the content of the linked remote document with the
// local file.
func (m *Manager) Push(ctx context.Context, localPath string) (Mapping, error) {
	localPath = filestore.Path(localPath)

	mapping, err := m.mappings.FindByPath(localPath)
	if errors.Is(err, ErrMappingNotFound) {
		return Mapping{}, ErrNotLinked
	}
	if err != nil {
		return Mapping{}, err
	}

	data, err := m.files.Read(localPath)
	if err != nil {
		return Mapping{}, err
	}

	if _, err := m.remote.ReplaceContent(ctx, mapping.ID, string(data), remote.FormatMarkdown); err != nil {
		return Mapping{}, errors.Wrapf(err, "failed to push %s", localPath)
	}

	mapping.LastSyncedUsec = m.now().UnixMicro()
	if err := m.mappings.Put(mapping); err != nil {
		return Mapping{}, err
	}

	m.logger.Info("pushed local file", zap.String("id", mapping.ID), zap.String("path", localPath))
	return mapping, nil
}

// Create creates a remote document. With a local path the file's content
// is uploaded and the file is linked. Without one a new file holding a
// starter document is written into the local folder.
func (m *Manager) Create(ctx context.Context, title, localPath string) (Mapping, error) {
	if strings.TrimSpace(title) == "" {
		return Mapping{}, errors.New("title is required")
	}

	var content string
	if localPath != "" {
		localPath = filestore.Path(localPath)
		data, err := m.files.Read(localPath)
		if err != nil {
			return Mapping{}, err
		}
		content = string(data)
	} else {
		content = "# " + title + "\n\nStart writing here..."
	}

	doc, err := m.remote.CreateDocument(ctx, title, content, remote.FormatMarkdown)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "failed to create remote document")
	}
	id := doc.Thread.ID

	if localPath == "" {
		localPath = path.Join(m.folder, LocalName(title, id))
		if err := m.files.Write(localPath, []byte(content)); err != nil {
			return Mapping{}, errors.Wrapf(err, "failed to write %s", localPath)
		}
	}

	mapping := Mapping{
		ID:             id,
		LocalPath:      localPath,
		Title:          title,
		LastSyncedUsec: doc.Thread.CreatedUsec,
	}
	if err := m.mappings.Put(mapping); err != nil {
		return Mapping{}, err
	}

	m.logger.Info("created remote document", zap.String("id", id), zap.String("path", localPath))
	return mapping, nil
}

// Delete removes the remote document and its mapping. The local file is
// kept.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.remote.DeleteDocument(ctx, id); err != nil {
		return errors.Wrapf(err, "failed to delete remote document %s", id)
	}
	return m.mappings.Delete(id)
}

// Lookup returns the mapping of a local file.
func (m *Manager) Lookup(localPath string) (Mapping, bool, error) {
	mapping, err := m.mappings.FindByPath(filestore.Path(localPath))
	if errors.Is(err, ErrMappingNotFound) {
		return Mapping{}, false, nil
	}
	if err != nil {
		return Mapping{}, false, err
	}
	return mapping, true, nil
}

func (m *Manager) List() ([]Mapping, error) {
	return m.mappings.List()
}
