// Package session owns the persisted and in-memory state of open
// Markdown documents.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/mdedit/internal/ulid"
)

// Store is the backing storage of documents.
type Store interface {
	Read(uri string) ([]byte, error)
	Write(uri string, data []byte) error
	Exists(uri string) bool
	Delete(uri string) error
}

// ContentSource fetches the live content from an attached view.
type ContentSource func(ctx context.Context) (string, error)

const untitledScheme = "untitled:"

func IsUntitled(uri string) bool {
	return strings.HasPrefix(uri, untitledScheme)
}

type Reason string

const (
	ReasonEdit   Reason = "edit"
	ReasonUndo   Reason = "undo"
	ReasonRedo   Reason = "redo"
	ReasonRevert Reason = "revert"
)

// ChangeEvent is fired after the content of a document changed. Origin
// identifies the view an edit came from and is empty otherwise.
type ChangeEvent struct {
	URI    string
	Text   string
	Origin string
	Reason Reason
}

// EditRecord is a single entry of the edit log. Undoing it restores
// Backward, redoing it restores Forward.
type EditRecord struct {
	ID       string
	Forward  string
	Backward string
}

type Document struct {
	uri    string
	store  Store
	logger *zap.Logger
	ids    ulid.Generator

	// opMu orders mutations together with their notifications.
	opMu sync.Mutex

	mu        sync.Mutex
	text      string
	undo      []EditRecord
	redo      []EditRecord
	savedID   string
	recovered bool
	source    ContentSource
	disposed  bool

	listeners listeners
}

type Option func(*options)

type options struct {
	backupURI string
	logger    *zap.Logger
	ids       ulid.Generator
}

// WithBackup loads the initial content from a backup instead of the
// document itself.
func WithBackup(uri string) Option {
	return func(o *options) {
		o.backupURI = uri
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithIDGenerator(gen ulid.Generator) Option {
	return func(o *options) {
		o.ids = gen
	}
}

// Open loads a document. Untitled documents start empty unless recovered
// from a backup.
func Open(ctx context.Context, store Store, uri string, opts ...Option) (*Document, error) {
	o := options{logger: zap.NewNop(), ids: ulid.Default}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Document{
		uri:    uri,
		store:  store,
		logger: o.logger.With(zap.String("uri", uri)),
		ids:    o.ids,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case o.backupURI != "":
		data, err := store.Read(o.backupURI)
		if err != nil {
			return nil, &IOError{Op: "open", URI: o.backupURI, Err: err}
		}
		d.text = string(data)
		d.recovered = true
		d.logger.Info("recovered document from backup", zap.String("backup", o.backupURI))
	case IsUntitled(uri):
	default:
		data, err := store.Read(uri)
		if err != nil {
			return nil, &IOError{Op: "open", URI: uri, Err: err}
		}
		d.text = string(data)
	}

	return d, nil
}

func (d *Document) URI() string { return d.uri }

func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Edits returns the edit log up to the current position.
func (d *Document) Edits() []EditRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]EditRecord(nil), d.undo...)
}

func (d *Document) IsDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recovered || d.topID() != d.savedID
}

func (d *Document) topID() string {
	if len(d.undo) == 0 {
		return ""
	}
	return d.undo[len(d.undo)-1].ID
}

// SetContentSource installs the function used by save and backup to get
// the live content. A nil source detaches it.
func (d *Document) SetContentSource(source ContentSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = source
}

// ApplyEdit records text as the new content. It reports false when text
// equals the current content or the document is closed.
func (d *Document) ApplyEdit(text, origin string) bool {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.disposed || text == d.text {
		d.mu.Unlock()
		return false
	}
	rec := EditRecord{ID: d.ids(), Forward: text, Backward: d.text}
	d.undo = append(d.undo, rec)
	d.redo = nil
	d.text = text
	d.mu.Unlock()

	d.logger.Debug("applied edit", zap.String("id", rec.ID), zap.String("origin", origin))
	d.listeners.change(ChangeEvent{URI: d.uri, Text: text, Origin: origin, Reason: ReasonEdit})
	d.listeners.edit(rec)
	return true
}

func (d *Document) Undo() bool {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.disposed || len(d.undo) == 0 {
		d.mu.Unlock()
		return false
	}
	rec := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = append(d.redo, rec)
	d.text = rec.Backward
	d.mu.Unlock()

	d.listeners.change(ChangeEvent{URI: d.uri, Text: rec.Backward, Reason: ReasonUndo})
	return true
}

func (d *Document) Redo() bool {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.disposed || len(d.redo) == 0 {
		d.mu.Unlock()
		return false
	}
	rec := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.undo = append(d.undo, rec)
	d.text = rec.Forward
	d.mu.Unlock()

	d.listeners.change(ChangeEvent{URI: d.uri, Text: rec.Forward, Reason: ReasonRedo})
	return true
}

// fetch returns the live content of the attached view and the edit log
// position it corresponds to.
func (d *Document) fetch(ctx context.Context, op string) (string, string, error) {
	d.mu.Lock()
	source := d.source
	d.mu.Unlock()

	if source == nil {
		return "", "", &ProtocolError{Op: op, URI: d.uri, Err: ErrNoActiveView}
	}

	text, err := source(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", "", err
		}
		return "", "", &ProtocolError{Op: op, URI: d.uri, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return text, d.topID(), nil
}

// Save writes the live content back to the document and moves the saved
// checkpoint. A cancelled save writes nothing and returns nil.
func (d *Document) Save(ctx context.Context) error {
	if IsUntitled(d.uri) {
		return &IOError{Op: "save", URI: d.uri, Err: errors.New("untitled document has no backing resource")}
	}

	text, mark, err := d.fetch(ctx, "save")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		d.logger.Info("save cancelled")
		return nil
	}
	if err := d.store.Write(d.uri, []byte(text)); err != nil {
		return &IOError{Op: "save", URI: d.uri, Err: err}
	}

	d.mu.Lock()
	d.savedID = mark
	d.recovered = false
	d.mu.Unlock()

	d.logger.Info("saved document", zap.Int("bytes", len(text)))
	return nil
}

// SaveAs writes the live content to target. The saved checkpoint of the
// document is not affected.
func (d *Document) SaveAs(ctx context.Context, target string) error {
	text, _, err := d.fetch(ctx, "saveAs")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := d.store.Write(target, []byte(text)); err != nil {
		return &IOError{Op: "saveAs", URI: target, Err: err}
	}
	return nil
}

// Revert reloads the document, dropping the edits made since the last
// save.
func (d *Document) Revert(ctx context.Context) error {
	var text string
	if !IsUntitled(d.uri) {
		data, err := d.store.Read(d.uri)
		if err != nil {
			return &IOError{Op: "revert", URI: d.uri, Err: err}
		}
		text = string(data)
	}

	if ctx.Err() != nil {
		return nil
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil
	}
	for len(d.undo) > 0 && d.topID() != d.savedID {
		d.undo = d.undo[:len(d.undo)-1]
	}
	d.redo = nil
	d.savedID = d.topID()
	d.recovered = false
	d.text = text
	d.mu.Unlock()

	d.listeners.change(ChangeEvent{URI: d.uri, Text: text, Reason: ReasonRevert})
	return nil
}

// Backup is a copy of a document written for crash recovery.
type Backup struct {
	URI string

	store  Store
	logger *zap.Logger
}

// Delete removes the backup. Failures are logged and otherwise ignored.
func (b *Backup) Delete() {
	if err := b.store.Delete(b.URI); err != nil {
		b.logger.Debug("failed to delete backup", zap.String("backup", b.URI), zap.Error(err))
	}
}

// Backup writes the live content to dest, falling back to the session
// content when no view is attached. A cancelled backup returns a nil
// handle and no error.
func (d *Document) Backup(ctx context.Context, dest string) (*Backup, error) {
	text, _, err := d.fetch(ctx, "backup")
	switch {
	case errors.Is(err, ErrNoActiveView):
		text = d.Text()
	case errors.Is(err, context.Canceled):
		return nil, nil
	case err != nil:
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, nil
	}
	if err := d.store.Write(dest, []byte(text)); err != nil {
		return nil, &IOError{Op: "backup", URI: dest, Err: err}
	}
	return &Backup{URI: dest, store: d.store, logger: d.logger}, nil
}

// Close detaches the content source, fires the dispose listeners and
// drops every listener. Further edits are ignored.
func (d *Document) Close() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	d.source = nil
	d.mu.Unlock()

	d.listeners.dispose()
}

func (d *Document) OnChange(fn func(ChangeEvent)) (unsubscribe func()) {
	return d.listeners.add(listener{onChange: fn})
}

// OnEdit is called for every edit accepted from a view.
func (d *Document) OnEdit(fn func(EditRecord)) (unsubscribe func()) {
	return d.listeners.add(listener{onEdit: fn})
}

func (d *Document) OnDispose(fn func()) (unsubscribe func()) {
	return d.listeners.add(listener{onDispose: fn})
}
