// Package editor connects open documents with the views attached to them.
package editor

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/stateful/mdedit/internal/protocol"
	"github.com/stateful/mdedit/internal/session"
	"github.com/stateful/mdedit/internal/ulid"
)

// Store is a session store that also knows which resources may be
// written.
type Store interface {
	session.Store
	Writable(uri string) bool
}

// EditLabel names the undoable change reported for every accepted edit.
const EditLabel = "Edit"

// DocumentEdit is reported to the host for every edit accepted from a
// view.
type DocumentEdit struct {
	URI    string
	Label  string
	Record session.EditRecord
}

type Provider struct {
	store  Store
	logger *zap.Logger
	ids    ulid.Generator
	onEdit func(DocumentEdit)

	mu   sync.Mutex
	docs map[string]*entry
}

type entry struct {
	doc     *session.Document
	pending *protocol.Pending

	mu    sync.Mutex
	views []*binding
}

type binding struct {
	id string
	ch protocol.Channel

	// requestMu keeps a single content request in flight per view.
	requestMu sync.Mutex
	initSent  bool
}

type Option func(*Provider)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func WithIDGenerator(gen ulid.Generator) Option {
	return func(p *Provider) {
		p.ids = gen
	}
}

func WithEditListener(fn func(DocumentEdit)) Option {
	return func(p *Provider) {
		p.onEdit = fn
	}
}

func NewProvider(store Store, opts ...Option) *Provider {
	p := &Provider{
		store:  store,
		logger: zap.NewNop(),
		ids:    ulid.Default,
		docs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("provider")
	return p
}

// Open returns the document for uri, loading it on first use.
func (p *Provider) Open(ctx context.Context, uri string, opts ...session.Option) (*session.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.docs[uri]; ok {
		return e.doc, nil
	}

	opts = append([]session.Option{session.WithLogger(p.logger)}, opts...)
	doc, err := session.Open(ctx, p.store, uri, opts...)
	if err != nil {
		return nil, err
	}

	e := &entry{doc: doc, pending: protocol.NewPending(p.logger.With(zap.String("uri", uri)))}
	doc.SetContentSource(func(ctx context.Context) (string, error) {
		return p.requestContent(ctx, e)
	})
	doc.OnChange(func(ev session.ChangeEvent) {
		p.broadcast(e, ev)
	})
	doc.OnEdit(func(rec session.EditRecord) {
		if p.onEdit != nil {
			p.onEdit(DocumentEdit{URI: uri, Label: EditLabel, Record: rec})
		}
	})
	doc.OnDispose(func() {
		p.mu.Lock()
		delete(p.docs, uri)
		p.mu.Unlock()
	})

	p.docs[uri] = e
	p.logger.Info("opened document", zap.String("uri", uri))
	return doc, nil
}

func (p *Provider) Document(uri string) (*session.Document, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.docs[uri]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Views returns the ids of the views attached to uri in attachment
// order.
func (p *Provider) Views(uri string) []string {
	p.mu.Lock()
	e, ok := p.docs[uri]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	var ids []string
	for _, b := range e.snapshot() {
		ids = append(ids, b.id)
	}
	return ids
}

// Attach serves a view of an open document until ch is closed or ctx is
// done. Messages from the view are handled in the order they were sent.
func (p *Provider) Attach(ctx context.Context, uri string, ch protocol.Channel) error {
	p.mu.Lock()
	e, ok := p.docs[uri]
	p.mu.Unlock()
	if !ok {
		return errors.Errorf("document %s is not open", uri)
	}

	b := &binding{id: p.ids(), ch: ch}
	e.add(b)
	defer e.remove(b)

	logger := p.logger.With(zap.String("uri", uri), zap.String("view", b.id))
	logger.Debug("view attached")
	defer logger.Debug("view detached")

	for {
		msg, err := ch.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		p.handle(e, b, msg, logger)
	}
}

func (p *Provider) handle(e *entry, b *binding, msg protocol.Message, logger *zap.Logger) {
	switch m := msg.(type) {
	case protocol.Ready:
		e.mu.Lock()
		if b.initSent {
			e.mu.Unlock()
			logger.Warn("ignoring repeated ready")
			return
		}
		b.initSent = true
		// Sending under the lock orders init before any later update.
		err := b.ch.Send(protocol.Init{Value: e.doc.Text(), Editable: p.editable(e.doc.URI())})
		e.mu.Unlock()
		if err != nil {
			logger.Warn("failed to send init", zap.Error(err))
		}

	case protocol.Edit:
		e.doc.ApplyEdit(m.Content, b.id)

	case protocol.Response:
		e.pending.Resolve(m.RequestID, m.Body)

	default:
		logger.Warn("ignoring unexpected message", zap.String("type", string(msg.Type())))
	}
}

func (p *Provider) editable(uri string) bool {
	return session.IsUntitled(uri) || p.store.Writable(uri)
}

// requestContent asks the first attached view for its content.
func (p *Provider) requestContent(ctx context.Context, e *entry) (string, error) {
	views := e.snapshot()
	if len(views) == 0 {
		return "", session.ErrNoActiveView
	}
	b := views[0]

	b.requestMu.Lock()
	defer b.requestMu.Unlock()

	return e.pending.Request(ctx, func(id int64) error {
		return b.ch.Send(protocol.GetFileData{RequestID: id})
	})
}

// broadcast pushes a content change to every initialized view except the
// one it came from.
func (p *Provider) broadcast(e *entry, ev session.ChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.views {
		if b.id == ev.Origin || !b.initSent {
			continue
		}
		if err := b.ch.Send(protocol.Update{Content: ev.Text}); err != nil {
			p.logger.Warn("failed to send update", zap.String("view", b.id), zap.Error(err))
		}
	}
}

// Close closes every document and the channels of their views.
func (p *Provider) Close() error {
	p.mu.Lock()
	entries := make([]*entry, 0, len(p.docs))
	for _, e := range p.docs {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	var err error
	for _, e := range entries {
		e.doc.Close()
		for _, b := range e.snapshot() {
			err = multierr.Append(err, b.ch.Close())
		}
	}
	return err
}

func (e *entry) add(b *binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.views = append(e.views, b)
}

func (e *entry) remove(b *binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, v := range e.views {
		if v == b {
			e.views = append(e.views[:i:i], e.views[i+1:]...)
			return
		}
	}
}

func (e *entry) snapshot() []*binding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*binding(nil), e.views...)
}
