// Package view is a headless rich view. It renders the Markdown it
// receives into a rich tree, lets callers edit that tree the way a user
// edits an editable page and speaks the view side of the protocol.
package view

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/mdedit/internal/editsync"
	"github.com/stateful/mdedit/internal/protocol"
	"github.com/stateful/mdedit/internal/renderer/markup"
	"github.com/stateful/mdedit/internal/renderer/md"
	"github.com/stateful/mdedit/internal/renderer/richtree"
	"github.com/stateful/mdedit/internal/ulid"
	"github.com/stateful/mdedit/pkg/document/rich"
)

var (
	ErrReadOnly         = errors.New("view is read-only")
	ErrNotInitialized   = errors.New("view is not initialized")
	ErrDisposed         = errors.New("view is disposed")
	ErrInvalidSelection = errors.New("selection does not resolve")
	ErrNoSelection      = errors.New("command needs a selection inside a single text")
)

type Sender interface {
	Send(protocol.Message) error
}

type View struct {
	id       string
	sender   Sender
	logger   *zap.Logger
	renderer *richtree.Renderer
	sync     *editsync.Controller

	mu          sync.Mutex
	doc         *rich.Node
	selection   *Range
	editable    bool
	initialized bool
	disposed    bool
	pending     []int64
}

type Option func(*config)

type config struct {
	id       string
	logger   *zap.Logger
	clock    editsync.Clock
	window   time.Duration
	renderer []richtree.Option
}

func WithID(id string) Option {
	return func(c *config) { c.id = id }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func WithClock(clock editsync.Clock) Option {
	return func(c *config) { c.clock = clock }
}

func WithDebounce(d time.Duration) Option {
	return func(c *config) { c.window = d }
}

func WithRendererOptions(opts ...richtree.Option) Option {
	return func(c *config) { c.renderer = append(c.renderer, opts...) }
}

func New(sender Sender, opts ...Option) *View {
	cfg := config{
		logger: zap.NewNop(),
		clock:  editsync.SystemClock,
		window: editsync.DefaultWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = ulid.New()
	}

	v := &View{
		id:       cfg.id,
		sender:   sender,
		logger:   cfg.logger.With(zap.String("view", cfg.id)),
		renderer: richtree.New(cfg.renderer...),
		doc:      rich.NewDocument(),
		editable: true,
	}
	v.sync = editsync.New(
		v.serialize,
		v.emit,
		editsync.WithClock(cfg.clock),
		editsync.WithWindow(cfg.window),
		editsync.WithLogger(v.logger),
	)
	return v
}

func (v *View) ID() string { return v.id }

func (v *View) serialize() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return md.RenderString(v.doc)
}

func (v *View) emit(markdown string) {
	if err := v.sender.Send(protocol.Edit{Content: markdown}); err != nil {
		v.logger.Warn("failed to send edit", zap.Error(err))
	}
}

// Start announces the view. It must be called once, before any message
// is handled.
func (v *View) Start() error {
	return v.sender.Send(protocol.Ready{})
}

// Run starts the view and handles messages from ch until it is closed or
// ctx is done.
func (v *View) Run(ctx context.Context, ch protocol.Channel) error {
	if err := v.Start(); err != nil {
		return err
	}
	for {
		msg, err := ch.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := v.Handle(msg); err != nil {
			return err
		}
	}
}

// Handle processes one message sent to the view by the session side.
func (v *View) Handle(msg protocol.Message) error {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return ErrDisposed
	}

	switch m := msg.(type) {
	case protocol.Init:
		v.editable = m.Editable
		v.load(m.Value)
		v.initialized = true
		pending := v.pending
		v.pending = nil
		v.mu.Unlock()

		v.sync.Reset(m.Value)
		for _, id := range pending {
			if err := v.respond(id); err != nil {
				return err
			}
		}
		return nil

	case protocol.Update:
		v.load(m.Content)
		v.mu.Unlock()
		v.sync.Reset(m.Content)
		return nil

	case protocol.GetFileData:
		if !v.initialized {
			v.pending = append(v.pending, m.RequestID)
			v.mu.Unlock()
			return nil
		}
		v.mu.Unlock()
		return v.respond(m.RequestID)
	}

	v.mu.Unlock()
	v.logger.Debug("ignoring message", zap.String("type", string(msg.Type())))
	return nil
}

// respond syncs pending user input first so the answer is never older
// than what the user sees.
func (v *View) respond(id int64) error {
	markdown, _ := v.sync.Flush()
	return v.sender.Send(protocol.Response{RequestID: id, Body: markdown})
}

// load replaces the content. The selection survives when its endpoints
// still resolve.
func (v *View) load(markdown string) {
	v.doc = v.renderer.Render([]byte(markdown))
	if v.selection != nil && !v.selection.resolves(v.doc) {
		v.selection = nil
	}
}

// edit runs fn on the content when the view accepts user input.
func (v *View) edit(fn func() error) error {
	v.mu.Lock()
	switch {
	case v.disposed:
		v.mu.Unlock()
		return ErrDisposed
	case !v.initialized:
		v.mu.Unlock()
		return ErrNotInitialized
	case !v.editable:
		v.mu.Unlock()
		return ErrReadOnly
	}
	err := fn()
	if v.selection != nil && !v.selection.resolves(v.doc) {
		v.selection = nil
	}
	v.mu.Unlock()
	return err
}

// Input applies an arbitrary change to the content, as a user typing
// would, and opens the debounce window.
func (v *View) Input(fn func(doc *rich.Node)) error {
	err := v.edit(func() error {
		fn(v.doc)
		return nil
	})
	if err == nil {
		v.sync.Touch()
	}
	return err
}

// SetHTML replaces the content with the tree parsed from markup, the way
// an editable page reports its content after input.
func (v *View) SetHTML(html string) error {
	return v.Input(func(*rich.Node) {
		v.doc = markup.Parse(html)
	})
}

// InsertText types text at the selection, replacing selected text. Line
// breaks in text become LineBreak nodes.
func (v *View) InsertText(text string) error {
	err := v.edit(func() error {
		v.insertText(text)
		return nil
	})
	if err == nil {
		v.sync.Touch()
	}
	return err
}

// Paste inserts the plain text flavour of clipboard content.
func (v *View) Paste(text string) error {
	return v.InsertText(strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n"))
}

// Exec runs a toolbar command and syncs immediately.
func (v *View) Exec(cmd Command, arg string) error {
	if err := v.edit(func() error { return v.exec(cmd, arg) }); err != nil {
		return err
	}
	v.sync.Flush()
	return nil
}

func (v *View) Select(r Range) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !r.resolves(v.doc) {
		return ErrInvalidSelection
	}
	r = r.clone()
	v.selection = &r
	return nil
}

func (v *View) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection = nil
}

// Selection returns a copy of the selection or nil.
func (v *View) Selection() *Range {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selection == nil {
		return nil
	}
	r := v.selection.clone()
	return &r
}

// Content returns a copy of the current tree.
func (v *View) Content() *rich.Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.doc.Clone()
}

func (v *View) HTML() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return rich.RenderHTML(v.doc)
}

func (v *View) Markdown() string {
	return v.serialize()
}

func (v *View) Editable() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editable
}

func (v *View) Initialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.initialized
}

// Toolbar lists the commands offered to the user. Read-only views have
// none.
func (v *View) Toolbar() []Command {
	if !v.Editable() {
		return nil
	}
	return Commands()
}

// Flush syncs pending input now, the way leaving the view does.
func (v *View) Flush() {
	v.sync.Flush()
}

// Dispose discards pending input. Handle fails afterwards.
func (v *View) Dispose() {
	v.sync.Stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed = true
}
