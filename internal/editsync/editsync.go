// Package editsync turns bursts of user interaction on a rich view into
// at most one Markdown edit per quiet period.
package editsync

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultWindow = 300 * time.Millisecond

type State int

const (
	Idle State = iota
	PendingFlush
)

func (s State) String() string {
	if s == PendingFlush {
		return "PendingFlush"
	}
	return "Idle"
}

// Controller debounces interaction signals and emits the serialized
// content of a view only when it differs from the last known Markdown.
//
// serialize is called without any lock held so it may lock the view.
// emit is called outside of the controller lock, at most once per flush.
type Controller struct {
	mu sync.Mutex
	// flushMu keeps concurrent flushes from emitting out of order.
	flushMu sync.Mutex

	serialize func() string
	emit      func(markdown string)

	window time.Duration
	clock  Clock
	logger *zap.Logger

	state   State
	timer   Timer
	gen     uint64
	stopped bool
	// epoch counts Resets. Content serialized in an earlier epoch is never
	// emitted.
	epoch uint64

	// last is the Markdown known to both sides. baseline is what the view
	// serialized to right after last was pushed; content serializing to
	// the baseline only differs from last by normalization.
	last     string
	baseline string
}

type Option func(*Controller)

func WithWindow(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.window = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(serialize func() string, emit func(string), opts ...Option) *Controller {
	c := &Controller{
		serialize: serialize,
		emit:      emit,
		window:    DefaultWindow,
		clock:     SystemClock,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Touch records a user interaction, opening or restarting the window.
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.state = PendingFlush
	c.timer = c.clock.AfterFunc(c.window, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.timer = nil
	c.mu.Unlock()

	c.sync()
}

// Flush closes the window immediately. It returns the current Markdown
// and whether an edit was emitted.
func (c *Controller) Flush() (string, bool) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.state = Idle
	c.mu.Unlock()

	return c.sync()
}

func (c *Controller) sync() (string, bool) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	markdown := c.serialize()

	c.mu.Lock()
	if epoch != c.epoch {
		last := c.last
		c.mu.Unlock()
		c.logger.Debug("dropping flush overtaken by an external update")
		return last, false
	}
	if c.stopped || markdown == c.last || markdown == c.baseline {
		last := c.last
		c.mu.Unlock()
		c.logger.Debug("no change after flush")
		return last, false
	}
	c.last = markdown
	c.baseline = markdown
	c.mu.Unlock()

	c.logger.Debug("emitting edit", zap.Int("length", len(markdown)))
	c.emit(markdown)
	return markdown, true
}

// Reset makes markdown the last known value after it was pushed into the
// view from outside. A pending window is dropped: the content it covered
// has been replaced. A flush already serializing is dropped too.
func (c *Controller) Reset(markdown string) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.epoch++
	epoch := c.epoch
	c.state = Idle
	c.last = markdown
	c.baseline = markdown
	c.mu.Unlock()

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	baseline := c.serialize()

	c.mu.Lock()
	if epoch == c.epoch {
		c.baseline = baseline
	}
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Stop cancels a pending window. Nothing is emitted after Stop returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.stopped = true
	c.state = Idle
}
