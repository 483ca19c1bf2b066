package protocol

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Channel carries messages in both directions between one view and the
// session side. Messages arrive in the order they were sent.
type Channel interface {
	Send(Message) error
	// Receive blocks until a message arrives, the channel is closed
	// (io.EOF) or ctx is done.
	Receive(context.Context) (Message, error)
	Close() error
}

var ErrClosed = errors.New("channel closed")

// mailbox is an unbounded FIFO queue. Senders never block so two sides
// may send to each other from within their receive loops.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	err    error
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) put(msg Message) error {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	m.wake()
	return nil
}

func (m *mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// close makes pending messages still receivable; err is returned after
// the queue drains.
func (m *mailbox) close(err error) {
	m.mu.Lock()
	if m.err == nil {
		m.err = err
	}
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) get(ctx context.Context) (Message, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, nil
		}
		err := m.err
		m.mu.Unlock()
		if err != nil {
			m.wake()
			return nil, err
		}

		select {
		case <-m.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type pipeEnd struct {
	in, out *mailbox
}

// Pipe returns two connected in-process channel ends.
func Pipe() (Channel, Channel) {
	a, b := newMailbox(), newMailbox()
	return &pipeEnd{in: a, out: b}, &pipeEnd{in: b, out: a}
}

func (p *pipeEnd) Send(msg Message) error {
	return p.out.put(msg)
}

func (p *pipeEnd) Receive(ctx context.Context) (Message, error) {
	return p.in.get(ctx)
}

func (p *pipeEnd) Close() error {
	p.in.close(io.EOF)
	p.out.close(io.EOF)
	return nil
}

// Stream is a Channel over a byte stream carrying one JSON message per
// line. Lines that fail to decode are logged and skipped.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	in     *mailbox
	logger *zap.Logger
	once   sync.Once
}

// NewStream starts reading rwc in the background. rwc is closed by Close.
func NewStream(rwc io.ReadWriteCloser, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stream{
		w:      rwc,
		closer: rwc,
		in:     newMailbox(),
		logger: logger,
	}
	go s.read(rwc)
	return s
}

func (s *Stream) read(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := Decode(line)
		if err != nil {
			s.logger.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		if err := s.in.put(msg); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.in.close(errors.Wrap(err, "failed to read message"))
		return
	}
	s.in.close(io.EOF)
}

func (s *Stream) Send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(data)
	return errors.Wrap(err, "failed to write message")
}

func (s *Stream) Receive(ctx context.Context) (Message, error) {
	return s.in.get(ctx)
}

func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.in.close(io.EOF)
		err = s.closer.Close()
	})
	return err
}
