package protocol

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pending correlates content requests with their responses. Ids start at
// 1, grow monotonically and are never reused by the same Pending.
type Pending struct {
	mu      sync.Mutex
	lastID  int64
	waiting map[int64]chan string
	logger  *zap.Logger
}

func NewPending(logger *zap.Logger) *Pending {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pending{
		waiting: make(map[int64]chan string),
		logger:  logger,
	}
}

// Request allocates an id, hands it to send and blocks until the id is
// resolved or ctx is done.
func (p *Pending) Request(ctx context.Context, send func(id int64) error) (string, error) {
	p.mu.Lock()
	p.lastID++
	id := p.lastID
	ch := make(chan string, 1)
	p.waiting[id] = ch
	p.mu.Unlock()

	if err := send(id); err != nil {
		p.forget(id)
		return "", err
	}

	select {
	case body := <-ch:
		return body, nil
	case <-ctx.Done():
		p.forget(id)
		return "", ctx.Err()
	}
}

func (p *Pending) forget(id int64) {
	p.mu.Lock()
	delete(p.waiting, id)
	p.mu.Unlock()
}

// Resolve completes the request with the given id. It reports false for
// ids that are unknown, already resolved or abandoned.
func (p *Pending) Resolve(id int64, body string) bool {
	p.mu.Lock()
	ch, ok := p.waiting[id]
	delete(p.waiting, id)
	p.mu.Unlock()

	if !ok {
		p.logger.Debug("ignoring unmatched response", zap.Int64("requestId", id))
		return false
	}
	ch <- body
	return true
}

// Len returns the number of unresolved requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}
