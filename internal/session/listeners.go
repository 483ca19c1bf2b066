package session

import "sync"

type listener struct {
	id        int
	onChange  func(ChangeEvent)
	onEdit    func(EditRecord)
	onDispose func()
}

// listeners calls back in registration order without holding its lock.
type listeners struct {
	mu     sync.Mutex
	lastID int
	items  []listener
}

func (l *listeners) add(item listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastID++
	item.id = l.lastID
	l.items = append(l.items, item)

	id := item.id
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, it := range l.items {
			if it.id == id {
				l.items = append(l.items[:i:i], l.items[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners) snapshot() []listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]listener(nil), l.items...)
}

func (l *listeners) change(ev ChangeEvent) {
	for _, it := range l.snapshot() {
		if it.onChange != nil {
			it.onChange(ev)
		}
	}
}

func (l *listeners) edit(rec EditRecord) {
	for _, it := range l.snapshot() {
		if it.onEdit != nil {
			it.onEdit(rec)
		}
	}
}

func (l *listeners) dispose() {
	items := l.snapshot()
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()

	for _, it := range items {
		if it.onDispose != nil {
			it.onDispose()
		}
	}
}
