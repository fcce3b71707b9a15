package state

import (
	"context"
	"sync"
)

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Locks is a keyed mutex. Entries live only while someone holds or waits for them.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the lock
// and is safe to call more than once.
func (l *Locks) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *Locks) release(key string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Len reports the number of keys currently held or awaited.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
