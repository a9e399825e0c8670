package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Locks serializes mutations per ledger. Unrelated ledgers never contend.
type Locks struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocks() *Locks {
	return &Locks{slots: make(map[uuid.UUID]*slot)}
}

// Acquire blocks until the ledger is free or ctx is done. The returned release
// function must be called exactly once.
func (l *Locks) Acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	s := l.ref(id)

	select {
	case s.ch <- struct{}{}:
		return l.releaser(id, s), nil
	case <-ctx.Done():
		l.unref(id, s)
		return nil, fmt.Errorf("%w: ledger %s: %w", ErrLockTimeout, id, ctx.Err())
	}
}

// TryAcquire takes the ledger lock only if nobody holds it.
func (l *Locks) TryAcquire(id uuid.UUID) (func(), bool) {
	s := l.ref(id)

	select {
	case s.ch <- struct{}{}:
		return l.releaser(id, s), true
	default:
		l.unref(id, s)
		return nil, false
	}
}

func (l *Locks) ref(id uuid.UUID) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}

	s.refs++

	return s
}

func (l *Locks) unref(id uuid.UUID, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *Locks) releaser(id uuid.UUID, s *slot) func() {
	var once sync.Once

	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(id, s)
		})
	}
}
