package providers

import (
	"context"
	"sync"
)

type delivery[T any] struct {
	value T
	err   error
}

// Mailbox hands one user interaction (a card form, an approval) to the
// adapter call waiting for it. Each key resolves at most once; later
// deliveries get ErrNotPending.
type Mailbox[T any] struct {
	mu      sync.Mutex
	waiting map[string]chan delivery[T]
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		waiting: make(map[string]chan delivery[T]),
	}
}

type Pending[T any] struct {
	key string
	ch  chan delivery[T]
	box *Mailbox[T]
}

func (m *Mailbox[T]) Open(key string) (*Pending[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.waiting[key]; ok {
		return nil, ErrAlreadyPending
	}

	ch := make(chan delivery[T], 1)
	m.waiting[key] = ch

	return &Pending[T]{key: key, ch: ch, box: m}, nil
}

func (m *Mailbox[T]) Deliver(key string, value T) error {
	return m.resolve(key, delivery[T]{value: value})
}

func (m *Mailbox[T]) Fail(key string, err error) error {
	return m.resolve(key, delivery[T]{err: err})
}

func (m *Mailbox[T]) IsPending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.waiting[key]
	return ok
}

func (m *Mailbox[T]) resolve(key string, d delivery[T]) error {
	m.mu.Lock()
	ch, ok := m.waiting[key]
	if ok {
		delete(m.waiting, key)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotPending
	}

	ch <- d
	return nil
}

func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case d := <-p.ch:
		return d.value, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close unregisters the key if it was never resolved.
func (p *Pending[T]) Close() {
	p.box.mu.Lock()
	defer p.box.mu.Unlock()

	if ch, ok := p.box.waiting[p.key]; ok && ch == p.ch {
		delete(p.box.waiting, p.key)
	}
}
