// Package checkoutlock keeps two attempts from paying for the same purchase
// target at the same time.
package checkoutlock

import (
	"context"
	"sync"
	"time"
)

type Lock interface {
	Acquire(ctx context.Context, key, owner string) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

type lease struct {
	owner     string
	expiresAt time.Time
}

type MemoryLock struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]lease
}

func NewMemoryLock(ttl time.Duration) *MemoryLock {
	return &MemoryLock{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]lease),
	}
}

func (l *MemoryLock) Acquire(ctx context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.leases[key]; ok && now.Before(current.expiresAt) {
		return false, nil
	}

	l.leases[key] = lease{owner: owner, expiresAt: now.Add(l.ttl)}
	return true, nil
}

func (l *MemoryLock) Release(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.leases[key]; ok && current.owner == owner {
		delete(l.leases, key)
	}

	return nil
}
