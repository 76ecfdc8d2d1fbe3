// Package session owns the bearer credential: it is the only code that sets,
// reads, expires or clears it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"francoggm/travelpay/internal/app/credential"
)

type Manager struct {
	mu     sync.Mutex
	store  credential.Store
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(store credential.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetCredential replaces the active credential. An empty raw clears it.
func (m *Manager) SetCredential(ctx context.Context, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if raw == "" {
		return m.store.Clear(ctx)
	}

	return m.store.Set(ctx, raw)
}

// Credential returns the credential to attach to an outbound call, or "" when
// there is none. An expired or undecodable credential is cleared on the spot.
func (m *Manager) Credential(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.store.Get(ctx)
	if err != nil || raw == "" {
		return "", err
	}

	if m.validLocked(raw) {
		return raw, nil
	}

	m.logger.Info("dropping expired credential")
	if err := m.store.Clear(ctx); err != nil {
		return "", err
	}

	return "", nil
}

// IsAuthenticated reports whether a credential is stored and its exp is
// strictly in the future. Any read or decode error counts as false.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.store.Get(ctx)
	if err != nil || raw == "" {
		return false
	}

	return m.validLocked(raw)
}

func (m *Manager) ExpiresAt(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.store.Get(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, fmt.Errorf("no credential stored")
	}

	return ExpiryOf(raw)
}

func (m *Manager) ClearCredential(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Clear(ctx)
}

// ClearCredentialIf clears the stored credential only while it is still raw.
// It reports whether anything was cleared, so a rejection of an old
// credential can't wipe a newer one set in the meantime.
func (m *Manager) ClearCredentialIf(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.Get(ctx)
	if err != nil {
		return false, err
	}
	if current != raw {
		return false, nil
	}

	if err := m.store.Clear(ctx); err != nil {
		return false, err
	}

	return true, nil
}

func (m *Manager) validLocked(raw string) bool {
	exp, err := ExpiryOf(raw)
	if err != nil {
		return false
	}

	return exp.After(m.now())
}
