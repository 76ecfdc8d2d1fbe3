package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"francoggm/travelpay/internal/app/checkoutlock"
	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/models"

	"github.com/google/uuid"
)

// defaultRetention is how long a finished or status-unknown attempt can
// still be looked up.
const defaultRetention = 10 * time.Minute

type Config struct {
	Currency       string
	ConfirmTimeout time.Duration
	// CollectTimeout bounds how long a provider may wait for the user.
	CollectTimeout time.Duration
}

type entry struct {
	attempt *Attempt
	stop    context.CancelFunc
}

// Orchestrator runs checkout attempts. Each attempt gets its own goroutine
// that drives the provider adapter and feeds the result back into the
// attempt's state machine.
type Orchestrator struct {
	confirmer Confirmer
	adapters  map[models.Provider]providers.Adapter
	lock      checkoutlock.Lock
	outcomes  chan any
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	attempts map[string]*entry
}

func NewOrchestrator(confirmer Confirmer, adapters []providers.Adapter, lock checkoutlock.Lock, outcomes chan any, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	byProvider := make(map[models.Provider]providers.Adapter, len(adapters))
	for _, adapter := range adapters {
		byProvider[adapter.Provider()] = adapter
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		confirmer: confirmer,
		adapters:  byProvider,
		lock:      lock,
		outcomes:  outcomes,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		retention: defaultRetention,
		ctx:       ctx,
		cancel:    cancel,
		attempts:  make(map[string]*entry),
	}
}

// Start validates the purchase, takes the purchase lock and kicks off the
// provider flow. The returned snapshot is in collecting.
func (o *Orchestrator) Start(ctx context.Context, target models.PurchaseTarget, provider models.Provider) (Snapshot, error) {
	if err := models.ValidateTarget(target); err != nil {
		return Snapshot{}, err
	}

	adapter, ok := o.adapters[provider]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: unknown provider %q", models.ErrContractViolation, provider)
	}

	id := uuid.NewString()
	key := target.LockKey()

	acquired, err := o.lock.Acquire(ctx, key, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to lock purchase: %w", err)
	}
	if !acquired {
		return Snapshot{}, ErrCheckoutInProgress
	}

	attempt := NewAttempt(id, o.confirmer, AttemptConfig{
		Currency:       o.cfg.Currency,
		ConfirmTimeout: o.cfg.ConfirmTimeout,
		Now:            o.now,
		OnTerminal: func(s Snapshot) {
			o.finished(key, s)
		},
	})
	if err := attempt.Begin(target, provider); err != nil {
		o.release(key, id)
		return Snapshot{}, err
	}

	flowCtx, stop := o.flowContext()
	o.mu.Lock()
	o.attempts[id] = &entry{attempt: attempt, stop: stop}
	o.mu.Unlock()

	o.logger.Info("checkout started",
		slog.String("attempt_id", id),
		slog.String("provider", string(provider)),
		slog.String("kind", string(target.Kind())),
		slog.String("amount", target.Total().String()),
	)

	o.wg.Add(1)
	go o.run(flowCtx, stop, attempt, adapter)

	return attempt.Snapshot(), nil
}

func (o *Orchestrator) flowContext() (context.Context, context.CancelFunc) {
	if o.cfg.CollectTimeout > 0 {
		return context.WithTimeout(o.ctx, o.cfg.CollectTimeout)
	}
	return context.WithCancel(o.ctx)
}

func (o *Orchestrator) run(ctx context.Context, stop context.CancelFunc, attempt *Attempt, adapter providers.Adapter) {
	defer o.wg.Done()
	defer stop()

	artifact, err := adapter.Begin(ctx, attempt.Charge())

	switch {
	case err == nil:
		// Confirmation outlives the collect window so a slow backend can't
		// turn a charged payment into a failure.
		err = attempt.ArtifactReady(context.WithoutCancel(ctx), artifact)
		if errors.Is(err, ErrStatusUnknown) {
			// The attempt never becomes terminal. Its purchase lock is left to
			// expire on its own so the purchase can't be paid twice meanwhile.
			o.logger.Error("backend confirmation timed out",
				slog.String("attempt_id", attempt.ID()),
				slog.String("reference", artifact.Reference),
			)
			o.forget(attempt.ID())
		}
	case errors.Is(err, providers.ErrProviderCancelled):
		err = attempt.ProviderCancelled()
	case errors.Is(err, context.DeadlineExceeded):
		err = attempt.ProviderFailed(ErrCollectExpired)
	default:
		err = attempt.ProviderFailed(err)
	}

	if errors.Is(err, ErrStaleEvent) {
		o.logger.Debug("dropped stale provider result", slog.String("attempt_id", attempt.ID()))
	}
}

func (o *Orchestrator) finished(key string, s Snapshot) {
	o.release(key, s.ID)

	level := slog.LevelInfo
	if s.Status == models.StatusFailed {
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "checkout finished",
		slog.String("attempt_id", s.ID),
		slog.String("status", string(s.Status)),
		slog.String("error_detail", s.ErrorDetail),
	)

	if o.outcomes != nil {
		select {
		case o.outcomes <- s.Outcome():
		default:
			o.logger.Warn("outcome queue full, dropping outcome", slog.String("attempt_id", s.ID))
		}
	}

	o.forget(s.ID)
}

// forget drops the attempt from lookups once the retention period is over.
func (o *Orchestrator) forget(id string) {
	time.AfterFunc(o.retention, func() {
		o.mu.Lock()
		delete(o.attempts, id)
		o.mu.Unlock()
	})
}

func (o *Orchestrator) release(key, owner string) {
	if err := o.lock.Release(context.Background(), key, owner); err != nil {
		o.logger.Error("failed to release purchase lock", slog.String("key", key), slog.Any("error", err))
	}
}

func (o *Orchestrator) lookup(id string) (*entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.attempts[id]
	if !ok {
		return nil, ErrNotFound
	}

	return e, nil
}

func (o *Orchestrator) Get(id string) (Snapshot, error) {
	e, err := o.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	return e.attempt.Snapshot(), nil
}

// Wait blocks until the attempt is terminal or ctx is done, and returns the
// latest snapshot either way.
func (o *Orchestrator) Wait(ctx context.Context, id string) (Snapshot, error) {
	e, err := o.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-e.attempt.Done():
	case <-ctx.Done():
	}

	return e.attempt.Snapshot(), nil
}

// Cancel is the user backing out. It only applies while collecting and before
// the provider has committed to moving money; after that it returns
// ErrStaleEvent.
func (o *Orchestrator) Cancel(id string) (Snapshot, error) {
	e, err := o.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	if err := e.attempt.ProviderCancelled(); err != nil {
		return e.attempt.Snapshot(), err
	}

	snapshot := e.attempt.Snapshot()
	if adapter, ok := o.adapters[snapshot.Provider]; ok {
		// ErrNotPending only means the adapter is not waiting on the user yet.
		_ = adapter.Cancel(id)
	}
	e.stop()

	return snapshot, nil
}

// Close aborts every flow still collecting and waits for the goroutines.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}
