package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"francoggm/travelpay/internal/app/payment"
	"francoggm/travelpay/internal/app/pipeline"
	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/models"
)

// Confirmer records a paid purchase with the backend.
type Confirmer interface {
	Confirm(ctx context.Context, c payment.Confirmation) error
}

type Snapshot struct {
	ID            string               `json:"id"`
	Kind          models.PurchaseKind  `json:"kind,omitempty"`
	Description   string               `json:"description,omitempty"`
	Provider      models.Provider      `json:"provider,omitempty"`
	Status        models.AttemptStatus `json:"status"`
	Amount        models.Amount        `json:"amount"`
	Currency      string               `json:"currency"`
	Action        *providers.Action    `json:"action,omitempty"`
	Reference     string               `json:"reference,omitempty"`
	ErrorDetail   string               `json:"errorDetail,omitempty"`
	StatusUnknown bool                 `json:"statusUnknown,omitempty"`
	Committed     bool                 `json:"committed,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Attempt is one checkout run. Every event is checked against the current
// status under the lock before it has any effect, so late or duplicate
// provider callbacks are dropped and the backend is confirmed at most once.
type Attempt struct {
	mu sync.Mutex

	id            string
	target        models.PurchaseTarget
	provider      models.Provider
	status        models.AttemptStatus
	artifact      *models.Artifact
	action        *providers.Action
	errorDetail   string
	statusUnknown bool
	committed     bool
	createdAt     time.Time
	updatedAt     time.Time

	currency       string
	confirmer      Confirmer
	confirmTimeout time.Duration
	now            func() time.Time
	done           chan struct{}
	onTerminal     func(Snapshot)
}

type AttemptConfig struct {
	Currency string
	// ConfirmTimeout bounds the backend confirmation. Zero means no bound.
	ConfirmTimeout time.Duration
	Now            func() time.Time
	OnTerminal     func(Snapshot)
}

func NewAttempt(id string, confirmer Confirmer, cfg AttemptConfig) *Attempt {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	created := now()
	return &Attempt{
		id:             id,
		status:         models.StatusIdle,
		createdAt:      created,
		updatedAt:      created,
		currency:       cfg.Currency,
		confirmer:      confirmer,
		confirmTimeout: cfg.ConfirmTimeout,
		now:            now,
		done:           make(chan struct{}),
		onTerminal:     cfg.OnTerminal,
	}
}

func (a *Attempt) ID() string {
	return a.id
}

// Done is closed once the attempt reaches a terminal status.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Begin moves idle to collecting. An invalid target or provider is a
// contract violation and leaves the attempt idle.
func (a *Attempt) Begin(target models.PurchaseTarget, provider models.Provider) error {
	if err := models.ValidateTarget(target); err != nil {
		return err
	}
	if !provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", models.ErrContractViolation, provider)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != models.StatusIdle {
		return ErrStaleEvent
	}

	a.target = models.CloneTarget(target)
	a.provider = provider
	a.setStatusLocked(models.StatusCollecting)

	return nil
}

// Announce records the next UI step while the attempt is collecting.
func (a *Attempt) Announce(action providers.Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == models.StatusCollecting {
		a.action = &action
		a.updatedAt = a.now()
	}
}

// Charge describes what the provider should collect. The amount always comes
// from the stored target.
func (a *Attempt) Charge() providers.Charge {
	a.mu.Lock()
	defer a.mu.Unlock()

	charge := providers.Charge{
		AttemptID: a.id,
		Currency:  a.currency,
		Announce:  a.Announce,
		Commit:    a.Commit,
	}
	if a.target != nil {
		charge.Amount = a.target.Total()
		charge.Description = a.target.Description()
	}

	return charge
}

// Commit is the provider's point of no return. Once it succeeds the buyer
// can no longer cancel; the provider still may fail the attempt.
func (a *Attempt) Commit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != models.StatusCollecting {
		return ErrStaleEvent
	}

	a.committed = true
	a.updatedAt = a.now()

	return nil
}

// ArtifactReady moves collecting to submitting and confirms the purchase
// with the backend. Any call after the first is dropped with ErrStaleEvent.
func (a *Attempt) ArtifactReady(ctx context.Context, artifact models.Artifact) error {
	a.mu.Lock()
	if a.status != models.StatusCollecting {
		a.mu.Unlock()
		return ErrStaleEvent
	}

	a.artifact = &artifact
	a.action = nil
	a.setStatusLocked(models.StatusSubmitting)

	confirmation := payment.Confirmation{
		IdempotencyKey: a.id,
		Target:         a.target,
		Artifact:       artifact,
		Currency:       a.currency,
	}
	a.mu.Unlock()

	if a.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.confirmTimeout)
		defer cancel()
	}

	err := a.confirmer.Confirm(ctx, confirmation)
	if err == nil {
		a.finish(models.StatusSubmitting, models.StatusSucceeded, "")
		return nil
	}

	if pipeline.IsTimeout(err) {
		// The backend may still have recorded the purchase, so the attempt
		// stays in submitting instead of failing.
		a.mu.Lock()
		a.statusUnknown = true
		a.errorDetail = statusUnknownDetail
		a.updatedAt = a.now()
		a.mu.Unlock()

		return fmt.Errorf("%w: %w", ErrStatusUnknown, err)
	}

	a.finish(models.StatusSubmitting, models.StatusFailed, failureDetail(err))
	return err
}

// ProviderCancelled is valid only while collecting and before Commit.
func (a *Attempt) ProviderCancelled() error {
	a.mu.Lock()
	if a.committed {
		a.mu.Unlock()
		return ErrStaleEvent
	}

	if !a.finishLocked(models.StatusCollecting, models.StatusCancelled, "") {
		return ErrStaleEvent
	}
	return nil
}

// ProviderFailed is valid only while collecting.
func (a *Attempt) ProviderFailed(err error) error {
	if !a.finish(models.StatusCollecting, models.StatusFailed, failureDetail(err)) {
		return ErrStaleEvent
	}
	return nil
}

func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshotLocked()
}

// finish moves the attempt from one status to a terminal one. It reports
// false when the attempt has already left from.
func (a *Attempt) finish(from, to models.AttemptStatus, detail string) bool {
	a.mu.Lock()
	return a.finishLocked(from, to, detail)
}

// finishLocked is finish for callers already holding a.mu. It always
// releases the lock.
func (a *Attempt) finishLocked(from, to models.AttemptStatus, detail string) bool {
	if a.status != from {
		a.mu.Unlock()
		return false
	}

	a.errorDetail = detail
	a.statusUnknown = false
	a.action = nil
	a.setStatusLocked(to)
	close(a.done)

	snapshot := a.snapshotLocked()
	hook := a.onTerminal
	a.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}

	return true
}

func (a *Attempt) setStatusLocked(status models.AttemptStatus) {
	a.status = status
	a.updatedAt = a.now()
}

func (a *Attempt) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:            a.id,
		Provider:      a.provider,
		Status:        a.status,
		Currency:      a.currency,
		ErrorDetail:   a.errorDetail,
		StatusUnknown: a.statusUnknown,
		Committed:     a.committed,
		CreatedAt:     a.createdAt,
		UpdatedAt:     a.updatedAt,
	}
	if a.target != nil {
		s.Kind = a.target.Kind()
		s.Description = a.target.Description()
		s.Amount = a.target.Total()
	}
	if a.action != nil {
		action := *a.action
		s.Action = &action
	}
	if a.artifact != nil {
		s.Reference = a.artifact.Reference
	}

	return s
}

// Outcome converts a terminal snapshot into the event published downstream.
func (s Snapshot) Outcome() *models.Outcome {
	return &models.Outcome{
		AttemptID:   s.ID,
		Kind:        s.Kind,
		Provider:    s.Provider,
		Status:      s.Status,
		Amount:      s.Amount,
		Currency:    s.Currency,
		Reference:   s.Reference,
		ErrorDetail: s.ErrorDetail,
		CompletedAt: s.UpdatedAt,
	}
}
