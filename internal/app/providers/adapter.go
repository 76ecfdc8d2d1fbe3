// Package providers defines the contract the checkout orchestrator uses to
// obtain a payment artifact from an external provider.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"francoggm/travelpay/internal/models"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

var (
	ErrProviderCancelled  = errors.New("payment cancelled at provider")
	ErrProviderValidation = errors.New("payment details rejected")
	ErrNotPending         = errors.New("no pending provider interaction")
	ErrAlreadyPending     = errors.New("provider interaction already pending")
)

type ActionKind string

const (
	ActionCardForm ActionKind = "card-form"
	ActionRedirect ActionKind = "redirect"
)

// Action is the next step the UI has to take for a collecting attempt.
type Action struct {
	Kind ActionKind `json:"kind"`
	URL  string     `json:"url,omitempty"`
}

// Charge is everything an adapter gets to know about the purchase.
type Charge struct {
	AttemptID   string
	Amount      models.Amount
	Currency    string
	Description string
	Announce    func(Action)
	// Commit is called right before a step that moves money. After it
	// succeeds the buyer can no longer cancel.
	Commit      func() error
}

// Notify tells the UI about the next step, if anyone is listening.
func (c Charge) Notify(action Action) {
	if c.Announce != nil {
		c.Announce(action)
	}
}

// Committing marks the point of no return. An error means the attempt was
// cancelled in the meantime and the money-moving step must not run.
func (c Charge) Committing() error {
	if c.Commit == nil {
		return nil
	}
	if err := c.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrProviderCancelled, err)
	}

	return nil
}

// Adapter turns a provider's interactive flow into one blocking call. Begin
// returns an artifact, or fails with ErrProviderCancelled,
// ErrProviderValidation or a *ProviderError.
type Adapter interface {
	Provider() models.Provider
	Begin(ctx context.Context, charge Charge) (models.Artifact, error)
	Cancel(attemptID string) error
}

type ProviderError struct {
	Provider models.Provider
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error: %s: %v", e.Provider, e.Message, e.Err)
	}

	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Doer is satisfied by *fasthttp.Client.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Send runs req, honoring the deadline of ctx when it has one.
func Send(ctx context.Context, doer Doer, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		return doer.DoDeadline(req, resp, deadline)
	}

	return doer.Do(req, resp)
}

// StatusError maps a non-2xx provider response. Client-side rejections of the
// payment details become ErrProviderValidation.
func StatusError(provider models.Provider, status int, message string) error {
	if message == "" {
		message = fmt.Sprintf("request failed with status code: %d", status)
	}

	switch status {
	case fasthttp.StatusBadRequest, fasthttp.StatusPaymentRequired, fasthttp.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrProviderValidation, message)
	}

	return &ProviderError{Provider: provider, Status: status, Message: message}
}

// Decode unmarshals a provider response body.
func Decode(provider models.Provider, body []byte, out any) error {
	if err := sonic.Unmarshal(body, out); err != nil {
		return &ProviderError{Provider: provider, Message: "malformed response", Err: err}
	}

	return nil
}
