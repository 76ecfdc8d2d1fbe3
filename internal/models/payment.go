package models

import "time"

type AttemptStatus string

const (
	StatusIdle       AttemptStatus = "idle"
	StatusCollecting AttemptStatus = "collecting"
	StatusSubmitting AttemptStatus = "submitting"
	StatusSucceeded  AttemptStatus = "succeeded"
	StatusFailed     AttemptStatus = "failed"
	StatusCancelled  AttemptStatus = "cancelled"
)

func (s AttemptStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

type Payer struct {
	ID    string `json:"payerId"`
	Email string `json:"email,omitempty"`
}

// Artifact is the provider's proof of payment intent: a card token, or a
// captured hosted order with its payer.
type Artifact struct {
	Provider  Provider `json:"provider"`
	Reference string   `json:"reference"`
	Payer     *Payer   `json:"payer,omitempty"`
}

type ConfirmationRequest struct {
	Amount                 Amount `json:"amount"`
	Currency               string `json:"currency"`
	PaymentMethodOrOrderID string `json:"paymentMethodOrOrderId"`
	Description            string `json:"description"`
	MethodID               int    `json:"methodId"`
	Payer                  *Payer `json:"payer,omitempty"`
}

type TicketConfirmation struct {
	ConfirmationRequest
	TicketIDs []int64 `json:"ticketIds"`
}

type BookingConfirmation struct {
	ConfirmationRequest
	BookingTransactionID int64 `json:"bookingTransactionId"`
}

// Outcome is emitted once per attempt when it reaches a terminal status.
type Outcome struct {
	AttemptID   string        `json:"attemptId"`
	Kind        PurchaseKind  `json:"kind"`
	Provider    Provider      `json:"provider"`
	Status      AttemptStatus `json:"status"`
	Amount      Amount        `json:"amount"`
	Currency    string        `json:"currency"`
	Reference   string        `json:"reference,omitempty"`
	ErrorDetail string        `json:"errorDetail,omitempty"`
	CompletedAt time.Time     `json:"completedAt"`
}
