package payment

import (
	"context"
	"fmt"

	"francoggm/travelpay/internal/models"
)

const (
	ticketPaymentsPath  = "/payments/tickets"
	bookingPaymentsPath = "/payments/bookings"
	idempotencyHeader   = "Idempotency-Key"
)

// Poster is the pipeline call the service needs.
type Poster interface {
	PostJSON(ctx context.Context, path string, body, out any, header map[string]string) error
}

type Confirmation struct {
	IdempotencyKey string
	Target         models.PurchaseTarget
	Artifact       models.Artifact
	Currency       string
}

type PaymentService struct {
	client Poster
}

func NewPaymentService(client Poster) *PaymentService {
	return &PaymentService{
		client: client,
	}
}

// Confirm asks the backend to record the purchase. The endpoint is picked by
// the target variant; the provider only shows up as methodId.
func (p *PaymentService) Confirm(ctx context.Context, c Confirmation) error {
	path, body, err := confirmationRequest(c)
	if err != nil {
		return err
	}

	var header map[string]string
	if c.IdempotencyKey != "" {
		header = map[string]string{idempotencyHeader: c.IdempotencyKey}
	}

	return p.client.PostJSON(ctx, path, body, nil, header)
}

func confirmationRequest(c Confirmation) (string, any, error) {
	if err := models.ValidateTarget(c.Target); err != nil {
		return "", nil, err
	}

	base := models.ConfirmationRequest{
		Amount:                 c.Target.Total(),
		Currency:               c.Currency,
		PaymentMethodOrOrderID: c.Artifact.Reference,
		Description:            c.Target.Description(),
		MethodID:               c.Artifact.Provider.MethodID(),
		Payer:                  c.Artifact.Payer,
	}

	switch target := c.Target.(type) {
	case models.TicketPurchase:
		return ticketPaymentsPath, models.TicketConfirmation{
			ConfirmationRequest: base,
			TicketIDs:           target.TicketIDs,
		}, nil
	case models.BookingPurchase:
		return bookingPaymentsPath, models.BookingConfirmation{
			ConfirmationRequest:  base,
			BookingTransactionID: target.BookingTransactionID,
		}, nil
	}

	return "", nil, fmt.Errorf("%w: unknown purchase target %T", models.ErrContractViolation, c.Target)
}
