package payment

import (
	"context"
	"testing"

	"francoggm/travelpay/internal/models"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postCall struct {
	path   string
	body   map[string]any
	header map[string]string
}

type recordingPoster struct {
	calls []postCall
	err   error
}

func (r *recordingPoster) PostJSON(_ context.Context, path string, body, _ any, header map[string]string) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	var decoded map[string]any
	if err := sonic.Unmarshal(payload, &decoded); err != nil {
		return err
	}

	r.calls = append(r.calls, postCall{path: path, body: decoded, header: header})
	return r.err
}

func TestConfirm_TicketPurchase(t *testing.T) {
	poster := &recordingPoster{}
	service := NewPaymentService(poster)

	err := service.Confirm(context.Background(), Confirmation{
		IdempotencyKey: "attempt-1",
		Target:         models.TicketPurchase{TicketIDs: []int64{10, 11}, Amount: 19998},
		Artifact:       models.Artifact{Provider: models.ProviderCard, Reference: "tok_123"},
		Currency:       "USD",
	})
	require.NoError(t, err)
	require.Len(t, poster.calls, 1)

	call := poster.calls[0]
	assert.Equal(t, "/payments/tickets", call.path)
	assert.Equal(t, "attempt-1", call.header["Idempotency-Key"])
	assert.Equal(t, 199.98, call.body["amount"])
	assert.Equal(t, []any{float64(10), float64(11)}, call.body["ticketIds"])
	assert.Equal(t, "tok_123", call.body["paymentMethodOrOrderId"])
	assert.Equal(t, float64(1), call.body["methodId"])
	assert.Equal(t, "USD", call.body["currency"])
	assert.Equal(t, "Flight tickets #10, #11", call.body["description"])
	assert.NotContains(t, call.body, "bookingTransactionId")
}

func TestConfirm_BookingPurchaseWithHostedOrder(t *testing.T) {
	poster := &recordingPoster{}
	service := NewPaymentService(poster)

	err := service.Confirm(context.Background(), Confirmation{
		Target: models.BookingPurchase{BookingTransactionID: 77, Amount: 45000},
		Artifact: models.Artifact{
			Provider:  models.ProviderHostedOrder,
			Reference: "ORDER-9",
			Payer:     &models.Payer{ID: "PAYER1", Email: "a@example.com"},
		},
		Currency: "EUR",
	})
	require.NoError(t, err)
	require.Len(t, poster.calls, 1)

	call := poster.calls[0]
	assert.Equal(t, "/payments/bookings", call.path)
	assert.Nil(t, call.header)
	assert.Equal(t, float64(77), call.body["bookingTransactionId"])
	assert.Equal(t, float64(2), call.body["methodId"])
	assert.Equal(t, "ORDER-9", call.body["paymentMethodOrOrderId"])
	assert.Equal(t, map[string]any{"payerId": "PAYER1", "email": "a@example.com"}, call.body["payer"])
	assert.NotContains(t, call.body, "ticketIds")
}

func TestConfirm_RoutesByTargetNotProvider(t *testing.T) {
	poster := &recordingPoster{}
	service := NewPaymentService(poster)

	require.NoError(t, service.Confirm(context.Background(), Confirmation{
		Target:   models.TicketPurchase{TicketIDs: []int64{1}, Amount: 100},
		Artifact: models.Artifact{Provider: models.ProviderHostedOrder, Reference: "ORDER-1"},
	}))

	assert.Equal(t, "/payments/tickets", poster.calls[0].path)
}

func TestConfirm_InvalidTarget(t *testing.T) {
	poster := &recordingPoster{}
	service := NewPaymentService(poster)

	err := service.Confirm(context.Background(), Confirmation{})
	assert.ErrorIs(t, err, models.ErrContractViolation)
	assert.Empty(t, poster.calls)
}
