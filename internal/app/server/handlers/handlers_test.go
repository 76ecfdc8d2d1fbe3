package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody_StartCheckoutSchema(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "tickets", body: `{"provider":"card","amount":199.98,"ticketIds":[10,11]}`},
		{name: "booking", body: `{"provider":"hosted-order","amount":450,"bookingTransactionId":7}`},
		{name: "unknown provider", body: `{"provider":"cash","amount":1,"ticketIds":[1]}`, wantErr: "provider"},
		{name: "zero amount", body: `{"provider":"card","amount":0,"ticketIds":[1]}`, wantErr: "amount"},
		{name: "amount above maximum", body: `{"provider":"card","amount":184467440737095517.00,"ticketIds":[1]}`, wantErr: "amount"},
		{name: "empty tickets", body: `{"provider":"card","amount":1,"ticketIds":[]}`, wantErr: "ticketIds"},
		{name: "extra field", body: `{"provider":"card","amount":1,"ticketIds":[1],"total":2}`, wantErr: "total"},
		{name: "not json", body: `provider=card`, wantErr: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/checkouts", strings.NewReader(tt.body))

			var req startCheckoutRequest
			err := readBody(r, startCheckoutLoader, &req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotZero(t, req.Amount)
		})
	}
}

func TestReadBody_DecodesAmountInCents(t *testing.T) {
	r := httptest.NewRequest("POST", "/checkouts", strings.NewReader(`{"provider":"card","amount":199.98,"ticketIds":[10,11]}`))

	var req startCheckoutRequest
	require.NoError(t, readBody(r, startCheckoutLoader, &req))

	assert.EqualValues(t, 19998, req.Amount)
	assert.Equal(t, []int64{10, 11}, req.TicketIDs)
	assert.Nil(t, req.BookingTransactionID)
}

func TestWaitParam(t *testing.T) {
	for raw, want := range map[string]string{"": "0s", "5s": "5s", "10m": "30s"} {
		r := httptest.NewRequest("GET", "/checkouts/x?wait="+raw, nil)
		got, err := waitParam(r)
		require.NoError(t, err)
		assert.Equal(t, want, got.String())
	}

	_, err := waitParam(httptest.NewRequest("GET", "/checkouts/x?wait=soon", nil))
	assert.Error(t, err)
}
