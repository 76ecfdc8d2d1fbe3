package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"francoggm/travelpay/internal/app/checkout"
	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/app/providers/card"
	"francoggm/travelpay/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxWait = 30 * time.Second

type startCheckoutRequest struct {
	Provider             models.Provider `json:"provider"`
	Amount               models.Amount   `json:"amount"`
	TicketIDs            []int64         `json:"ticketIds"`
	BookingTransactionID *int64          `json:"bookingTransactionId"`
}

func (h *Handlers) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startCheckoutRequest
	if err := readBody(r, startCheckoutLoader, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if !h.session.IsAuthenticated(ctx) {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in before paying")
		return
	}

	target, err := models.NewPurchaseTarget(req.TicketIDs, req.BookingTransactionID, req.Amount)
	if err != nil {
		h.contractViolation(w, err)
		return
	}

	snapshot, err := h.checkouts.Start(ctx, target, req.Provider)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, snapshot)
	case errors.Is(err, models.ErrContractViolation):
		h.contractViolation(w, err)
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		writeError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	default:
		h.logger.Error("failed to start checkout", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not start checkout")
	}
}

func (h *Handlers) contractViolation(w http.ResponseWriter, err error) {
	h.logger.Error("checkout contract violation", slog.Any("error", err))
	writeError(w, http.StatusBadRequest, "contract_violation", err.Error())
}

// GetCheckout returns the attempt. With ?wait=<duration> it long-polls until
// the attempt is terminal.
func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wait, err := waitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "wait must be a duration such as 10s")
		return
	}

	var snapshot checkout.Snapshot
	if wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		snapshot, err = h.checkouts.Wait(ctx, id)
	} else {
		snapshot, err = h.checkouts.Get(id)
	}

	if err != nil {
		h.checkoutError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func waitParam(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return 0, nil
	}

	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return 0, errors.New("invalid wait")
	}

	return min(wait, maxWait), nil
}

func (h *Handlers) SubmitCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var details card.Details
	if err := readBody(r, cardLoader, &details); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snapshot, ok := h.collecting(w, id, models.ProviderCard)
	if !ok {
		return
	}

	if err := h.cardForms.SubmitCard(id, details); err != nil {
		h.checkoutError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, snapshot)
}

// ProviderReturn is where the hosted-order provider sends the buyer after
// approval. The order id arrives as ?token=.
func (h *Handlers) ProviderReturn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	orderID := r.URL.Query().Get("token")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing token")
		return
	}

	snapshot, ok := h.collecting(w, id, models.ProviderHostedOrder)
	if !ok {
		return
	}

	if err := h.approvals.Approve(id, orderID); err != nil {
		h.checkoutError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (h *Handlers) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.checkouts.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		h.checkoutError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, snapshot)
}

// collecting loads the attempt and checks it is still waiting on the given
// provider's flow. It writes the error response itself.
func (h *Handlers) collecting(w http.ResponseWriter, id string, provider models.Provider) (checkout.Snapshot, bool) {
	snapshot, err := h.checkouts.Get(id)
	if err != nil {
		h.checkoutError(w, err)
		return checkout.Snapshot{}, false
	}

	if snapshot.Provider != provider {
		writeError(w, http.StatusConflict, "wrong_provider", "checkout is not paid with "+string(provider))
		return checkout.Snapshot{}, false
	}
	if snapshot.Status != models.StatusCollecting {
		writeError(w, http.StatusConflict, "not_collecting", "checkout is already "+string(snapshot.Status))
		return checkout.Snapshot{}, false
	}

	return snapshot, true
}

func (h *Handlers) checkoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, checkout.ErrStaleEvent), errors.Is(err, providers.ErrNotPending):
		writeError(w, http.StatusConflict, "not_collecting", "checkout can no longer take this action")
	default:
		h.logger.Error("checkout request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong, please try again")
	}
}
