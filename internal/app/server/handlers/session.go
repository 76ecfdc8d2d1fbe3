package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"francoggm/travelpay/internal/app/session"
)

type setSessionRequest struct {
	Credential string `json:"credential"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

func (h *Handlers) SetSession(w http.ResponseWriter, r *http.Request) {
	var req setSessionRequest
	if err := readBody(r, sessionLoader, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	exp, err := session.ExpiryOf(req.Credential)
	if err != nil || !exp.After(h.now()) {
		writeError(w, http.StatusBadRequest, "invalid_credential", "credential is expired or malformed")
		return
	}

	if err := h.session.SetCredential(r.Context(), req.Credential); err != nil {
		h.logger.Error("failed to store credential", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not store credential")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, ExpiresAt: &exp})
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Authenticated: h.session.IsAuthenticated(r.Context())}
	if resp.Authenticated {
		if exp, err := h.session.ExpiresAt(r.Context()); err == nil {
			resp.ExpiresAt = &exp
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ClearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearCredential(r.Context()); err != nil {
		h.logger.Error("failed to clear credential", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not clear credential")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
