package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"francoggm/travelpay/internal/app/checkout"
	"francoggm/travelpay/internal/app/providers/card"
	"francoggm/travelpay/internal/models"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"
)

type Session interface {
	SetCredential(ctx context.Context, raw string) error
	IsAuthenticated(ctx context.Context) bool
	ExpiresAt(ctx context.Context) (time.Time, error)
	ClearCredential(ctx context.Context) error
}

type Checkouts interface {
	Start(ctx context.Context, target models.PurchaseTarget, provider models.Provider) (checkout.Snapshot, error)
	Get(id string) (checkout.Snapshot, error)
	Wait(ctx context.Context, id string) (checkout.Snapshot, error)
	Cancel(id string) (checkout.Snapshot, error)
}

type CardForms interface {
	SubmitCard(attemptID string, details card.Details) error
}

type Approvals interface {
	Approve(attemptID, orderID string) error
}

type Health interface {
	Report() models.HealthReport
}

type Handlers struct {
	session   Session
	checkouts Checkouts
	cardForms CardForms
	approvals Approvals
	health    Health
	now       func() time.Time
	logger    *slog.Logger
}

func NewHandlers(session Session, checkouts Checkouts, cardForms CardForms, approvals Approvals, health Health, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{
		session:   session,
		checkouts: checkouts,
		cardForms: cardForms,
		approvals: approvals,
		health:    health,
		now:       time.Now,
		logger:    logger,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := sonic.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// readBody reads the request body and checks it against schema before any
// decoding happens.
func readBody(r *http.Request, schema gojsonschema.JSONLoader, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("cannot read body: %w", err)
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("request does not conform to schema: %s", strings.Join(problems, "; "))
	}

	return sonic.Unmarshal(body, out)
}
