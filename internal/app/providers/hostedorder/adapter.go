// Package hostedorder drives a provider-hosted approval flow: create an
// order, send the payer to the provider, wait for them to come back, then
// capture the order.
package hostedorder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/models"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

const (
	ordersPath       = "/v2/checkout/orders"
	statusCompleted  = "COMPLETED"
	intentCapture    = "CAPTURE"
	approveRel       = "approve"
	payerActionRel   = "payer-action"
	requestIDHeader  = "PayPal-Request-Id"
	preferenceHeader = "Prefer"

	captureTimeout = 30 * time.Second
)

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Description string `json:"description,omitempty"`
	Amount      amount `json:"amount"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
	Payer  *struct {
		PayerID      string `json:"payer_id"`
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	Message string `json:"message"`
}

func (o orderResponse) approveURL() string {
	for _, l := range o.Links {
		if l.Rel == approveRel || l.Rel == payerActionRel {
			return l.Href
		}
	}

	return ""
}

type Adapter struct {
	baseURL   string
	token     string
	publicURL string
	doer      providers.Doer
	approvals *providers.Mailbox[string]
	logger    *slog.Logger
}

// NewAdapter builds the adapter. publicURL is where this service is reachable
// by the payer's browser; return and cancel URLs hang off it.
func NewAdapter(baseURL, token, publicURL string, doer providers.Doer, logger *slog.Logger) *Adapter {
	if doer == nil {
		doer = &fasthttp.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		baseURL:   baseURL,
		token:     token,
		publicURL: publicURL,
		doer:      doer,
		approvals: providers.NewMailbox[string](),
		logger:    logger,
	}
}

func (a *Adapter) Provider() models.Provider {
	return models.ProviderHostedOrder
}

func (a *Adapter) Begin(ctx context.Context, charge providers.Charge) (models.Artifact, error) {
	pending, err := a.approvals.Open(charge.AttemptID)
	if err != nil {
		return models.Artifact{}, err
	}
	defer pending.Close()

	order, err := a.createOrder(ctx, charge)
	if err != nil {
		return models.Artifact{}, err
	}

	approveURL := order.approveURL()
	if approveURL == "" {
		return models.Artifact{}, &providers.ProviderError{Provider: models.ProviderHostedOrder, Message: "order has no approval link"}
	}

	a.logger.Info("hosted order created", "attempt_id", charge.AttemptID, "order_id", order.ID)
	charge.Notify(providers.Action{Kind: providers.ActionRedirect, URL: approveURL})

	approvedID, err := pending.Wait(ctx)
	if err != nil {
		return models.Artifact{}, err
	}
	if approvedID != order.ID {
		return models.Artifact{}, fmt.Errorf("%w: approval for order %q does not match order %q", providers.ErrProviderValidation, approvedID, order.ID)
	}

	if err := charge.Committing(); err != nil {
		return models.Artifact{}, err
	}

	// The capture moves money, so the collect window must not cut it short.
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	captured, err := a.captureOrder(captureCtx, order.ID, charge.AttemptID)
	if err != nil {
		return models.Artifact{}, err
	}

	artifact := models.Artifact{
		Provider:  models.ProviderHostedOrder,
		Reference: captured.ID,
	}
	if captured.Payer != nil {
		artifact.Payer = &models.Payer{ID: captured.Payer.PayerID, Email: captured.Payer.EmailAddress}
	}

	return artifact, nil
}

// Approve is called when the payer returns from the provider with orderID.
func (a *Adapter) Approve(attemptID, orderID string) error {
	return a.approvals.Deliver(attemptID, orderID)
}

func (a *Adapter) Cancel(attemptID string) error {
	return a.approvals.Fail(attemptID, providers.ErrProviderCancelled)
}

func (a *Adapter) createOrder(ctx context.Context, charge providers.Charge) (*orderResponse, error) {
	checkoutURL := a.publicURL + "/checkouts/" + url.PathEscape(charge.AttemptID)

	body := createOrderRequest{
		Intent: intentCapture,
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: charge.AttemptID,
			Description: charge.Description,
			Amount: amount{
				CurrencyCode: charge.Currency,
				Value:        charge.Amount.String(),
			},
		}},
		ApplicationContext: applicationContext{
			ReturnURL: checkoutURL + "/return",
			CancelURL: checkoutURL + "/cancel",
		},
	}

	order, err := a.post(ctx, ordersPath, body, charge.AttemptID+"-create")
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &providers.ProviderError{Provider: models.ProviderHostedOrder, Message: "order response without id"}
	}

	return order, nil
}

func (a *Adapter) captureOrder(ctx context.Context, orderID, attemptID string) (*orderResponse, error) {
	order, err := a.post(ctx, ordersPath+"/"+url.PathEscape(orderID)+"/capture", nil, attemptID+"-capture")
	if err != nil {
		return nil, err
	}
	if order.Status != statusCompleted {
		return nil, &providers.ProviderError{
			Provider: models.ProviderHostedOrder,
			Message:  fmt.Sprintf("order %s not completed: %s", orderID, order.Status),
		}
	}

	return order, nil
}

func (a *Adapter) post(ctx context.Context, path string, body any, requestID string) (*orderResponse, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order request: %w", err)
		}
		req.SetBody(payload)
	}

	req.SetRequestURI(a.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+a.token)
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set(preferenceHeader, "return=representation")

	if err := providers.Send(ctx, a.doer, req, resp); err != nil {
		return nil, &providers.ProviderError{Provider: models.ProviderHostedOrder, Message: "failed to make order request", Err: err}
	}

	var order orderResponse
	status := resp.StatusCode()
	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		_ = providers.Decode(models.ProviderHostedOrder, resp.Body(), &order)
		return nil, providers.StatusError(models.ProviderHostedOrder, status, order.Message)
	}

	if err := providers.Decode(models.ProviderHostedOrder, resp.Body(), &order); err != nil {
		return nil, err
	}

	return &order, nil
}
