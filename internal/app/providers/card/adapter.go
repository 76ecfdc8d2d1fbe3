// Package card collects a card form and exchanges it for a single-use token
// at the card provider.
package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/models"

	"github.com/valyala/fasthttp"
)

const tokensPath = "/v1/tokens"

type Details struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
	CVC      string `json:"cvc"`
	Holder   string `json:"holder,omitempty"`
}

// Validate runs the checks that do not need the provider.
func (d Details) Validate(now time.Time) error {
	number := strings.ReplaceAll(d.Number, " ", "")
	if len(number) < 12 || len(number) > 19 || !luhn(number) {
		return errors.New("card number is invalid")
	}
	if d.ExpMonth < 1 || d.ExpMonth > 12 {
		return errors.New("expiry month is invalid")
	}

	year := d.ExpYear
	if year < 100 {
		year += 2000
	}
	if year < now.Year() || (year == now.Year() && d.ExpMonth < int(now.Month())) {
		return errors.New("card has expired")
	}

	if len(d.CVC) < 3 || len(d.CVC) > 4 {
		return errors.New("security code is invalid")
	}
	if _, err := strconv.Atoi(d.CVC); err != nil {
		return errors.New("security code is invalid")
	}

	return nil
}

type Adapter struct {
	baseURL   string
	secretKey string
	doer      providers.Doer
	forms     *providers.Mailbox[Details]
	now       func() time.Time
	logger    *slog.Logger
}

func NewAdapter(baseURL, secretKey string, doer providers.Doer, logger *slog.Logger) *Adapter {
	if doer == nil {
		doer = &fasthttp.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		baseURL:   baseURL,
		secretKey: secretKey,
		doer:      doer,
		forms:     providers.NewMailbox[Details](),
		now:       time.Now,
		logger:    logger,
	}
}

func (a *Adapter) Provider() models.Provider {
	return models.ProviderCard
}

func (a *Adapter) Begin(ctx context.Context, charge providers.Charge) (models.Artifact, error) {
	pending, err := a.forms.Open(charge.AttemptID)
	if err != nil {
		return models.Artifact{}, err
	}
	defer pending.Close()

	charge.Notify(providers.Action{Kind: providers.ActionCardForm})

	details, err := pending.Wait(ctx)
	if err != nil {
		return models.Artifact{}, err
	}

	if err := details.Validate(a.now()); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: %v", providers.ErrProviderValidation, err)
	}

	tokenID, err := a.tokenize(ctx, details)
	if err != nil {
		return models.Artifact{}, err
	}

	a.logger.Info("card tokenized", "attempt_id", charge.AttemptID)

	return models.Artifact{
		Provider:  models.ProviderCard,
		Reference: tokenID,
	}, nil
}

// SubmitCard delivers the card form for a collecting attempt.
func (a *Adapter) SubmitCard(attemptID string, details Details) error {
	return a.forms.Deliver(attemptID, details)
}

func (a *Adapter) Cancel(attemptID string) error {
	return a.forms.Fail(attemptID, providers.ErrProviderCancelled)
}

func (a *Adapter) tokenize(ctx context.Context, details Details) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	args := fasthttp.AcquireArgs()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		fasthttp.ReleaseArgs(args)
	}()

	args.Set("card[number]", strings.ReplaceAll(details.Number, " ", ""))
	args.Set("card[exp_month]", strconv.Itoa(details.ExpMonth))
	args.Set("card[exp_year]", strconv.Itoa(details.ExpYear))
	args.Set("card[cvc]", details.CVC)
	if details.Holder != "" {
		args.Set("card[name]", details.Holder)
	}

	req.SetRequestURI(a.baseURL + tokensPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+a.secretKey)
	req.SetBody(args.QueryString())

	if err := providers.Send(ctx, a.doer, req, resp); err != nil {
		return "", &providers.ProviderError{Provider: models.ProviderCard, Message: "failed to make token request", Err: err}
	}

	var body struct {
		ID    string `json:"id"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusOK {
		_ = providers.Decode(models.ProviderCard, resp.Body(), &body)
		return "", providers.StatusError(models.ProviderCard, status, body.Error.Message)
	}

	if err := providers.Decode(models.ProviderCard, resp.Body(), &body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", &providers.ProviderError{Provider: models.ProviderCard, Status: status, Message: "token response without id"}
	}

	return body.ID, nil
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}

		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
