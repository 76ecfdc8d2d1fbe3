package checkout

import (
	"errors"

	"francoggm/travelpay/internal/app/pipeline"
	"francoggm/travelpay/internal/app/providers"
)

var (
	ErrStaleEvent         = errors.New("event does not apply to the attempt's current status")
	ErrStatusUnknown      = errors.New("payment status unknown")
	ErrNotFound           = errors.New("checkout not found")
	ErrCheckoutInProgress = errors.New("a checkout for this purchase is already in progress")
	ErrCollectExpired     = errors.New("payment session expired, please start again")
)

const statusUnknownDetail = "payment status unknown"

// failureDetail is the text shown to the user for a failed attempt.
func failureDetail(err error) string {
	var providerErr *providers.ProviderError
	switch {
	case errors.As(err, &providerErr):
		return providerErr.Message
	case errors.Is(err, providers.ErrProviderValidation), errors.Is(err, ErrCollectExpired):
		return err.Error()
	}

	return pipeline.MessageOf(err)
}
