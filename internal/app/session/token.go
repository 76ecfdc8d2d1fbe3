package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("credential has no exp claim")

var parser = jwt.NewParser()

// ExpiryOf decodes the payload segment of raw and returns its exp claim. The
// signature is not verified; that is the backend's job.
func ExpiryOf(raw string) (time.Time, error) {
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode credential: %w", err)
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read credential expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}
