package pipeline

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

const genericMessage = "something went wrong, please try again"

type Kind string

const (
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindServer         Kind = "server_error"
	KindNetwork        Kind = "network_unavailable"
	KindRequestNotSent Kind = "request_not_sent"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrServer             = errors.New("server error")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrRequestNotSent     = errors.New("request not sent")
)

// Error is what every pipeline call fails with. Status is zero unless a
// response was received.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}

	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Timeout reports whether the request was sent and no response arrived
// before the deadline.
func (e *Error) Timeout() bool {
	return e.Kind == KindNetwork && errors.Is(e.Err, fasthttp.ErrTimeout)
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindServer:
		return ErrServer
	case KindNetwork:
		return ErrNetworkUnavailable
	case KindRequestNotSent:
		return ErrRequestNotSent
	}

	return nil
}

func IsTimeout(err error) bool {
	var pErr *Error
	return errors.As(err, &pErr) && pErr.Timeout()
}

// MessageOf returns the text to show a user for err.
func MessageOf(err error) string {
	var pErr *Error
	if errors.As(err, &pErr) && pErr.Message != "" {
		return pErr.Message
	}

	return genericMessage
}

func statusKind(status int) Kind {
	switch status {
	case fasthttp.StatusUnauthorized:
		return KindUnauthorized
	case fasthttp.StatusForbidden:
		return KindForbidden
	}

	return KindServer
}
