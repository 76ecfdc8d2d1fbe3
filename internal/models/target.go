package models

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrContractViolation marks a caller bug: a purchase target with both or
// neither variant, or an unusable provider. It is never a payment failure.
var ErrContractViolation = errors.New("contract violation")

type PurchaseKind string

const (
	KindTicket  PurchaseKind = "ticket"
	KindBooking PurchaseKind = "booking"
)

// PurchaseTarget is what a checkout pays for. The only implementations are
// TicketPurchase and BookingPurchase.
type PurchaseTarget interface {
	Kind() PurchaseKind
	Total() Amount
	Description() string
	LockKey() string

	isPurchaseTarget()
}

type TicketPurchase struct {
	TicketIDs []int64
	Amount    Amount
}

func (TicketPurchase) Kind() PurchaseKind { return KindTicket }

func (t TicketPurchase) Total() Amount { return t.Amount }

func (t TicketPurchase) Description() string {
	ids := make([]string, len(t.TicketIDs))
	for i, id := range t.TicketIDs {
		ids[i] = "#" + strconv.FormatInt(id, 10)
	}

	return "Flight tickets " + strings.Join(ids, ", ")
}

func (t TicketPurchase) LockKey() string {
	ids := slices.Clone(t.TicketIDs)
	slices.Sort(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return "checkout:ticket:" + strings.Join(parts, ",")
}

func (TicketPurchase) isPurchaseTarget() {}

type BookingPurchase struct {
	BookingTransactionID int64
	Amount               Amount
}

func (BookingPurchase) Kind() PurchaseKind { return KindBooking }

func (b BookingPurchase) Total() Amount { return b.Amount }

func (b BookingPurchase) Description() string {
	return fmt.Sprintf("Hotel booking #%d", b.BookingTransactionID)
}

func (b BookingPurchase) LockKey() string {
	return fmt.Sprintf("checkout:booking:%d", b.BookingTransactionID)
}

func (BookingPurchase) isPurchaseTarget() {}

// NewPurchaseTarget builds a target from wire fields where either variant may
// be present. Exactly one must be.
func NewPurchaseTarget(ticketIDs []int64, bookingTransactionID *int64, amount Amount) (PurchaseTarget, error) {
	hasTickets := len(ticketIDs) > 0
	hasBooking := bookingTransactionID != nil

	var target PurchaseTarget
	switch {
	case hasTickets && hasBooking:
		return nil, fmt.Errorf("%w: both ticket and booking purchase present", ErrContractViolation)
	case hasTickets:
		target = TicketPurchase{TicketIDs: slices.Clone(ticketIDs), Amount: amount}
	case hasBooking:
		target = BookingPurchase{BookingTransactionID: *bookingTransactionID, Amount: amount}
	default:
		return nil, fmt.Errorf("%w: no purchase target present", ErrContractViolation)
	}

	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	return target, nil
}

// ValidateTarget rejects nil, empty and non-positive targets.
func ValidateTarget(target PurchaseTarget) error {
	switch t := target.(type) {
	case TicketPurchase:
		if len(t.TicketIDs) == 0 {
			return fmt.Errorf("%w: ticket purchase without tickets", ErrContractViolation)
		}
		for _, id := range t.TicketIDs {
			if id <= 0 {
				return fmt.Errorf("%w: invalid ticket id %d", ErrContractViolation, id)
			}
		}
	case BookingPurchase:
		if t.BookingTransactionID <= 0 {
			return fmt.Errorf("%w: invalid booking transaction id %d", ErrContractViolation, t.BookingTransactionID)
		}
	case nil:
		return fmt.Errorf("%w: no purchase target present", ErrContractViolation)
	default:
		return fmt.Errorf("%w: unknown purchase target %T", ErrContractViolation, target)
	}

	if target.Total() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrContractViolation)
	}

	return nil
}

// CloneTarget returns a copy that shares no memory with target.
func CloneTarget(target PurchaseTarget) PurchaseTarget {
	if t, ok := target.(TicketPurchase); ok {
		t.TicketIDs = slices.Clone(t.TicketIDs)
		return t
	}

	return target
}

type Provider string

const (
	ProviderCard        Provider = "card"
	ProviderHostedOrder Provider = "hosted-order"
)

// MethodID is the backend's code for the provider that produced an artifact.
func (p Provider) MethodID() int {
	switch p {
	case ProviderCard:
		return 1
	case ProviderHostedOrder:
		return 2
	}

	return 0
}

func (p Provider) Valid() bool {
	return p.MethodID() != 0
}
