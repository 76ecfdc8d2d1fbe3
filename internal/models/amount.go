package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a money value in minor units (cents).
type Amount int64

// maxUnits keeps units*100 + 99 inside int64.
const maxUnits = (math.MaxInt64 - 99) / 100

func ParseAmount(value string) (Amount, error) {
	value = strings.TrimSpace(value)

	negative := strings.HasPrefix(value, "-")
	digits := strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(digits, ".")
	if !isDigits(whole) || len(frac) > 2 || (frac != "" && !isDigits(frac)) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	frac += strings.Repeat("0", 2-len(frac))

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if units > maxUnits {
		return 0, fmt.Errorf("amount %q is out of range", value)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}

	amount := Amount(units*100 + cents)
	if negative {
		amount = -amount
	}

	return amount, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

func (a Amount) Cents() int64 {
	return int64(a)
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}

	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAmount(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}

	*a = parsed
	return nil
}
