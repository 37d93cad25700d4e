package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultDecimals int32 = 18

// toBaseUnits scales a human amount such as "5000" or "0.5" by 10^decimals
// and returns the integer in base 10. Fractions finer than the token's
// precision are rejected rather than rounded.
func toBaseUnits(value string, decimals int32) (string, error) {
	if decimals < 0 || decimals > 77 {
		return "", fmt.Errorf("decimals must be between 0 and 77")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("amount must not be negative")
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return "", fmt.Errorf("amount %s has more than %d decimal places", value, decimals)
	}
	return scaled.BigInt().String(), nil
}

