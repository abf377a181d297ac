/*
This file contains utility functions for converting integer token amounts to
and from human-facing representations. Accounting paths never touch float64;
these helpers exist only at the edges (status API, configuration parsing).
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrInvalidAmount    = errors.New("amount is not a valid integer")
)

// DisplayAmount converts a base-denomination amount to a float64 in whole
// token units for display purposes only. Never feed the result back into
// accounting.
func DisplayAmount(amount sdkmath.Int, decimals uint8) (float64, error) {
	if decimals > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := uint8(0); i < decimals; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result, err := decAmount.Quo(factor).Float64()
	if err != nil {
		return 0, fmt.Errorf("failed to convert amount to float: %w", err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}

	return result, nil
}

// ParseAmount parses a non-negative base-denomination amount from its decimal
// string form, as it appears in configuration and API input.
func ParseAmount(s string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrAmountNegative, amount)
	}
	return amount, nil
}
