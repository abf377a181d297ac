package types

import "fmt"

// WithdrawalMode selects how the position manager sizes withdrawal requests
// against the lending market. Both modes are valid: what matters for
// accounting is that the reconciler measures the actual resulting liquid
// balance afterwards, never the requested amount.
type WithdrawalMode string

const (
	// WithdrawExact requests min(amountNeeded, currentReceiptBalance).
	WithdrawExact WithdrawalMode = "exact"
	// WithdrawMaximum requests the market's own MAX sentinel and lets the
	// market clamp internally.
	WithdrawMaximum WithdrawalMode = "maximum"
)

// ParseWithdrawalMode validates a mode string from configuration.
func ParseWithdrawalMode(s string) (WithdrawalMode, error) {
	switch WithdrawalMode(s) {
	case WithdrawExact, WithdrawMaximum:
		return WithdrawalMode(s), nil
	default:
		return "", fmt.Errorf("unknown withdrawal mode %q (expected %q or %q)", s, WithdrawExact, WithdrawMaximum)
	}
}
