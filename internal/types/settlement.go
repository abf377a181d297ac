/*

This file contains the core accounting types shared across the strategy:
the per-cycle settlement triple and the persisted cycle report.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// SettlementResult is the three-way outcome of a single reconciliation cycle.
// All three magnitudes are non-negative; Profit and Loss are mutually
// exclusive for a single settlement.
type SettlementResult struct {
	Profit      sdkmath.Int `json:"profit"`
	Loss        sdkmath.Int `json:"loss"`
	DebtPayment sdkmath.Int `json:"debt_payment"`
}

// ZeroSettlement returns an all-zero settlement result. Used for the
// zero-debt short-circuit and as a safe default on aborted cycles.
func ZeroSettlement() SettlementResult {
	return SettlementResult{
		Profit:      sdkmath.ZeroInt(),
		Loss:        sdkmath.ZeroInt(),
		DebtPayment: sdkmath.ZeroInt(),
	}
}

// Validate checks the structural invariants of a settlement result.
func (s SettlementResult) Validate() error {
	if s.Profit.IsNil() || s.Loss.IsNil() || s.DebtPayment.IsNil() {
		return fmt.Errorf("settlement result contains nil amounts")
	}
	if s.Profit.IsNegative() || s.Loss.IsNegative() || s.DebtPayment.IsNegative() {
		return fmt.Errorf("settlement magnitudes must be non-negative: profit=%s loss=%s debtPayment=%s",
			s.Profit, s.Loss, s.DebtPayment)
	}
	if s.Profit.IsPositive() && s.Loss.IsPositive() {
		return fmt.Errorf("profit and loss cannot both be nonzero: profit=%s loss=%s", s.Profit, s.Loss)
	}
	return nil
}

// CycleReport is the persisted record of one report cycle. It captures the
// settlement triple together with the observed position before and after the
// cycle so operators can audit what each cycle actually did.
type CycleReport struct {
	ReportID        int64            `json:"report_id,omitempty"` // Auto-incremented by DB
	CycleNumber     int              `json:"cycle_number"`
	CycleID         string           `json:"cycle_id"` // UUID used in log correlation
	Timestamp       time.Time        `json:"timestamp"`
	DebtOutstanding sdkmath.Int      `json:"debt_outstanding"`
	Settlement      SettlementResult `json:"settlement"`
	TotalAssets     sdkmath.Int      `json:"total_assets"`
	LiquidBalance   sdkmath.Int      `json:"liquid_balance"`
	ReceiptBalance  sdkmath.Int      `json:"receipt_balance"`
	DeployedAmount  sdkmath.Int      `json:"deployed_amount"` // Surplus pushed back into the market this cycle
	Duration        time.Duration    `json:"duration"`
}
