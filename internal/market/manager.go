/*

This file contains the position manager, which owns the open/close of the
strategy's stake in the external lending market. The position itself is never
cached: it is the observed state of two live balances (liquid want plus
receipt tokens), mutated indirectly by deposits and withdrawals here and
directly by the market's own interest accrual.

*/

package market

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/logger"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/types"
)

// PositionManager tracks and mutates the strategy's position in the lending
// market. All balance reads go straight to the ledger; the manager holds no
// accounting state of its own.
type PositionManager struct {
	gateway Gateway
	ledger  BalanceLedger

	wantID    string
	receiptID string
	holder    string

	mode     types.WithdrawalMode
	referral uint16

	logger zerolog.Logger
}

// ManagerConfig holds the dependencies for creating a new PositionManager.
type ManagerConfig struct {
	Gateway        Gateway
	Ledger         BalanceLedger
	WantID         string
	Holder         string
	WithdrawalMode types.WithdrawalMode
	ReferralCode   uint16
}

// NewPositionManager resolves the reserve's receipt token and returns a
// manager bound to it.
func NewPositionManager(ctx context.Context, cfg ManagerConfig) (*PositionManager, error) {
	if err := validateManagerConfig(cfg); err != nil {
		return nil, fmt.Errorf("position manager configuration validation failed: %w", err)
	}

	reserve, err := cfg.Gateway.GetReserveInfo(ctx, cfg.WantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reserve info for %s: %w", cfg.WantID, err)
	}
	if reserve.ReceiptToken == "" {
		return nil, fmt.Errorf("%w: reserve for %s has no receipt token", ErrUnknownAsset, cfg.WantID)
	}

	m := &PositionManager{
		gateway:   cfg.Gateway,
		ledger:    cfg.Ledger,
		wantID:    cfg.WantID,
		receiptID: reserve.ReceiptToken,
		holder:    cfg.Holder,
		mode:      cfg.WithdrawalMode,
		referral:  cfg.ReferralCode,
		logger:    logger.GetForComponent("position_manager"),
	}

	m.logger.Info().
		Str("want", m.wantID).
		Str("receiptToken", m.receiptID).
		Str("withdrawalMode", string(m.mode)).
		Msg("Position manager initialized")

	return m, nil
}

func validateManagerConfig(cfg ManagerConfig) error {
	if cfg.Gateway == nil {
		return fmt.Errorf("gateway cannot be nil")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("balance ledger cannot be nil")
	}
	if cfg.WantID == "" {
		return fmt.Errorf("want asset ID cannot be empty")
	}
	if cfg.Holder == "" {
		return fmt.Errorf("holder account cannot be empty")
	}
	if cfg.WithdrawalMode != types.WithdrawExact && cfg.WithdrawalMode != types.WithdrawMaximum {
		return fmt.Errorf("withdrawal mode %q is invalid", cfg.WithdrawalMode)
	}
	return nil
}

// WantID returns the accounting-unit asset identifier.
func (m *PositionManager) WantID() string { return m.wantID }

// ReceiptID returns the receipt token identifier resolved at construction.
func (m *PositionManager) ReceiptID() string { return m.receiptID }

// LiquidBalance reads the live accounting-unit balance held directly.
func (m *PositionManager) LiquidBalance(ctx context.Context) (sdkmath.Int, error) {
	bal, err := m.ledger.BalanceOf(ctx, m.wantID, m.holder)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read liquid balance: %w", err)
	}
	return bal, nil
}

// ReceiptBalance reads the live receipt-token balance. The receipt token is
// redeemable 1:1 for the accounting unit plus accrued interest, so this is
// also the position's current redemption value.
func (m *PositionManager) ReceiptBalance(ctx context.Context) (sdkmath.Int, error) {
	bal, err := m.ledger.BalanceOf(ctx, m.receiptID, m.holder)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read receipt balance: %w", err)
	}
	return bal, nil
}

// OpenOrIncrease moves amount of the accounting unit from the liquid balance
// into the lending market. The amount must not exceed the current liquid
// balance. Failures surfaced by the market abort the current cycle step and
// are not retried here.
func (m *PositionManager) OpenOrIncrease(ctx context.Context, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive, got %v", ErrInvalidAmount, amount)
	}

	liquid, err := m.LiquidBalance(ctx)
	if err != nil {
		return err
	}
	if amount.GT(liquid) {
		return fmt.Errorf("%w: deposit of %s exceeds liquid balance %s", ErrInsufficientFunds, amount, liquid)
	}

	if err := m.gateway.Deposit(ctx, m.wantID, amount, m.holder, m.referral); err != nil {
		return fmt.Errorf("market deposit failed: %w", err)
	}

	m.logger.Info().
		Str("amount", amount.String()).
		Msg("Deposited into lending market")
	return nil
}

// ReduceOrClose requests withdrawal of up to amount of the accounting unit
// from the market, sized according to the configured withdrawal mode. The
// market may return less than requested when it is short on instant
// liquidity; that is expected and never an error. Callers measure the
// resulting liquid balance and treat any shortfall as loss.
func (m *PositionManager) ReduceOrClose(ctx context.Context, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: withdrawal amount must be non-negative, got %v", ErrInvalidAmount, amount)
	}
	if amount.IsZero() {
		return nil
	}

	receipt, err := m.ReceiptBalance(ctx)
	if err != nil {
		return err
	}
	if receipt.IsZero() {
		// Nothing deployed; there is nothing to request. The market treats
		// a withdrawal against an empty position as a hard failure, so skip
		// it in both modes.
		return nil
	}

	request := amount
	switch m.mode {
	case types.WithdrawMaximum:
		request = MaxWithdrawal
	case types.WithdrawExact:
		request = sdkmath.MinInt(amount, receipt)
	}

	withdrawn, err := m.gateway.Withdraw(ctx, m.wantID, request, m.holder)
	if err != nil {
		return fmt.Errorf("market withdrawal failed: %w", err)
	}

	if withdrawn.LT(amount) && !request.Equal(MaxWithdrawal) {
		m.logger.Warn().
			Str("requested", request.String()).
			Str("withdrawn", withdrawn.String()).
			Msg("Market returned less than requested; shortfall accounted for by the caller")
	} else {
		m.logger.Info().
			Str("withdrawn", withdrawn.String()).
			Msg("Withdrew from lending market")
	}
	return nil
}

// CloseAll requests everything currently redeemable from the market.
func (m *PositionManager) CloseAll(ctx context.Context) error {
	withdrawn, err := m.gateway.Withdraw(ctx, m.wantID, MaxWithdrawal, m.holder)
	if err != nil {
		return fmt.Errorf("market full withdrawal failed: %w", err)
	}
	m.logger.Info().
		Str("withdrawn", withdrawn.String()).
		Msg("Closed lending market position")
	return nil
}
