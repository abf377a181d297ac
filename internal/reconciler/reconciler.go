/*

This file contains the valuation and profit/loss engine. It converts the
strategy's heterogeneous holdings (liquid want plus yield-bearing receipt
tokens) into a single source-of-truth valuation, and apportions any shortfall
between debt repaid, profit realized and loss recognized.

The market may return less than requested on withdrawal; that is the expected
partial-liquidity case, never an error. Every subtraction below is guarded by
its branch condition so magnitudes stay non-negative by construction.

*/

package reconciler

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/logger"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNilAmount      = errors.New("amount is nil")
	ErrNegativeAmount = errors.New("amount is negative")
	ErrNilPosition    = errors.New("position cannot be nil")
)

// Position is the slice of the position manager the reconciler needs: two
// live balance reads and the two withdrawal entry points. Balance reads are
// pure observations; partial withdrawals are tolerated, not retried.
type Position interface {
	LiquidBalance(ctx context.Context) (sdkmath.Int, error)
	ReceiptBalance(ctx context.Context) (sdkmath.Int, error)
	ReduceOrClose(ctx context.Context, amount sdkmath.Int) error
	CloseAll(ctx context.Context) error
}

// Reconciler computes total managed assets and settles outstanding debt
// against available liquidity.
type Reconciler struct {
	position Position
	logger   zerolog.Logger
}

// New returns a reconciler bound to the given position.
func New(position Position) (*Reconciler, error) {
	if position == nil {
		return nil, ErrNilPosition
	}
	return &Reconciler{
		position: position,
		logger:   logger.GetForComponent("reconciler"),
	}, nil
}

// TotalManagedAssets returns liquidBalance + receiptBalance, read live. Safe
// to call at any time, including mid-liquidation; it has no side effects.
func (r *Reconciler) TotalManagedAssets(ctx context.Context) (sdkmath.Int, error) {
	liquid, err := r.position.LiquidBalance(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	receipt, err := r.position.ReceiptBalance(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return liquid.Add(receipt), nil
}

// Settle reconciles the vault's outstanding debt against available liquidity
// and returns the resulting profit/loss/payment triple.
//
// debtPayment never exceeds debtOutstanding, and profit and loss are never
// both nonzero in a single settlement.
func (r *Reconciler) Settle(ctx context.Context, debtOutstanding sdkmath.Int) (types.SettlementResult, error) {
	if debtOutstanding.IsNil() {
		return types.ZeroSettlement(), ErrNilAmount
	}
	if debtOutstanding.IsNegative() {
		return types.ZeroSettlement(), fmt.Errorf("%w: debtOutstanding=%s", ErrNegativeAmount, debtOutstanding)
	}

	// Explicit short-circuit: nothing owed means nothing to withdraw and
	// nothing to pay, not an edge case of the general formula.
	if debtOutstanding.IsZero() {
		return types.ZeroSettlement(), nil
	}

	if err := r.position.ReduceOrClose(ctx, debtOutstanding); err != nil {
		return types.ZeroSettlement(), err
	}

	// Everything below is measured against what the withdrawal actually
	// produced, not against what was requested.
	available, err := r.position.LiquidBalance(ctx)
	if err != nil {
		return types.ZeroSettlement(), err
	}

	result := types.ZeroSettlement()
	if available.GTE(debtOutstanding) {
		result.DebtPayment = debtOutstanding
		result.Profit = available.Sub(debtOutstanding)
	} else {
		result.DebtPayment = available
		result.Loss = debtOutstanding.Sub(available)
	}

	r.logger.Info().
		Str("debtOutstanding", debtOutstanding.String()).
		Str("available", available.String()).
		Str("profit", result.Profit.String()).
		Str("loss", result.Loss.String()).
		Str("debtPayment", result.DebtPayment.String()).
		Msg("Settlement computed")

	return result, nil
}

// LiquidateUpTo frees at least amountNeeded of the accounting unit, returning
// the amount actually liquidated and any shortfall as loss. It upholds
// liquidated <= amountNeeded and liquidated + loss == amountNeeded.
func (r *Reconciler) LiquidateUpTo(ctx context.Context, amountNeeded sdkmath.Int) (liquidated sdkmath.Int, loss sdkmath.Int, err error) {
	if amountNeeded.IsNil() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrNilAmount
	}
	if amountNeeded.IsNegative() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: amountNeeded=%s", ErrNegativeAmount, amountNeeded)
	}

	liquid, err := r.position.LiquidBalance(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	if liquid.LT(amountNeeded) {
		if err := r.position.ReduceOrClose(ctx, amountNeeded.Sub(liquid)); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
		liquid, err = r.position.LiquidBalance(ctx)
		if err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}

	liquidated = sdkmath.MinInt(amountNeeded, liquid)
	loss = amountNeeded.Sub(liquidated)

	if loss.IsPositive() {
		r.logger.Warn().
			Str("amountNeeded", amountNeeded.String()).
			Str("liquidated", liquidated.String()).
			Str("loss", loss.String()).
			Msg("Liquidation fell short of the needed amount")
	}

	return liquidated, loss, nil
}

// LiquidateEverything performs a full exit from the market and returns the
// resulting liquid balance.
func (r *Reconciler) LiquidateEverything(ctx context.Context) (sdkmath.Int, error) {
	if err := r.position.CloseAll(ctx); err != nil {
		return sdkmath.ZeroInt(), err
	}
	recovered, err := r.position.LiquidBalance(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	r.logger.Info().
		Str("recovered", recovered.String()).
		Msg("Full exit from lending market complete")
	return recovered, nil
}
