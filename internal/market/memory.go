/*

This file contains an in-memory lending market used by paper mode and tests.
It models exactly the behavior the strategy has to tolerate from the real
market: 1:1 receipt-token issuance, exogenous interest accrual, and a cap on
instantly-available withdrawal liquidity.

*/

package market

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// MemoryMarket is an in-memory Gateway, BalanceLedger and PriceService.
type MemoryMarket struct {
	mu sync.Mutex

	wantID    string
	receiptID string

	balances map[string]map[string]sdkmath.Int // asset -> holder -> amount
	decimals map[string]uint8
	prices   map[string]sdkmath.Int

	// availableLiquidity caps what a single withdrawal can return. Nil means
	// unconstrained.
	availableLiquidity *sdkmath.Int

	// failNextDeposit / failNextWithdraw simulate hard market rejections
	// (paused market, invalid asset) as opposed to partial liquidity.
	failNextDeposit  error
	failNextWithdraw error
}

// NewMemoryMarket creates an in-memory market for the given want asset. The
// receipt token identifier is derived from the want identifier.
func NewMemoryMarket(wantID string, wantDecimals uint8) *MemoryMarket {
	receiptID := "receipt:" + wantID
	return &MemoryMarket{
		wantID:    wantID,
		receiptID: receiptID,
		balances: map[string]map[string]sdkmath.Int{
			wantID:    {},
			receiptID: {},
		},
		decimals: map[string]uint8{
			wantID:    wantDecimals,
			receiptID: wantDecimals,
		},
		prices: map[string]sdkmath.Int{},
	}
}

// ReceiptID returns the derived receipt-token identifier.
func (m *MemoryMarket) ReceiptID() string { return m.receiptID }

// SetBalance sets a holder's balance for an asset directly.
func (m *MemoryMarket) SetBalance(assetID, holder string, amount sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[assetID] == nil {
		m.balances[assetID] = map[string]sdkmath.Int{}
	}
	m.balances[assetID][holder] = amount
}

// SetPrice sets the reference-unit price for an asset.
func (m *MemoryMarket) SetPrice(assetID string, price sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[assetID] = price
}

// SetDecimals overrides the decimal precision for an asset.
func (m *MemoryMarket) SetDecimals(assetID string, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decimals[assetID] = decimals
}

// SetAvailableLiquidity caps how much the market can redeem instantly.
func (m *MemoryMarket) SetAvailableLiquidity(amount sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availableLiquidity = &amount
}

// AccrueInterest mints interest onto a holder's receipt balance, simulating
// the market's exogenous yield between observations.
func (m *MemoryMarket) AccrueInterest(holder string, amount sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[m.receiptID][holder] = m.balanceLocked(m.receiptID, holder).Add(amount)
}

// FailNextDeposit makes the next Deposit call return err.
func (m *MemoryMarket) FailNextDeposit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextDeposit = err
}

// FailNextWithdraw makes the next Withdraw call return err.
func (m *MemoryMarket) FailNextWithdraw(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextWithdraw = err
}

func (m *MemoryMarket) balanceLocked(assetID, holder string) sdkmath.Int {
	holders, ok := m.balances[assetID]
	if !ok {
		return sdkmath.ZeroInt()
	}
	bal, ok := holders[holder]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}

// GetReserveInfo implements Gateway.
func (m *MemoryMarket) GetReserveInfo(_ context.Context, assetID string) (ReserveInfo, error) {
	if assetID != m.wantID {
		return ReserveInfo{}, fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	return ReserveInfo{ReceiptToken: m.receiptID}, nil
}

// Deposit implements Gateway. Receipt tokens are issued 1:1.
func (m *MemoryMarket) Deposit(_ context.Context, assetID string, amount sdkmath.Int, onBehalfOf string, _ uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNextDeposit != nil {
		err := m.failNextDeposit
		m.failNextDeposit = nil
		return err
	}
	if assetID != m.wantID {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	liquid := m.balanceLocked(assetID, onBehalfOf)
	if amount.GT(liquid) {
		return fmt.Errorf("%w: deposit %s exceeds balance %s", ErrInsufficientFunds, amount, liquid)
	}

	m.balances[assetID][onBehalfOf] = liquid.Sub(amount)
	m.balances[m.receiptID][onBehalfOf] = m.balanceLocked(m.receiptID, onBehalfOf).Add(amount)
	return nil
}

// Withdraw implements Gateway. The amount returned is clamped to the holder's
// receipt balance and, when set, to the market's available liquidity.
func (m *MemoryMarket) Withdraw(_ context.Context, assetID string, amount sdkmath.Int, to string) (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNextWithdraw != nil {
		err := m.failNextWithdraw
		m.failNextWithdraw = nil
		return sdkmath.ZeroInt(), err
	}
	if assetID != m.wantID {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}

	redeemable := m.balanceLocked(m.receiptID, to)
	granted := sdkmath.MinInt(amount, redeemable)
	if m.availableLiquidity != nil {
		granted = sdkmath.MinInt(granted, *m.availableLiquidity)
	}
	if granted.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	m.balances[m.receiptID][to] = redeemable.Sub(granted)
	m.balances[assetID][to] = m.balanceLocked(assetID, to).Add(granted)
	if m.availableLiquidity != nil {
		remaining := m.availableLiquidity.Sub(granted)
		m.availableLiquidity = &remaining
	}
	return granted, nil
}

// BalanceOf implements BalanceLedger.
func (m *MemoryMarket) BalanceOf(_ context.Context, assetID string, holder string) (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[assetID]; !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	return m.balanceLocked(assetID, holder), nil
}

// DecimalsOf implements BalanceLedger.
func (m *MemoryMarket) DecimalsOf(_ context.Context, assetID string) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dec, ok := m.decimals[assetID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	return dec, nil
}

// GetAssetPrice implements PriceService.
func (m *MemoryMarket) GetAssetPrice(_ context.Context, assetID string) (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[assetID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no price for %s", ErrUnknownAsset, assetID)
	}
	return price, nil
}
