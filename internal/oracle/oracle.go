/*

This file contains the value oracle adapter: it converts an amount of the
chain's reference unit (wei) into the strategy's accounting unit, using the
live price and decimal precision of the want token.

*/

package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/logger"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/market"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNilAmount      = errors.New("amount is nil")
	ErrNegativeAmount = errors.New("amount is negative")
	ErrZeroPrice      = errors.New("asset price is zero")
	ErrOverflow       = errors.New("conversion overflows 256 bits")
)

const maxResultBits = 256

// Converter turns reference-unit quantities into want-unit quantities.
type Converter struct {
	prices market.PriceService
	ledger market.BalanceLedger
	wantID string
	logger zerolog.Logger
}

// NewConverter returns a converter for the given want asset.
func NewConverter(prices market.PriceService, ledger market.BalanceLedger, wantID string) (*Converter, error) {
	if prices == nil {
		return nil, fmt.Errorf("price service cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("balance ledger cannot be nil")
	}
	if wantID == "" {
		return nil, fmt.Errorf("want asset ID cannot be empty")
	}
	return &Converter{
		prices: prices,
		ledger: ledger,
		wantID: wantID,
		logger: logger.GetForComponent("value_oracle"),
	}, nil
}

// ConvertReferenceToWant computes
//
//	referenceAmount * 10^wantDecimals / priceInReference
//
// with truncating integer division, where priceInReference is the price of
// one whole want token in reference-unit base denomination.
//
// The multiplication happens before the division: dividing first would drop
// up to priceInReference-1 of the reference amount, which for small amounts
// relative to the price truncates the whole result to zero. The intermediate
// product is computed in arbitrary precision and rejected if the final result
// exceeds 256 bits, so the reordering trades the silent precision loss for an
// explicit overflow error.
func (c *Converter) ConvertReferenceToWant(ctx context.Context, referenceAmount sdkmath.Int) (sdkmath.Int, error) {
	if referenceAmount.IsNil() {
		return sdkmath.ZeroInt(), ErrNilAmount
	}
	if referenceAmount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: referenceAmount=%s", ErrNegativeAmount, referenceAmount)
	}

	decimals, err := c.ledger.DecimalsOf(ctx, c.wantID)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read want decimals: %w", err)
	}
	price, err := c.prices.GetAssetPrice(ctx, c.wantID)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read want price: %w", err)
	}
	if price.IsNil() || price.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroPrice
	}
	if price.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: price=%s", ErrNegativeAmount, price)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	product := new(big.Int).Mul(referenceAmount.BigInt(), scale)
	result := product.Quo(product, price.BigInt())

	if result.BitLen() > maxResultBits {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: referenceAmount=%s decimals=%d", ErrOverflow, referenceAmount, decimals)
	}

	want := sdkmath.NewIntFromBigInt(result)
	c.logger.Debug().
		Str("referenceAmount", referenceAmount.String()).
		Str("price", price.String()).
		Uint8("decimals", decimals).
		Str("wantAmount", want.String()).
		Msg("Converted reference amount to want")

	return want, nil
}
