package oracle

import (
	"context"
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/market"
)

const wantID = "usdc"

func newTestConverter(t *testing.T, decimals uint8, price sdkmath.Int) (*Converter, *market.MemoryMarket) {
	t.Helper()
	mem := market.NewMemoryMarket(wantID, decimals)
	mem.SetPrice(wantID, price)
	conv, err := NewConverter(mem, mem, wantID)
	require.NoError(t, err)
	return conv, mem
}

func TestConvert_ScalesByDecimalsAndPrice(t *testing.T) {
	// 1 whole want token priced at 1/1800 of the reference unit:
	// floor(1e18 / 1800) = 555555555555555 reference base units.
	price := sdkmath.NewInt(555555555555555)
	conv, _ := newTestConverter(t, 6, price)

	// 0.1 reference units buys 180 whole want tokens, i.e. 180_000_000
	// base units at 6 decimals.
	refAmount := sdkmath.NewInt(100_000_000_000_000_000)
	got, err := conv.ConvertReferenceToWant(context.Background(), refAmount)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(180_000_000), got)
}

func TestConvert_IdentityAtEqualPrice(t *testing.T) {
	// price = 10^decimals makes the conversion the identity.
	conv, _ := newTestConverter(t, 18, sdkmath.NewInt(1_000_000_000_000_000_000))

	refAmount := sdkmath.NewInt(42_000_000_000)
	got, err := conv.ConvertReferenceToWant(context.Background(), refAmount)
	require.NoError(t, err)
	assert.Equal(t, refAmount, got)
}

func TestConvert_MultipliesBeforeDividing(t *testing.T) {
	// With referenceAmount far below the price, dividing first would
	// truncate the whole result to zero. Multiplying first keeps it exact.
	price := sdkmath.NewInt(555_555_555_555_555)
	conv, _ := newTestConverter(t, 6, price)

	refAmount := sdkmath.NewInt(1_000_000_000_000) // << price
	got, err := conv.ConvertReferenceToWant(context.Background(), refAmount)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1800), got)
}

func TestConvert_TruncatesTowardZero(t *testing.T) {
	conv, _ := newTestConverter(t, 0, sdkmath.NewInt(3))

	// 10 * 10^0 / 3 = 3 remainder 1, truncated.
	got, err := conv.ConvertReferenceToWant(context.Background(), sdkmath.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(3), got)
}

func TestConvert_ZeroAmountIsZero(t *testing.T) {
	conv, _ := newTestConverter(t, 6, sdkmath.NewInt(555_555_555_555_555))

	got, err := conv.ConvertReferenceToWant(context.Background(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestConvert_RejectsZeroPrice(t *testing.T) {
	conv, _ := newTestConverter(t, 6, sdkmath.ZeroInt())

	_, err := conv.ConvertReferenceToWant(context.Background(), sdkmath.NewInt(1000))
	assert.ErrorIs(t, err, ErrZeroPrice)
}

func TestConvert_RejectsNegativeAmount(t *testing.T) {
	conv, _ := newTestConverter(t, 6, sdkmath.NewInt(1))

	_, err := conv.ConvertReferenceToWant(context.Background(), sdkmath.NewInt(-5))
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestConvert_OverflowBeyond256Bits(t *testing.T) {
	conv, _ := newTestConverter(t, 18, sdkmath.NewInt(1))

	// 2^250 * 10^18 / 1 is far past 256 bits.
	huge := sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 250))
	_, err := conv.ConvertReferenceToWant(context.Background(), huge)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestNewConverter_Validation(t *testing.T) {
	mem := market.NewMemoryMarket(wantID, 6)

	_, err := NewConverter(nil, mem, wantID)
	assert.Error(t, err)

	_, err = NewConverter(mem, nil, wantID)
	assert.Error(t, err)

	_, err = NewConverter(mem, mem, "")
	assert.Error(t, err)
}
