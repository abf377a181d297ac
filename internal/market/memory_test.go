package market

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMarket_DepositIssuesReceiptsOneToOne(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)
	mem.SetBalance(testWant, testHolder, sdkmath.NewInt(1000))

	err := mem.Deposit(context.Background(), testWant, sdkmath.NewInt(600), testHolder, 0)
	require.NoError(t, err)

	liquid, err := mem.BalanceOf(context.Background(), testWant, testHolder)
	require.NoError(t, err)
	receipt, err := mem.BalanceOf(context.Background(), mem.ReceiptID(), testHolder)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(400), liquid)
	assert.Equal(t, sdkmath.NewInt(600), receipt)
}

func TestMemoryMarket_DepositRejectsOverdraft(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)
	mem.SetBalance(testWant, testHolder, sdkmath.NewInt(100))

	err := mem.Deposit(context.Background(), testWant, sdkmath.NewInt(101), testHolder, 0)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestMemoryMarket_WithdrawClampsToReceiptBalance(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)
	mem.SetBalance(mem.ReceiptID(), testHolder, sdkmath.NewInt(400))

	granted, err := mem.Withdraw(context.Background(), testWant, sdkmath.NewInt(1000), testHolder)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(400), granted)
}

func TestMemoryMarket_LiquidityCapDepletes(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)
	mem.SetBalance(mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))
	mem.SetAvailableLiquidity(sdkmath.NewInt(300))

	granted, err := mem.Withdraw(context.Background(), testWant, sdkmath.NewInt(250), testHolder)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(250), granted)

	// Only 50 of the cap remains for the second withdrawal.
	granted, err = mem.Withdraw(context.Background(), testWant, sdkmath.NewInt(250), testHolder)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(50), granted)

	granted, err = mem.Withdraw(context.Background(), testWant, sdkmath.NewInt(250), testHolder)
	require.NoError(t, err)
	assert.True(t, granted.IsZero())
}

func TestMemoryMarket_MaxWithdrawalRedeemsEverything(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)
	mem.SetBalance(mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	granted, err := mem.Withdraw(context.Background(), testWant, MaxWithdrawal, testHolder)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1000), granted)

	receipt, err := mem.BalanceOf(context.Background(), mem.ReceiptID(), testHolder)
	require.NoError(t, err)
	assert.True(t, receipt.IsZero())
}

func TestMemoryMarket_AccrueInterestGrowsReceipts(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)
	mem.SetBalance(mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))
	mem.AccrueInterest(testHolder, sdkmath.NewInt(37))

	receipt, err := mem.BalanceOf(context.Background(), mem.ReceiptID(), testHolder)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1037), receipt)
}

func TestMemoryMarket_UnknownAsset(t *testing.T) {
	mem := NewMemoryMarket(testWant, 6)

	_, err := mem.GetReserveInfo(context.Background(), "dai")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	err = mem.Deposit(context.Background(), "dai", sdkmath.NewInt(1), testHolder, 0)
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = mem.Withdraw(context.Background(), "dai", sdkmath.NewInt(1), testHolder)
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = mem.GetAssetPrice(context.Background(), "dai")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}
