package types

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
)

func TestSettlementValidate(t *testing.T) {
	valid := ZeroSettlement()
	valid.Profit = sdkmath.NewInt(100)
	valid.DebtPayment = sdkmath.NewInt(600)
	assert.NoError(t, valid.Validate())

	var nilAmounts SettlementResult
	assert.Error(t, nilAmounts.Validate())

	negative := ZeroSettlement()
	negative.Loss = sdkmath.NewInt(-1)
	assert.Error(t, negative.Validate())

	bothSides := ZeroSettlement()
	bothSides.Profit = sdkmath.NewInt(1)
	bothSides.Loss = sdkmath.NewInt(1)
	assert.Error(t, bothSides.Validate())
}

func TestParseWithdrawalMode(t *testing.T) {
	mode, err := ParseWithdrawalMode("exact")
	assert.NoError(t, err)
	assert.Equal(t, WithdrawExact, mode)

	mode, err = ParseWithdrawalMode("maximum")
	assert.NoError(t, err)
	assert.Equal(t, WithdrawMaximum, mode)

	_, err = ParseWithdrawalMode("partial")
	assert.Error(t, err)
}
