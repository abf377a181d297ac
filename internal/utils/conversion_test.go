package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayAmount(t *testing.T) {
	got, err := DisplayAmount(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-9)

	got, err = DisplayAmount(sdkmath.ZeroInt(), 18)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = DisplayAmount(sdkmath.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)

	_, err = DisplayAmount(sdkmath.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	var nilAmount sdkmath.Int
	_, err = DisplayAmount(nilAmount, 6)
	assert.ErrorIs(t, err, ErrAmountNil)
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1000000000")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1_000_000_000), got)

	_, err = ParseAmount("not-a-number")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("-5")
	assert.ErrorIs(t, err, ErrAmountNegative)
}
