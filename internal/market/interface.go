package market

import (
	"context"
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount     = errors.New("amount is invalid")
	ErrInsufficientFunds = errors.New("insufficient liquid balance")
	ErrUnknownAsset      = errors.New("asset is not known to the market")
	ErrInvalidGateway    = errors.New("gateway configuration is invalid")
)

// MaxWithdrawal is the sentinel amount meaning "withdraw everything currently
// redeemable". It mirrors the uint256 maximum the lending market itself uses.
var MaxWithdrawal = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

// ReserveInfo describes the lending market's reserve for a deposited asset.
type ReserveInfo struct {
	// ReceiptToken is the yield-bearing token minted 1:1 against deposits,
	// redeemable for principal plus accrued interest.
	ReceiptToken string `json:"receipt_token"`
}

// Gateway is the lending market as this strategy sees it: an opaque external
// store that accepts deposits, honors withdrawals up to its instantly
// available liquidity, and accrues interest on its own schedule.
//
// A Withdraw that returns less than requested is not an error; the market may
// legitimately be short on instant liquidity. Callers measure the resulting
// balances and decide what the shortfall means.
type Gateway interface {
	// GetReserveInfo returns reserve metadata for the given asset.
	GetReserveInfo(ctx context.Context, assetID string) (ReserveInfo, error)

	// Deposit moves amount of assetID from the holder into the market,
	// crediting receipt tokens to onBehalfOf. Any required allowance is
	// arranged by the implementation before the deposit call.
	Deposit(ctx context.Context, assetID string, amount sdkmath.Int, onBehalfOf string, referralCode uint16) error

	// Withdraw redeems up to amount of assetID to the given recipient and
	// returns the amount actually withdrawn. Passing MaxWithdrawal redeems
	// everything currently available.
	Withdraw(ctx context.Context, assetID string, amount sdkmath.Int, to string) (sdkmath.Int, error)
}

// PriceService quotes asset prices denominated in the chain's reference unit.
type PriceService interface {
	// GetAssetPrice returns the price of one whole unit of assetID in
	// reference-unit base denomination (wei).
	GetAssetPrice(ctx context.Context, assetID string) (sdkmath.Int, error)
}

// BalanceLedger reads token balances and decimal precision. Used for both the
// accounting-unit token and the market's receipt token.
type BalanceLedger interface {
	BalanceOf(ctx context.Context, assetID string, holder string) (sdkmath.Int, error)
	DecimalsOf(ctx context.Context, assetID string) (uint8, error)
}
