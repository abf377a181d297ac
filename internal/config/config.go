package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/types"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
//
// Every on-chain address the strategy talks to is injected here rather than
// compiled in, so the core stays testable against a mock market gateway.
var (
	// ChainRPC is the JSON-RPC endpoint of the chain hosting the lending market.
	ChainRPC string
	// ChainID is the numeric chain ID used for transaction signing.
	ChainID int64

	// LendingPool is the address of the lending market's pool contract.
	LendingPool string
	// DataProvider is the address of the market's reserve metadata contract
	// (maps a deposited asset to its receipt token).
	DataProvider string
	// PriceOracle is the address of the external price service.
	PriceOracle string
	// Vault is the address of the orchestrating vault that supplies
	// debtOutstanding and receives reported gains and losses.
	Vault string
	// WantToken is the address of the accounting-unit token.
	WantToken string

	// StrategyAccount is the address holding the strategy's balances.
	StrategyAccount string
	// StrategyKey is the hex private key used to sign market transactions.
	StrategyKey string

	// ReferralCode is forwarded on lending market deposits.
	ReferralCode uint16

	// WithdrawalMode selects exact-amount or request-maximum withdrawals.
	WithdrawalMode types.WithdrawalMode

	// CycleInterval is the period between report cycles in the daemon loop.
	CycleInterval time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set unless noted otherwise.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ChainRPC, err = getEnv("CHAIN_RPC")
	if err != nil {
		return err
	}

	ChainID, err = getEnvAsInt64("CHAIN_ID")
	if err != nil {
		return err
	}

	LendingPool, err = getEnv("LENDING_POOL_ADDRESS")
	if err != nil {
		return err
	}

	DataProvider, err = getEnv("DATA_PROVIDER_ADDRESS")
	if err != nil {
		return err
	}

	PriceOracle, err = getEnv("PRICE_ORACLE_ADDRESS")
	if err != nil {
		return err
	}

	Vault, err = getEnv("VAULT_ADDRESS")
	if err != nil {
		return err
	}

	WantToken, err = getEnv("WANT_TOKEN_ADDRESS")
	if err != nil {
		return err
	}

	StrategyAccount, err = getEnv("STRATEGY_ACCOUNT")
	if err != nil {
		return err
	}

	// The key is only required in live mode; paper mode never signs.
	StrategyKey = os.Getenv("STRATEGY_PRIVATE_KEY")

	referral, err := getEnvAsInt64("DEPOSIT_REFERRAL_CODE")
	if err != nil {
		return err
	}
	if referral < 0 || referral > 65535 {
		return errors.New("DEPOSIT_REFERRAL_CODE must fit in uint16, got: " + strconv.FormatInt(referral, 10))
	}
	ReferralCode = uint16(referral)

	modeStr, err := getEnv("WITHDRAWAL_MODE")
	if err != nil {
		return err
	}
	WithdrawalMode, err = types.ParseWithdrawalMode(modeStr)
	if err != nil {
		return err
	}

	intervalStr, err := getEnv("CYCLE_INTERVAL")
	if err != nil {
		return err
	}
	CycleInterval, err = time.ParseDuration(intervalStr)
	if err != nil {
		return errors.New("CYCLE_INTERVAL must be a valid duration, got: " + intervalStr)
	}

	log.Debug().
		Str("ChainRPC", ChainRPC).
		Str("LendingPool", LendingPool).
		Str("Vault", Vault).
		Str("WantToken", WantToken).
		Str("WithdrawalMode", string(WithdrawalMode)).
		Dur("CycleInterval", CycleInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
