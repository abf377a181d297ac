package main

import (
	"context"
	"os"
	"strconv"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/config"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/engine"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/logger"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/market"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/oracle"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/reconciler"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/state"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/utils"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/web"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the strategy daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Strategy adapter starting...")

	// Initialize database connection (cycle history)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	ctx := context.Background()

	// --- 2. Market Wiring (with Safety Switch) ---
	var (
		gateway market.Gateway
		ledger  market.BalanceLedger
		prices  market.PriceService
		debts   engine.DebtSource
		wantID  = config.WantToken
		holder  = config.StrategyAccount
	)

	switch os.Getenv("STRATEGY_MODE") {
	case "live":
		log.Warn().Msg("Initializing strategy in LIVE mode. Real transactions will be broadcast.")

		client, err := ethclient.Dial(config.ChainRPC)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
		}
		defer client.Close()
		log.Info().Str("endpoint", config.ChainRPC).Msg("Chain RPC connected")

		ethMarket, err := market.NewEthMarket(market.EthMarketConfig{
			Client:          client,
			PrivateKeyHex:   config.StrategyKey,
			ChainID:         config.ChainID,
			LendingPool:     config.LendingPool,
			DataProvider:    config.DataProvider,
			PriceOracle:     config.PriceOracle,
			Vault:           config.Vault,
			StrategyAccount: config.StrategyAccount,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize live market gateway")
		}
		gateway, ledger, prices, debts = ethMarket, ethMarket, ethMarket, ethMarket
		holder = ethMarket.Account()

	case "paper":
		log.Info().Msg("Initializing strategy in PAPER mode against an in-memory market.")
		paper := newPaperMarket(wantID, holder)
		gateway, ledger, prices = paper, paper, paper
		debts = paperDebtSource{}

	default:
		log.Fatal().Msg("STRATEGY_MODE is not set to 'live' or 'paper'. Halting to prevent accidental execution.")
	}

	// --- 3. Core Assembly with Dependency Injection ---
	manager, err := market.NewPositionManager(ctx, market.ManagerConfig{
		Gateway:        gateway,
		Ledger:         ledger,
		WantID:         wantID,
		Holder:         holder,
		WithdrawalMode: config.WithdrawalMode,
		ReferralCode:   config.ReferralCode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize position manager")
	}

	recon, err := reconciler.New(manager)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize reconciler")
	}

	converter, err := oracle.NewConverter(prices, ledger, wantID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize value oracle")
	}

	controller, err := engine.NewController(engine.Config{
		Reconciler: recon,
		Position:   manager,
		Converter:  converter,
		Store:      state.NewStore(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create lifecycle controller")
	}

	// --- 4. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	wantDecimals, err := ledger.DecimalsOf(ctx, wantID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read want token decimals")
	}

	webServer := web.NewWebServer(webPort, controller, wantDecimals)
	go func() {
		log.Info().Str("port", webPort).Msg("Starting strategy status API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Report Cycle Loop ---
	log.Info().Str("interval", config.CycleInterval.String()).Msg("Starting report cycle loop")
	controller.RunLoop(ctx, config.CycleInterval, debts)
}

// newPaperMarket seeds an in-memory market from the paper-mode env knobs.
func newPaperMarket(wantID, holder string) *market.MemoryMarket {
	paper := market.NewMemoryMarket(wantID, uint8(mustAtoi(os.Getenv("PAPER_WANT_DECIMALS"), 6)))

	initial := os.Getenv("PAPER_INITIAL_BALANCE")
	if initial == "" {
		initial = "1000000000" // 1000.0 at six decimals
	}
	balance, err := utils.ParseAmount(initial)
	if err != nil {
		log.Fatal().Err(err).Msg("PAPER_INITIAL_BALANCE is not a valid integer amount")
	}
	paper.SetBalance(wantID, holder, balance)

	price := os.Getenv("PAPER_WANT_PRICE")
	if price == "" {
		price = "555555555555555" // roughly 1/1800 of a reference unit
	}
	parsedPrice, err := utils.ParseAmount(price)
	if err != nil {
		log.Fatal().Err(err).Msg("PAPER_WANT_PRICE is not a valid integer amount")
	}
	paper.SetPrice(wantID, parsedPrice)

	return paper
}

// paperDebtSource reads the debt expectation from the environment each cycle,
// so paper runs can exercise settlement without a live vault.
type paperDebtSource struct{}

func (paperDebtSource) DebtOutstanding(context.Context) (sdkmath.Int, error) {
	raw := os.Getenv("PAPER_DEBT_OUTSTANDING")
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	debt, err := utils.ParseAmount(raw)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return debt, nil
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
