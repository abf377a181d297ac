/*

This file contains the lifecycle controller: the per-cycle orchestration of
report -> settle -> rebalance, plus the full-exit migration flow. One cycle
runs to completion before another may begin; a mutex enforces that invariant
for concurrent hosts since two interleaved cycles could double-count a
withdrawal or double-deploy liquidity.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/logger"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrDormant     = errors.New("controller is dormant after migration")
	ErrNilAmount   = errors.New("amount is nil")
	ErrInvalidDebt = errors.New("debt outstanding is invalid")
)

// cycleState tracks where the controller is inside a cycle. Used for
// logging and the status API; transitions are Idle -> Settling ->
// Rebalancing -> Idle, with Dormant as the terminal post-migration state.
type cycleState string

const (
	StateIdle        cycleState = "idle"
	StateSettling    cycleState = "settling"
	StateRebalancing cycleState = "rebalancing"
	StateDormant     cycleState = "dormant"
)

// Settler is the reconciler surface the controller drives each cycle.
type Settler interface {
	TotalManagedAssets(ctx context.Context) (sdkmath.Int, error)
	Settle(ctx context.Context, debtOutstanding sdkmath.Int) (types.SettlementResult, error)
	LiquidateEverything(ctx context.Context) (sdkmath.Int, error)
}

// Deployer is the position manager surface used to redeploy surplus.
type Deployer interface {
	LiquidBalance(ctx context.Context) (sdkmath.Int, error)
	ReceiptBalance(ctx context.Context) (sdkmath.Int, error)
	OpenOrIncrease(ctx context.Context, amount sdkmath.Int) error
}

// ValueConverter converts reference-unit amounts into the accounting unit.
type ValueConverter interface {
	ConvertReferenceToWant(ctx context.Context, referenceAmount sdkmath.Int) (sdkmath.Int, error)
}

// CycleStore persists per-cycle reports. Persistence failures never fail a
// cycle; they are logged and the cycle result stands.
type CycleStore interface {
	NextCycleNumber() (int, error)
	SaveCycleReport(report types.CycleReport) (int64, error)
}

// DebtSource supplies the vault's current debt expectation to the daemon loop.
type DebtSource interface {
	DebtOutstanding(ctx context.Context) (sdkmath.Int, error)
}

// Controller orchestrates report cycles and the migration exit.
type Controller struct {
	mu sync.Mutex

	reconciler Settler
	position   Deployer
	converter  ValueConverter
	store      CycleStore // optional

	state   cycleState
	dormant bool

	logger zerolog.Logger
}

// Config holds the dependencies for creating a new Controller.
type Config struct {
	Reconciler Settler
	Position   Deployer
	Converter  ValueConverter
	Store      CycleStore // may be nil; cycles then go unrecorded
}

// NewController creates a controller with dependency injection.
func NewController(cfg Config) (*Controller, error) {
	if err := validateControllerConfig(cfg); err != nil {
		return nil, fmt.Errorf("controller configuration validation failed: %w", err)
	}

	c := &Controller{
		reconciler: cfg.Reconciler,
		position:   cfg.Position,
		converter:  cfg.Converter,
		store:      cfg.Store,
		state:      StateIdle,
		logger:     logger.GetForComponent("lifecycle_controller"),
	}

	c.logger.Info().Msg("Lifecycle controller created")
	return c, nil
}

func validateControllerConfig(cfg Config) error {
	if cfg.Reconciler == nil {
		return fmt.Errorf("reconciler cannot be nil")
	}
	if cfg.Position == nil {
		return fmt.Errorf("position manager cannot be nil")
	}
	if cfg.Converter == nil {
		return fmt.Errorf("value converter cannot be nil")
	}
	return nil
}

// State returns the controller's current cycle state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.state)
}

// TotalManagedAssets reports the live valuation of the whole position.
func (c *Controller) TotalManagedAssets(ctx context.Context) (sdkmath.Int, error) {
	return c.reconciler.TotalManagedAssets(ctx)
}

// ConvertReferenceToWant converts a reference-unit amount to the accounting unit.
func (c *Controller) ConvertReferenceToWant(ctx context.Context, referenceAmount sdkmath.Int) (sdkmath.Int, error) {
	return c.converter.ConvertReferenceToWant(ctx, referenceAmount)
}

// ReportCycle runs one full report cycle: settle the outstanding debt, then
// redeploy any surplus liquidity, then hand the settlement triple back to the
// caller. Any external failure aborts the cycle with no retry; the market is
// the only stateful resource touched and each of its calls is atomic.
func (c *Controller) ReportCycle(ctx context.Context, debtOutstanding sdkmath.Int) (types.SettlementResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dormant {
		return types.ZeroSettlement(), ErrDormant
	}
	if debtOutstanding.IsNil() {
		return types.ZeroSettlement(), ErrNilAmount
	}
	if debtOutstanding.IsNegative() {
		return types.ZeroSettlement(), fmt.Errorf("%w: %s", ErrInvalidDebt, debtOutstanding)
	}

	cycleStartTime := time.Now()
	cycleID := uuid.New().String()
	cycleLogger := c.logger.With().Str("cycle_id", cycleID).Logger()

	cycleLogger.Info().
		Str("debtOutstanding", debtOutstanding.String()).
		Msg("--- Starting report cycle ---")

	// --- Step 1: Settlement ---
	c.state = StateSettling
	result, err := c.reconciler.Settle(ctx, debtOutstanding)
	if err != nil {
		c.state = StateIdle
		cycleLogger.Error().Err(err).Msg("Cycle aborted: settlement failed.")
		return types.ZeroSettlement(), err
	}
	if err := result.Validate(); err != nil {
		c.state = StateIdle
		cycleLogger.Error().Err(err).Msg("Cycle aborted: settlement violated accounting invariants.")
		return types.ZeroSettlement(), err
	}

	// --- Step 2: Rebalance surplus back into the market ---
	c.state = StateRebalancing
	deployed, err := c.rebalance(ctx, debtOutstanding, cycleLogger)
	if err != nil {
		c.state = StateIdle
		cycleLogger.Error().Err(err).Msg("Cycle aborted: rebalance failed.")
		return types.ZeroSettlement(), err
	}

	// --- Step 3: Record the cycle ---
	c.saveReport(ctx, debtOutstanding, result, deployed, cycleID, cycleStartTime, cycleLogger)

	c.state = StateIdle
	cycleLogger.Info().
		Str("profit", result.Profit.String()).
		Str("loss", result.Loss.String()).
		Str("debtPayment", result.DebtPayment.String()).
		Str("cycleDuration", time.Since(cycleStartTime).String()).
		Msg("--- Report cycle completed ---")

	return result, nil
}

// rebalance deploys liquid balance above the outstanding debt back into the
// market. No-op when nothing exceeds the debt.
func (c *Controller) rebalance(ctx context.Context, debtOutstanding sdkmath.Int, cycleLogger zerolog.Logger) (sdkmath.Int, error) {
	liquid, err := c.position.LiquidBalance(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if liquid.LTE(debtOutstanding) {
		cycleLogger.Info().
			Str("liquid", liquid.String()).
			Str("debtOutstanding", debtOutstanding.String()).
			Msg("No surplus to deploy")
		return sdkmath.ZeroInt(), nil
	}

	surplus := liquid.Sub(debtOutstanding)
	if err := c.position.OpenOrIncrease(ctx, surplus); err != nil {
		return sdkmath.ZeroInt(), err
	}

	cycleLogger.Info().
		Str("surplus", surplus.String()).
		Msg("Surplus deployed into lending market")
	return surplus, nil
}

// MigrateOut performs the full exit: everything redeemable is withdrawn so
// the external orchestrator can sweep the liquid balance to a successor.
// The controller is dormant afterwards and rejects further cycles.
func (c *Controller) MigrateOut(ctx context.Context) (sdkmath.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dormant {
		return sdkmath.ZeroInt(), ErrDormant
	}

	recovered, err := c.reconciler.LiquidateEverything(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Migration aborted: full liquidation failed.")
		return sdkmath.ZeroInt(), err
	}

	c.dormant = true
	c.state = StateDormant
	c.logger.Info().
		Str("recovered", recovered.String()).
		Msg("Migration complete; controller is now dormant")

	return recovered, nil
}

// RunLoop drives report cycles on a fixed interval, pulling the current debt
// expectation from the given source before each cycle. A failed cycle is
// logged and the loop continues on the next tick.
func (c *Controller) RunLoop(ctx context.Context, interval time.Duration, debts DebtSource) {
	c.logger.Info().
		Dur("interval", interval).
		Msg("Starting report cycle loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.runOnce(ctx, debts)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Report cycle loop stopped due to context cancellation")
			return
		case <-ticker.C:
			c.runOnce(ctx, debts)
		}
	}
}

func (c *Controller) runOnce(ctx context.Context, debts DebtSource) {
	debt, err := debts.DebtOutstanding(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Cycle skipped: failed to fetch debt outstanding.")
		return
	}
	if _, err := c.ReportCycle(ctx, debt); err != nil {
		if errors.Is(err, ErrDormant) {
			c.logger.Warn().Msg("Controller is dormant; report loop has nothing to do.")
			return
		}
		c.logger.Error().Err(err).Msg("Report cycle failed.")
	}
}

// saveReport persists the cycle outcome. Failures are logged, never fatal.
func (c *Controller) saveReport(
	ctx context.Context,
	debtOutstanding sdkmath.Int,
	result types.SettlementResult,
	deployed sdkmath.Int,
	cycleID string,
	startTime time.Time,
	cycleLogger zerolog.Logger,
) {
	if c.store == nil {
		return
	}

	liquid, err := c.position.LiquidBalance(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to read final liquid balance for cycle report")
		liquid = sdkmath.ZeroInt()
	}
	receipt, err := c.position.ReceiptBalance(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to read final receipt balance for cycle report")
		receipt = sdkmath.ZeroInt()
	}

	cycleNumber, err := c.store.NextCycleNumber()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to advance cycle counter, using 0")
		cycleNumber = 0
	}

	report := types.CycleReport{
		CycleNumber:     cycleNumber,
		CycleID:         cycleID,
		Timestamp:       startTime,
		DebtOutstanding: debtOutstanding,
		Settlement:      result,
		TotalAssets:     liquid.Add(receipt),
		LiquidBalance:   liquid,
		ReceiptBalance:  receipt,
		DeployedAmount:  deployed,
		Duration:        time.Since(startTime),
	}

	reportID, err := c.store.SaveCycleReport(report)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle report")
		return
	}
	cycleLogger.Info().Int64("report_id", reportID).Msg("Cycle report saved")
}
