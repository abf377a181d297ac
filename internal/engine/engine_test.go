package engine

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/market"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/oracle"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/reconciler"
	"github.com/sturdyfi/sturdy-yearn-strategy/internal/types"
)

const (
	testWant   = "usdc"
	testHolder = "strategy"
)

// memoryStore records saved cycle reports in memory.
type memoryStore struct {
	nextCycle int
	reports   []types.CycleReport
	saveErr   error
}

func (s *memoryStore) NextCycleNumber() (int, error) {
	s.nextCycle++
	return s.nextCycle, nil
}

func (s *memoryStore) SaveCycleReport(report types.CycleReport) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.reports = append(s.reports, report)
	return int64(len(s.reports)), nil
}

// fixedDebt is a DebtSource returning a constant.
type fixedDebt struct {
	debt sdkmath.Int
	err  error
}

func (d fixedDebt) DebtOutstanding(context.Context) (sdkmath.Int, error) {
	return d.debt, d.err
}

type testHarness struct {
	controller *Controller
	mem        *market.MemoryMarket
	manager    *market.PositionManager
	store      *memoryStore
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	ctx := context.Background()

	mem := market.NewMemoryMarket(testWant, 6)
	mgr, err := market.NewPositionManager(ctx, market.ManagerConfig{
		Gateway:        mem,
		Ledger:         mem,
		WantID:         testWant,
		Holder:         testHolder,
		WithdrawalMode: types.WithdrawExact,
	})
	require.NoError(t, err)

	rec, err := reconciler.New(mgr)
	require.NoError(t, err)

	mem.SetPrice(testWant, sdkmath.NewInt(1_000_000))
	conv, err := oracle.NewConverter(mem, mem, testWant)
	require.NoError(t, err)

	store := &memoryStore{}
	ctrl, err := NewController(Config{
		Reconciler: rec,
		Position:   mgr,
		Converter:  conv,
		Store:      store,
	})
	require.NoError(t, err)

	return &testHarness{controller: ctrl, mem: mem, manager: mgr, store: store}
}

func (h *testHarness) liquid(t *testing.T) sdkmath.Int {
	t.Helper()
	bal, err := h.manager.LiquidBalance(context.Background())
	require.NoError(t, err)
	return bal
}

func (h *testHarness) receipt(t *testing.T) sdkmath.Int {
	t.Helper()
	bal, err := h.manager.ReceiptBalance(context.Background())
	require.NoError(t, err)
	return bal
}

func TestReportCycle_SettlesDebtFromPosition(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	result, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(600))
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(600), result.DebtPayment)
	assert.True(t, result.Profit.IsZero())
	assert.True(t, result.Loss.IsZero())

	// 600 sits liquid awaiting the vault's sweep, 400 stays deployed.
	assert.Equal(t, sdkmath.NewInt(600), h.liquid(t))
	assert.Equal(t, sdkmath.NewInt(400), h.receipt(t))
	assert.Equal(t, StateIdle, cycleState(h.controller.State()))
}

func TestReportCycle_ZeroDebtDeploysIdleLiquidity(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(testWant, testHolder, sdkmath.NewInt(50))
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	result, err := h.controller.ReportCycle(context.Background(), sdkmath.ZeroInt())
	require.NoError(t, err)

	assert.True(t, result.Profit.IsZero())
	assert.True(t, result.Loss.IsZero())
	assert.True(t, result.DebtPayment.IsZero())

	assert.True(t, h.liquid(t).IsZero())
	assert.Equal(t, sdkmath.NewInt(1050), h.receipt(t))
}

func TestReportCycle_LiquidityShortfallBecomesLoss(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))
	h.mem.SetAvailableLiquidity(sdkmath.NewInt(400))

	result, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(600))
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(400), result.DebtPayment)
	assert.Equal(t, sdkmath.NewInt(200), result.Loss)
	assert.True(t, result.Profit.IsZero())
}

func TestReportCycle_AccruedInterestRepaysVault(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))
	h.mem.AccrueInterest(testHolder, sdkmath.NewInt(30))

	// The vault asks for the accrued yield back; the principal stays deployed.
	result, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(30))
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(30), result.DebtPayment)
	assert.True(t, result.Profit.IsZero())
	assert.True(t, result.Loss.IsZero())
	assert.Equal(t, sdkmath.NewInt(1000), h.receipt(t))
}

func TestReportCycle_SurplusLiquidityIsProfitThenRedeployed(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(testWant, testHolder, sdkmath.NewInt(50))
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	result, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(30))
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(30), result.DebtPayment)
	assert.Equal(t, sdkmath.NewInt(50), result.Profit)
	assert.True(t, result.Loss.IsZero())

	// 30 remains liquid for the sweep, the surplus above it is redeployed.
	assert.Equal(t, sdkmath.NewInt(30), h.liquid(t))
	assert.Equal(t, sdkmath.NewInt(1020), h.receipt(t))
}

func TestReportCycle_MarketFailureAbortsCycle(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))
	h.mem.FailNextWithdraw(errors.New("market paused"))

	_, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(600))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market paused")
	assert.Equal(t, StateIdle, cycleState(h.controller.State()), "a failed cycle returns to idle")
	assert.Empty(t, h.store.reports, "aborted cycles are not recorded")
}

func TestReportCycle_RejectsNegativeDebt(t *testing.T) {
	h := newHarness(t)

	_, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidDebt)
}

func TestReportCycle_PersistsReport(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	_, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(600))
	require.NoError(t, err)

	require.Len(t, h.store.reports, 1)
	report := h.store.reports[0]
	assert.Equal(t, 1, report.CycleNumber)
	assert.NotEmpty(t, report.CycleID)
	assert.Equal(t, sdkmath.NewInt(600), report.DebtOutstanding)
	assert.Equal(t, sdkmath.NewInt(600), report.Settlement.DebtPayment)
	assert.Equal(t, sdkmath.NewInt(600), report.LiquidBalance)
	assert.Equal(t, sdkmath.NewInt(400), report.ReceiptBalance)
	assert.Equal(t, sdkmath.NewInt(1000), report.TotalAssets)
}

func TestReportCycle_PersistenceFailureDoesNotFailCycle(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))
	h.store.saveErr = errors.New("db down")

	result, err := h.controller.ReportCycle(context.Background(), sdkmath.NewInt(600))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(600), result.DebtPayment)
}

func TestMigrateOut_LiquidatesAndGoesDormant(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(testWant, testHolder, sdkmath.NewInt(50))
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	recovered, err := h.controller.MigrateOut(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1050), recovered)
	assert.Equal(t, StateDormant, cycleState(h.controller.State()))

	_, err = h.controller.ReportCycle(context.Background(), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrDormant)

	_, err = h.controller.MigrateOut(context.Background())
	assert.ErrorIs(t, err, ErrDormant)
}

func TestTotalManagedAssets_DelegatesToReconciler(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(testWant, testHolder, sdkmath.NewInt(50))
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	total, err := h.controller.TotalManagedAssets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1050), total)
}

func TestConvertReferenceToWant_DelegatesToConverter(t *testing.T) {
	h := newHarness(t)

	// price = 10^6 with 6 decimals is the identity conversion.
	got, err := h.controller.ConvertReferenceToWant(context.Background(), sdkmath.NewInt(123456))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(123456), got)
}

func TestNewController_Validation(t *testing.T) {
	h := newHarness(t)
	rec, err := reconciler.New(h.manager)
	require.NoError(t, err)
	conv, err := oracle.NewConverter(h.mem, h.mem, testWant)
	require.NoError(t, err)

	_, err = NewController(Config{Position: h.manager, Converter: conv})
	assert.Error(t, err)

	_, err = NewController(Config{Reconciler: rec, Converter: conv})
	assert.Error(t, err)

	_, err = NewController(Config{Reconciler: rec, Position: h.manager})
	assert.Error(t, err)

	// Store is optional.
	_, err = NewController(Config{Reconciler: rec, Position: h.manager, Converter: conv})
	assert.NoError(t, err)
}

func TestRunOnce_SkipsWhenDebtSourceFails(t *testing.T) {
	h := newHarness(t)
	h.mem.SetBalance(h.mem.ReceiptID(), testHolder, sdkmath.NewInt(1000))

	h.controller.runOnce(context.Background(), fixedDebt{err: errors.New("rpc down")})
	assert.Empty(t, h.store.reports)

	h.controller.runOnce(context.Background(), fixedDebt{debt: sdkmath.NewInt(600)})
	assert.Len(t, h.store.reports, 1)
}
