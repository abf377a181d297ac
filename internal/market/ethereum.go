package market

// ethereum.go — live lending-market gateway backed by an EVM chain.
//
// The lending pool is an Aave-style market: deposit() mints a receipt token
// 1:1, withdraw() redeems up to the pool's instantly-available liquidity.
// This file handles:
//   - ERC-20 allowance checks/setup ahead of deposits
//   - deposit/withdraw transaction submission and confirmation
//   - read-only calls for balances, decimals, prices and vault debt
//
// Every contract address is injected at construction; nothing is compiled in.

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/logger"
)

const (
	// Conservative gas ceilings; actual usage is far lower.
	depositGasLimit  = uint64(400_000)
	withdrawGasLimit = uint64(500_000)
	approvalGasLimit = uint64(80_000)

	txConfirmTimeout = 2 * time.Minute
)

var ErrTransactionReverted = errors.New("transaction reverted")

// Contract ABIs
var (
	erc20ABI        abi.ABI
	poolABI         abi.ABI
	oracleABI       abi.ABI
	vaultABI        abi.ABI
	dataProviderABI abi.ABI
)

func init() {
	mustParse := func(name, body string) abi.ABI {
		parsed, err := abi.JSON(strings.NewReader(body))
		if err != nil {
			panic(name + " abi parse: " + err.Error())
		}
		return parsed
	}

	erc20ABI = mustParse("erc20", `[
		{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`)

	poolABI = mustParse("pool", `[
		{"name":"deposit","type":"function","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
		{"name":"withdraw","type":"function","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`)

	oracleABI = mustParse("oracle", `[
		{"name":"getAssetPrice","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`)

	vaultABI = mustParse("vault", `[
		{"name":"debtOutstanding","type":"function","stateMutability":"view","inputs":[{"name":"strategy","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`)

	dataProviderABI = mustParse("dataProvider", `[
		{"name":"getReserveTokensAddresses","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"aTokenAddress","type":"address"},{"name":"stableDebtTokenAddress","type":"address"},{"name":"variableDebtTokenAddress","type":"address"}]}
	]`)
}

// EthMarket implements Gateway, PriceService and BalanceLedger against live
// contracts, and exposes the orchestrating vault's debtOutstanding view as
// the daemon's debt source.
type EthMarket struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	account common.Address
	chainID *big.Int

	pool         common.Address
	dataProvider common.Address
	oracle       common.Address
	vault        common.Address

	logger zerolog.Logger
}

// EthMarketConfig holds the wiring for a live market connection.
type EthMarketConfig struct {
	Client          *ethclient.Client
	PrivateKeyHex   string
	ChainID         int64
	LendingPool     string
	DataProvider    string
	PriceOracle     string
	Vault           string
	StrategyAccount string
}

// NewEthMarket validates the configuration and returns a live market client.
func NewEthMarket(cfg EthMarketConfig) (*EthMarket, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: eth client cannot be nil", ErrInvalidGateway)
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("%w: chain ID must be positive", ErrInvalidGateway)
	}
	for name, addr := range map[string]string{
		"lending pool":  cfg.LendingPool,
		"data provider": cfg.DataProvider,
		"price oracle":  cfg.PriceOracle,
		"vault":         cfg.Vault,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: %s address %q is not a valid address", ErrInvalidGateway, name, addr)
		}
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid strategy private key: %v", ErrInvalidGateway, err)
	}
	account := crypto.PubkeyToAddress(key.PublicKey)
	if cfg.StrategyAccount != "" && !strings.EqualFold(account.Hex(), cfg.StrategyAccount) {
		return nil, fmt.Errorf("%w: key derives %s but STRATEGY_ACCOUNT is %s", ErrInvalidGateway, account.Hex(), cfg.StrategyAccount)
	}

	return &EthMarket{
		client:       cfg.Client,
		key:          key,
		account:      account,
		chainID:      big.NewInt(cfg.ChainID),
		pool:         common.HexToAddress(cfg.LendingPool),
		dataProvider: common.HexToAddress(cfg.DataProvider),
		oracle:       common.HexToAddress(cfg.PriceOracle),
		vault:        common.HexToAddress(cfg.Vault),
		logger:       logger.GetForComponent("eth_market"),
	}, nil
}

// Account returns the strategy account derived from the signing key.
func (e *EthMarket) Account() string { return e.account.Hex() }

// call performs a read-only contract call and unpacks the outputs.
func (e *EthMarket) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	output, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}

// send signs, submits and confirms a state-changing transaction.
func (e *EthMarket) send(ctx context.Context, contract common.Address, parsed abi.ABI, gasLimit uint64, method string, args ...interface{}) error {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s transaction: %w", method, err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.account)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return fmt.Errorf("failed to sign %s transaction: %w", method, err)
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send %s transaction: %w", method, err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, txConfirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(confirmCtx, e.client, signed)
	if err != nil {
		return fmt.Errorf("failed to confirm %s transaction %s: %w", method, signed.Hash(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s transaction %s", ErrTransactionReverted, method, signed.Hash())
	}

	e.logger.Info().
		Str("method", method).
		Str("txHash", signed.Hash().Hex()).
		Uint64("gasUsed", receipt.GasUsed).
		Msg("Transaction confirmed")
	return nil
}

// ensureAllowance approves the pool to pull amount of the asset if the
// current allowance is insufficient.
func (e *EthMarket) ensureAllowance(ctx context.Context, asset common.Address, amount *big.Int) error {
	values, err := e.call(ctx, asset, erc20ABI, "allowance", e.account, e.pool)
	if err != nil {
		return err
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return fmt.Errorf("unexpected allowance result type %T", values[0])
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	e.logger.Info().
		Str("asset", asset.Hex()).
		Str("amount", amount.String()).
		Msg("Granting lending pool allowance")
	return e.send(ctx, asset, erc20ABI, approvalGasLimit, "approve", e.pool, amount)
}

// GetReserveInfo implements Gateway via the protocol data provider.
func (e *EthMarket) GetReserveInfo(ctx context.Context, assetID string) (ReserveInfo, error) {
	if !common.IsHexAddress(assetID) {
		return ReserveInfo{}, fmt.Errorf("%w: %q is not an address", ErrUnknownAsset, assetID)
	}
	values, err := e.call(ctx, e.dataProvider, dataProviderABI, "getReserveTokensAddresses", common.HexToAddress(assetID))
	if err != nil {
		return ReserveInfo{}, err
	}
	receipt, ok := values[0].(common.Address)
	if !ok {
		return ReserveInfo{}, fmt.Errorf("unexpected receipt token result type %T", values[0])
	}
	if receipt == (common.Address{}) {
		return ReserveInfo{}, fmt.Errorf("%w: no reserve for %s", ErrUnknownAsset, assetID)
	}
	return ReserveInfo{ReceiptToken: receipt.Hex()}, nil
}

// Deposit implements Gateway: allowance first, then the pool deposit.
func (e *EthMarket) Deposit(ctx context.Context, assetID string, amount sdkmath.Int, onBehalfOf string, referralCode uint16) error {
	asset := common.HexToAddress(assetID)
	raw := amount.BigInt()

	if err := e.ensureAllowance(ctx, asset, raw); err != nil {
		return err
	}
	return e.send(ctx, e.pool, poolABI, depositGasLimit, "deposit",
		asset, raw, common.HexToAddress(onBehalfOf), referralCode)
}

// Withdraw implements Gateway. The pool clamps the request to its available
// liquidity, so the amount actually received is measured as the recipient's
// balance delta rather than trusted from the request.
func (e *EthMarket) Withdraw(ctx context.Context, assetID string, amount sdkmath.Int, to string) (sdkmath.Int, error) {
	recipient := common.HexToAddress(to)

	before, err := e.BalanceOf(ctx, assetID, to)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	err = e.send(ctx, e.pool, poolABI, withdrawGasLimit, "withdraw",
		common.HexToAddress(assetID), amount.BigInt(), recipient)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	after, err := e.BalanceOf(ctx, assetID, to)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if after.LT(before) {
		return sdkmath.ZeroInt(), fmt.Errorf("balance decreased across withdrawal: before=%s after=%s", before, after)
	}
	return after.Sub(before), nil
}

// BalanceOf implements BalanceLedger.
func (e *EthMarket) BalanceOf(ctx context.Context, assetID string, holder string) (sdkmath.Int, error) {
	values, err := e.call(ctx, common.HexToAddress(assetID), erc20ABI, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return sdkmath.NewIntFromBigInt(bal), nil
}

// DecimalsOf implements BalanceLedger.
func (e *EthMarket) DecimalsOf(ctx context.Context, assetID string) (uint8, error) {
	values, err := e.call(ctx, common.HexToAddress(assetID), erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals result type %T", values[0])
	}
	return dec, nil
}

// GetAssetPrice implements PriceService.
func (e *EthMarket) GetAssetPrice(ctx context.Context, assetID string) (sdkmath.Int, error) {
	values, err := e.call(ctx, e.oracle, oracleABI, "getAssetPrice", common.HexToAddress(assetID))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	price, ok := values[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unexpected price result type %T", values[0])
	}
	return sdkmath.NewIntFromBigInt(price), nil
}

// DebtOutstanding reads the orchestrating vault's current expectation of what
// this strategy should return.
func (e *EthMarket) DebtOutstanding(ctx context.Context) (sdkmath.Int, error) {
	values, err := e.call(ctx, e.vault, vaultABI, "debtOutstanding", e.account)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	debt, ok := values[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("unexpected debtOutstanding result type %T", values[0])
	}
	return sdkmath.NewIntFromBigInt(debt), nil
}
