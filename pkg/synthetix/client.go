// Package synthetix wires the SDK together: an RPC connection, the contract
// registry of one network, the ERC-7412 engine and the module services.
package synthetix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/archon-research/snx-sdk/internal/adapters/outbound/deployments"
	"github.com/archon-research/snx-sdk/internal/adapters/outbound/memory"
	"github.com/archon-research/snx-sdk/internal/adapters/outbound/pyth"
	"github.com/archon-research/snx-sdk/internal/adapters/outbound/redis"
	"github.com/archon-research/snx-sdk/internal/adapters/outbound/telemetry"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/contract"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/erc7412"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/multicall"
	"github.com/archon-research/snx-sdk/internal/pkg/wei"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
	"github.com/archon-research/snx-sdk/internal/services/core"
	"github.com/archon-research/snx-sdk/internal/services/perps"
	"github.com/archon-research/snx-sdk/internal/services/price_feed"
	"github.com/archon-research/snx-sdk/internal/services/shared"
	"github.com/archon-research/snx-sdk/internal/services/spot"
)

const meterName = "github.com/archon-research/snx-sdk/pkg/synthetix"

var ErrWrongNetwork = errors.New("rpc endpoint is on a different network")

type Config struct {
	RPCURL string

	// NetworkID is the chain the client expects. Zero accepts whatever the
	// node reports.
	NetworkID int64

	// Address owns accounts and sends the prepared transactions.
	Address          common.Address
	DefaultAccountID *big.Int

	// DeploymentsDir holds <networkID>/<Contract>.json files. When empty,
	// Contracts is used with the built-in ABIs.
	DeploymentsDir string
	Contracts      map[string]common.Address

	// PriceServiceURL overrides the network's default Pyth endpoint.
	PriceServiceURL string

	// PriceCacheTTL defaults to 2s. DisablePriceCache turns caching off.
	PriceCacheTTL     time.Duration
	DisablePriceCache bool

	// RedisAddr shares the price cache through Redis instead of process memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FeePerUpdate *big.Int

	// GasBufferPercent pads gas estimates. Nil means 15; zero uses the bare estimate.
	GasBufferPercent *uint64

	TrackingCode   common.Hash
	Referrer       common.Address
	PrefetchPrices bool

	Logger *slog.Logger
}

func ConfigDefaults() Config {
	return Config{
		PriceCacheTTL:    price_feed.ConfigDefaults().CacheTTL,
		FeePerUpdate:     erc7412.DefaultFeePerUpdate,
		GasBufferPercent: erc7412.EngineConfigDefaults().GasBufferPercent,
		TrackingCode:     shared.DefaultTrackingCode,
		Logger:           slog.Default(),
	}
}

// Client is the SDK entry point. Module services are nil on networks where
// the module is not deployed.
type Client struct {
	NetworkID int64
	Address   common.Address

	Engine *erc7412.Engine
	Prices *price_feed.Service
	Core   *core.Service
	Perps  *perps.Service
	Spot   *spot.Service

	rpc      *ethclient.Client
	registry *deployments.Registry
	cache    closer
	logger   *slog.Logger
}

type closer interface {
	Close() error
}

// New connects to config.RPCURL and builds every service the network's
// deployments support.
func New(ctx context.Context, config Config) (*Client, error) {
	if config.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	applyDefaults(&config, ConfigDefaults())
	logger := config.Logger.With("component", "synthetix-client")

	rpc, err := ethclient.DialContext(ctx, config.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to rpc: %w", err)
	}

	c, err := build(ctx, config, rpc, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	return c, nil
}

func build(ctx context.Context, config Config, rpc *ethclient.Client, logger *slog.Logger) (*Client, error) {
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting chain id: %w", err)
	}
	networkID := chainID.Int64()
	if config.NetworkID != 0 && config.NetworkID != networkID {
		return nil, fmt.Errorf("%w: expected %d, node reports %d", ErrWrongNetwork, config.NetworkID, networkID)
	}

	registry, err := loadRegistry(config, networkID)
	if err != nil {
		return nil, err
	}

	forwarderAddress := deployments.TrustedMulticallForwarderAddress
	if registry.Has("TrustedMulticallForwarder") {
		h, err := registry.Contract("TrustedMulticallForwarder")
		if err != nil {
			return nil, err
		}
		forwarderAddress = h.Address()
	}
	forwarder, err := multicall.NewClient(rpc, forwarderAddress)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder client: %w", err)
	}

	upstream, err := pyth.NewClient(pyth.ClientConfig{
		BaseURL: config.PriceServiceURL,
		ChainID: networkID,
		Logger:  config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating price service client: %w", err)
	}

	cache, err := newCache(config, networkID)
	if err != nil {
		return nil, err
	}
	ready := false
	defer func() {
		if !ready {
			_ = cache.Close()
		}
	}()

	metrics, err := telemetry.NewMetrics(meterName)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	ttl := config.PriceCacheTTL
	if config.DisablePriceCache {
		ttl = 0
	}
	prices, err := price_feed.NewService(price_feed.Config{
		ChainID:  networkID,
		CacheTTL: ttl,
		Logger:   config.Logger,
	}, upstream, cache, metrics)
	if err != nil {
		return nil, fmt.Errorf("creating price feed service: %w", err)
	}

	tel, err := erc7412.NewTelemetry()
	if err != nil {
		return nil, fmt.Errorf("creating engine telemetry: %w", err)
	}

	engine, err := erc7412.NewEngine(erc7412.EngineConfig{
		Forwarder:        forwarder,
		Prices:           prices,
		Estimator:        rpc,
		FeePerUpdate:     config.FeePerUpdate,
		GasBufferPercent: config.GasBufferPercent,
		ChainID:          chainID,
		Logger:           config.Logger,
		Telemetry:        tel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	c := &Client{
		NetworkID: networkID,
		Address:   config.Address,
		Engine:    engine,
		Prices:    prices,
		rpc:       rpc,
		registry:  registry,
		cache:     cache,
		logger:    logger,
	}

	c.Core, err = optional(logger, "core", func() (*core.Service, error) {
		return core.NewService(core.Config{
			Address:          config.Address,
			DefaultAccountID: config.DefaultAccountID,
			Logger:           config.Logger,
		}, engine, registry)
	})
	if err != nil {
		return nil, err
	}

	c.Perps, err = optional(logger, "perps", func() (*perps.Service, error) {
		return perps.NewService(perps.Config{
			ChainID:          networkID,
			Address:          config.Address,
			DefaultAccountID: config.DefaultAccountID,
			TrackingCode:     config.TrackingCode,
			Referrer:         config.Referrer,
			FeePerUpdate:     config.FeePerUpdate,
			PrefetchPrices:   config.PrefetchPrices,
			Logger:           config.Logger,
		}, engine, registry, prices)
	})
	if err != nil {
		return nil, err
	}

	c.Spot, err = optional(logger, "spot", func() (*spot.Service, error) {
		return spot.NewService(spot.Config{
			ChainID:    networkID,
			Address:    config.Address,
			Referrer:   config.Referrer,
			Settlement: upstream,
			Logger:     config.Logger,
		}, engine, registry)
	})
	if err != nil {
		return nil, err
	}

	ready = true
	logger.Info("synthetix client ready",
		"network", networkID,
		"forwarder", forwarderAddress.Hex(),
		"contracts", len(registry.Names()),
		"core", c.Core != nil,
		"perps", c.Perps != nil,
		"spot", c.Spot != nil)

	return c, nil
}

func applyDefaults(config *Config, defaults Config) {
	if config.PriceCacheTTL == 0 {
		config.PriceCacheTTL = defaults.PriceCacheTTL
	}
	if config.FeePerUpdate == nil {
		config.FeePerUpdate = defaults.FeePerUpdate
	}
	if config.GasBufferPercent == nil {
		config.GasBufferPercent = defaults.GasBufferPercent
	}
	if config.TrackingCode == (common.Hash{}) {
		config.TrackingCode = defaults.TrackingCode
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

func loadRegistry(config Config, networkID int64) (*deployments.Registry, error) {
	if config.DeploymentsDir != "" {
		registry, err := deployments.LoadDir(config.DeploymentsDir, networkID)
		if err != nil {
			return nil, fmt.Errorf("loading deployments: %w", err)
		}
		return registry, nil
	}
	registry, err := deployments.NewStaticRegistry(networkID, config.Contracts)
	if err != nil {
		return nil, fmt.Errorf("building contract registry: %w", err)
	}
	return registry, nil
}

func newCache(config Config, networkID int64) (interface {
	outbound.PriceUpdateCache
	closer
}, error) {
	if config.RedisAddr == "" {
		return memory.NewPriceUpdateCache(), nil
	}
	cache, err := redis.NewPriceUpdateCache(redis.Config{
		Addr:      config.RedisAddr,
		Password:  config.RedisPassword,
		DB:        config.RedisDB,
		KeyPrefix: redis.ConfigDefaults().KeyPrefix,
		ChainID:   networkID,
	}, config.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating redis price cache: %w", err)
	}
	return cache, nil
}

// optional builds a module service, returning nil when the module's
// contracts are missing from the registry.
func optional[T any](logger *slog.Logger, module string, newService func() (*T, error)) (*T, error) {
	svc, err := newService()
	if errors.Is(err, deployments.ErrContractNotFound) {
		logger.Debug("module not deployed", "module", module, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s service: %w", module, err)
	}
	return svc, nil
}

// Registry returns the contract registry of the connected network.
func (c *Client) Registry() *deployments.Registry {
	return c.registry
}

// GetETHBalance returns the native balance of address. A zero address means
// the configured address.
func (c *Client) GetETHBalance(ctx context.Context, address common.Address) (decimal.Decimal, error) {
	if address == (common.Address{}) {
		address = c.Address
	}
	balance, err := c.rpc.BalanceAt(ctx, address, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting eth balance: %w", err)
	}
	return wei.ToEther(balance), nil
}

// GetSUSDBalance returns the sUSD balance of address. A zero address means
// the configured address.
func (c *Client) GetSUSDBalance(ctx context.Context, address common.Address) (decimal.Decimal, error) {
	if address == (common.Address{}) {
		address = c.Address
	}
	token, err := c.usdToken(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	v, err := c.Engine.Call(ctx, token, "balanceOf", []any{address}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting sUSD balance: %w", err)
	}
	return shared.Ether(v)
}

func (c *Client) usdToken(ctx context.Context) (outbound.ContractHandle, error) {
	if c.registry.Has("USDProxy") {
		return c.registry.Contract("USDProxy")
	}
	if c.Core == nil {
		return nil, fmt.Errorf("%w: USDProxy on network %d", deployments.ErrContractNotFound, c.NetworkID)
	}
	address, err := c.Core.GetUSDToken(ctx)
	if err != nil {
		return nil, err
	}
	return contract.NewERC20("USDProxy", address)
}

// Approve prepares an approval of spender on token, sent straight to the
// token. A nil amount approves the maximum uint256.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *decimal.Decimal) (*outbound.TxParams, error) {
	handle, err := contract.NewERC20("ERC20", token)
	if err != nil {
		return nil, err
	}
	value := wei.MaxUint256
	if amount != nil {
		value = wei.FromEther(*amount)
	}

	c.logger.Info("preparing approval", "token", token.Hex(), "spender", spender.Hex(), "amount", value)
	tx, err := c.Engine.WriteDirect(ctx, handle, "approve", []any{spender, value}, &erc7412.WriteOpts{From: c.Address})
	if err != nil {
		return nil, fmt.Errorf("preparing approve: %w", err)
	}
	return tx, nil
}

// WrapETH prepares wrapping amount of ETH into WETH, or unwrapping when
// amount is negative.
func (c *Client) WrapETH(ctx context.Context, amount decimal.Decimal) (*outbound.TxParams, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("wrap amount must not be zero")
	}
	weth, err := c.registry.Contract("WETH")
	if err != nil {
		return nil, fmt.Errorf("wrapping eth: %w", err)
	}

	var (
		method string
		args   []any
		opts   = &erc7412.WriteOpts{From: c.Address}
	)
	if amount.IsNegative() {
		method, args = "withdraw", []any{wei.FromEther(amount.Neg())}
	} else {
		method, opts.Value = "deposit", wei.FromEther(amount)
	}

	c.logger.Info("preparing eth wrap", "method", method, "amount", amount)
	tx, err := c.Engine.WriteDirect(ctx, weth, method, args, opts)
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", method, err)
	}
	return tx, nil
}

// Close releases the price cache and the rpc connection.
func (c *Client) Close() error {
	err := c.cache.Close()
	c.rpc.Close()
	return err
}
