// Package spot exposes Synthetix V3 spot markets on top of the oracle-aware
// call engine. Synth tokens are bound by signature since they have no
// deployment files of their own.
package spot

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/contract"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/erc7412"
	"github.com/archon-research/snx-sdk/internal/pkg/retry"
	"github.com/archon-research/snx-sdk/internal/pkg/wei"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
	"github.com/archon-research/snx-sdk/internal/services/shared"
)

// Side is the direction of a spot order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Async order types of the spot market.
const (
	orderTypeAsyncBuy  uint8 = 3
	orderTypeAsyncSell uint8 = 4
)

// DefaultSettlementStrategyID is the Pyth settlement strategy.
const DefaultSettlementStrategyID = 2

// settlementFee is the value attached to settlePythOrder for the Pyth update.
var settlementFee = big.NewInt(1)

var spotMarkets = map[int64]shared.MarketTable{
	420: {
		0: "sUSD",
		1: "BTC",
		2: "ETH",
	},
	84531: {
		0: "sUSD",
		1: "BTC",
		2: "ETH",
		3: "LINK",
		4: "OP",
		5: "SNX",
	},
}

type Config struct {
	ChainID int64

	// Address holds the synths and sends the prepared transactions.
	Address  common.Address
	Referrer common.Address

	// Settlement fetches the price updates that settle async orders. Without
	// it SettlePythOrder fails.
	Settlement outbound.SettlementDataProvider

	Logger *slog.Logger
}

// SettlementStrategy describes how a market's async orders settle.
type SettlementStrategy struct {
	ID                        uint64
	StrategyType              uint8
	SettlementDelay           time.Duration
	SettlementWindowDuration  time.Duration
	PriceVerificationContract common.Address
	FeedID                    [32]byte
	URL                       string
	SettlementReward          decimal.Decimal
	PriceDeviationTolerance   decimal.Decimal
	MinimumUSDExchangeAmount  decimal.Decimal
	MaxRoundingLoss           decimal.Decimal
	Disabled                  bool
}

// Order is an async order claim. SettledAt is zero until the order settles.
type Order struct {
	ID                      uint64
	MarketID                uint64
	Owner                   common.Address
	OrderType               uint8
	AmountEscrowed          decimal.Decimal
	SettlementStrategyID    uint64
	SettlementTime          time.Time
	MinimumSettlementAmount decimal.Decimal
	SettledAt               time.Time
	Referrer                common.Address

	// SettlementStrategy is set when requested from GetOrder.
	SettlementStrategy *SettlementStrategy
}

// SettleOpts bounds how long SettlePythOrder polls for settlement data.
type SettleOpts struct {
	// MaxRetries defaults to 10.
	MaxRetries int
	// RetryDelay defaults to 2s.
	RetryDelay time.Duration
}

type Service struct {
	engine      shared.Engine
	marketProxy outbound.ContractHandle
	usdProxy    outbound.ContractHandle
	settlement  outbound.SettlementDataProvider
	markets     shared.MarketTable
	address     common.Address
	referrer    common.Address
	now         func() time.Time
	logger      *slog.Logger
}

func NewService(config Config, engine shared.Engine, registry outbound.ContractRegistry) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("contract registry is required")
	}

	marketProxy, err := registry.Contract("SpotMarketProxy")
	if err != nil {
		return nil, fmt.Errorf("spot is not deployed on this network: %w", err)
	}
	usdProxy, err := registry.Contract("USDProxy")
	if err != nil {
		return nil, fmt.Errorf("spot is not deployed on this network: %w", err)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Service{
		engine:      engine,
		marketProxy: marketProxy,
		usdProxy:    usdProxy,
		settlement:  config.Settlement,
		markets:     spotMarkets[config.ChainID],
		address:     config.Address,
		referrer:    config.Referrer,
		now:         time.Now,
		logger:      config.Logger.With("component", "spot-service"),
	}, nil
}

// ResolveMarket fills in the missing half of a market id/name pair.
func (s *Service) ResolveMarket(id *uint64, name string) (uint64, string, error) {
	return s.markets.Resolve(id, name)
}

// GetSynthAddress returns the token address of a market's synth. Market 0 is
// the USD token itself.
func (s *Service) GetSynthAddress(ctx context.Context, marketID uint64) (common.Address, error) {
	if marketID == 0 {
		return s.usdProxy.Address(), nil
	}
	v, err := s.engine.Call(ctx, s.marketProxy, "getSynth", []any{shared.Uint(marketID)}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("getting synth for market %d: %w", marketID, err)
	}
	return shared.Address(v)
}

func (s *Service) synth(ctx context.Context, id *uint64, name string) (outbound.ContractHandle, string, error) {
	marketID, marketName, err := s.ResolveMarket(id, name)
	if err != nil {
		return nil, "", err
	}
	address, err := s.GetSynthAddress(ctx, marketID)
	if err != nil {
		return nil, "", err
	}
	handle, err := contract.NewERC20(marketName, address)
	if err != nil {
		return nil, "", err
	}
	return handle, marketName, nil
}

// GetBalance returns owner's synth balance. A zero owner means the configured address.
func (s *Service) GetBalance(ctx context.Context, owner common.Address, id *uint64, name string) (decimal.Decimal, error) {
	if owner == (common.Address{}) {
		owner = s.address
	}
	token, marketName, err := s.synth(ctx, id, name)
	if err != nil {
		return decimal.Zero, err
	}

	v, err := s.engine.Call(ctx, token, "balanceOf", []any{owner}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting %s balance: %w", marketName, err)
	}
	return shared.Ether(v)
}

// GetAllowance returns how much of owner's synth spender may move.
func (s *Service) GetAllowance(ctx context.Context, spender, owner common.Address, id *uint64, name string) (decimal.Decimal, error) {
	if owner == (common.Address{}) {
		owner = s.address
	}
	token, marketName, err := s.synth(ctx, id, name)
	if err != nil {
		return decimal.Zero, err
	}

	v, err := s.engine.Call(ctx, token, "allowance", []any{owner, spender}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting %s allowance: %w", marketName, err)
	}
	return shared.Ether(v)
}

// Approve prepares an approval for spender, sent straight to the synth so
// that the holder is msg.sender. A nil amount approves the maximum uint256.
func (s *Service) Approve(ctx context.Context, spender common.Address, amount *decimal.Decimal, id *uint64, name string) (*outbound.TxParams, error) {
	token, marketName, err := s.synth(ctx, id, name)
	if err != nil {
		return nil, err
	}

	value := wei.MaxUint256
	if amount != nil {
		value = wei.FromEther(*amount)
	}

	s.logger.Info("preparing approval", "spender", spender.Hex(), "amount", value, "market", marketName)
	tx, err := s.engine.WriteDirect(ctx, token, "approve", []any{spender, value}, &erc7412.WriteOpts{From: s.address})
	if err != nil {
		return nil, fmt.Errorf("preparing approve: %w", err)
	}
	return tx, nil
}

// CommitOrder prepares an async buy or sell of size on a market. A nil
// settlementStrategyID uses DefaultSettlementStrategyID.
func (s *Service) CommitOrder(ctx context.Context, side Side, size decimal.Decimal, id *uint64, name string, settlementStrategyID *uint64) (*outbound.TxParams, error) {
	var orderType uint8
	switch side {
	case Buy:
		orderType = orderTypeAsyncBuy
	case Sell:
		orderType = orderTypeAsyncSell
	default:
		return nil, fmt.Errorf("invalid order side %q", side)
	}
	if !size.IsPositive() {
		return nil, fmt.Errorf("order size must be positive, got %s", size)
	}

	marketID, marketName, err := s.ResolveMarket(id, name)
	if err != nil {
		return nil, err
	}
	strategyID := uint64(DefaultSettlementStrategyID)
	if settlementStrategyID != nil {
		strategyID = *settlementStrategyID
	}

	s.logger.Info("preparing spot order", "side", side, "size", size, "market", marketName, "marketID", marketID)

	args := []any{
		shared.Uint(marketID),
		orderType,
		wei.FromEther(size),
		shared.Uint(strategyID),
		new(big.Int), // minimumSettlementAmount
		s.referrer,
	}
	tx, err := s.engine.Write(ctx, s.marketProxy, "commitOrder", args, &erc7412.WriteOpts{From: s.address})
	if err != nil {
		return nil, fmt.Errorf("preparing commitOrder: %w", err)
	}
	return tx, nil
}

type settlementStrategyOutput struct {
	StrategyType              uint8
	SettlementDelay           *big.Int
	SettlementWindowDuration  *big.Int
	PriceVerificationContract common.Address
	FeedId                    [32]byte
	Url                       string
	SettlementReward          *big.Int
	PriceDeviationTolerance   *big.Int
	MinimumUsdExchangeAmount  *big.Int
	MaxRoundingLoss           *big.Int
	Disabled                  bool
}

// GetSettlementStrategy reads one of a market's settlement strategies.
func (s *Service) GetSettlementStrategy(ctx context.Context, strategyID uint64, id *uint64, name string) (SettlementStrategy, error) {
	marketID, marketName, err := s.ResolveMarket(id, name)
	if err != nil {
		return SettlementStrategy{}, err
	}

	v, err := s.engine.Call(ctx, s.marketProxy, "getSettlementStrategy", []any{shared.Uint(marketID), shared.Uint(strategyID)}, nil)
	if err != nil {
		return SettlementStrategy{}, fmt.Errorf("getting settlement strategy %d of %s: %w", strategyID, marketName, err)
	}
	var out settlementStrategyOutput
	if err := shared.Tuple(v, &out); err != nil {
		return SettlementStrategy{}, fmt.Errorf("decoding settlement strategy %d of %s: %w", strategyID, marketName, err)
	}

	return SettlementStrategy{
		ID:                        strategyID,
		StrategyType:              out.StrategyType,
		SettlementDelay:           shared.Seconds(out.SettlementDelay),
		SettlementWindowDuration:  shared.Seconds(out.SettlementWindowDuration),
		PriceVerificationContract: out.PriceVerificationContract,
		FeedID:                    out.FeedId,
		URL:                       out.Url,
		SettlementReward:          wei.ToEther(out.SettlementReward),
		PriceDeviationTolerance:   wei.ToEther(out.PriceDeviationTolerance),
		MinimumUSDExchangeAmount:  wei.ToEther(out.MinimumUsdExchangeAmount),
		MaxRoundingLoss:           wei.ToEther(out.MaxRoundingLoss),
		Disabled:                  out.Disabled,
	}, nil
}

type asyncOrderClaimOutput struct {
	Id                      *big.Int
	Owner                   common.Address
	OrderType               uint8
	AmountEscrowed          *big.Int
	SettlementStrategyId    *big.Int
	SettlementTime          *big.Int
	MinimumSettlementAmount *big.Int
	SettledAt               *big.Int
	Referrer                common.Address
}

// GetOrder reads an async order claim, with its settlement strategy when
// fetchStrategy is set.
func (s *Service) GetOrder(ctx context.Context, asyncOrderID uint64, id *uint64, name string, fetchStrategy bool) (Order, error) {
	marketID, marketName, err := s.ResolveMarket(id, name)
	if err != nil {
		return Order{}, err
	}

	v, err := s.engine.Call(ctx, s.marketProxy, "getAsyncOrderClaim", []any{shared.Uint(marketID), shared.Uint(asyncOrderID)}, nil)
	if err != nil {
		return Order{}, fmt.Errorf("getting order %d on %s: %w", asyncOrderID, marketName, err)
	}
	var out asyncOrderClaimOutput
	if err := shared.Tuple(v, &out); err != nil {
		return Order{}, fmt.Errorf("decoding order %d on %s: %w", asyncOrderID, marketName, err)
	}
	if !out.Id.IsUint64() || !out.SettlementStrategyId.IsUint64() {
		return Order{}, fmt.Errorf("order %d on %s has out of range ids", asyncOrderID, marketName)
	}

	order := Order{
		ID:                      out.Id.Uint64(),
		MarketID:                marketID,
		Owner:                   out.Owner,
		OrderType:               out.OrderType,
		AmountEscrowed:          wei.ToEther(out.AmountEscrowed),
		SettlementStrategyID:    out.SettlementStrategyId.Uint64(),
		SettlementTime:          shared.UnixTime(out.SettlementTime),
		MinimumSettlementAmount: wei.ToEther(out.MinimumSettlementAmount),
		SettledAt:               shared.UnixTime(out.SettledAt),
		Referrer:                out.Referrer,
	}

	if fetchStrategy {
		strategy, err := s.GetSettlementStrategy(ctx, order.SettlementStrategyID, &marketID, "")
		if err != nil {
			return Order{}, err
		}
		order.SettlementStrategy = &strategy
	}
	return order, nil
}

// SettlePythOrder waits for an async order's settlement time, fetches the
// Pyth update its strategy points at and prepares the settlePythOrder call.
func (s *Service) SettlePythOrder(ctx context.Context, asyncOrderID uint64, id *uint64, name string, opts SettleOpts) (*outbound.TxParams, error) {
	if s.settlement == nil {
		return nil, fmt.Errorf("settlement data provider is required to settle orders")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 10
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}

	order, err := s.GetOrder(ctx, asyncOrderID, id, name, true)
	if err != nil {
		return nil, err
	}
	if !order.SettledAt.IsZero() {
		return nil, fmt.Errorf("order %d on market %d already settled at %s", order.ID, order.MarketID, order.SettledAt)
	}

	if wait := order.SettlementTime.Sub(s.now()); wait > 0 {
		s.logger.Info("waiting for settlement time", "orderID", order.ID, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	endpoint := settlementURL(order.SettlementStrategy, order.SettlementTime)
	update, err := retry.Do(ctx, retry.Config{
		MaxRetries:     opts.MaxRetries,
		InitialBackoff: opts.RetryDelay,
		MaxBackoff:     opts.RetryDelay,
	}, nil, func(attempt int, err error, _ time.Duration) {
		s.logger.Info("settlement data not available, retrying", "orderID", order.ID, "attempt", attempt, "error", err)
	}, func() ([]byte, error) {
		return s.settlement.GetSettlementData(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching settlement data for order %d: %w", order.ID, err)
	}

	extraData := append(common.LeftPadBytes(shared.Uint(order.MarketID).Bytes(), 32), common.LeftPadBytes(shared.Uint(order.ID).Bytes(), 32)...)

	s.logger.Info("preparing settlement", "orderID", order.ID, "marketID", order.MarketID, "updateBytes", len(update))
	tx, err := s.engine.Write(ctx, s.marketProxy, "settlePythOrder", []any{update, extraData}, &erc7412.WriteOpts{
		Value: new(big.Int).Set(settlementFee),
		From:  s.address,
	})
	if err != nil {
		return nil, fmt.Errorf("preparing settlePythOrder: %w", err)
	}
	return tx, nil
}

// settlementURL fills the strategy URL's {data} placeholder with the feed id
// followed by the settlement time, as one hex string.
func settlementURL(strategy *SettlementStrategy, settlementTime time.Time) string {
	timeHex := hexutil.EncodeUint64(uint64(settlementTime.Unix()))
	data := "0x" + hex.EncodeToString(strategy.FeedID[:]) + strings.TrimPrefix(timeHex, "0x")
	return strings.ReplaceAll(strategy.URL, "{data}", data)
}
