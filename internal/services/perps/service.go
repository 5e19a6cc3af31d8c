// Package perps exposes Synthetix Perps V3 markets and accounts on top of the
// oracle-aware call engine.
package perps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/erc7412"
	"github.com/archon-research/snx-sdk/internal/pkg/wei"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
	"github.com/archon-research/snx-sdk/internal/services/price_feed"
	"github.com/archon-research/snx-sdk/internal/services/shared"
)

const (
	// Pyth price updates, accepted if no older than 30 seconds.
	oracleUpdateType         uint8  = 1
	oracleStalenessTolerance uint64 = 30
)

var ErrNoAccount = errors.New("no perps account")

type Config struct {
	ChainID int64

	// Address owns the accounts and sends the prepared transactions.
	Address common.Address

	// DefaultAccountID is used when an operation gets a nil account id. When
	// unset, the first account owned by Address is used.
	DefaultAccountID *big.Int

	TrackingCode common.Hash
	Referrer     common.Address

	// SlippagePercent sets the acceptable price of orders committed without
	// one, relative to the index price.
	SlippagePercent decimal.Decimal

	// FeePerUpdate is the value attached per price update by PrepareOracleCall.
	FeePerUpdate *big.Int

	// PrefetchPrices prepends a fulfillment for every market to summary reads,
	// saving the round trips of discovering stale feeds one revert at a time.
	PrefetchPrices bool

	Logger *slog.Logger
}

func ConfigDefaults() Config {
	return Config{
		ChainID:         10,
		TrackingCode:    shared.DefaultTrackingCode,
		SlippagePercent: decimal.NewFromInt(shared.DefaultSlippagePercent),
		FeePerUpdate:    erc7412.DefaultFeePerUpdate,
		Logger:          slog.Default(),
	}
}

// MarketSummary is the state of one perps market, in ether units.
type MarketSummary struct {
	MarketID               uint64
	MarketName             string
	Skew                   decimal.Decimal
	Size                   decimal.Decimal
	MaxOpenInterest        decimal.Decimal
	CurrentFundingRate     decimal.Decimal
	CurrentFundingVelocity decimal.Decimal
	IndexPrice             decimal.Decimal
}

// RequiredMargins are the margin requirements of an account's open positions.
type RequiredMargins struct {
	Initial              decimal.Decimal
	Maintenance          decimal.Decimal
	MaxLiquidationReward decimal.Decimal
}

// Order describes an order to commit. Market is resolved by MarketID if set,
// otherwise by MarketName.
type Order struct {
	MarketID   *uint64
	MarketName string

	// Size is positive for longs and negative for shorts.
	Size decimal.Decimal

	// AcceptablePrice of zero derives the price from the index price and the
	// configured slippage.
	AcceptablePrice decimal.Decimal

	SettlementStrategyID uint64
	AccountID            *big.Int
}

// SettlementStrategy describes how a perps market settles committed orders.
type SettlementStrategy struct {
	ID                        uint64
	StrategyType              uint8
	SettlementDelay           time.Duration
	SettlementWindowDuration  time.Duration
	PriceWindowDuration       time.Duration
	PriceVerificationContract common.Address
	FeedID                    [32]byte
	URL                       string
	SettlementReward          decimal.Decimal
	PriceDeviationTolerance   decimal.Decimal
	Disabled                  bool
}

// OpenOrder is an account's pending order commitment. A zero SizeDelta means
// the account has none.
type OpenOrder struct {
	AccountID            *big.Int
	MarketID             uint64
	MarketName           string
	SettlementTime       time.Time
	SizeDelta            decimal.Decimal
	SettlementStrategyID uint64
	AcceptablePrice      decimal.Decimal
	TrackingCode         common.Hash
	Referrer             common.Address

	// SettlementStrategy is set when requested from GetOrder and an order is pending.
	SettlementStrategy *SettlementStrategy
}

type Service struct {
	engine       shared.Engine
	prices       outbound.PriceUpdateProvider
	marketProxy  outbound.ContractHandle
	accountProxy outbound.ContractHandle
	oracle       outbound.ContractHandle
	markets      shared.MarketTable
	collaterals  shared.MarketTable
	config       Config
	logger       *slog.Logger
}

// NewService creates the perps service. The ERC7412 contract is optional;
// without it PrepareOracleCall is unavailable.
func NewService(config Config, engine shared.Engine, registry outbound.ContractRegistry, prices outbound.PriceUpdateProvider) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("contract registry is required")
	}

	marketProxy, err := registry.Contract("PerpsMarketProxy")
	if err != nil {
		return nil, fmt.Errorf("perps is not deployed on this network: %w", err)
	}
	accountProxy, err := registry.Contract("PerpsAccountProxy")
	if err != nil {
		return nil, fmt.Errorf("perps is not deployed on this network: %w", err)
	}

	var oracle outbound.ContractHandle
	if registry.Has("ERC7412") {
		if oracle, err = registry.Contract("ERC7412"); err != nil {
			return nil, err
		}
	}

	defaults := ConfigDefaults()
	if config.TrackingCode == (common.Hash{}) {
		config.TrackingCode = defaults.TrackingCode
	}
	if config.SlippagePercent.IsZero() {
		config.SlippagePercent = defaults.SlippagePercent
	}
	if config.FeePerUpdate == nil {
		config.FeePerUpdate = defaults.FeePerUpdate
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Service{
		engine:       engine,
		prices:       prices,
		marketProxy:  marketProxy,
		accountProxy: accountProxy,
		oracle:       oracle,
		markets:      perpsMarkets[config.ChainID],
		collaterals:  collateralMarkets[config.ChainID],
		config:       config,
		logger:       config.Logger.With("component", "perps-service"),
	}, nil
}

// ResolveMarket fills in the missing half of a market id/name pair.
func (s *Service) ResolveMarket(id *uint64, name string) (uint64, string, error) {
	return s.markets.Resolve(id, name)
}

// ResolveCollateral resolves a margin collateral type.
func (s *Service) ResolveCollateral(id *uint64, name string) (uint64, string, error) {
	return s.collaterals.Resolve(id, name)
}

// PrepareOracleCall builds a fulfillment of the current prices of the named
// markets, all known markets when names is empty. Passed as a prefix call it
// spares the engine discovering each stale feed through a revert.
func (s *Service) PrepareOracleCall(ctx context.Context, names []string) (outbound.Call, error) {
	if s.oracle == nil {
		return outbound.Call{}, fmt.Errorf("ERC7412 oracle is not deployed on this network")
	}
	if s.prices == nil {
		return outbound.Call{}, fmt.Errorf("price provider is required to prepare oracle calls")
	}
	if len(names) == 0 {
		names = s.markets.Names()
	}

	feedIDs, err := price_feed.FeedIDs(s.config.ChainID, names)
	if err != nil {
		return outbound.Call{}, err
	}
	updates, err := s.prices.GetFeedsData(ctx, feedIDs)
	if err != nil {
		return outbound.Call{}, &erc7412.PriceServiceError{FeedIDs: feedIDs, Err: err}
	}

	return erc7412.BuildFulfillment(&erc7412.OracleErrorInfo{
		OracleAddress:      s.oracle.Address(),
		UpdateType:         oracleUpdateType,
		StalenessTolerance: oracleStalenessTolerance,
		FeedIDs:            feedIDs,
	}, updates, s.config.FeePerUpdate)
}

// GetMarketIDs lists every perps market id.
func (s *Service) GetMarketIDs(ctx context.Context) ([]uint64, error) {
	v, err := s.engine.Call(ctx, s.marketProxy, "getMarkets", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting market ids: %w", err)
	}
	raw, err := shared.BigInts(v)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(raw))
	for i, id := range raw {
		if !id.IsUint64() {
			return nil, fmt.Errorf("market id %s out of range", id)
		}
		ids[i] = id.Uint64()
	}
	return ids, nil
}

type marketSummaryOutput struct {
	Skew                   *big.Int
	Size                   *big.Int
	MaxOpenInterest        *big.Int
	CurrentFundingRate     *big.Int
	CurrentFundingVelocity *big.Int
	IndexPrice             *big.Int
}

// GetMarketSummaries reads the summaries of the given markets in one batch,
// in the order given.
func (s *Service) GetMarketSummaries(ctx context.Context, marketIDs []uint64) ([]MarketSummary, error) {
	if len(marketIDs) == 0 {
		return []MarketSummary{}, nil
	}

	inputs := make([][]any, len(marketIDs))
	for i, id := range marketIDs {
		inputs[i] = []any{shared.Uint(id)}
	}

	opts, err := s.readOpts(ctx, marketIDs)
	if err != nil {
		return nil, err
	}

	values, err := s.engine.Multicall(ctx, s.marketProxy, "getMarketSummary", inputs, opts)
	if err != nil {
		return nil, fmt.Errorf("getting market summaries: %w", err)
	}

	summaries := make([]MarketSummary, len(values))
	for i, v := range values {
		var out marketSummaryOutput
		if err := shared.Tuple(v, &out); err != nil {
			return nil, fmt.Errorf("decoding summary of market %d: %w", marketIDs[i], err)
		}
		summaries[i] = MarketSummary{
			MarketID:               marketIDs[i],
			MarketName:             s.markets[marketIDs[i]],
			Skew:                   wei.ToEther(out.Skew),
			Size:                   wei.ToEther(out.Size),
			MaxOpenInterest:        wei.ToEther(out.MaxOpenInterest),
			CurrentFundingRate:     wei.ToEther(out.CurrentFundingRate),
			CurrentFundingVelocity: wei.ToEther(out.CurrentFundingVelocity),
			IndexPrice:             wei.ToEther(out.IndexPrice),
		}
	}
	return summaries, nil
}

// GetMarkets reads every market's summary, keyed by id and by name. Markets
// missing from the network's name table appear only in the id map.
func (s *Service) GetMarkets(ctx context.Context) (map[uint64]MarketSummary, map[string]MarketSummary, error) {
	ids, err := s.GetMarketIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	summaries, err := s.GetMarketSummaries(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[uint64]MarketSummary, len(summaries))
	byName := make(map[string]MarketSummary, len(summaries))
	for _, m := range summaries {
		byID[m.MarketID] = m
		if m.MarketName != "" {
			byName[m.MarketName] = m
		}
	}
	return byID, byName, nil
}

// GetAccountIDs lists the perps account NFTs held by owner. A zero owner
// means the configured address.
func (s *Service) GetAccountIDs(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	if owner == (common.Address{}) {
		owner = s.config.Address
	}

	v, err := s.engine.Call(ctx, s.accountProxy, "balanceOf", []any{owner}, nil)
	if err != nil {
		return nil, fmt.Errorf("getting perps account balance: %w", err)
	}
	balance, err := shared.BigInt(v)
	if err != nil {
		return nil, err
	}
	if !balance.IsUint64() {
		return nil, fmt.Errorf("account balance %s out of range", balance)
	}

	inputs := make([][]any, balance.Uint64())
	for i := range inputs {
		inputs[i] = []any{owner, big.NewInt(int64(i))}
	}
	values, err := s.engine.Multicall(ctx, s.accountProxy, "tokenOfOwnerByIndex", inputs, nil)
	if err != nil {
		return nil, fmt.Errorf("getting perps account ids: %w", err)
	}
	return shared.BigInts(values)
}

// GetAvailableMargin returns the account's margin available for new positions.
func (s *Service) GetAvailableMargin(ctx context.Context, accountID *big.Int) (decimal.Decimal, error) {
	return s.readMargin(ctx, "getAvailableMargin", accountID)
}

// GetWithdrawableMargin returns the margin that can be withdrawn now.
func (s *Service) GetWithdrawableMargin(ctx context.Context, accountID *big.Int) (decimal.Decimal, error) {
	return s.readMargin(ctx, "getWithdrawableMargin", accountID)
}

// GetRequiredMargins returns the account's margin requirements.
func (s *Service) GetRequiredMargins(ctx context.Context, accountID *big.Int) (RequiredMargins, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return RequiredMargins{}, err
	}

	v, err := s.engine.Call(ctx, s.marketProxy, "getRequiredMargins", []any{accountID}, nil)
	if err != nil {
		return RequiredMargins{}, fmt.Errorf("getting required margins: %w", err)
	}
	values, ok := v.([]any)
	if !ok || len(values) != 3 {
		return RequiredMargins{}, fmt.Errorf("unexpected getRequiredMargins result %T", v)
	}

	var out [3]decimal.Decimal
	for i, value := range values {
		if out[i], err = shared.Ether(value); err != nil {
			return RequiredMargins{}, err
		}
	}
	return RequiredMargins{Initial: out[0], Maintenance: out[1], MaxLiquidationReward: out[2]}, nil
}

// ModifyCollateral prepares adding (positive amount) or removing (negative
// amount) margin collateral.
func (s *Service) ModifyCollateral(ctx context.Context, amount decimal.Decimal, collateralID *uint64, collateralName string, accountID *big.Int) (*outbound.TxParams, error) {
	id, name, err := s.ResolveCollateral(collateralID, collateralName)
	if err != nil {
		return nil, err
	}
	accountID, err = s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("preparing collateral change", "amount", amount, "collateral", name, "accountID", accountID)
	return s.write(ctx, "modifyCollateral", accountID, shared.Uint(id), wei.FromEther(amount))
}

type orderCommitment struct {
	MarketId             *big.Int
	AccountId            *big.Int
	SizeDelta            *big.Int
	SettlementStrategyId *big.Int
	AcceptablePrice      *big.Int
	TrackingCode         [32]byte
	Referrer             common.Address
}

// CommitOrder prepares an order commitment.
func (s *Service) CommitOrder(ctx context.Context, order Order) (*outbound.TxParams, error) {
	if order.Size.IsZero() {
		return nil, fmt.Errorf("order size must not be zero")
	}
	marketID, marketName, err := s.ResolveMarket(order.MarketID, order.MarketName)
	if err != nil {
		return nil, err
	}
	accountID, err := s.resolveAccount(ctx, order.AccountID)
	if err != nil {
		return nil, err
	}

	price := order.AcceptablePrice
	if price.IsZero() {
		summaries, err := s.GetMarketSummaries(ctx, []uint64{marketID})
		if err != nil {
			return nil, err
		}
		price = s.acceptablePrice(summaries[0].IndexPrice, order.Size)
	}

	s.logger.Info("preparing order",
		"market", marketName,
		"size", order.Size,
		"acceptablePrice", price,
		"accountID", accountID)

	return s.write(ctx, "commitOrder", orderCommitment{
		MarketId:             shared.Uint(marketID),
		AccountId:            accountID,
		SizeDelta:            wei.FromEther(order.Size),
		SettlementStrategyId: shared.Uint(order.SettlementStrategyID),
		AcceptablePrice:      wei.FromEther(price),
		TrackingCode:         s.config.TrackingCode,
		Referrer:             s.config.Referrer,
	})
}

type settlementStrategyOutput struct {
	StrategyType              uint8
	SettlementDelay           *big.Int
	SettlementWindowDuration  *big.Int
	PriceWindowDuration       *big.Int
	PriceVerificationContract common.Address
	FeedId                    [32]byte
	Url                       string
	SettlementReward          *big.Int
	PriceDeviationTolerance   *big.Int
	Disabled                  bool
}

// GetSettlementStrategy reads one of a market's settlement strategies.
func (s *Service) GetSettlementStrategy(ctx context.Context, strategyID uint64, marketID *uint64, marketName string) (SettlementStrategy, error) {
	id, name, err := s.ResolveMarket(marketID, marketName)
	if err != nil {
		return SettlementStrategy{}, err
	}
	return s.settlementStrategy(ctx, id, name, strategyID)
}

func (s *Service) settlementStrategy(ctx context.Context, id uint64, name string, strategyID uint64) (SettlementStrategy, error) {
	if name == "" {
		name = fmt.Sprintf("market %d", id)
	}
	v, err := s.engine.Call(ctx, s.marketProxy, "getSettlementStrategy", []any{shared.Uint(id), shared.Uint(strategyID)}, nil)
	if err != nil {
		return SettlementStrategy{}, fmt.Errorf("getting settlement strategy %d of %s: %w", strategyID, name, err)
	}
	var out settlementStrategyOutput
	if err := shared.Tuple(v, &out); err != nil {
		return SettlementStrategy{}, fmt.Errorf("decoding settlement strategy %d of %s: %w", strategyID, name, err)
	}

	return SettlementStrategy{
		ID:                        strategyID,
		StrategyType:              out.StrategyType,
		SettlementDelay:           shared.Seconds(out.SettlementDelay),
		SettlementWindowDuration:  shared.Seconds(out.SettlementWindowDuration),
		PriceWindowDuration:       shared.Seconds(out.PriceWindowDuration),
		PriceVerificationContract: out.PriceVerificationContract,
		FeedID:                    out.FeedId,
		URL:                       out.Url,
		SettlementReward:          wei.ToEther(out.SettlementReward),
		PriceDeviationTolerance:   wei.ToEther(out.PriceDeviationTolerance),
		Disabled:                  out.Disabled,
	}, nil
}

type asyncOrderOutput struct {
	SettlementTime *big.Int
	Request        orderCommitment
}

// GetOrder reads the account's pending order, with its settlement strategy
// when fetchStrategy is set.
func (s *Service) GetOrder(ctx context.Context, accountID *big.Int, fetchStrategy bool) (OpenOrder, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return OpenOrder{}, err
	}

	v, err := s.engine.Call(ctx, s.marketProxy, "getOrder", []any{accountID}, nil)
	if err != nil {
		return OpenOrder{}, fmt.Errorf("getting order of account %s: %w", accountID, err)
	}
	var out asyncOrderOutput
	if err := shared.Tuple(v, &out); err != nil {
		return OpenOrder{}, fmt.Errorf("decoding order of account %s: %w", accountID, err)
	}
	request := out.Request
	if !request.MarketId.IsUint64() || !request.SettlementStrategyId.IsUint64() {
		return OpenOrder{}, fmt.Errorf("order of account %s has out of range ids", accountID)
	}

	order := OpenOrder{
		AccountID:            accountID,
		MarketID:             request.MarketId.Uint64(),
		MarketName:           s.markets[request.MarketId.Uint64()],
		SettlementTime:       shared.UnixTime(out.SettlementTime),
		SizeDelta:            wei.ToEther(request.SizeDelta),
		SettlementStrategyID: request.SettlementStrategyId.Uint64(),
		AcceptablePrice:      wei.ToEther(request.AcceptablePrice),
		TrackingCode:         request.TrackingCode,
		Referrer:             request.Referrer,
	}

	if fetchStrategy && !order.SizeDelta.IsZero() {
		strategy, err := s.settlementStrategy(ctx, order.MarketID, order.MarketName, order.SettlementStrategyID)
		if err != nil {
			return OpenOrder{}, err
		}
		order.SettlementStrategy = &strategy
	}
	return order, nil
}

// acceptablePrice pads the index price by the slippage, upward for buys and
// downward for sells.
func (s *Service) acceptablePrice(indexPrice, size decimal.Decimal) decimal.Decimal {
	slippage := s.config.SlippagePercent.Div(decimal.NewFromInt(100))
	if size.IsPositive() {
		return indexPrice.Mul(decimal.NewFromInt(1).Add(slippage))
	}
	return indexPrice.Mul(decimal.NewFromInt(1).Sub(slippage))
}

func (s *Service) readOpts(ctx context.Context, marketIDs []uint64) (*erc7412.CallOpts, error) {
	if !s.config.PrefetchPrices || s.oracle == nil || s.prices == nil {
		return nil, nil
	}

	names := make([]string, 0, len(marketIDs))
	for _, id := range marketIDs {
		if name, ok := s.markets[id]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	call, err := s.PrepareOracleCall(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("preparing oracle call: %w", err)
	}
	return &erc7412.CallOpts{PrefixCalls: []outbound.Call{call}}, nil
}

func (s *Service) readMargin(ctx context.Context, method string, accountID *big.Int) (decimal.Decimal, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := s.engine.Call(ctx, s.marketProxy, method, []any{accountID}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s for account %s: %w", method, accountID, err)
	}
	return shared.Ether(v)
}

func (s *Service) write(ctx context.Context, method string, args ...any) (*outbound.TxParams, error) {
	tx, err := s.engine.Write(ctx, s.marketProxy, method, args, &erc7412.WriteOpts{From: s.config.Address})
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", method, err)
	}
	return tx, nil
}

func (s *Service) resolveAccount(ctx context.Context, accountID *big.Int) (*big.Int, error) {
	if accountID != nil {
		return accountID, nil
	}
	if s.config.DefaultAccountID != nil {
		return s.config.DefaultAccountID, nil
	}
	ids, err := s.GetAccountIDs(ctx, s.config.Address)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoAccount, s.config.Address.Hex())
	}
	return ids[0], nil
}
