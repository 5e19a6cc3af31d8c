// Package core exposes Synthetix V3 collateral, account and pool management
// on top of the oracle-aware call engine. Writes are returned as prepared,
// unsigned transactions.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/contract"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/erc7412"
	"github.com/archon-research/snx-sdk/internal/pkg/wei"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
	"github.com/archon-research/snx-sdk/internal/services/shared"
)

var ErrNoAccount = errors.New("no core account")

type Config struct {
	// Address owns the accounts and sends the prepared transactions.
	Address common.Address

	// DefaultAccountID is used when an operation gets a nil account id. When
	// unset, the first account owned by Address is used.
	DefaultAccountID *big.Int

	Logger *slog.Logger
}

type Service struct {
	engine           shared.Engine
	coreProxy        outbound.ContractHandle
	accountProxy     outbound.ContractHandle
	address          common.Address
	defaultAccountID *big.Int
	logger           *slog.Logger
}

func NewService(config Config, engine shared.Engine, registry outbound.ContractRegistry) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("contract registry is required")
	}

	coreProxy, err := registry.Contract("CoreProxy")
	if err != nil {
		return nil, fmt.Errorf("core is not deployed on this network: %w", err)
	}
	accountProxy, err := registry.Contract("AccountProxy")
	if err != nil {
		return nil, fmt.Errorf("core is not deployed on this network: %w", err)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Service{
		engine:           engine,
		coreProxy:        coreProxy,
		accountProxy:     accountProxy,
		address:          config.Address,
		defaultAccountID: config.DefaultAccountID,
		logger:           config.Logger.With("component", "core-service"),
	}, nil
}

// GetUSDToken returns the address of the system's stablecoin.
func (s *Service) GetUSDToken(ctx context.Context) (common.Address, error) {
	v, err := s.engine.Call(ctx, s.coreProxy, "getUsdToken", nil, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("getting usd token: %w", err)
	}
	return shared.Address(v)
}

// GetAccountIDs lists the account NFTs held by owner. A zero owner means the
// configured address.
func (s *Service) GetAccountIDs(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	if owner == (common.Address{}) {
		owner = s.address
	}

	v, err := s.engine.Call(ctx, s.accountProxy, "balanceOf", []any{owner}, nil)
	if err != nil {
		return nil, fmt.Errorf("getting account balance: %w", err)
	}
	balance, err := shared.BigInt(v)
	if err != nil {
		return nil, err
	}
	if !balance.IsUint64() {
		return nil, fmt.Errorf("account balance %s out of range", balance)
	}

	n := balance.Uint64()
	inputs := make([][]any, n)
	for i := uint64(0); i < n; i++ {
		inputs[i] = []any{owner, new(big.Int).SetUint64(i)}
	}

	values, err := s.engine.Multicall(ctx, s.accountProxy, "tokenOfOwnerByIndex", inputs, nil)
	if err != nil {
		return nil, fmt.Errorf("getting account ids: %w", err)
	}
	return shared.BigInts(values)
}

// GetMarketPool returns the pool backing a market.
func (s *Service) GetMarketPool(ctx context.Context, marketID uint64) (*big.Int, error) {
	v, err := s.engine.Call(ctx, s.coreProxy, "getMarketPool", []any{shared.Uint(marketID)}, nil)
	if err != nil {
		return nil, fmt.Errorf("getting pool for market %d: %w", marketID, err)
	}
	return shared.BigInt(v)
}

// GetAvailableCollateral returns the undelegated collateral of token held by
// the account.
func (s *Service) GetAvailableCollateral(ctx context.Context, token common.Address, accountID *big.Int) (decimal.Decimal, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	v, err := s.engine.Call(ctx, s.coreProxy, "getAccountAvailableCollateral", []any{accountID, token}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting available collateral: %w", err)
	}
	return shared.Ether(v)
}

// CreateAccount prepares a createAccount transaction for the requested id. A
// nil id lets the system assign the next free one.
func (s *Service) CreateAccount(ctx context.Context, accountID *big.Int) (*outbound.TxParams, error) {
	if accountID == nil {
		s.logger.Info("preparing account creation", "address", s.address.Hex())
		return s.write(ctx, contract.Overload(s.coreProxy, "createAccount", 0))
	}
	s.logger.Info("preparing account creation", "address", s.address.Hex(), "accountID", accountID)
	return s.write(ctx, contract.Overload(s.coreProxy, "createAccount", 1), accountID)
}

// Deposit prepares a deposit of amount of token into the account.
func (s *Service) Deposit(ctx context.Context, token common.Address, amount decimal.Decimal, accountID *big.Int) (*outbound.TxParams, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("preparing deposit", "amount", amount, "token", token.Hex(), "accountID", accountID)
	return s.write(ctx, "deposit", accountID, token, wei.FromEther(amount))
}

// Withdraw prepares a withdrawal. A zero token means the USD token.
func (s *Service) Withdraw(ctx context.Context, amount decimal.Decimal, token common.Address, accountID *big.Int) (*outbound.TxParams, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if token == (common.Address{}) {
		if token, err = s.GetUSDToken(ctx); err != nil {
			return nil, err
		}
	}
	s.logger.Info("preparing withdrawal", "amount", amount, "token", token.Hex(), "accountID", accountID)
	return s.write(ctx, "withdraw", accountID, token, wei.FromEther(amount))
}

// DelegateCollateral prepares delegation of amount of token to a pool at the
// given leverage.
func (s *Service) DelegateCollateral(ctx context.Context, token common.Address, amount decimal.Decimal, poolID uint64, leverage decimal.Decimal, accountID *big.Int) (*outbound.TxParams, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if leverage.IsZero() {
		leverage = decimal.NewFromInt(1)
	}
	s.logger.Info("preparing delegation",
		"amount", amount,
		"token", token.Hex(),
		"poolID", poolID,
		"leverage", leverage,
		"accountID", accountID)
	return s.write(ctx, "delegateCollateral", accountID, shared.Uint(poolID), token, wei.FromEther(amount), wei.FromEther(leverage))
}

// MintUSD prepares minting amount of stablecoin against the account's
// delegated token collateral.
func (s *Service) MintUSD(ctx context.Context, token common.Address, amount decimal.Decimal, poolID uint64, accountID *big.Int) (*outbound.TxParams, error) {
	accountID, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("preparing mint", "amount", amount, "token", token.Hex(), "poolID", poolID, "accountID", accountID)
	return s.write(ctx, "mintUsd", accountID, shared.Uint(poolID), token, wei.FromEther(amount))
}

func (s *Service) write(ctx context.Context, method string, args ...any) (*outbound.TxParams, error) {
	tx, err := s.engine.Write(ctx, s.coreProxy, method, args, &erc7412.WriteOpts{From: s.address})
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", method, err)
	}
	return tx, nil
}

func (s *Service) resolveAccount(ctx context.Context, accountID *big.Int) (*big.Int, error) {
	if accountID != nil {
		return accountID, nil
	}
	if s.defaultAccountID != nil {
		return s.defaultAccountID, nil
	}
	ids, err := s.GetAccountIDs(ctx, s.address)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoAccount, s.address.Hex())
	}
	return ids[0], nil
}
