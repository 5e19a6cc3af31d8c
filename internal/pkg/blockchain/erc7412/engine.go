package erc7412

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/contract"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

const (
	opCall      = "call"
	opMulticall = "multicall"
	opWrite     = "write"
	opDirect    = "direct_write"
)

// DefaultGasBufferPercent is used when EngineConfig.GasBufferPercent is nil.
const DefaultGasBufferPercent uint64 = 15

type EngineConfig struct {
	Forwarder outbound.Forwarder
	Prices    outbound.PriceUpdateProvider

	// FeePerUpdate is the value in wei attached per price update.
	FeePerUpdate *big.Int

	// GasBufferPercent is added on top of the gas estimate for writes. Nil
	// means DefaultGasBufferPercent; zero uses the bare estimate.
	GasBufferPercent *uint64

	// Estimator sizes transactions that bypass the forwarder. When nil their
	// gas is left zero for the signer to fill in.
	Estimator outbound.GasEstimator

	// ChainID is copied into prepared transactions.
	ChainID *big.Int

	Logger    *slog.Logger
	Telemetry *Telemetry
}

func EngineConfigDefaults() EngineConfig {
	return EngineConfig{
		FeePerUpdate:     DefaultFeePerUpdate,
		GasBufferPercent: GasBufferPercent(DefaultGasBufferPercent),
		Logger:           slog.Default(),
	}
}

// CallOpts configures a read.
type CallOpts struct {
	// PrefixCalls run ahead of the logical calls, e.g. a proactive
	// fulfillment of prices known to be needed.
	PrefixCalls []outbound.Call

	// BlockNumber pins the read; nil means latest.
	BlockNumber *big.Int
}

// WriteOpts configures a prepared write.
type WriteOpts struct {
	PrefixCalls []outbound.Call

	// Value is attached to the logical call itself.
	Value *big.Int

	From common.Address
}

// GasBufferPercent returns a pointer for EngineConfig.GasBufferPercent.
func GasBufferPercent(percent uint64) *uint64 {
	return &percent
}

// Engine runs contract calls through the forwarder, resolving
// OracleDataRequired reverts by inserting fulfillment calls and retrying.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	forwarder outbound.Forwarder
	prices    outbound.PriceUpdateProvider
	estimator outbound.GasEstimator
	fee       *big.Int
	gasBuffer uint64
	chainID   *big.Int
	logger    *slog.Logger
	telemetry *Telemetry
}

func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Forwarder == nil {
		return nil, fmt.Errorf("forwarder is required")
	}
	if config.Prices == nil {
		return nil, fmt.Errorf("price update provider is required")
	}

	defaults := EngineConfigDefaults()
	if config.FeePerUpdate == nil {
		config.FeePerUpdate = defaults.FeePerUpdate
	}
	if config.FeePerUpdate.Sign() < 0 {
		return nil, fmt.Errorf("fee per update must not be negative, got %s", config.FeePerUpdate)
	}
	if config.GasBufferPercent == nil {
		config.GasBufferPercent = defaults.GasBufferPercent
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Telemetry == nil {
		config.Telemetry = noopTelemetry()
	}

	return &Engine{
		forwarder: config.Forwarder,
		prices:    config.Prices,
		estimator: config.Estimator,
		fee:       new(big.Int).Set(config.FeePerUpdate),
		gasBuffer: *config.GasBufferPercent,
		chainID:   config.ChainID,
		logger:    config.Logger.With("component", "erc7412-engine"),
		telemetry: config.Telemetry,
	}, nil
}

// Forwarder returns the forwarder the engine submits batches through.
func (e *Engine) Forwarder() outbound.Forwarder {
	return e.forwarder
}

// Call reads method on handle and returns its decoded result.
func (e *Engine) Call(ctx context.Context, handle outbound.ContractHandle, method string, args []any, opts *CallOpts) (result any, err error) {
	start := time.Now()
	ctx, span := e.telemetry.StartSpan(ctx, opCall, method, 1)
	defer func() { e.telemetry.EndOperation(ctx, span, opCall, start, err) }()

	call, err := contract.NewCall(handle, nil, method, args...)
	if err != nil {
		return nil, err
	}

	results, err := e.read(ctx, opCall, method, []outbound.Call{call}, opts)
	if err != nil {
		return nil, err
	}
	return decodeResult(handle, method, results[0])
}

// Multicall reads method once per entry of argsList in a single batch and
// returns the decoded results in argsList order.
func (e *Engine) Multicall(ctx context.Context, handle outbound.ContractHandle, method string, argsList [][]any, opts *CallOpts) (values []any, err error) {
	if len(argsList) == 0 {
		return []any{}, nil
	}

	start := time.Now()
	ctx, span := e.telemetry.StartSpan(ctx, opMulticall, method, len(argsList))
	defer func() { e.telemetry.EndOperation(ctx, span, opMulticall, start, err) }()

	calls := make([]outbound.Call, len(argsList))
	for i, args := range argsList {
		calls[i], err = contract.NewCall(handle, nil, method, args...)
		if err != nil {
			return nil, fmt.Errorf("building call %d: %w", i, err)
		}
	}

	results, err := e.read(ctx, opMulticall, method, calls, opts)
	if err != nil {
		return nil, err
	}

	values = make([]any, len(results))
	for i, r := range results {
		values[i], err = decodeResult(handle, method, r)
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Write prepares a transaction calling method on handle through the
// forwarder, with every fulfillment it needs already in the batch. The gas
// limit is the estimate plus GasBufferPercent, rounded up.
func (e *Engine) Write(ctx context.Context, handle outbound.ContractHandle, method string, args []any, opts *WriteOpts) (tx *outbound.TxParams, err error) {
	if opts == nil {
		opts = &WriteOpts{}
	}

	start := time.Now()
	ctx, span := e.telemetry.StartSpan(ctx, opWrite, method, 1)
	defer func() { e.telemetry.EndOperation(ctx, span, opWrite, start, err) }()

	call, err := contract.NewCall(handle, opts.Value, method, args...)
	if err != nil {
		return nil, err
	}

	var gas uint64
	estimate := func(ctx context.Context, batch []outbound.Call, value *big.Int) ([]outbound.Result, error) {
		g, err := e.forwarder.EstimateGas(ctx, opts.From, batch, value)
		if err != nil {
			return nil, err
		}
		gas = g
		// A successful estimate means every call in the batch succeeded.
		results := make([]outbound.Result, len(batch))
		for i := range results {
			results[i].Success = true
		}
		return results, nil
	}

	batch, _, err := e.execute(ctx, opWrite, method, opts.PrefixCalls, []outbound.Call{call}, estimate)
	if err != nil {
		return nil, err
	}

	data, err := e.forwarder.Pack(batch)
	if err != nil {
		return nil, fmt.Errorf("packing %s batch: %w", method, err)
	}

	tx = &outbound.TxParams{
		From:    opts.From,
		To:      e.forwarder.Address(),
		Data:    data,
		Value:   outbound.TotalValue(batch),
		Gas:     BufferGas(gas, e.gasBuffer),
		ChainID: e.chainID,
	}

	e.logger.Debug("prepared write",
		"method", method,
		"batchSize", len(batch),
		"gasEstimate", gas,
		"gasLimit", tx.Gas,
		"value", tx.Value.String())

	return tx, nil
}

// WriteDirect prepares a transaction calling method on handle itself rather
// than through the forwarder. It is meant for token approvals and wrapping,
// where the contract checks msg.sender and no oracle data is involved.
func (e *Engine) WriteDirect(ctx context.Context, handle outbound.ContractHandle, method string, args []any, opts *WriteOpts) (tx *outbound.TxParams, err error) {
	if opts == nil {
		opts = &WriteOpts{}
	}
	if len(opts.PrefixCalls) > 0 {
		return nil, fmt.Errorf("prefix calls need the forwarder, use Write for %s", method)
	}

	start := time.Now()
	ctx, span := e.telemetry.StartSpan(ctx, opDirect, method, 1)
	defer func() { e.telemetry.EndOperation(ctx, span, opDirect, start, err) }()

	call, err := contract.NewCall(handle, opts.Value, method, args...)
	if err != nil {
		return nil, err
	}
	value := outbound.TotalValue([]outbound.Call{call})

	tx = &outbound.TxParams{
		From:    opts.From,
		To:      call.Target,
		Data:    call.CallData,
		Value:   value,
		ChainID: e.chainID,
	}
	if e.estimator == nil {
		return tx, nil
	}

	gas, err := e.estimator.EstimateGas(ctx, ethereum.CallMsg{
		From:  opts.From,
		To:    &call.Target,
		Value: value,
		Data:  call.CallData,
	})
	if err != nil {
		return nil, &ContractCallError{Method: method, Err: err}
	}
	tx.Gas = BufferGas(gas, e.gasBuffer)

	e.logger.Debug("prepared direct write",
		"method", method,
		"to", tx.To.Hex(),
		"gasEstimate", gas,
		"gasLimit", tx.Gas)

	return tx, nil
}

// BufferGas returns ceil(estimate * (100 + percent) / 100).
func BufferGas(estimate, percent uint64) uint64 {
	return (estimate*(100+percent) + 99) / 100
}

func (e *Engine) read(ctx context.Context, operation, method string, logical []outbound.Call, opts *CallOpts) ([]outbound.Result, error) {
	if opts == nil {
		opts = &CallOpts{}
	}
	aggregate := func(ctx context.Context, batch []outbound.Call, value *big.Int) ([]outbound.Result, error) {
		return e.forwarder.Aggregate(ctx, batch, value, opts.BlockNumber)
	}
	_, results, err := e.execute(ctx, operation, method, opts.PrefixCalls, logical, aggregate)
	return results, err
}

type attemptFunc func(ctx context.Context, batch []outbound.Call, value *big.Int) ([]outbound.Result, error)

// execute is the fulfillment loop shared by every operation. It returns the
// final batch and the results of the trailing logical calls.
//
// There is no attempt cap: each retry adds exactly one fulfillment for the
// feeds the oracle asked for. Callers bound the loop through ctx.
func (e *Engine) execute(ctx context.Context, operation, method string, prefix, logical []outbound.Call, attempt attemptFunc) ([]outbound.Call, []outbound.Result, error) {
	numLogical := len(logical)

	batch := make([]outbound.Call, 0, len(prefix)+numLogical)
	batch = append(batch, prefix...)
	batch = append(batch, logical...)

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		results, err := attempt(ctx, batch, outbound.TotalValue(batch))

		var revertData []byte
		if err == nil {
			if len(results) != len(batch) {
				e.telemetry.RecordAttempt(ctx, operation, len(batch), "error")
				return nil, nil, &DecodeError{
					Method: method,
					Err:    fmt.Errorf("forwarder returned %d results for %d calls", len(results), len(batch)),
				}
			}
			failed, ok := firstFailure(results)
			if !ok {
				e.telemetry.RecordAttempt(ctx, operation, len(batch), "success")
				return batch, results[len(results)-numLogical:], nil
			}
			revertData = failed.ReturnData
		} else {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			data, found := extractRevertData(err)
			if !found {
				e.telemetry.RecordAttempt(ctx, operation, len(batch), "error")
				return nil, nil, &ContractCallError{Method: method, Err: err}
			}
			revertData = data
		}

		info, decodeErr := DecodeOracleError(revertData)
		if errors.Is(decodeErr, ErrNotOracleDataRequired) {
			e.telemetry.RecordAttempt(ctx, operation, len(batch), "reverted")
			return nil, nil, &ContractCallError{Method: method, RevertData: revertData, Err: err}
		}
		if decodeErr != nil {
			e.telemetry.RecordAttempt(ctx, operation, len(batch), "error")
			e.logger.Error("malformed oracle revert", "method", method, "error", decodeErr)
			return nil, nil, decodeErr
		}
		e.telemetry.RecordAttempt(ctx, operation, len(batch), "oracle_data_required")

		updates, err := e.feedsData(ctx, info)
		if err != nil {
			return nil, nil, &PriceServiceError{FeedIDs: info.FeedIDs, Err: err}
		}
		if len(updates) != len(info.FeedIDs) {
			return nil, nil, &PriceServiceError{
				FeedIDs: info.FeedIDs,
				Err:     fmt.Errorf("got %d updates for %d feeds", len(updates), len(info.FeedIDs)),
			}
		}

		fulfillment, err := BuildFulfillment(info, updates, e.fee)
		if err != nil {
			return nil, nil, fmt.Errorf("building fulfillment for %s: %w", method, err)
		}
		e.telemetry.RecordFulfillment(ctx, info.UpdateType, len(updates))

		batch = insertBeforeLogical(batch, fulfillment, numLogical)

		e.logger.Debug("oracle data required, retrying with fulfillment",
			"method", method,
			"oracle", info.OracleAddress.Hex(),
			"updateType", info.UpdateType,
			"stalenessTolerance", info.StalenessTolerance,
			"feeds", len(info.FeedIDs),
			"attempt", iteration,
			"batchSize", len(batch))
	}
}

// feedsData fetches the payloads a revert asked for. Providers that keep
// payloads around are held to the oracle's staleness tolerance.
func (e *Engine) feedsData(ctx context.Context, info *OracleErrorInfo) ([][]byte, error) {
	fresh, ok := e.prices.(outbound.FreshPriceUpdateProvider)
	if !ok || info.StalenessTolerance == 0 {
		return e.prices.GetFeedsData(ctx, info.FeedIDs)
	}
	return fresh.GetFreshFeedsData(ctx, info.FeedIDs, time.Duration(info.StalenessTolerance)*time.Second)
}

func firstFailure(results []outbound.Result) (outbound.Result, bool) {
	for _, r := range results {
		if !r.Success {
			return r, true
		}
	}
	return outbound.Result{}, false
}

func decodeResult(handle outbound.ContractHandle, method string, r outbound.Result) (any, error) {
	value, err := handle.DecodeResult(method, r.ReturnData)
	if err != nil {
		return nil, &DecodeError{Method: method, Data: r.ReturnData, Err: err}
	}
	return value, nil
}
