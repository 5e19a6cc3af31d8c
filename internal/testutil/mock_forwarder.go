package testutil

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// MockForwarder implements outbound.Forwarder for testing. Every batch it
// receives is recorded, in order, for assertions on call layout.
type MockForwarder struct {
	mu            sync.Mutex
	AggregateFn   func(ctx context.Context, calls []outbound.Call, value *big.Int, blockNumber *big.Int) ([]outbound.Result, error)
	EstimateGasFn func(ctx context.Context, from common.Address, calls []outbound.Call, value *big.Int) (uint64, error)
	Batches       [][]outbound.Call
	Values        []*big.Int
	Addr          common.Address
}

func NewMockForwarder() *MockForwarder {
	return &MockForwarder{
		Addr: common.HexToAddress("0xE2C5658cC5C448B48141168f3e475dF8f65A1e3e"),
	}
}

func (m *MockForwarder) record(calls []outbound.Call, value *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Batches = append(m.Batches, append([]outbound.Call(nil), calls...))
	m.Values = append(m.Values, value)
}

func (m *MockForwarder) Aggregate(ctx context.Context, calls []outbound.Call, value *big.Int, blockNumber *big.Int) ([]outbound.Result, error) {
	m.record(calls, value)
	if m.AggregateFn != nil {
		return m.AggregateFn(ctx, calls, value, blockNumber)
	}
	return nil, errors.New("Aggregate not mocked")
}

func (m *MockForwarder) EstimateGas(ctx context.Context, from common.Address, calls []outbound.Call, value *big.Int) (uint64, error) {
	m.record(calls, value)
	if m.EstimateGasFn != nil {
		return m.EstimateGasFn(ctx, from, calls, value)
	}
	return 0, errors.New("EstimateGas not mocked")
}

// Pack concatenates calldata; the mock has no on-chain encoding to honour.
func (m *MockForwarder) Pack(calls []outbound.Call) ([]byte, error) {
	var out []byte
	for _, c := range calls {
		out = append(out, c.CallData...)
	}
	return out, nil
}

func (m *MockForwarder) Address() common.Address {
	return m.Addr
}

// CallCount returns the number of attempts made against the forwarder.
func (m *MockForwarder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}

// RevertError is a node error carrying revert data, shaped like the
// JSON-RPC error go-ethereum returns for a reverted eth_call.
type RevertError struct {
	Data []byte
}

func (e *RevertError) Error() string {
	return "execution reverted"
}

func (e *RevertError) ErrorCode() int {
	return 3
}

func (e *RevertError) ErrorData() interface{} {
	return "0x" + common.Bytes2Hex(e.Data)
}

// GasEstimatorFunc adapts a function to outbound.GasEstimator.
type GasEstimatorFunc func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

func (f GasEstimatorFunc) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f(ctx, msg)
}
