package testutil

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

type stubKey struct {
	target   common.Address
	selector [4]byte
}

type stubHandler struct {
	method abi.Method
	fn     func(args []any) []any
}

// ChainStub answers forwarder batches by routing each call to a handler
// registered for its target and selector. Calls without a handler fail with
// the revert reason "not stubbed". When StaleFeeds is set, every batch
// without a call to Oracle reverts with OracleDataRequired for those feeds.
type ChainStub struct {
	t *testing.T

	mu       sync.Mutex
	handlers map[stubKey]stubHandler
	calls    map[string][][]any

	Oracle     common.Address
	StaleFeeds [][32]byte
	Gas        uint64
}

func NewChainStub(t *testing.T) *ChainStub {
	return &ChainStub{
		t:        t,
		handlers: make(map[stubKey]stubHandler),
		calls:    make(map[string][][]any),
		Oracle:   common.HexToAddress("0x0000000000000000000000000000000000007412"),
		Gas:      250_000,
	}
}

// Handle registers fn as the implementation of method on the contract at
// address. fn receives the decoded inputs and returns the outputs to encode.
func (s *ChainStub) Handle(address common.Address, contractABI *abi.ABI, method string, fn func(args []any) []any) {
	s.t.Helper()
	m, ok := contractABI.Methods[method]
	if !ok {
		s.t.Fatalf("method %q not in ABI", method)
	}
	var sel [4]byte
	copy(sel[:], m.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[stubKey{target: address, selector: sel}] = stubHandler{method: m, fn: fn}
}

// Calls returns the decoded inputs of every answered call to method.
func (s *ChainStub) Calls(method string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Forwarder returns a MockForwarder backed by the stub.
func (s *ChainStub) Forwarder() *MockForwarder {
	fwd := NewMockForwarder()
	fwd.AggregateFn = func(_ context.Context, calls []outbound.Call, _ *big.Int, _ *big.Int) ([]outbound.Result, error) {
		if err := s.checkOracle(calls); err != nil {
			return nil, err
		}
		return s.answer(calls), nil
	}
	fwd.EstimateGasFn = func(_ context.Context, _ common.Address, calls []outbound.Call, _ *big.Int) (uint64, error) {
		if err := s.checkOracle(calls); err != nil {
			return 0, err
		}
		// Estimation fails like the node does when any call reverts.
		for _, r := range s.answer(calls) {
			if !r.Success {
				return 0, &RevertError{Data: r.ReturnData}
			}
		}
		return s.Gas, nil
	}
	return fwd
}

func (s *ChainStub) checkOracle(calls []outbound.Call) error {
	if len(s.StaleFeeds) == 0 {
		return nil
	}
	for _, c := range calls {
		if c.Target == s.Oracle {
			return nil
		}
	}
	return &RevertError{Data: PackOracleDataRequired(s.t, s.Oracle, 1, 60, s.StaleFeeds)}
}

func (s *ChainStub) answer(calls []outbound.Call) []outbound.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]outbound.Result, len(calls))
	for i, c := range calls {
		if c.Target == s.Oracle {
			results[i] = outbound.Result{Success: true}
			continue
		}
		if len(c.CallData) < 4 {
			results[i] = outbound.Result{Success: false}
			continue
		}
		var sel [4]byte
		copy(sel[:], c.CallData[:4])
		h, ok := s.handlers[stubKey{target: c.Target, selector: sel}]
		if !ok {
			results[i] = outbound.Result{Success: false, ReturnData: PackErrorString(s.t, "not stubbed")}
			continue
		}

		args, err := h.method.Inputs.Unpack(c.CallData[4:])
		if err != nil {
			s.t.Errorf("decoding %s inputs: %v", h.method.Name, err)
			results[i] = outbound.Result{Success: false}
			continue
		}
		s.calls[h.method.Name] = append(s.calls[h.method.Name], args)

		var out []byte
		if outputs := h.fn(args); len(h.method.Outputs) > 0 {
			out, err = h.method.Outputs.Pack(outputs...)
			if err != nil {
				s.t.Errorf("packing %s outputs: %v", h.method.Name, err)
			}
		}
		results[i] = outbound.Result{Success: true, ReturnData: out}
	}
	return results
}

// HasCallTo reports whether any call in batch targets address with data
// starting with selector.
func HasCallTo(batch []outbound.Call, address common.Address, selector []byte) bool {
	for _, c := range batch {
		if c.Target == address && bytes.HasPrefix(c.CallData, selector) {
			return true
		}
	}
	return false
}
