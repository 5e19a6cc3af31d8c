package erc7412

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/contract"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
	"github.com/archon-research/snx-sdk/internal/testutil"
)

var (
	coreAddress = common.HexToAddress("0xffffffaEff0B96Ea8e4f94b2253f31abdD875847")
	sender      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	feedETH     = testutil.FeedID(0xe7)
	feedBTC     = testutil.FeedID(0xb7)
)

func newCoreHandle(t *testing.T) *contract.ABIContract {
	t.Helper()
	coreABI, err := abis.GetCoreProxyABI()
	if err != nil {
		t.Fatalf("loading CoreProxy ABI: %v", err)
	}
	return contract.NewABIContract("CoreProxy", coreAddress, coreABI)
}

func newTestEngine(t *testing.T, fwd outbound.Forwarder, prices outbound.PriceUpdateProvider) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{
		Forwarder: fwd,
		Prices:    prices,
		ChainID:   big.NewInt(10),
		Logger:    testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

// isFulfillment reports whether call is a fulfillOracleQuery to testOracle.
func isFulfillment(call outbound.Call) bool {
	return call.Target == testOracle && bytes.HasPrefix(call.CallData, erc7412ABI.Methods["fulfillOracleQuery"].ID)
}

func countFulfillments(calls []outbound.Call) int {
	n := 0
	for _, c := range calls {
		if isFulfillment(c) {
			n++
		}
	}
	return n
}

// oracleChain simulates an on-chain oracle: each attempt reverts with
// OracleDataRequired for the next stale feed set until as many fulfillments
// as stale sets are present in the batch.
func oracleChain(t *testing.T, staleSets [][][32]byte, answer func(call outbound.Call) []byte) func(context.Context, []outbound.Call, *big.Int, *big.Int) ([]outbound.Result, error) {
	return func(_ context.Context, calls []outbound.Call, _ *big.Int, _ *big.Int) ([]outbound.Result, error) {
		fulfilled := countFulfillments(calls)
		if fulfilled < len(staleSets) {
			return nil, &testutil.RevertError{
				Data: testutil.PackOracleDataRequired(t, testOracle, 1, 60, staleSets[fulfilled]),
			}
		}
		results := make([]outbound.Result, len(calls))
		for i, c := range calls {
			results[i] = outbound.Result{Success: true}
			if !isFulfillment(c) {
				results[i].ReturnData = answer(c)
			}
		}
		return results, nil
	}
}

// poolAnswer returns marketId+1000 as the pool id of a getMarketPool call.
func poolAnswer(t *testing.T, handle *contract.ABIContract) func(outbound.Call) []byte {
	return func(c outbound.Call) []byte {
		if c.Target != coreAddress || len(c.CallData) < 4 {
			return nil
		}
		args, err := handle.ABI().Methods["getMarketPool"].Inputs.Unpack(c.CallData[4:])
		if err != nil {
			return nil
		}
		id := args[0].(*big.Int)
		return testutil.PackUint256(t, new(big.Int).Add(id, big.NewInt(1000)))
	}
}

func TestNewEngine_Validation(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	prices := testutil.EchoPayloads()

	tests := []struct {
		name       string
		config     EngineConfig
		wantErr    bool
		wantBuffer uint64
	}{
		{name: "missing forwarder", config: EngineConfig{Prices: prices}, wantErr: true},
		{name: "missing prices", config: EngineConfig{Forwarder: fwd}, wantErr: true},
		{name: "negative fee", config: EngineConfig{Forwarder: fwd, Prices: prices, FeePerUpdate: big.NewInt(-1)}, wantErr: true},
		{name: "defaults", config: EngineConfig{Forwarder: fwd, Prices: prices}, wantBuffer: 15},
		{name: "zero gas buffer", config: EngineConfig{Forwarder: fwd, Prices: prices, GasBufferPercent: GasBufferPercent(0)}, wantBuffer: 0},
		{name: "custom gas buffer", config: EngineConfig{Forwarder: fwd, Prices: prices, GasBufferPercent: GasBufferPercent(30)}, wantBuffer: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if engine.fee.Cmp(big.NewInt(1)) != 0 {
					t.Errorf("fee = %s, want 1", engine.fee)
				}
				if engine.gasBuffer != tt.wantBuffer {
					t.Errorf("gasBuffer = %d, want %d", engine.gasBuffer, tt.wantBuffer)
				}
			}
		})
	}
}

// One stale feed costs one retry, and only the last result is decoded.
func TestEngine_Call_SingleFulfillment(t *testing.T) {
	handle := newCoreHandle(t)
	usd := common.HexToAddress("0xb2F30A7C980f052f02563fb518dcc39e6bf38175")

	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = oracleChain(t, [][][32]byte{{feedETH}}, func(outbound.Call) []byte {
		return testutil.PackAddress(t, usd)
	})
	prices := testutil.EchoPayloads()
	engine := newTestEngine(t, fwd, prices)

	got, err := engine.Call(context.Background(), handle, "getUsdToken", nil, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.(common.Address) != usd {
		t.Errorf("got %v, want %s", got, usd.Hex())
	}

	if fwd.CallCount() != 2 {
		t.Fatalf("forwarder attempts = %d, want 2", fwd.CallCount())
	}
	if prices.CallCount() != 1 || len(prices.Requests[0]) != 1 || prices.Requests[0][0] != feedETH {
		t.Errorf("price requests = %x, want [[ETH]]", prices.Requests)
	}

	retry := fwd.Batches[1]
	if len(retry) != 2 || !isFulfillment(retry[0]) || retry[1].Target != coreAddress {
		t.Errorf("retry batch = %+v, want [fulfillment, getUsdToken]", retry)
	}
}

// A fulfillment goes after the prefix calls and ahead of the logical calls.
func TestEngine_Multicall_InsertionPoint(t *testing.T) {
	handle := newCoreHandle(t)
	prefix := []outbound.Call{
		{Target: common.HexToAddress("0xaaaa"), Value: big.NewInt(0), CallData: []byte{0x01}},
		{Target: common.HexToAddress("0xbbbb"), Value: big.NewInt(0), CallData: []byte{0x02}},
	}

	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = oracleChain(t, [][][32]byte{{feedETH}}, poolAnswer(t, handle))
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	argsList := [][]any{{big.NewInt(1)}, {big.NewInt(2)}, {big.NewInt(3)}}
	_, err := engine.Multicall(context.Background(), handle, "getMarketPool", argsList, &CallOpts{PrefixCalls: prefix})
	if err != nil {
		t.Fatalf("Multicall: %v", err)
	}

	first, retry := fwd.Batches[0], fwd.Batches[1]
	if len(first) != 5 {
		t.Fatalf("first batch size = %d, want 5", len(first))
	}
	if len(retry) != 6 {
		t.Fatalf("retry batch size = %d, want P+1+L = 6", len(retry))
	}
	if retry[0].Target != prefix[0].Target || retry[1].Target != prefix[1].Target {
		t.Error("prefix calls moved")
	}
	if !isFulfillment(retry[2]) {
		t.Errorf("retry[2] is not the fulfillment: %+v", retry[2])
	}
	for i := 3; i < 6; i++ {
		if !bytes.Equal(retry[i].CallData, first[i-1].CallData) {
			t.Errorf("logical call %d changed", i-3)
		}
	}
}

// After several retries only the trailing logical results are decoded, in
// argument order.
func TestEngine_Multicall_TrailingSlice(t *testing.T) {
	handle := newCoreHandle(t)

	tests := []struct {
		name      string
		staleSets [][][32]byte
		prefix    int
	}{
		{name: "no fulfillment", staleSets: nil},
		{name: "one stale market", staleSets: [][][32]byte{{feedETH, feedBTC}}},
		{name: "three sequential stale sets", staleSets: [][][32]byte{{feedETH}, {feedBTC}, {testutil.FeedID(3)}}},
		{name: "with prefix", staleSets: [][][32]byte{{feedETH}, {feedBTC}}, prefix: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := testutil.NewMockForwarder()
			fwd.AggregateFn = oracleChain(t, tt.staleSets, poolAnswer(t, handle))
			engine := newTestEngine(t, fwd, testutil.EchoPayloads())

			var prefix []outbound.Call
			for i := 0; i < tt.prefix; i++ {
				prefix = append(prefix, outbound.Call{Target: common.HexToAddress("0xcccc"), CallData: []byte{byte(i)}})
			}

			argsList := [][]any{{big.NewInt(1)}, {big.NewInt(2)}, {big.NewInt(3)}}
			values, err := engine.Multicall(context.Background(), handle, "getMarketPool", argsList, &CallOpts{PrefixCalls: prefix})
			if err != nil {
				t.Fatalf("Multicall: %v", err)
			}
			if len(values) != 3 {
				t.Fatalf("len(values) = %d, want 3", len(values))
			}
			for i, v := range values {
				want := int64(1001 + i)
				if v.(*big.Int).Int64() != want {
					t.Errorf("values[%d] = %v, want %d", i, v, want)
				}
			}

			last := fwd.Batches[len(fwd.Batches)-1]
			if len(last) != tt.prefix+len(tt.staleSets)+3 {
				t.Errorf("final batch size = %d, want %d", len(last), tt.prefix+len(tt.staleSets)+3)
			}
			if fwd.CallCount() != len(tt.staleSets)+1 {
				t.Errorf("attempts = %d, want %d", fwd.CallCount(), len(tt.staleSets)+1)
			}
		})
	}
}

// A forwarder answering with the wrong number of results is an error.
func TestEngine_Multicall_ResultCountMismatch(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = func(context.Context, []outbound.Call, *big.Int, *big.Int) ([]outbound.Result, error) {
		return []outbound.Result{{Success: true}}, nil
	}
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	_, err := engine.Multicall(context.Background(), handle, "getMarketPool", [][]any{{big.NewInt(1)}, {big.NewInt(2)}}, nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
}

func TestEngine_Multicall_Empty(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	values, err := engine.Multicall(context.Background(), newCoreHandle(t), "getMarketPool", nil, nil)
	if err != nil {
		t.Fatalf("Multicall: %v", err)
	}
	if len(values) != 0 || fwd.CallCount() != 0 {
		t.Errorf("values = %v, attempts = %d; want none", values, fwd.CallCount())
	}
}

// Reverts other than OracleDataRequired end the loop without touching the
// price service.
func TestEngine_NonOracleRevertIsTerminal(t *testing.T) {
	valid := testutil.PackOracleDataRequired(t, testOracle, 1, 60, [][32]byte{feedETH})
	nearMiss := append([]byte{}, valid...)
	nearMiss[3] ^= 0x01

	tests := []struct {
		name       string
		revertData []byte
	}{
		{name: "empty revert", revertData: []byte{}},
		{name: "one bit off selector", revertData: nearMiss},
		{name: "Error(string)", revertData: testutil.PackErrorString(t, "PermissionDenied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle := newCoreHandle(t)
			fwd := testutil.NewMockForwarder()
			fwd.AggregateFn = func(context.Context, []outbound.Call, *big.Int, *big.Int) ([]outbound.Result, error) {
				return nil, &testutil.RevertError{Data: tt.revertData}
			}
			prices := testutil.EchoPayloads()
			engine := newTestEngine(t, fwd, prices)

			_, err := engine.Call(context.Background(), handle, "getUsdToken", nil, nil)
			var callErr *ContractCallError
			if !errors.As(err, &callErr) {
				t.Fatalf("err = %v, want *ContractCallError", err)
			}
			if !bytes.Equal(callErr.RevertData, tt.revertData) {
				t.Errorf("RevertData = %x, want %x", callErr.RevertData, tt.revertData)
			}
			if callErr.Method != "getUsdToken" {
				t.Errorf("Method = %q", callErr.Method)
			}
			if prices.CallCount() != 0 {
				t.Errorf("price service calls = %d, want 0", prices.CallCount())
			}
			if fwd.CallCount() != 1 {
				t.Errorf("attempts = %d, want 1", fwd.CallCount())
			}
		})
	}
}

func TestEngine_FailedLogicalResultIsClassified(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	attempts := 0
	fwd.AggregateFn = func(_ context.Context, calls []outbound.Call, _ *big.Int, _ *big.Int) ([]outbound.Result, error) {
		attempts++
		if attempts == 1 {
			return []outbound.Result{{
				Success:    false,
				ReturnData: testutil.PackOracleDataRequired(t, testOracle, 1, 60, [][32]byte{feedETH}),
			}}, nil
		}
		results := make([]outbound.Result, len(calls))
		for i := range results {
			results[i] = outbound.Result{Success: true, ReturnData: testutil.PackUint256(t, big.NewInt(7))}
		}
		return results, nil
	}
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	got, err := engine.Call(context.Background(), handle, "getMarketPool", []any{big.NewInt(1)}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.(*big.Int).Int64() != 7 {
		t.Errorf("got %v, want 7", got)
	}
}

func TestEngine_TransportErrorWithoutRevertData(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	transportErr := errors.New("dial tcp 127.0.0.1:8545: connection refused")
	fwd.AggregateFn = func(context.Context, []outbound.Call, *big.Int, *big.Int) ([]outbound.Result, error) {
		return nil, transportErr
	}
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	_, err := engine.Call(context.Background(), newCoreHandle(t), "getUsdToken", nil, nil)
	var callErr *ContractCallError
	if !errors.As(err, &callErr) {
		t.Fatalf("err = %v, want *ContractCallError", err)
	}
	if callErr.RevertData != nil {
		t.Errorf("RevertData = %x, want nil", callErr.RevertData)
	}
	if !errors.Is(err, transportErr) {
		t.Error("transport error not in chain")
	}
}

func TestEngine_MalformedOracleErrorIsFatal(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = func(context.Context, []outbound.Call, *big.Int, *big.Int) ([]outbound.Result, error) {
		return nil, &testutil.RevertError{Data: testutil.PackOracleDataRequiredRaw(t, testOracle, []byte{0xff})}
	}
	prices := testutil.EchoPayloads()
	engine := newTestEngine(t, fwd, prices)

	_, err := engine.Call(context.Background(), newCoreHandle(t), "getUsdToken", nil, nil)
	var malformed *MalformedOracleError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedOracleError", err)
	}
	if prices.CallCount() != 0 || fwd.CallCount() != 1 {
		t.Errorf("prices = %d, attempts = %d; want 0, 1", prices.CallCount(), fwd.CallCount())
	}
}

// A price service failure mid-retry surfaces immediately.
func TestEngine_PriceServiceErrorMidRetry(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = oracleChain(t, [][][32]byte{{feedETH}, {feedBTC}}, poolAnswer(t, handle))

	upstream := errors.New("hermes: 503 service unavailable")
	prices := &testutil.MockPriceProvider{}
	prices.GetFeedsFn = func(_ context.Context, feedIDs [][32]byte) ([][]byte, error) {
		if prices.CallCount() == 2 {
			return nil, upstream
		}
		return [][]byte{[]byte("vaa")}, nil
	}
	engine := newTestEngine(t, fwd, prices)

	_, err := engine.Call(context.Background(), handle, "getMarketPool", []any{big.NewInt(1)}, nil)
	var priceErr *PriceServiceError
	if !errors.As(err, &priceErr) {
		t.Fatalf("err = %v, want *PriceServiceError", err)
	}
	if !errors.Is(err, upstream) {
		t.Error("upstream error not in chain")
	}
	if len(priceErr.FeedIDs) != 1 || priceErr.FeedIDs[0] != feedBTC {
		t.Errorf("FeedIDs = %x, want [BTC]", priceErr.FeedIDs)
	}
	if fwd.CallCount() != 2 {
		t.Errorf("attempts = %d, want 2 (no third batch)", fwd.CallCount())
	}
}

func TestEngine_PriceServiceShortResponse(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = oracleChain(t, [][][32]byte{{feedETH, feedBTC}}, nil)
	prices := &testutil.MockPriceProvider{
		GetFeedsFn: func(context.Context, [][32]byte) ([][]byte, error) {
			return [][]byte{[]byte("only-one")}, nil
		},
	}
	engine := newTestEngine(t, fwd, prices)

	_, err := engine.Call(context.Background(), newCoreHandle(t), "getUsdToken", nil, nil)
	var priceErr *PriceServiceError
	if !errors.As(err, &priceErr) {
		t.Fatalf("err = %v, want *PriceServiceError", err)
	}
}

// The batch value is the sum of call values and a fulfillment carries one
// fee per update.
func TestEngine_ValueAccumulation(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = oracleChain(t, [][][32]byte{{feedETH, feedBTC, testutil.FeedID(3)}}, poolAnswer(t, handle))

	engine, err := NewEngine(EngineConfig{
		Forwarder:    fwd,
		Prices:       testutil.EchoPayloads(),
		FeePerUpdate: big.NewInt(10),
		Logger:       testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	prefix := []outbound.Call{{Target: common.HexToAddress("0xaaaa"), Value: big.NewInt(5)}}
	if _, err := engine.Call(context.Background(), handle, "getMarketPool", []any{big.NewInt(1)}, &CallOpts{PrefixCalls: prefix}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	retry := fwd.Batches[1]
	fulfillment := retry[1]
	if fulfillment.Value.Int64() != 30 {
		t.Errorf("fulfillment value = %s, want 3 updates * 10", fulfillment.Value)
	}
	for i, batch := range fwd.Batches {
		if fwd.Values[i].Cmp(outbound.TotalValue(batch)) != 0 {
			t.Errorf("attempt %d value = %s, want %s", i, fwd.Values[i], outbound.TotalValue(batch))
		}
	}
	if fwd.Values[1].Int64() != 35 {
		t.Errorf("retry value = %s, want 35", fwd.Values[1])
	}
}

// Decoding the same result twice gives the same value.
func TestEngine_IdempotentDecoding(t *testing.T) {
	handle := newCoreHandle(t)
	r := outbound.Result{Success: true, ReturnData: testutil.PackUint256(t, big.NewInt(42))}

	a, err := decodeResult(handle, "getMarketPool", r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := decodeResult(handle, "getMarketPool", r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.(*big.Int).Cmp(b.(*big.Int)) != 0 || a.(*big.Int).Int64() != 42 {
		t.Errorf("decodes differ: %v vs %v", a, b)
	}
	if !bytes.Equal(r.ReturnData, testutil.PackUint256(t, big.NewInt(42))) {
		t.Error("return data mutated by decode")
	}
}

func TestEngine_DecodeError(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = func(_ context.Context, calls []outbound.Call, _ *big.Int, _ *big.Int) ([]outbound.Result, error) {
		return []outbound.Result{{Success: true, ReturnData: []byte{0x01, 0x02}}}, nil
	}
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	_, err := engine.Call(context.Background(), newCoreHandle(t), "getUsdToken", nil, nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if decodeErr.Method != "getUsdToken" || !bytes.Equal(decodeErr.Data, []byte{0x01, 0x02}) {
		t.Errorf("DecodeError = %+v", decodeErr)
	}
}

// A sufficient prefix means one estimate and a buffered gas limit.
func TestEngine_Write_PrefixSufficient(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	fwd.EstimateGasFn = func(_ context.Context, from common.Address, calls []outbound.Call, value *big.Int) (uint64, error) {
		if from != sender {
			t.Errorf("from = %s, want %s", from.Hex(), sender.Hex())
		}
		return 200_001, nil
	}
	prices := testutil.EchoPayloads()
	engine := newTestEngine(t, fwd, prices)

	prefix, err := BuildFulfillment(&OracleErrorInfo{OracleAddress: testOracle, UpdateType: 1, FeedIDs: [][32]byte{feedETH}}, [][]byte{[]byte("vaa")}, nil)
	if err != nil {
		t.Fatalf("BuildFulfillment: %v", err)
	}

	args := []any{big.NewInt(1), common.HexToAddress("0xcccc"), big.NewInt(1e18)}
	tx, err := engine.Write(context.Background(), handle, "deposit", args, &WriteOpts{
		PrefixCalls: []outbound.Call{prefix},
		From:        sender,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if fwd.CallCount() != 1 {
		t.Errorf("estimates = %d, want 1", fwd.CallCount())
	}
	if prices.CallCount() != 0 {
		t.Errorf("price service calls = %d, want 0", prices.CallCount())
	}
	// ceil(200001 * 1.15) = 230002
	if tx.Gas != 230_002 {
		t.Errorf("Gas = %d, want 230002", tx.Gas)
	}
	if tx.To != fwd.Address() || tx.From != sender {
		t.Errorf("To/From = %s/%s", tx.To.Hex(), tx.From.Hex())
	}
	if tx.Value.Int64() != 1 {
		t.Errorf("Value = %s, want 1 (prefix fulfillment)", tx.Value)
	}
	if tx.ChainID.Int64() != 10 {
		t.Errorf("ChainID = %s, want 10", tx.ChainID)
	}
	wantData, _ := fwd.Pack(fwd.Batches[0])
	if !bytes.Equal(tx.Data, wantData) {
		t.Error("Data does not pack the estimated batch")
	}
}

func TestEngine_Write_FulfillsThenEstimates(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	fwd.EstimateGasFn = func(_ context.Context, _ common.Address, calls []outbound.Call, _ *big.Int) (uint64, error) {
		if countFulfillments(calls) == 0 {
			return 0, &testutil.RevertError{Data: testutil.PackOracleDataRequired(t, testOracle, 1, 60, [][32]byte{feedETH})}
		}
		return 100, nil
	}
	engine := newTestEngine(t, fwd, testutil.EchoPayloads())

	tx, err := engine.Write(context.Background(), handle, "withdraw",
		[]any{big.NewInt(1), common.HexToAddress("0xcccc"), big.NewInt(5)},
		&WriteOpts{From: sender, Value: big.NewInt(4)})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if tx.Gas != 115 {
		t.Errorf("Gas = %d, want 115", tx.Gas)
	}
	if tx.Value.Int64() != 5 {
		t.Errorf("Value = %s, want 4 + 1 fee", tx.Value)
	}
	final := fwd.Batches[len(fwd.Batches)-1]
	if len(final) != 2 || !isFulfillment(final[0]) {
		t.Errorf("final batch = %+v, want [fulfillment, withdraw]", final)
	}
}

func TestEngine_Write_ZeroGasBufferUsesEstimate(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	fwd.EstimateGasFn = func(context.Context, common.Address, []outbound.Call, *big.Int) (uint64, error) {
		return 200_001, nil
	}
	engine, err := NewEngine(EngineConfig{
		Forwarder:        fwd,
		Prices:           testutil.EchoPayloads(),
		GasBufferPercent: GasBufferPercent(0),
		Logger:           testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	tx, err := engine.Write(context.Background(), newCoreHandle(t), "deposit",
		[]any{big.NewInt(7), common.HexToAddress("0xcccc"), big.NewInt(1)}, &WriteOpts{From: sender})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if tx.Gas != 200_001 {
		t.Errorf("Gas = %d, want the bare estimate 200001", tx.Gas)
	}
}

func TestEngine_WriteDirect(t *testing.T) {
	token := common.HexToAddress("0x5555555555555555555555555555555555555555")
	spender := common.HexToAddress("0x6666666666666666666666666666666666666666")
	handle, err := contract.NewERC20("sETH", token)
	if err != nil {
		t.Fatalf("NewERC20: %v", err)
	}
	wantData, err := handle.EncodeCall("approve", spender, big.NewInt(9))
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}

	tests := []struct {
		name      string
		estimator outbound.GasEstimator
		wantGas   uint64
	}{
		{
			name: "estimated",
			estimator: testutil.GasEstimatorFunc(func(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
				if msg.To == nil || *msg.To != token || msg.From != sender {
					t.Errorf("estimate msg = %+v", msg)
				}
				if !bytes.Equal(msg.Data, wantData) {
					t.Error("estimate data is not the approve calldata")
				}
				return 100, nil
			}),
			wantGas: 115,
		},
		{name: "no estimator leaves gas to the signer", wantGas: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := testutil.NewMockForwarder()
			engine, err := NewEngine(EngineConfig{
				Forwarder: fwd,
				Prices:    testutil.EchoPayloads(),
				Estimator: tt.estimator,
				ChainID:   big.NewInt(10),
				Logger:    testutil.DiscardLogger(),
			})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}

			tx, err := engine.WriteDirect(context.Background(), handle, "approve", []any{spender, big.NewInt(9)}, &WriteOpts{From: sender})
			if err != nil {
				t.Fatalf("WriteDirect: %v", err)
			}
			if tx.To != token {
				t.Errorf("To = %s, want the token %s", tx.To.Hex(), token.Hex())
			}
			if !bytes.Equal(tx.Data, wantData) {
				t.Error("Data is not the approve calldata")
			}
			if tx.Gas != tt.wantGas {
				t.Errorf("Gas = %d, want %d", tx.Gas, tt.wantGas)
			}
			if tx.Value.Sign() != 0 || tx.From != sender || tx.ChainID.Int64() != 10 {
				t.Errorf("tx = %+v", tx)
			}
			if fwd.CallCount() != 0 {
				t.Errorf("forwarder attempts = %d, want 0", fwd.CallCount())
			}
		})
	}
}

func TestEngine_WriteDirect_RejectsPrefixCalls(t *testing.T) {
	engine := newTestEngine(t, testutil.NewMockForwarder(), testutil.EchoPayloads())
	_, err := engine.WriteDirect(context.Background(), newCoreHandle(t), "getUsdToken",
		nil, &WriteOpts{PrefixCalls: []outbound.Call{{Target: testOracle}}})
	if err == nil {
		t.Fatal("expected an error for prefix calls on a direct write")
	}
}

func TestEngine_FreshProviderHeldToStalenessTolerance(t *testing.T) {
	handle := newCoreHandle(t)
	fwd := testutil.NewMockForwarder()
	fwd.AggregateFn = oracleChain(t, [][][32]byte{{feedETH}}, func(outbound.Call) []byte {
		return testutil.PackAddress(t, coreAddress)
	})
	prices := &testutil.MockFreshPriceProvider{}
	prices.GetFeedsFn = testutil.EchoPayloads().GetFeedsFn
	engine := newTestEngine(t, fwd, prices)

	if _, err := engine.Call(context.Background(), handle, "getUsdToken", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(prices.MaxAges) != 1 || prices.MaxAges[0] != 60*time.Second {
		t.Errorf("max ages = %v, want [1m0s]", prices.MaxAges)
	}
}

func TestEngine_ContextCancelledStopsLoop(t *testing.T) {
	fwd := testutil.NewMockForwarder()
	// Always stale: only cancellation ends the loop.
	fwd.AggregateFn = func(context.Context, []outbound.Call, *big.Int, *big.Int) ([]outbound.Result, error) {
		return nil, &testutil.RevertError{Data: testutil.PackOracleDataRequired(t, testOracle, 1, 60, [][32]byte{feedETH})}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	prices := &testutil.MockPriceProvider{}
	prices.GetFeedsFn = func(_ context.Context, feedIDs [][32]byte) ([][]byte, error) {
		if prices.CallCount() >= 5 {
			cancel()
		}
		return make([][]byte, len(feedIDs)), nil
	}
	engine := newTestEngine(t, fwd, prices)

	_, err := engine.Call(ctx, newCoreHandle(t), "getUsdToken", nil, nil)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context error", err)
	}
	if fwd.CallCount() < 1 {
		t.Error("expected at least one attempt")
	}
}

func TestBufferGas(t *testing.T) {
	tests := []struct {
		estimate, percent, want uint64
	}{
		{estimate: 100, percent: 15, want: 115},
		{estimate: 101, percent: 15, want: 117},
		{estimate: 200_001, percent: 15, want: 230_002},
		{estimate: 0, percent: 15, want: 0},
		{estimate: 21_000, percent: 0, want: 21_000},
	}
	for _, tt := range tests {
		if got := BufferGas(tt.estimate, tt.percent); got != tt.want {
			t.Errorf("BufferGas(%d, %d) = %d, want %d", tt.estimate, tt.percent, got, tt.want)
		}
	}
}
