package synthetix

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/snx-sdk/internal/adapters/outbound/deployments"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/pkg/wei"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
	"github.com/archon-research/snx-sdk/internal/testutil"
)

var (
	usdAddress     = common.HexToAddress("0xb2F30A7C980f052f02563fb518dcc39e6bf38175")
	coreAddress    = common.HexToAddress("0xffffffaEff0B96Ea8e4f94b2253f31abdD875847")
	accountAddress = common.HexToAddress("0x0E429603D3Cb1DFae4E6F52Add5fE82d96d77Dac")
	oracleAddress  = common.HexToAddress("0x0000000000000000000000000000000000007412")
	holder         = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func balanceOfSelector(t *testing.T) []byte {
	t.Helper()
	erc20, err := abis.GetERC20ABI()
	if err != nil {
		t.Fatalf("GetERC20ABI: %v", err)
	}
	return erc20.Methods["balanceOf"].ID
}

// usdNode answers balanceOf on the USD proxy with balance. With stale set, any
// batch lacking a fulfillment reverts with OracleDataRequired for feed.
func usdNode(t *testing.T, balance *big.Int, stale bool, feed [32]byte) testutil.MockNode {
	selector := balanceOfSelector(t)
	return testutil.MockNode{
		ChainID:  420,
		Gas:      100000,
		Balances: map[common.Address]*big.Int{holder: wei.FromEther(decimal.NewFromFloat(1.5))},
		Handler: func(method string, calls []outbound.Call) ([]outbound.Result, []byte) {
			if stale && !testutil.HasCallTo(calls, oracleAddress, nil) {
				return nil, testutil.PackOracleDataRequired(t, oracleAddress, 1, 60, [][32]byte{feed})
			}
			results := make([]outbound.Result, len(calls))
			for i, c := range calls {
				switch {
				case c.Target == oracleAddress:
					results[i] = outbound.Result{Success: true}
				case c.Target == usdAddress && bytes.HasPrefix(c.CallData, selector):
					results[i] = outbound.Result{Success: true, ReturnData: testutil.PackUint256(t, balance)}
				default:
					results[i] = outbound.Result{Success: false, ReturnData: testutil.PackErrorString(t, "unexpected call")}
				}
			}
			return results, nil
		},
	}
}

func testConfig(rpcURL string) Config {
	return Config{
		RPCURL:  rpcURL,
		Address: holder,
		Contracts: map[string]common.Address{
			"USDProxy":     usdAddress,
			"CoreProxy":    coreAddress,
			"AccountProxy": accountAddress,
		},
		Logger: testutil.DiscardLogger(),
	}
}

func TestNew_RequiresRPCURL(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing rpc url")
	}
}

func TestNew_WrongNetwork(t *testing.T) {
	server := testutil.StartMockForwarderRPC(t, usdNode(t, big.NewInt(0), false, [32]byte{}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.NetworkID = 10

	_, err := New(context.Background(), cfg)
	if !errors.Is(err, ErrWrongNetwork) {
		t.Fatalf("err = %v, want ErrWrongNetwork", err)
	}
}

func TestNew_OptionalModules(t *testing.T) {
	server := testutil.StartMockForwarderRPC(t, usdNode(t, big.NewInt(0), false, [32]byte{}))
	defer server.Close()

	client, err := New(context.Background(), testConfig(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if client.NetworkID != 420 {
		t.Errorf("NetworkID = %d, want 420", client.NetworkID)
	}
	if client.Core == nil {
		t.Error("expected core service")
	}
	if client.Perps != nil || client.Spot != nil {
		t.Error("perps and spot are not deployed and should be nil")
	}
	if !client.Registry().Has("TrustedMulticallForwarder") {
		t.Error("registry should include the forwarder")
	}
	if got := client.Engine.Forwarder().Address(); got != deployments.TrustedMulticallForwarderAddress {
		t.Errorf("forwarder = %s", got.Hex())
	}
}

func TestClient_GetETHBalance(t *testing.T) {
	server := testutil.StartMockForwarderRPC(t, usdNode(t, big.NewInt(0), false, [32]byte{}))
	defer server.Close()

	client, err := New(context.Background(), testConfig(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	got, err := client.GetETHBalance(context.Background(), common.Address{})
	if err != nil {
		t.Fatalf("GetETHBalance: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("balance = %s, want 1.5", got)
	}
}

func TestClient_GetSUSDBalance(t *testing.T) {
	balance := wei.FromEther(decimal.NewFromInt(250))
	server := testutil.StartMockForwarderRPC(t, usdNode(t, balance, false, [32]byte{}))
	defer server.Close()

	client, err := New(context.Background(), testConfig(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	got, err := client.GetSUSDBalance(context.Background(), holder)
	if err != nil {
		t.Fatalf("GetSUSDBalance: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(250)) {
		t.Errorf("balance = %s, want 250", got)
	}
}

func TestClient_GetSUSDBalance_FulfillsStaleOracle(t *testing.T) {
	feed := testutil.FeedID(7)
	var priceRequests atomic.Int32
	pythServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		priceRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["` + base64.StdEncoding.EncodeToString([]byte("vaa")) + `"]`))
	}))
	defer pythServer.Close()

	balance := wei.FromEther(decimal.NewFromInt(42))
	server := testutil.StartMockForwarderRPC(t, usdNode(t, balance, true, feed))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.PriceServiceURL = pythServer.URL

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	for i := 0; i < 2; i++ {
		got, err := client.GetSUSDBalance(context.Background(), holder)
		if err != nil {
			t.Fatalf("GetSUSDBalance: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(42)) {
			t.Errorf("balance = %s, want 42", got)
		}
	}

	// The second read reuses the cached update.
	if n := priceRequests.Load(); n != 1 {
		t.Errorf("price service requests = %d, want 1", n)
	}
}

func TestClient_Approve(t *testing.T) {
	spender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	erc20, _ := abis.GetERC20ABI()

	var estimated []common.Address
	node := usdNode(t, big.NewInt(0), false, [32]byte{})
	node.Direct = func(to common.Address, _ []byte) { estimated = append(estimated, to) }
	server := testutil.StartMockForwarderRPC(t, node)
	defer server.Close()

	client, err := New(context.Background(), testConfig(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	amount := decimal.NewFromInt(3)
	tx, err := client.Approve(context.Background(), usdAddress, spender, &amount)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if tx.To != usdAddress || tx.From != holder {
		t.Errorf("to/from = %s/%s, want token/holder", tx.To.Hex(), tx.From.Hex())
	}
	if tx.Gas != 115_000 {
		t.Errorf("gas = %d, want buffered 100000", tx.Gas)
	}
	if len(estimated) != 1 || estimated[0] != usdAddress {
		t.Errorf("direct estimates = %v, want one to the token", estimated)
	}

	args, err := erc20.Methods["approve"].Inputs.Unpack(tx.Data[4:])
	if err != nil {
		t.Fatalf("decoding approve: %v", err)
	}
	if args[0].(common.Address) != spender || args[1].(*big.Int).Cmp(wei.FromEther(amount)) != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestClient_WrapETH(t *testing.T) {
	wethAddress := common.HexToAddress("0x4200000000000000000000000000000000000006")
	weth, _ := abis.GetWETHABI()

	tests := []struct {
		name      string
		amount    string
		method    string
		wantValue *big.Int
	}{
		{name: "wrap", amount: "0.5", method: "deposit", wantValue: wei.FromEther(decimal.RequireFromString("0.5"))},
		{name: "unwrap", amount: "-0.5", method: "withdraw", wantValue: new(big.Int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.StartMockForwarderRPC(t, usdNode(t, big.NewInt(0), false, [32]byte{}))
			defer server.Close()

			cfg := testConfig(server.URL)
			cfg.Contracts["WETH"] = wethAddress
			client, err := New(context.Background(), cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer client.Close()

			tx, err := client.WrapETH(context.Background(), decimal.RequireFromString(tt.amount))
			if err != nil {
				t.Fatalf("WrapETH: %v", err)
			}
			if tx.To != wethAddress {
				t.Errorf("to = %s, want WETH", tx.To.Hex())
			}
			if tx.Value.Cmp(tt.wantValue) != 0 {
				t.Errorf("value = %s, want %s", tx.Value, tt.wantValue)
			}
			method := weth.Methods[tt.method]
			if !bytes.HasPrefix(tx.Data, method.ID) {
				t.Fatalf("data %x is not a %s call", tx.Data, tt.method)
			}
			if tt.method == "withdraw" {
				args, err := method.Inputs.Unpack(tx.Data[4:])
				if err != nil {
					t.Fatalf("decoding withdraw: %v", err)
				}
				if args[0].(*big.Int).Cmp(wei.FromEther(decimal.RequireFromString("0.5"))) != 0 {
					t.Errorf("withdraw amount = %v, want 0.5 ether", args[0])
				}
			}
		})
	}
}

func TestClient_WrapETH_Errors(t *testing.T) {
	server := testutil.StartMockForwarderRPC(t, usdNode(t, big.NewInt(0), false, [32]byte{}))
	defer server.Close()

	client, err := New(context.Background(), testConfig(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if _, err := client.WrapETH(context.Background(), decimal.Zero); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := client.WrapETH(context.Background(), decimal.NewFromInt(1)); !errors.Is(err, deployments.ErrContractNotFound) {
		t.Errorf("err = %v, want ErrContractNotFound without WETH", err)
	}
}
