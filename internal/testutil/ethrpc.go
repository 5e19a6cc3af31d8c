package testutil

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// JSONRPCRequest represents a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// ForwarderHandler answers one decoded aggregate3Value batch. Returning
// non-nil revert data makes the node respond with an execution-reverted error.
type ForwarderHandler func(method string, calls []outbound.Call) (results []outbound.Result, revertData []byte)

// MockNode configures StartMockForwarderRPC.
type MockNode struct {
	ChainID  int64
	Gas      uint64
	Balances map[common.Address]*big.Int
	Handler  ForwarderHandler

	// Direct sees eth_estimateGas requests that do not go through the
	// forwarder. They are answered with Gas.
	Direct func(to common.Address, data []byte)
}

// StartMockForwarderRPC creates a mock Ethereum node that decodes
// aggregate3Value batches sent by eth_call / eth_estimateGas and answers
// them through node.Handler.
func StartMockForwarderRPC(t *testing.T, node MockNode) *httptest.Server {
	t.Helper()

	forwarderABI, err := abis.GetTrustedMulticallForwarderABI()
	if err != nil {
		t.Fatalf("load forwarder ABI: %v", err)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		var req JSONRPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			WriteRPCError(w, json.RawMessage(`1`), -32700, "parse error")
			return
		}

		switch req.Method {
		case "eth_chainId":
			WriteRPCResult(w, req.ID, hexQuantity(big.NewInt(node.ChainID)))

		case "eth_getBalance":
			balance := new(big.Int)
			if addr, ok := firstParamAddress(req.Params); ok && node.Balances[addr] != nil {
				balance = node.Balances[addr]
			}
			WriteRPCResult(w, req.ID, hexQuantity(balance))

		case "eth_call", "eth_estimateGas":
			if to, data, ok := directCall(forwarderABI, req.Params); ok && req.Method == "eth_estimateGas" {
				if node.Direct != nil {
					node.Direct(to, data)
				}
				WriteRPCResult(w, req.ID, hexQuantity(new(big.Int).SetUint64(node.Gas)))
				return
			}
			calls, err := decodeForwarderCalls(forwarderABI, req.Params)
			if err != nil {
				WriteRPCError(w, req.ID, -32602, err.Error())
				return
			}
			results, revert := node.Handler(req.Method, calls)
			if revert != nil {
				WriteRPCRevert(w, req.ID, revert)
				return
			}
			if req.Method == "eth_estimateGas" {
				WriteRPCResult(w, req.ID, hexQuantity(new(big.Int).SetUint64(node.Gas)))
				return
			}
			packed := PackForwarderResults(t, results)
			resultJSON, _ := json.Marshal("0x" + hex.EncodeToString(packed))
			WriteRPCResult(w, req.ID, json.RawMessage(resultJSON))

		default:
			WriteRPCError(w, req.ID, -32601, "method not found: "+req.Method)
		}
	}))
}

// WriteRPCResult writes a JSON-RPC success response.
func WriteRPCResult(w http.ResponseWriter, id, result json.RawMessage) {
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"result":  result,
	})
}

// WriteRPCError writes a JSON-RPC error response.
func WriteRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	errJSON, _ := json.Marshal(map[string]interface{}{"code": code, "message": message})
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"error":   json.RawMessage(errJSON),
	})
}

// WriteRPCRevert writes an execution-reverted error carrying revert data, the
// way geth and anvil report a failing eth_call.
func WriteRPCRevert(w http.ResponseWriter, id json.RawMessage, data []byte) {
	errJSON, _ := json.Marshal(map[string]interface{}{
		"code":    3,
		"message": "execution reverted",
		"data":    "0x" + hex.EncodeToString(data),
	})
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"error":   json.RawMessage(errJSON),
	})
}

func hexQuantity(v *big.Int) json.RawMessage {
	out, _ := json.Marshal(fmt.Sprintf("0x%x", v))
	return out
}

func firstParamAddress(params json.RawMessage) (common.Address, bool) {
	var p []json.RawMessage
	if err := json.Unmarshal(params, &p); err != nil || len(p) < 1 {
		return common.Address{}, false
	}
	var s string
	if err := json.Unmarshal(p[0], &s); err != nil || !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// directCall reports a call object whose calldata is not an aggregate3Value batch.
func directCall(forwarderABI *abi.ABI, params json.RawMessage) (common.Address, []byte, bool) {
	callObj, data, err := callObject(params)
	if err != nil || bytes.HasPrefix(data, forwarderABI.Methods["aggregate3Value"].ID) {
		return common.Address{}, nil, false
	}
	to, _ := callObj["to"].(string)
	return common.HexToAddress(to), data, true
}

func callObject(params json.RawMessage) (map[string]interface{}, []byte, error) {
	var p []json.RawMessage
	if err := json.Unmarshal(params, &p); err != nil || len(p) < 1 {
		return nil, nil, fmt.Errorf("missing call object")
	}
	var callObj map[string]interface{}
	if err := json.Unmarshal(p[0], &callObj); err != nil {
		return nil, nil, err
	}
	// go-ethereum may use "data" or "input" for the calldata field
	dataHex, _ := callObj["data"].(string)
	if dataHex == "" {
		dataHex, _ = callObj["input"].(string)
	}
	data, err := hex.DecodeString(strings.TrimPrefix(dataHex, "0x"))
	if err != nil || len(data) < 4 {
		return nil, nil, fmt.Errorf("invalid calldata %q", dataHex)
	}
	return callObj, data, nil
}

// decodeForwarderCalls extracts the aggregate3Value batch from the call
// object of an eth_call or eth_estimateGas request.
func decodeForwarderCalls(forwarderABI *abi.ABI, params json.RawMessage) ([]outbound.Call, error) {
	_, data, err := callObject(params)
	if err != nil {
		return nil, err
	}

	unpacked, err := forwarderABI.Methods["aggregate3Value"].Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	type call3Value struct {
		Target       common.Address
		AllowFailure bool
		Value        *big.Int
		CallData     []byte
	}
	raw := *abi.ConvertType(unpacked[0], new([]call3Value)).(*[]call3Value)

	calls := make([]outbound.Call, len(raw))
	for i, c := range raw {
		calls[i] = outbound.Call{
			Target:       c.Target,
			AllowFailure: c.AllowFailure,
			Value:        c.Value,
			CallData:     c.CallData,
		}
	}
	return calls, nil
}
