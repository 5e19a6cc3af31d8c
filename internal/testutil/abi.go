package testutil

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// PackOracleDataRequired ABI-encodes an OracleDataRequired revert payload,
// selector included.
func PackOracleDataRequired(t *testing.T, oracle common.Address, updateType uint8, staleness uint64, feedIDs [][32]byte) []byte {
	t.Helper()
	return PackOracleDataRequiredRaw(t, oracle, PackOracleQuery(t, updateType, staleness, feedIDs))
}

// PackOracleDataRequiredRaw wraps an arbitrary oracle query in the
// OracleDataRequired error encoding.
func PackOracleDataRequiredRaw(t *testing.T, oracle common.Address, query []byte) []byte {
	t.Helper()
	erc7412ABI, err := abis.GetERC7412ABI()
	if err != nil {
		t.Fatalf("loading ERC7412 ABI: %v", err)
	}
	errDef := erc7412ABI.Errors["OracleDataRequired"]
	body, err := errDef.Inputs.Pack(oracle, query)
	if err != nil {
		t.Fatalf("packing OracleDataRequired: %v", err)
	}
	return append(append([]byte{}, errDef.ID[:4]...), body...)
}

// PackOracleQuery ABI-encodes (uint8, uint64, bytes32[]).
func PackOracleQuery(t *testing.T, updateType uint8, staleness uint64, feedIDs [][32]byte) []byte {
	t.Helper()
	args := mustArguments(t, "uint8", "uint64", "bytes32[]")
	if feedIDs == nil {
		feedIDs = [][32]byte{}
	}
	data, err := args.Pack(updateType, staleness, feedIDs)
	if err != nil {
		t.Fatalf("packing oracle query: %v", err)
	}
	return data
}

// PackErrorString ABI-encodes a Solidity Error(string) revert payload.
func PackErrorString(t *testing.T, reason string) []byte {
	t.Helper()
	args := mustArguments(t, "string")
	body, err := args.Pack(reason)
	if err != nil {
		t.Fatalf("packing Error(string): %v", err)
	}
	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, body...)
}

// PackUint256 ABI-encodes a single uint256 return value.
func PackUint256(t *testing.T, v *big.Int) []byte {
	t.Helper()
	data, err := mustArguments(t, "uint256").Pack(v)
	if err != nil {
		t.Fatalf("packing uint256: %v", err)
	}
	return data
}

// PackAddress ABI-encodes a single address return value.
func PackAddress(t *testing.T, addr common.Address) []byte {
	t.Helper()
	data, err := mustArguments(t, "address").Pack(addr)
	if err != nil {
		t.Fatalf("packing address: %v", err)
	}
	return data
}

// PackMethodOutputs encodes values as the return data of method in contractABI.
func PackMethodOutputs(t *testing.T, contractABI *abi.ABI, method string, values ...any) []byte {
	t.Helper()
	m, ok := contractABI.Methods[method]
	if !ok {
		t.Fatalf("method %q not in ABI", method)
	}
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("packing %s outputs: %v", method, err)
	}
	return data
}

// PackForwarderResults encodes results as aggregate3Value return data.
func PackForwarderResults(t *testing.T, results []outbound.Result) []byte {
	t.Helper()
	forwarderABI, err := abis.GetTrustedMulticallForwarderABI()
	if err != nil {
		t.Fatalf("loading forwarder ABI: %v", err)
	}
	type result struct {
		Success    bool
		ReturnData []byte
	}
	raw := make([]result, len(results))
	for i, r := range results {
		raw[i] = result{Success: r.Success, ReturnData: r.ReturnData}
	}
	data, err := forwarderABI.Methods["aggregate3Value"].Outputs.Pack(raw)
	if err != nil {
		t.Fatalf("packing forwarder results: %v", err)
	}
	return data
}

func mustArguments(t *testing.T, types ...string) abi.Arguments {
	t.Helper()
	args := make(abi.Arguments, len(types))
	for i, typ := range types {
		abiType, err := abi.NewType(typ, "", nil)
		if err != nil {
			t.Fatalf("abi.NewType(%q): %v", typ, err)
		}
		args[i] = abi.Argument{Type: abiType}
	}
	return args
}
