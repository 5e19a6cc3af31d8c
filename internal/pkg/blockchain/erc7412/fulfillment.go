package erc7412

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// DefaultFeePerUpdate is the value, in wei, attached per price update.
var DefaultFeePerUpdate = big.NewInt(1)

var erc7412ABI = mustLoadERC7412ABI()

func mustLoadERC7412ABI() *abi.ABI {
	parsed, err := abis.GetERC7412ABI()
	if err != nil {
		panic(fmt.Sprintf("erc7412: loading ABI: %v", err))
	}
	return parsed
}

// EncodeOracleQuery encodes the fulfillOracleQuery argument:
// (uint8 updateType, uint64 stalenessTolerance, bytes32[] feedIds, bytes[] updates).
func EncodeOracleQuery(updateType uint8, stalenessTolerance uint64, feedIDs [][32]byte, updates [][]byte) ([]byte, error) {
	if feedIDs == nil {
		feedIDs = [][32]byte{}
	}
	if updates == nil {
		updates = [][]byte{}
	}
	return fulfillmentArgs.Pack(updateType, stalenessTolerance, feedIDs, updates)
}

// BuildFulfillment builds the fulfillOracleQuery call that satisfies info.
// Its value is len(updates) * feePerUpdate; a nil fee uses DefaultFeePerUpdate.
func BuildFulfillment(info *OracleErrorInfo, updates [][]byte, feePerUpdate *big.Int) (outbound.Call, error) {
	data, err := EncodeOracleQuery(info.UpdateType, info.StalenessTolerance, info.FeedIDs, updates)
	if err != nil {
		return outbound.Call{}, fmt.Errorf("encoding oracle query: %w", err)
	}

	callData, err := erc7412ABI.Pack("fulfillOracleQuery", data)
	if err != nil {
		return outbound.Call{}, fmt.Errorf("packing fulfillOracleQuery: %w", err)
	}

	if feePerUpdate == nil {
		feePerUpdate = DefaultFeePerUpdate
	}
	value := new(big.Int).Mul(big.NewInt(int64(len(updates))), feePerUpdate)

	return outbound.Call{
		Target:   info.OracleAddress,
		Value:    value,
		CallData: callData,
	}, nil
}

// insertBeforeLogical returns a new batch with call placed immediately before
// the trailing numLogical entries.
func insertBeforeLogical(batch []outbound.Call, call outbound.Call, numLogical int) []outbound.Call {
	at := len(batch) - numLogical
	out := make([]outbound.Call, 0, len(batch)+1)
	out = append(out, batch[:at]...)
	out = append(out, call)
	out = append(out, batch[at:]...)
	return out
}
