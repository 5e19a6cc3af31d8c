// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Forwarder executes ordered call batches through an on-chain multicall
// forwarder that supports a per-call native-token value.
type Forwarder interface {
	// Aggregate runs the batch as an eth_call and returns one result per call,
	// in batch order. value is the total native-token value attached.
	Aggregate(ctx context.Context, calls []Call, value *big.Int, blockNumber *big.Int) ([]Result, error)

	// EstimateGas estimates the gas needed to submit the batch from the given sender.
	EstimateGas(ctx context.Context, from common.Address, calls []Call, value *big.Int) (uint64, error)

	// Pack returns the forwarder calldata for the batch.
	Pack(calls []Call) ([]byte, error)

	// Address returns the forwarder contract address.
	Address() common.Address
}

// GasEstimator estimates a plain transaction sent straight to its target.
// *ethclient.Client satisfies it.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Call is a single pending contract invocation.
type Call struct {
	Target       common.Address
	AllowFailure bool
	Value        *big.Int
	CallData     []byte
}

// Result is the outcome of one Call within a batch.
type Result struct {
	Success    bool
	ReturnData []byte
}

// TotalValue sums the value of every call in the batch. Nil values count as zero.
func TotalValue(calls []Call) *big.Int {
	total := new(big.Int)
	for _, c := range calls {
		if c.Value != nil {
			total.Add(total, c.Value)
		}
	}
	return total
}

// TxParams is a prepared, unsigned transaction. Nonce assignment and signing
// belong to the wallet that broadcasts it.
type TxParams struct {
	From    common.Address
	To      common.Address
	Data    []byte
	Value   *big.Int
	Gas     uint64
	ChainID *big.Int
}
