// Package shared provides what the protocol facades have in common: the
// oracle-aware call engine they run through and helpers for decoded values.
package shared

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/erc7412"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var _ Engine = (*erc7412.Engine)(nil)

// Engine runs contract reads and prepares writes, resolving oracle data
// requirements along the way.
type Engine interface {
	Call(ctx context.Context, handle outbound.ContractHandle, method string, args []any, opts *erc7412.CallOpts) (any, error)
	Multicall(ctx context.Context, handle outbound.ContractHandle, method string, argsList [][]any, opts *erc7412.CallOpts) ([]any, error)
	Write(ctx context.Context, handle outbound.ContractHandle, method string, args []any, opts *erc7412.WriteOpts) (*outbound.TxParams, error)
	WriteDirect(ctx context.Context, handle outbound.ContractHandle, method string, args []any, opts *erc7412.WriteOpts) (*outbound.TxParams, error)
}

// DefaultTrackingCode is "SYNTHETIX_SDK" as bytes32.
var DefaultTrackingCode = common.HexToHash("0x53594e5448455449585f53444b00000000000000000000000000000000000000")

// DefaultSlippagePercent is applied to the index price when an order has no
// explicit acceptable price.
const DefaultSlippagePercent = 2
