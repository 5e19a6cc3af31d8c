package multicall

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// ContractCaller is the subset of ethclient.Client the forwarder needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Client executes batches through the TrustedMulticallForwarder's
// aggregate3Value entry point.
type Client struct {
	caller  ContractCaller
	address common.Address
	abi     *abi.ABI
}

var _ outbound.Forwarder = (*Client)(nil)

func NewClient(caller ContractCaller, forwarderAddress common.Address) (*Client, error) {
	forwarderABI, err := abis.GetTrustedMulticallForwarderABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load forwarder ABI: %w", err)
	}

	return &Client{
		caller:  caller,
		address: forwarderAddress,
		abi:     forwarderABI,
	}, nil
}

func (c *Client) Address() common.Address {
	return c.address
}

// call3Value mirrors the Call3Value tuple of aggregate3Value.
type call3Value struct {
	Target       common.Address
	AllowFailure bool
	Value        *big.Int
	CallData     []byte
}

func (c *Client) Pack(calls []outbound.Call) ([]byte, error) {
	packed := make([]call3Value, len(calls))
	for i, call := range calls {
		value := call.Value
		if value == nil {
			value = new(big.Int)
		}
		packed[i] = call3Value{
			Target:       call.Target,
			AllowFailure: call.AllowFailure,
			Value:        value,
			CallData:     call.CallData,
		}
	}

	data, err := c.abi.Pack("aggregate3Value", packed)
	if err != nil {
		return nil, fmt.Errorf("failed to pack multicall: %w", err)
	}
	return data, nil
}

// Aggregate runs the batch as an eth_call. Node errors are wrapped with %w so
// revert data stays reachable through errors.As.
func (c *Client) Aggregate(ctx context.Context, calls []outbound.Call, value *big.Int, blockNumber *big.Int) ([]outbound.Result, error) {
	if len(calls) == 0 {
		return []outbound.Result{}, nil
	}

	data, err := c.Pack(calls)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{
		To:    &c.address,
		Value: value,
		Data:  data,
	}

	result, err := c.caller.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to call forwarder at address=%s block=%s calls=%d: %w",
			c.address.Hex(), blockNumberString(blockNumber), len(calls), err)
	}

	unpacked, err := c.abi.Unpack("aggregate3Value", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack forwarder response at block=%s: %w",
			blockNumberString(blockNumber), err)
	}

	resultsRaw, ok := unpacked[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})
	if !ok {
		return nil, fmt.Errorf("unexpected forwarder response type %T", unpacked[0])
	}

	results := make([]outbound.Result, len(resultsRaw))
	for i, r := range resultsRaw {
		results[i] = outbound.Result{
			Success:    r.Success,
			ReturnData: r.ReturnData,
		}
	}

	return results, nil
}

func (c *Client) EstimateGas(ctx context.Context, from common.Address, calls []outbound.Call, value *big.Int) (uint64, error) {
	data, err := c.Pack(calls)
	if err != nil {
		return 0, err
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &c.address,
		Value: value,
		Data:  data,
	}

	gas, err := c.caller.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas via forwarder at address=%s calls=%d: %w",
			c.address.Hex(), len(calls), err)
	}
	return gas, nil
}

func blockNumberString(blockNumber *big.Int) string {
	if blockNumber == nil {
		return "latest"
	}
	return blockNumber.String()
}
