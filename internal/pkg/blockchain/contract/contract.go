// Package contract binds deployed contracts to the outbound.ContractHandle
// capability: encode a method call, decode its return data.
package contract

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var ErrUnknownMethod = errors.New("unknown method")

// NewCall builds a forwarder call to method on handle. A nil value means no
// native token is attached.
func NewCall(handle outbound.ContractHandle, value *big.Int, method string, args ...any) (outbound.Call, error) {
	data, err := handle.EncodeCall(method, args...)
	if err != nil {
		return outbound.Call{}, fmt.Errorf("encoding %s.%s: %w", handle.Name(), method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return outbound.Call{
		Target:   handle.Address(),
		Value:    value,
		CallData: data,
	}, nil
}

// unpackOutputs decodes return data against a method's outputs. A single
// output is returned unwrapped.
func unpackOutputs(outputs abi.Arguments, data []byte) (any, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	// ABI return data is always whole words; anything else is a revert
	// payload or a truncated response.
	if len(data) == 0 || len(data)%32 != 0 {
		return nil, fmt.Errorf("return data of %d bytes is not ABI-encoded output", len(data))
	}
	values, err := outputs.Unpack(data)
	if err != nil {
		return nil, err
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}
