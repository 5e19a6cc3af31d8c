package contract

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// ABIContract is a ContractHandle backed by a JSON ABI, typically loaded from
// a deployment file.
type ABIContract struct {
	name    string
	address common.Address
	abi     *abi.ABI
}

var _ outbound.ContractHandle = (*ABIContract)(nil)

func NewABIContract(name string, address common.Address, contractABI *abi.ABI) *ABIContract {
	return &ABIContract{
		name:    name,
		address: address,
		abi:     contractABI,
	}
}

func (c *ABIContract) Name() string {
	return c.name
}

func (c *ABIContract) Address() common.Address {
	return c.address
}

// ABI returns the parsed interface, e.g. for decoding custom errors.
func (c *ABIContract) ABI() *abi.ABI {
	return c.abi
}

func (c *ABIContract) EncodeCall(method string, args ...any) ([]byte, error) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, fmt.Errorf("%s: %w %q", c.name, ErrUnknownMethod, method)
	}
	return c.abi.Pack(method, args...)
}

func (c *ABIContract) DecodeResult(method string, data []byte) (any, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", c.name, ErrUnknownMethod, method)
	}
	value, err := unpackOutputs(m.Outputs, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s.%s: %w", c.name, method, err)
	}
	return value, nil
}

// Overload returns the name go-ethereum gave the overload of rawName that
// takes numInputs arguments. Overloads are suffixed in declaration order,
// which differs between ABIs. Handles without an ABI get rawName back.
func Overload(handle outbound.ContractHandle, rawName string, numInputs int) string {
	h, ok := handle.(interface{ ABI() *abi.ABI })
	if !ok {
		return rawName
	}
	for name, m := range h.ABI().Methods {
		if m.RawName == rawName && len(m.Inputs) == numInputs {
			return name
		}
	}
	return rawName
}
