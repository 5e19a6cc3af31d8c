package outbound

import "github.com/ethereum/go-ethereum/common"

// ContractHandle encodes calls to, and decodes results from, one deployed contract.
type ContractHandle interface {
	// Name returns the symbolic contract name (e.g. "CoreProxy").
	Name() string

	// Address returns the deployed address.
	Address() common.Address

	// EncodeCall ABI-encodes a call to method with args, selector included.
	EncodeCall(method string, args ...any) ([]byte, error)

	// DecodeResult ABI-decodes the return data of method. A single output is
	// returned unwrapped; multiple outputs are returned as []any in order.
	DecodeResult(method string, data []byte) (any, error)
}

// ContractRegistry resolves symbolic contract names to handles.
type ContractRegistry interface {
	// Contract returns the handle for a deployed contract.
	Contract(name string) (ContractHandle, error)

	// ContractAt returns a handle using name's interface at a different address.
	ContractAt(name string, address common.Address) (ContractHandle, error)

	// Has reports whether the registry knows the contract.
	Has(name string) bool
}
