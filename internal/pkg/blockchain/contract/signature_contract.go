package contract

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

// Method declares one function of a SignatureContract in human-readable form,
// e.g. Signature "balanceOf(address)" with Returns "uint256".
type Method struct {
	Name      string
	Signature string
	Returns   string
}

// SignatureContract is a ContractHandle for contracts with no deployment
// file, built from function signatures.
type SignatureContract struct {
	name    string
	address common.Address
	funcs   map[string]*w3.Func
}

var _ outbound.ContractHandle = (*SignatureContract)(nil)

func NewSignatureContract(name string, address common.Address, methods ...Method) (*SignatureContract, error) {
	funcs := make(map[string]*w3.Func, len(methods))
	for _, m := range methods {
		fn, err := w3.NewFunc(m.Signature, m.Returns)
		if err != nil {
			return nil, fmt.Errorf("parsing signature %q: %w", m.Signature, err)
		}
		funcs[m.Name] = fn
	}
	return &SignatureContract{
		name:    name,
		address: address,
		funcs:   funcs,
	}, nil
}

// ERC20Methods is the subset of ERC20 used for synth and collateral tokens.
var ERC20Methods = []Method{
	{Name: "balanceOf", Signature: "balanceOf(address)", Returns: "uint256"},
	{Name: "allowance", Signature: "allowance(address,address)", Returns: "uint256"},
	{Name: "decimals", Signature: "decimals()", Returns: "uint8"},
	{Name: "symbol", Signature: "symbol()", Returns: "string"},
	{Name: "approve", Signature: "approve(address,uint256)", Returns: "bool"},
}

// NewERC20 returns a signature-bound ERC20 handle.
func NewERC20(name string, address common.Address) (*SignatureContract, error) {
	return NewSignatureContract(name, address, ERC20Methods...)
}

func (c *SignatureContract) Name() string {
	return c.name
}

func (c *SignatureContract) Address() common.Address {
	return c.address
}

func (c *SignatureContract) EncodeCall(method string, args ...any) ([]byte, error) {
	fn, ok := c.funcs[method]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", c.name, ErrUnknownMethod, method)
	}
	return fn.EncodeArgs(args...)
}

func (c *SignatureContract) DecodeResult(method string, data []byte) (any, error) {
	fn, ok := c.funcs[method]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", c.name, ErrUnknownMethod, method)
	}
	value, err := unpackOutputs(fn.Returns, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s.%s: %w", c.name, method, err)
	}
	return value, nil
}
