package erc7412

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotOracleDataRequired is returned by DecodeOracleError when the revert
// data does not carry the OracleDataRequired selector.
var ErrNotOracleDataRequired = errors.New("revert is not OracleDataRequired")

// MalformedOracleError means the OracleDataRequired selector matched but the
// payload did not decode. It is never retried.
type MalformedOracleError struct {
	RevertData []byte
	Err        error
}

func (e *MalformedOracleError) Error() string {
	return fmt.Sprintf("malformed OracleDataRequired revert: %v", e.Err)
}

func (e *MalformedOracleError) Unwrap() error {
	return e.Err
}

// PriceServiceError means the price service could not supply the requested
// updates. The engine does not retry it.
type PriceServiceError struct {
	FeedIDs [][32]byte
	Err     error
}

func (e *PriceServiceError) Error() string {
	return fmt.Sprintf("fetching %d price updates: %v", len(e.FeedIDs), e.Err)
}

func (e *PriceServiceError) Unwrap() error {
	return e.Err
}

// ContractCallError is any failure of the batch that is not an oracle data
// request: a non-oracle revert, or a transport failure with no revert data.
// RevertData is kept intact for protocol-specific decoding.
type ContractCallError struct {
	Method     string
	RevertData []byte
	Err        error
}

func (e *ContractCallError) Error() string {
	if reason := e.Reason(); reason != "" {
		return fmt.Sprintf("call to %s reverted: %s", e.Method, reason)
	}
	if e.RevertData != nil {
		return fmt.Sprintf("call to %s reverted with data %s", e.Method, hexutil.Encode(e.RevertData))
	}
	return fmt.Sprintf("call to %s failed: %v", e.Method, e.Err)
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}

// Reason returns the Error(string) or Panic(uint256) message carried by the
// revert data, or "" when it carries neither.
func (e *ContractCallError) Reason() string {
	if len(e.RevertData) < 4 {
		return ""
	}
	reason, err := abi.UnpackRevert(e.RevertData)
	if err != nil {
		return ""
	}
	return reason
}

// Selector returns the leading four bytes of the revert data, if any.
func (e *ContractCallError) Selector() ([4]byte, bool) {
	var sel [4]byte
	if len(e.RevertData) < 4 {
		return sel, false
	}
	copy(sel[:], e.RevertData[:4])
	return sel, true
}

// DecodeError means a call succeeded but its return data did not match the
// method's output schema.
type DecodeError struct {
	Method string
	Data   []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding result of %s (%d bytes): %v", e.Method, len(e.Data), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
