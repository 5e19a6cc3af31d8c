package erc7412

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// OracleDataRequiredSelector is the selector of OracleDataRequired(address,bytes).
var OracleDataRequiredSelector = [4]byte{0xcf, 0x2c, 0xab, 0xdf}

// OracleErrorInfo is the decoded content of an OracleDataRequired revert.
type OracleErrorInfo struct {
	OracleAddress      common.Address
	UpdateType         uint8
	StalenessTolerance uint64
	FeedIDs            [][32]byte
}

var (
	oracleErrorArgs = mustArguments("address", "bytes")
	oracleQueryArgs = mustArguments("uint8", "uint64", "bytes32[]")
	fulfillmentArgs = mustArguments("uint8", "uint64", "bytes32[]", "bytes[]")
)

// IsOracleDataRequired reports whether revert data starts with the
// OracleDataRequired selector.
func IsOracleDataRequired(revertData []byte) bool {
	return len(revertData) >= 4 && bytes.Equal(revertData[:4], OracleDataRequiredSelector[:])
}

// DecodeOracleError decodes an OracleDataRequired revert. It returns
// ErrNotOracleDataRequired when the selector does not match and a
// *MalformedOracleError when the selector matches but the body does not decode.
// Feed ids are passed through as decoded, even when empty.
func DecodeOracleError(revertData []byte) (*OracleErrorInfo, error) {
	if !IsOracleDataRequired(revertData) {
		return nil, ErrNotOracleDataRequired
	}

	outer, err := oracleErrorArgs.Unpack(revertData[4:])
	if err != nil {
		return nil, &MalformedOracleError{RevertData: revertData, Err: fmt.Errorf("decoding error body: %w", err)}
	}
	oracle, ok := outer[0].(common.Address)
	if !ok {
		return nil, &MalformedOracleError{RevertData: revertData, Err: fmt.Errorf("unexpected oracle address type %T", outer[0])}
	}
	query, ok := outer[1].([]byte)
	if !ok {
		return nil, &MalformedOracleError{RevertData: revertData, Err: fmt.Errorf("unexpected oracle query type %T", outer[1])}
	}

	inner, err := oracleQueryArgs.Unpack(query)
	if err != nil {
		return nil, &MalformedOracleError{RevertData: revertData, Err: fmt.Errorf("decoding oracle query: %w", err)}
	}
	updateType, ok1 := inner[0].(uint8)
	staleness, ok2 := inner[1].(uint64)
	feedIDs, ok3 := inner[2].([][32]byte)
	if !ok1 || !ok2 || !ok3 {
		return nil, &MalformedOracleError{RevertData: revertData, Err: fmt.Errorf("unexpected oracle query layout %T/%T/%T", inner[0], inner[1], inner[2])}
	}

	return &OracleErrorInfo{
		// common.Address carries no case; Hex() renders the checksummed form.
		OracleAddress:      oracle,
		UpdateType:         updateType,
		StalenessTolerance: staleness,
		FeedIDs:            feedIDs,
	}, nil
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, typ := range types {
		t, err := abi.NewType(typ, "", nil)
		if err != nil {
			panic(fmt.Sprintf("erc7412: invalid ABI type %q: %v", typ, err))
		}
		args[i] = abi.Argument{Type: t}
	}
	return args
}
