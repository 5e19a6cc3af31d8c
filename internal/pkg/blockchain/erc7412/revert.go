package erc7412

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// extractRevertData pulls revert data out of a node error. go-ethereum
// exposes it through rpc.DataError, usually as a hex string.
func extractRevertData(err error) ([]byte, bool) {
	if err == nil {
		return nil, false
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		var de rpc.DataError
		if !errors.As(e, &de) {
			continue
		}
		switch v := de.ErrorData().(type) {
		case string:
			if strings.HasPrefix(v, "0x") {
				data, decodeErr := hexutil.Decode(v)
				if decodeErr == nil {
					return data, true
				}
			}
		case []byte:
			return v, true
		case hexutil.Bytes:
			return v, true
		case map[string]interface{}:
			if s, ok := v["data"].(string); ok && strings.HasPrefix(s, "0x") {
				data, decodeErr := hexutil.Decode(s)
				if decodeErr == nil {
					return data, true
				}
			}
		}
	}

	return nil, false
}
