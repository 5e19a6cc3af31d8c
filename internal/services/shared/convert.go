package shared

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/snx-sdk/internal/pkg/wei"
)

// BigInt asserts a decoded uint/int value of 72 bits or more.
func BigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return n, nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case int64:
		return big.NewInt(n), nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

// BigInts asserts a decoded integer array or a list of decoded integers.
func BigInts(v any) ([]*big.Int, error) {
	switch list := v.(type) {
	case []*big.Int:
		return list, nil
	case []any:
		out := make([]*big.Int, len(list))
		for i, item := range list {
			n, err := BigInt(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected integer list, got %T", v)
	}
}

// Address asserts a decoded address value.
func Address(v any) (common.Address, error) {
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("expected address, got %T", v)
	}
	return addr, nil
}

// Ether converts a decoded 18-decimal amount to ether units.
func Ether(v any) (decimal.Decimal, error) {
	n, err := BigInt(v)
	if err != nil {
		return decimal.Zero, err
	}
	return wei.ToEther(n), nil
}

// Uint converts a uint64 id to the *big.Int the ABI encoder expects for uint128.
func Uint(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

// Seconds converts an on-chain duration in seconds. Out of range values give zero.
func Seconds(v *big.Int) time.Duration {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return time.Duration(v.Int64()) * time.Second
}

// UnixTime converts an on-chain timestamp. Zero, the contracts' "unset",
// maps to the zero time.
func UnixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0)
}
