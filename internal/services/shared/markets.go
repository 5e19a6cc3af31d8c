package shared

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	ErrMarketRequired = errors.New("must provide a market id or market name")
	ErrUnknownMarket  = errors.New("unknown market")
	ErrMarketMismatch = errors.New("market name does not match market id")
)

// MarketTable maps market ids to names for one network.
type MarketTable map[uint64]string

// Resolve looks up whichever of id and name is missing. When both are given
// they must agree. A nil id with an empty name is an error.
func (m MarketTable) Resolve(id *uint64, name string) (uint64, string, error) {
	switch {
	case id == nil && name == "":
		return 0, "", ErrMarketRequired
	case id == nil:
		for marketID, marketName := range m {
			if marketName == name {
				return marketID, name, nil
			}
		}
		return 0, "", fmt.Errorf("%w: name %q", ErrUnknownMarket, name)
	default:
		marketName, ok := m[*id]
		if !ok {
			return 0, "", fmt.Errorf("%w: id %d", ErrUnknownMarket, *id)
		}
		if name != "" && name != marketName {
			return 0, "", fmt.Errorf("%w: %s is not market %d", ErrMarketMismatch, name, *id)
		}
		return *id, marketName, nil
	}
}

// Names returns the market names ordered by market id.
func (m MarketTable) Names() []string {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = m[id]
	}
	return names
}

// Tuple copies a decoded ABI tuple into dst, a pointer to a struct whose
// fields match the tuple's component names.
func Tuple(v any, dst any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converting %T to %T: %v", v, dst, r)
		}
	}()
	abi.ConvertType(v, dst)
	return nil
}
