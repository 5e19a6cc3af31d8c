// Package deployments resolves Synthetix contract names to handles.
//
// Two registries are provided:
//   - DirRegistry loads <dir>/<networkID>/<ContractName>.json files, each holding
//     the deployed address and the full JSON ABI.
//   - StaticRegistry pairs caller-supplied addresses with the built-in ABI
//     subsets from the abis package.
package deployments

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/abis"
	"github.com/archon-research/snx-sdk/internal/pkg/blockchain/contract"
	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var (
	_ outbound.ContractRegistry = (*Registry)(nil)

	ErrContractNotFound = errors.New("contract not found")
)

// TrustedMulticallForwarderAddress is the forwarder's deterministic address,
// identical on every network Synthetix deploys to.
var TrustedMulticallForwarderAddress = common.HexToAddress("0xE2C5658cC5C448B48141168f3e475dF8f65A1e3e")

type entry struct {
	address common.Address
	abi     *abi.ABI
}

// Registry is an immutable name → (address, ABI) table.
type Registry struct {
	networkID int64
	entries   map[string]entry

	// handles are built on first use.
	mu      sync.Mutex
	handles map[string]outbound.ContractHandle
}

func newRegistry(networkID int64, entries map[string]entry) *Registry {
	return &Registry{
		networkID: networkID,
		entries:   entries,
		handles:   make(map[string]outbound.ContractHandle, len(entries)),
	}
}

// NewStaticRegistry builds a registry from known addresses using the built-in
// ABIs. The TrustedMulticallForwarder is added at its canonical address unless
// addresses overrides it.
func NewStaticRegistry(networkID int64, addresses map[string]common.Address) (*Registry, error) {
	entries := make(map[string]entry, len(addresses)+1)

	merged := map[string]common.Address{"TrustedMulticallForwarder": TrustedMulticallForwarderAddress}
	for name, addr := range addresses {
		merged[name] = addr
	}

	for name, addr := range merged {
		parsed, err := abis.ForContract(name)
		if err != nil {
			return nil, fmt.Errorf("network %d: %w", networkID, err)
		}
		entries[name] = entry{address: addr, abi: parsed}
	}
	return newRegistry(networkID, entries), nil
}

func (r *Registry) NetworkID() int64 {
	return r.networkID
}

func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns the known contract names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Contract(name string) (outbound.ContractHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[name]; ok {
		return h, nil
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on network %d", ErrContractNotFound, name, r.networkID)
	}
	h := contract.NewABIContract(name, e.address, e.abi)
	r.handles[name] = h
	return h, nil
}

// ContractAt returns a handle with name's ABI bound to address, e.g. a synth
// token sharing the USDProxy interface.
func (r *Registry) ContractAt(name string, address common.Address) (outbound.ContractHandle, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on network %d", ErrContractNotFound, name, r.networkID)
	}
	return contract.NewABIContract(name, address, e.abi), nil
}
