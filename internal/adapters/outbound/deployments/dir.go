package deployments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type deploymentFile struct {
	Address string          `json:"address"`
	ABI     json.RawMessage `json:"abi"`
}

// LoadDir reads every <ContractName>.json file in dir/<networkID>. Files
// without an address or with an unparsable ABI fail the whole load.
func LoadDir(dir string, networkID int64) (*Registry, error) {
	networkDir := filepath.Join(dir, strconv.FormatInt(networkID, 10))
	files, err := os.ReadDir(networkDir)
	if err != nil {
		return nil, fmt.Errorf("reading deployments for network %d: %w", networkID, err)
	}

	entries := make(map[string]entry, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(f.Name(), ".json")

		e, err := loadFile(filepath.Join(networkDir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		entries[name] = e
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no deployments found in %s", networkDir)
	}
	return newRegistry(networkID, entries), nil
}

func loadFile(path string) (entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return entry{}, err
	}

	var file deploymentFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return entry{}, fmt.Errorf("failed to parse deployment file: %w", err)
	}
	if !common.IsHexAddress(file.Address) {
		return entry{}, fmt.Errorf("invalid address %q", file.Address)
	}
	if len(file.ABI) == 0 {
		return entry{}, fmt.Errorf("missing abi")
	}

	parsed, err := abi.JSON(strings.NewReader(string(file.ABI)))
	if err != nil {
		return entry{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	return entry{address: common.HexToAddress(file.Address), abi: &parsed}, nil
}
