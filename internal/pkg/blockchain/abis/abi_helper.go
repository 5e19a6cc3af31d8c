package abis

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func ParseABI(abiJSON string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ForContract returns the built-in ABI subset for a Synthetix contract name.
// Used when no deployment file is available for the network.
func ForContract(name string) (*abi.ABI, error) {
	switch name {
	case "TrustedMulticallForwarder":
		return GetTrustedMulticallForwarderABI()
	case "ERC7412":
		return GetERC7412ABI()
	case "CoreProxy":
		return GetCoreProxyABI()
	case "AccountProxy", "PerpsAccountProxy":
		return GetAccountProxyABI()
	case "PerpsMarketProxy":
		return GetPerpsMarketProxyABI()
	case "SpotMarketProxy":
		return GetSpotMarketProxyABI()
	case "USDProxy", "sUSD":
		return GetERC20ABI()
	case "WETH":
		return GetWETHABI()
	default:
		return nil, fmt.Errorf("no built-in ABI for contract %q", name)
	}
}
