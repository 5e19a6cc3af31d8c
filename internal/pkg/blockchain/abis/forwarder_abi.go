package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetTrustedMulticallForwarderABI returns the aggregate3Value subset of the
// Synthetix TrustedMulticallForwarder (a Multicall3 superset).
func GetTrustedMulticallForwarderABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{
					"components": [
						{"name": "target", "type": "address"},
						{"name": "allowFailure", "type": "bool"},
						{"name": "value", "type": "uint256"},
						{"name": "callData", "type": "bytes"}
					],
					"name": "calls",
					"type": "tuple[]"
				}
			],
			"name": "aggregate3Value",
			"outputs": [
				{
					"components": [
						{"name": "success", "type": "bool"},
						{"name": "returnData", "type": "bytes"}
					],
					"name": "returnData",
					"type": "tuple[]"
				}
			],
			"stateMutability": "payable",
			"type": "function"
		}
	]`)
}
