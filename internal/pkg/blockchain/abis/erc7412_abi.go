package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetERC7412ABI returns the ERC-7412 oracle interface: the fulfillment entry
// point and the errors an oracle-dependent call can revert with.
func GetERC7412ABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [{"name": "signedOffchainData", "type": "bytes"}],
			"name": "fulfillOracleQuery",
			"outputs": [],
			"stateMutability": "payable",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "oracleId",
			"outputs": [{"name": "", "type": "bytes32"}],
			"stateMutability": "pure",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "oracleContract", "type": "address"},
				{"name": "oracleQuery", "type": "bytes"}
			],
			"name": "OracleDataRequired",
			"type": "error"
		},
		{
			"inputs": [{"name": "feeAmount", "type": "uint256"}],
			"name": "FeeRequired",
			"type": "error"
		}
	]`)
}
