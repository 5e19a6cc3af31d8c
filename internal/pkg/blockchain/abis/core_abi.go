package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetCoreProxyABI returns the Synthetix V3 CoreProxy subset used for
// collateral and pool management.
func GetCoreProxyABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [],
			"name": "getUsdToken",
			"outputs": [{"name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "accountId", "type": "uint128"},
				{"name": "collateralType", "type": "address"}
			],
			"name": "getAccountAvailableCollateral",
			"outputs": [{"name": "amountD18", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "marketId", "type": "uint128"}],
			"name": "getMarketPool",
			"outputs": [{"name": "poolId", "type": "uint128"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "createAccount",
			"outputs": [{"name": "accountId", "type": "uint128"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [{"name": "requestedAccountId", "type": "uint128"}],
			"name": "createAccount",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "accountId", "type": "uint128"},
				{"name": "collateralType", "type": "address"},
				{"name": "tokenAmount", "type": "uint256"}
			],
			"name": "deposit",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "accountId", "type": "uint128"},
				{"name": "collateralType", "type": "address"},
				{"name": "tokenAmount", "type": "uint256"}
			],
			"name": "withdraw",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "accountId", "type": "uint128"},
				{"name": "poolId", "type": "uint128"},
				{"name": "collateralType", "type": "address"},
				{"name": "newCollateralAmountD18", "type": "uint256"},
				{"name": "leverage", "type": "uint256"}
			],
			"name": "delegateCollateral",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "accountId", "type": "uint128"},
				{"name": "poolId", "type": "uint128"},
				{"name": "collateralType", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"name": "mintUsd",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
}

// GetAccountProxyABI returns the ERC721 enumeration subset of the account NFTs.
func GetAccountProxyABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [{"name": "holder", "type": "address"}],
			"name": "balanceOf",
			"outputs": [{"name": "balance", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "index", "type": "uint256"}
			],
			"name": "tokenOfOwnerByIndex",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}
