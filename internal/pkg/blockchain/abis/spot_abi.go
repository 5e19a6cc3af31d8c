package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetSpotMarketProxyABI returns the Spot V3 SpotMarketProxy subset.
func GetSpotMarketProxyABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [{"name": "marketId", "type": "uint128"}],
			"name": "getSynth",
			"outputs": [{"name": "synthAddress", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "marketId", "type": "uint128"},
				{"name": "orderType", "type": "uint8"},
				{"name": "amountProvided", "type": "uint256"},
				{"name": "settlementStrategyId", "type": "uint256"},
				{"name": "minimumSettlementAmount", "type": "uint256"},
				{"name": "referrer", "type": "address"}
			],
			"name": "commitOrder",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "marketId", "type": "uint128"},
				{"name": "asyncOrderId", "type": "uint128"}
			],
			"name": "getAsyncOrderClaim",
			"outputs": [
				{
					"components": [
						{"name": "id", "type": "uint128"},
						{"name": "owner", "type": "address"},
						{"name": "orderType", "type": "uint8"},
						{"name": "amountEscrowed", "type": "uint256"},
						{"name": "settlementStrategyId", "type": "uint256"},
						{"name": "settlementTime", "type": "uint256"},
						{"name": "minimumSettlementAmount", "type": "int256"},
						{"name": "settledAt", "type": "uint256"},
						{"name": "referrer", "type": "address"}
					],
					"name": "asyncOrderClaim",
					"type": "tuple"
				}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "marketId", "type": "uint128"},
				{"name": "strategyId", "type": "uint256"}
			],
			"name": "getSettlementStrategy",
			"outputs": [
				{
					"components": [
						{"name": "strategyType", "type": "uint8"},
						{"name": "settlementDelay", "type": "uint256"},
						{"name": "settlementWindowDuration", "type": "uint256"},
						{"name": "priceVerificationContract", "type": "address"},
						{"name": "feedId", "type": "bytes32"},
						{"name": "url", "type": "string"},
						{"name": "settlementReward", "type": "uint256"},
						{"name": "priceDeviationTolerance", "type": "uint256"},
						{"name": "minimumUsdExchangeAmount", "type": "uint256"},
						{"name": "maxRoundingLoss", "type": "uint256"},
						{"name": "disabled", "type": "bool"}
					],
					"name": "settlementStrategy",
					"type": "tuple"
				}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "result", "type": "bytes"},
				{"name": "extraData", "type": "bytes"}
			],
			"name": "settlePythOrder",
			"outputs": [],
			"stateMutability": "payable",
			"type": "function"
		}
	]`)
}
