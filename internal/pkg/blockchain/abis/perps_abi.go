package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetPerpsMarketProxyABI returns the Perps V3 PerpsMarketProxy subset.
func GetPerpsMarketProxyABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [],
			"name": "getMarkets",
			"outputs": [{"name": "marketIds", "type": "uint256[]"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "marketId", "type": "uint128"}],
			"name": "getMarketSummary",
			"outputs": [
				{
					"components": [
						{"name": "skew", "type": "int256"},
						{"name": "size", "type": "uint256"},
						{"name": "maxOpenInterest", "type": "uint256"},
						{"name": "currentFundingRate", "type": "int256"},
						{"name": "currentFundingVelocity", "type": "int256"},
						{"name": "indexPrice", "type": "uint256"}
					],
					"name": "summary",
					"type": "tuple"
				}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "accountId", "type": "uint128"}],
			"name": "getAvailableMargin",
			"outputs": [{"name": "availableMargin", "type": "int256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "accountId", "type": "uint128"}],
			"name": "getWithdrawableMargin",
			"outputs": [{"name": "withdrawableMargin", "type": "int256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "accountId", "type": "uint128"}],
			"name": "getRequiredMargins",
			"outputs": [
				{"name": "requiredInitialMargin", "type": "uint256"},
				{"name": "requiredMaintenanceMargin", "type": "uint256"},
				{"name": "maxLiquidationReward", "type": "uint256"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "accountId", "type": "uint128"},
				{"name": "synthMarketId", "type": "uint128"},
				{"name": "amountDelta", "type": "int256"}
			],
			"name": "modifyCollateral",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{
					"components": [
						{"name": "marketId", "type": "uint128"},
						{"name": "accountId", "type": "uint128"},
						{"name": "sizeDelta", "type": "int128"},
						{"name": "settlementStrategyId", "type": "uint128"},
						{"name": "acceptablePrice", "type": "uint256"},
						{"name": "trackingCode", "type": "bytes32"},
						{"name": "referrer", "type": "address"}
					],
					"name": "commitment",
					"type": "tuple"
				}
			],
			"name": "commitOrder",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [{"name": "accountId", "type": "uint128"}],
			"name": "getOrder",
			"outputs": [
				{
					"components": [
						{"name": "settlementTime", "type": "uint256"},
						{
							"components": [
								{"name": "marketId", "type": "uint128"},
								{"name": "accountId", "type": "uint128"},
								{"name": "sizeDelta", "type": "int128"},
								{"name": "settlementStrategyId", "type": "uint128"},
								{"name": "acceptablePrice", "type": "uint256"},
								{"name": "trackingCode", "type": "bytes32"},
								{"name": "referrer", "type": "address"}
							],
							"name": "request",
							"type": "tuple"
						}
					],
					"name": "order",
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
						{"name": "priceWindowDuration", "type": "uint256"},
						{"name": "priceVerificationContract", "type": "address"},
						{"name": "feedId", "type": "bytes32"},
						{"name": "url", "type": "string"},
						{"name": "settlementReward", "type": "uint256"},
						{"name": "priceDeviationTolerance", "type": "uint256"},
						{"name": "disabled", "type": "bool"}
					],
					"name": "settlementStrategy",
					"type": "tuple"
				}
			],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}
