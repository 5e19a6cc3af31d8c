package perps

import "github.com/archon-research/snx-sdk/internal/services/shared"

var perpsMarkets = map[int64]shared.MarketTable{
	420: {
		100: "ETH",
		200: "BTC",
	},
	84531: {
		100: "ETH",
		200: "BTC",
		300: "LINK",
		400: "OP",
		500: "SNX",
	},
}

// collateralMarkets are the spot markets accepted as perps margin.
var collateralMarkets = map[int64]shared.MarketTable{
	420: {
		0: "sUSD",
		1: "BTC",
		2: "ETH",
	},
	84531: {
		0: "sUSD",
		1: "BTC",
		2: "ETH",
		3: "LINK",
	},
}
