package price_feed

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnsupportedNetwork = errors.New("no price feeds for network")
	ErrUnknownSymbol      = errors.New("unknown price feed symbol")
)

// pythFeedIDs maps network id and token symbol to the Pyth price feed id.
var pythFeedIDs = map[int64]map[string]string{
	10: {
		"SNX":   "0x39d020f60982ed892abbcd4a06a276a9f9b7bfbce003204c110b6e488f502da3",
		"ETH":   "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
		"BTC":   "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
		"LINK":  "0x8ac0c70fff57e9aefdf5edf44b51d62c2d433653cbb2cf5cc06bb115af04d221",
		"SOL":   "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
		"AVAX":  "0x93da3352f9f1d105fdfe4971cfa80e9dd777bfc5d0f683ebb6e1294b92137bb7",
		"AAVE":  "0x2b9ab1e972a281585084148ba1389800799bd4be63b957507db1349314e47445",
		"UNI":   "0x78d185a741d07edb3412b09008b7c5cfb9bbbd7d568bf00ba737b456ba171501",
		"MATIC": "0x5de33a9112c2b700b8d30b8a3402c103578ccfa2765696471cc672bd5cf6ac52",
		"XAU":   "0x765d2ba906dbc32ca17cc11f5310a89e9ee1f6420508c63861f2f8ba4ee34bb2",
		"XAG":   "0xf2fb02c32b055c805e7238d628e5e9dadef274376114eb1f012337cabe93871e",
		"EUR":   "0xa995d00bb36a63cef7fd2c287dc105fc8f3d93779f062f09551b0af3e81ec30b",
		"APE":   "0x15add95022ae13563a11992e727c91bdb6b55bc183d9d747436c80a483d8c864",
		"DYDX":  "0x6489800bb8974169adfe35937bf6736507097d13c190d760c557108c7e93a81b",
		"BNB":   "0x2f95862b045670cd22bee3114c39763a4a08beeb663b145d283c31d7d1101c4f",
		"DOGE":  "0xdcef50dd0a4cd2dcc17e45df1676dcb336a11a61c69df7a0299b0150c672d25c",
		"OP":    "0x385f64d993f7b77d8182ed5003d97c60aa3361f3cecfe711544d2d59165e9bdf",
		"ARB":   "0x3fa4252848f9f0a1480be62745a4629d9eb1322aebab8a791e344b3b9c1adcf5",
		"ATOM":  "0xb00b60f88b03a6a625a8d1c048c3f66653edf217439983d037e7222c4e612819",
		"FTM":   "0x5c6c0d2386e3352356c3ab84434fafb5ea067ac2678a38a338c4a69ddc4bdb0c",
		"NEAR":  "0xc415de8d2eba7db216527dff4b60e8f3a5311c740dadb233e13e12547e226750",
		"FLOW":  "0x2fb245b9a84554a0f15aa123cbb5f64cd263b59e9a87d80148cbffab50c69f30",
		"AXS":   "0xb7e3904c08ddd9c0c10c6d207d390fd19e87eb6aab96304f571ed94caebdefa0",
		"AUD":   "0x67a6f93030420c1c9e3fe37c1ab6b77966af82f995944a9fefce357a22854a80",
		"GBP":   "0x84c2dde9633d93d1bcad84e7dc41c9d56578b7ec52fabedc1f335d673df0a7c1",
		"APT":   "0x03ae4db29ed4ae33d323568895aa00337e658e348b37509f5372ae51f0af00d5",
		"LDO":   "0xc63e2a7f37a04e5e614c07238bedb25dcc38927fba8fe890597a593c0b2fa4ad",
		"ADA":   "0x2a01deaec9e51a579277b34b122399984d0bbf57e2458a7e42fecd2829867a0d",
		"GMX":   "0xb962539d0fcb272a494d65ea56f94851c2bcf8823935da05bd628916e2e9edbf",
		"FIL":   "0x150ac9b959aee0051e4091f0ef5216d941f590e1c5e7f91cf7635b5c11628c0e",
		"LTC":   "0x6e3f3fa8253588df9326580180233eb791e03b443a3ba7a1d892e73874e19a54",
		"BCH":   "0x3dd2b63686a450ec7290df3a1e0b583c0481f651351edfa7636f39aed55cf8a3",
		"SHIB":  "0xf0d57deca57b3da2fe63a493f4c25925fdfd8edf834b20f93e1f84dbd1504d4a",
		"CRV":   "0xa19d04ac696c7a6616d291c7e5d1377cc8be437c327b75adb5dc1bad745fcae8",
	},
	420: {
		"SNX":   "0xe956a4199936e913b402474cb29576066f15108121d434606a19b34036e6d5cc",
		"ETH":   "0xca80ba6dc32e08d06f1aa886011eed1d77c77be9eb761cc10d72b7d0a2fd57a6",
		"BTC":   "0xf9c0172ba10dfa4d19088d94f5bf61d3b54d5bd7483a322a982e1373ee8ea31b",
		"LINK":  "0x83be4ed61dd8a3518d198098ce37240c494710a7b9d85e35d9fceac21df08994",
		"SOL":   "0xfe650f0367d4a7ef9815a593ea15d36593f0643aaaf0149bb04be67ab851decd",
		"AVAX":  "0xd7566a3ba7f7286ed54f4ae7e983f4420ae0b1e0f3892e11f9c4ab107bbad7b9",
		"AAVE":  "0xd6b3bc030a8bbb7dd9de46fb564c34bb7f860dead8985eb16a49cdc62f8ab3a5",
		"UNI":   "0x64ae1fc7ceacf2cd59bee541382ff3770d847e63c40eb6cf2413e7de5e93078a",
		"MATIC": "0xd2c2c1f2bba8e0964f9589e060c2ee97f5e19057267ac3284caef3bd50bd2cb5",
		"XAU":   "0x30a19158f5a54c0adf8fb7560627343f22a1bc852b89d56be1accdc5dbf96d0e",
		"XAG":   "0x321ba4d608fa75ba76d6d73daa715abcbdeb9dba02257f05a1b59178b49f599b",
		"EUR":   "0xc1b12769f6633798d45adfd62bfc70114839232e2949b01fb3d3f927d2606154",
		"APE":   "0xcb1743d0e3e3eace7e84b8230dc082829813e3ab04e91b503c08e9a441c0ea8b",
		"DYDX":  "0x05a934cb3bbadef93b525978ab5bd3d5ce3b8fc6717b9ea182a688c5d8ee8e02",
		"BNB":   "0xecf553770d9b10965f8fb64771e93f5690a182edc32be4a3236e0caaa6e0581a",
		"DOGE":  "0x31775e1d6897129e8a84eeba975778fb50015b88039e9bc140bbd839694ac0ae",
		"OP":    "0x71334dcd37620ce3c33e3bafef04cc80dec083042e49b734315b36d1aad7991f",
		"ARB":   "0x37f40d2898159e8f2e52b93cb78f47cc3829a31e525ab975c49cc5c5d9176378",
		"ATOM":  "0x61226d39beea19d334f17c2febce27e12646d84675924ebb02b9cdaea68727e3",
		"FTM":   "0x9b7bfd7654cbb80099d5edc0a29159afc9e9b4636c811cf8c3b95bd11dd8e3dd",
		"NEAR":  "0x27e867f0f4f61076456d1a73b14c7edc1cf5cef4f4d6193a33424288f11bd0f4",
		"FLOW":  "0xaa67a6594d0e1578faa3bba80bec5b31e461b945e4fbab59eeab38ece09335fb",
		"AXS":   "0xb327d9cf0ecd793a175fa70ac8d2dc109d4462758e556962c4a87b02ec4f3f15",
		"AUD":   "0x2646ca1e1186fd2bb48b2ab3effa841d233b7e904b2caebb19c8030784a89c97",
		"GBP":   "0xbcbdc2755bd74a2065f9d3283c2b8acbd898e473bdb90a6764b3dbd467c56ecd",
		"APT":   "0x44a93dddd8effa54ea51076c4e851b6cbbfd938e82eb90197de38fe8876bb66e",
		"LDO":   "0x69b9ca2e7159fe570844c22bac849c490e0ddfd0349626c19fd7d65509e192a3",
		"ADA":   "0x73dc009953c83c944690037ea477df627657f45c14f16ad3a61089c5a3f9f4f2",
		"GMX":   "0x4b57c2471f6ab9250d26b7e0ff8807bfd620a609503f52b0b67645f69eb2d5c5",
		"FIL":   "0xb5622d32f36dc820af288aab779133ef1205d3123bbe256603849b820de48b87",
		"LTC":   "0x997e0bf451cb36b4aea096e6b5c254d700922211dd933d9d17c467f0d6f34321",
		"BCH":   "0x30029479598797290e3638a1712c29bde2367d0eca794f778b25b5a472f192de",
		"SHIB":  "0x672fbb7d9ec665cfbe8c2ffa643ba321a047b7a72d7b6d7c3d8fb120fc40954b",
		"CRV":   "0x94bce4aee88fdfa5b58d81090bd6b3784717fa6df85419d9f04433bb3d615d5c",
	},
}

// FeedID returns the Pyth feed id for a token symbol on a network.
func FeedID(chainID int64, symbol string) ([32]byte, error) {
	feeds, ok := pythFeedIDs[chainID]
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: network %d", ErrUnsupportedNetwork, chainID)
	}
	id, ok := feeds[strings.ToUpper(symbol)]
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: %s on network %d", ErrUnknownSymbol, symbol, chainID)
	}
	return common.HexToHash(id), nil
}

// FeedIDs resolves every symbol, in order.
func FeedIDs(chainID int64, symbols []string) ([][32]byte, error) {
	ids := make([][32]byte, len(symbols))
	for i, s := range symbols {
		id, err := FeedID(chainID, s)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Symbols returns the symbols with a known feed on the network, sorted.
func Symbols(chainID int64) []string {
	feeds := pythFeedIDs[chainID]
	symbols := make([]string, 0, len(feeds))
	for s := range feeds {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
