// Package wei converts between 18-decimal fixed-point integers and decimals.
package wei

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point precision used by Synthetix amounts.
const Decimals = 18

// ToDecimal converts a fixed-point integer with the given precision to a decimal.
func ToDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FromDecimal converts a decimal to a fixed-point integer with the given precision.
// Digits beyond the precision are truncated toward zero.
func FromDecimal(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// ToEther converts a wei amount to ether units.
func ToEther(amount *big.Int) decimal.Decimal {
	return ToDecimal(amount, Decimals)
}

// FromEther converts an ether amount to wei.
func FromEther(amount decimal.Decimal) *big.Int {
	return FromDecimal(amount, Decimals)
}

// FromFloat converts a float ether amount to wei.
func FromFloat(amount float64) *big.Int {
	return FromEther(decimal.NewFromFloat(amount))
}

// MaxUint256 is the largest uint256, used for unlimited approvals.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
