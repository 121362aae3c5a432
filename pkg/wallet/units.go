package wallet

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ContractDecimals is the fixed-point scale the swap contract uses for all amounts.
const ContractDecimals uint8 = 18

// ParseUnits converts a base-unit integer into a human-scale decimal.
func ParseUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// FormatUnits converts a human-scale decimal into base units, truncating
// anything below the smallest unit.
func FormatUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// ToBaseUnits is FormatUnits for amounts that will be sent on chain. An amount that
// truncates to zero base units is INVALID_AMOUNT.
func ToBaseUnits(amount decimal.Decimal, decimals uint8, network NetworkType) (*big.Int, error) {
	value := FormatUnits(amount, decimals)
	if value.Sign() <= 0 {
		return nil, NewWalletError(ErrCodeInvalidAmount,
			fmt.Sprintf("amount %s is below the smallest unit of a %d-decimal token", amount, decimals), nil, network)
	}
	return value, nil
}

// GweiToWei converts a gwei amount into wei.
func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1_000_000_000))
}
