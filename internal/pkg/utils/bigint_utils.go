package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatBigInt converts a raw integer amount to a decimal string using the token's
// decimals. Example: amount=1234500000, decimals=9 => "1.2345".
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	value := ToFloat(amount, decimals)
	formattedStr := value.Text('f', int(decimals))

	if strings.Contains(formattedStr, ".") {
		formattedStr = strings.TrimRight(formattedStr, "0")
		formattedStr = strings.TrimRight(formattedStr, ".")
	}
	if strings.HasPrefix(formattedStr, ".") {
		formattedStr = "0" + formattedStr
	}
	if formattedStr == "" {
		if amount.Sign() == 0 {
			return "0", nil
		}
		return value.Text('f', 2), fmt.Errorf("formatting resulted in empty string for non-zero value")
	}
	return formattedStr, nil
}

// ToFloat scales a raw amount down by 10^decimals.
func ToFloat(amount *big.Int, decimals uint8) *big.Float {
	if amount == nil {
		return new(big.Float)
	}
	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return new(big.Float).Quo(amountFloat, divisor)
}

// CalculateValueUSD values a raw amount at priceUSD per whole token.
func CalculateValueUSD(amount *big.Int, decimals uint8, priceUSD float64) (float64, error) {
	if amount == nil {
		return 0, nil
	}
	if priceUSD < 0 {
		return 0, fmt.Errorf("negative price %f", priceUSD)
	}
	v, _ := new(big.Float).Mul(ToFloat(amount, decimals), big.NewFloat(priceUSD)).Float64()
	return v, nil
}
