package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxTokenSupply is the platform-wide supply ceiling in whole tokens
// (100 billion, before scaling by decimals).
const MaxTokenSupply = "100000000000"

// MaxSupplyScaled returns the supply ceiling in base units for a token
// with the given decimals.
func MaxSupplyScaled(decimals int) *big.Int {
	max, _ := new(big.Int).SetString(MaxTokenSupply, 10)
	return max.Mul(max, pow10(decimals))
}

// ParseAmount converts a decimal string (e.g. "10.5") into integer base
// units scaled by decimals. Fractions finer than the token's precision
// are rejected.
func ParseAmount(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty amount")
	}

	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", value)
	}

	rat.Mul(rat, new(big.Rat).SetInt(pow10(decimals)))
	if !rat.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", value, decimals)
	}

	return new(big.Int).Set(rat.Num()), nil
}

// FormatAmount renders base units as a decimal string rescaled by the
// token's decimals. The result is exact (no float rounding).
func FormatAmount(amount *big.Int, decimals int) string {
	if decimals == 0 {
		return amount.String()
	}

	quo, rem := new(big.Int).QuoRem(amount, pow10(decimals), new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}

	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, new(big.Int).Abs(rem).String()), "0")
	if amount.Sign() < 0 && quo.Sign() == 0 {
		return fmt.Sprintf("-%s.%s", quo.String(), frac)
	}
	return fmt.Sprintf("%s.%s", quo.String(), frac)
}

// ExceedsMaxSupply reports whether amount is above the scaled supply ceiling.
func ExceedsMaxSupply(amount *big.Int, decimals int) bool {
	return amount.Cmp(MaxSupplyScaled(decimals)) > 0
}

// RatioOfSupply returns amount/supply as an exact rational. A zero supply
// yields zero to avoid division by zero on freshly created mints.
func RatioOfSupply(amount, supply *big.Int) *big.Rat {
	if supply.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(amount, supply)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
