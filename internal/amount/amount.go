package amount

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"liquidityGuard/internal/apperr"
)

// USDDecimals is the fixed-point scale used for USD-denominated premiums.
const USDDecimals = 6

// maxDigits bounds both the integer and the fractional digits of user
// input; a uint256 has at most 78 decimal digits.
const maxDigits = 78

// ParsePositive parses a user-entered decimal and requires it to be finite and > 0.
func ParsePositive(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, apperr.Validation("amount is required")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, apperr.Validation("amount %q is not a number", input)
	}
	if !value.IsPositive() {
		return decimal.Zero, apperr.Validation("amount must be greater than zero")
	}
	exp := int64(value.Exponent())
	if int64(value.NumDigits())+exp > maxDigits || -exp > maxDigits {
		return decimal.Zero, apperr.Validation("amount %q is out of range", input)
	}
	return value, nil
}

// ParseUnits converts a decimal string into atomic units at the given
// decimals. Inputs with more fractional digits than the token supports are
// rejected rather than truncated.
func ParseUnits(input string, decimals uint8) (*big.Int, error) {
	value, err := ParsePositive(input)
	if err != nil {
		return nil, err
	}
	return ToUnits(value, decimals)
}

// ToUnits scales value into atomic units at the given decimals.
func ToUnits(value decimal.Decimal, decimals uint8) (*big.Int, error) {
	scaled := value.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, apperr.Validation("amount %s has more than %d decimal places", value.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders atomic units as a plain decimal string without
// trailing zeros ("500000000" at 6 decimals is "500").
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// Display renders atomic units rounded to maxFraction digits with thousands separators.
func Display(value *big.Int, decimals uint8, maxFraction int32) string {
	if value == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(value, -int32(decimals)).Round(maxFraction)
	return groupThousands(d.String())
}

// FromUSD derives atomic units from a float USD value. It exists only as a
// fallback for quotes that omit the atomic premium; the result may differ
// from the signed amount by rounding.
func FromUSD(usd float64, decimals uint8) (*big.Int, error) {
	if math.IsNaN(usd) || math.IsInf(usd, 0) || usd <= 0 {
		return nil, apperr.Validation("premium %v is not a positive finite number", usd)
	}
	return decimal.NewFromFloat(usd).Shift(int32(decimals)).Round(0).BigInt(), nil
}

// ParseAtomic parses a base-10 (or 0x-prefixed) integer string.
func ParseAtomic(input string) (*big.Int, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, false
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// USD formats a float USD value with two decimals.
func USD(value float64) string {
	return "$" + groupThousands(decimal.NewFromFloat(value).StringFixed(2))
}

// Percent formats a ratio (0.25) as "25.00%".
func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// BasisPoints formats bps (250) as "2.50%".
func BasisPoints(bps uint32) string {
	return decimal.New(int64(bps), -2).StringFixed(2) + "%"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, frac = s[:idx], s[idx:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return fmt.Sprintf("%s%s%s", sign, b.String(), frac)
}
