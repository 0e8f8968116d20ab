// Package units converts between human decimal strings and integer base
// units of a token.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the precision of the native currency on every supported chain.
const EtherDecimals uint8 = 18

// MaxAmountDigits bounds the digits accepted in an amount string. A uint256
// has 78 decimal digits, so this leaves room for any token precision.
const MaxAmountDigits = 96

// plainDecimal admits digits with an optional fractional part. Exponents,
// signs and hex are rejected.
var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseUnits converts a decimal string such as "1.25" into base units using
// the given precision. Digits beyond the precision are rounded half away
// from zero.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount %q must not be negative", amount)
	}
	if len(amount) > MaxAmountDigits+1 {
		return nil, fmt.Errorf("amount has more than %d digits", MaxAmountDigits)
	}
	if !plainDecimal.MatchString(amount) {
		return nil, fmt.Errorf("invalid decimal amount %q", amount)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal amount %q: %w", amount, err)
	}
	return value.Shift(int32(decimals)).Round(0).BigInt(), nil
}

// ParseEther converts a decimal ether amount into wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// FormatEther renders wei as ether.
func FormatEther(value *big.Int) string {
	return FormatUnits(value, EtherDecimals)
}
