package units

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.5", 18, "500000000000000000"},
		{"1.25", 6, "1250000"},
		{"100", 0, "100"},
		{"0.0000005", 6, "1"},
		{" 2 ", 2, "200"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.amount, tc.decimals)
		require.NoError(t, err, tc.amount)
		require.Equal(t, tc.want, got.String(), tc.amount)
	}
}

func TestParseUnitsRejectsBadInput(t *testing.T) {
	for _, amount := range []string{"", "abc", "-1", "1e", "1e3", "1E5", "1e50000000", "2.5e-3", "+1", "0x10", ".5", "1.", "1 000"} {
		_, err := ParseUnits(amount, 18)
		require.Error(t, err, amount)
	}
}

func TestParseUnitsDigitLimit(t *testing.T) {
	_, err := ParseUnits(strings.Repeat("9", MaxAmountDigits), 0)
	require.NoError(t, err)

	_, err = ParseUnits(strings.Repeat("9", MaxAmountDigits+2), 0)
	require.Error(t, err)
}

func TestFormatUnits(t *testing.T) {
	oneEther, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)
	require.Equal(t, "1", FormatEther(oneEther))
	require.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	require.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	require.Equal(t, "0", FormatUnits(nil, 18))
	require.Equal(t, "0", FormatUnits(big.NewInt(0), 18))
}

func TestRoundTrip(t *testing.T) {
	wei, err := ParseEther("1")
	require.NoError(t, err)
	require.Equal(t, "1", FormatEther(wei))
}
