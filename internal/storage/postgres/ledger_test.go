package postgres

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDedupeKeysOrdersAndCollapses(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0")

	got := dedupeKeys([]balanceKey{
		{asset: b, holder: alice},
		{asset: a, holder: bob},
		{asset: a, holder: alice},
		{asset: a, holder: bob},
		{asset: b, holder: alice},
	})
	require.Equal(t, []balanceKey{
		{asset: a, holder: alice},
		{asset: a, holder: bob},
		{asset: b, holder: alice},
	}, got)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	require.Equal(t, 256, v.BitLen())

	_, err = parseAmount("1.5")
	require.Error(t, err)
}

func TestNumericDefaults(t *testing.T) {
	require.Equal(t, "0", numeric(""))
	require.Equal(t, "12", numeric("12"))
	require.Nil(t, nullableNumeric(""))
	require.Equal(t, "7", *nullableNumeric("7"))
}
