package quote

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"curvePool/internal/curve"
	"curvePool/internal/model"
)

var (
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	baseAsset  = common.HexToAddress("0x000000000000000000000000000000000000b000")
	quoteAsset = common.HexToAddress("0x000000000000000000000000000000000000c000")
)

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func TestComputeFromQuoteReserve(t *testing.T) {
	res, err := Compute(Request{
		SlopeNumerator: 1_000_000,
		Exponent:       1,
		FeeRate:        3,
		QuoteReserve:   wad(50),
		Amount:         wad(1),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	require.Equal(t, wad(10).Dec(), res.Supply)
	require.Equal(t, wad(10).Dec(), res.BasePrice)
	require.Equal(t, "100000000000000000", res.QuotePrice)
	require.Equal(t, &Split{Net: "996000000000000000", Platform: "1000000000000000", Owner: "3000000000000000"}, res.Fee)

	c, err := curve.New(1_000_000, 1)
	require.NoError(t, err)
	net := uint256.NewInt(996_000_000_000_000_000)
	baseOut, err := c.BaseOutForQuoteIn(wad(10), net)
	require.NoError(t, err)
	require.Equal(t, baseOut.Dec(), res.BaseOut)
	quoteOut, err := c.QuoteOutForBaseIn(wad(10), net)
	require.NoError(t, err)
	require.Equal(t, quoteOut.Dec(), res.QuoteOut)
	require.NotEmpty(t, res.QuoteIn)
	require.NotEmpty(t, res.BaseIn)
}

func TestComputeReportsUnservableQueries(t *testing.T) {
	res, err := Compute(Request{
		SlopeNumerator: 1_000_000,
		Exponent:       1,
		Supply:         wad(10),
		Amount:         wad(100),
	})
	require.NoError(t, err)
	require.Equal(t, wad(50).Dec(), res.QuoteReserve)
	require.Contains(t, res.Errors, "quote_out")
	require.Contains(t, res.Errors, "base_in")
	require.NotEmpty(t, res.BaseOut)
	require.NotEmpty(t, res.QuoteIn)
}

func TestComputeRejectsBadParams(t *testing.T) {
	_, err := Compute(Request{SlopeNumerator: 0, Exponent: 1, Supply: wad(1)})
	require.ErrorIs(t, err, curve.ErrInvalidSlope)
	_, err = Compute(Request{SlopeNumerator: 1, Exponent: 4, Supply: wad(1)})
	require.ErrorIs(t, err, curve.ErrInvalidExponent)
	_, err = Compute(Request{SlopeNumerator: 1, Exponent: 1, FeeRate: 11, Supply: wad(1)})
	require.Error(t, err)
	_, err = Compute(Request{SlopeNumerator: 1, Exponent: 1})
	require.Error(t, err)
}

type fakeCaller struct {
	values map[string][]interface{}
}

func (f fakeCaller) Call(_ context.Context, _ common.Address, _ abi.ABI, method string, _ *big.Int, _ ...interface{}) ([]interface{}, error) {
	values, ok := f.values[method]
	if !ok {
		return nil, fmt.Errorf("call %s: execution reverted", method)
	}
	return values, nil
}

type fakeTokens map[common.Address]string

func (f fakeTokens) FetchTokenBalance(_ context.Context, token, holder common.Address, block uint64) (model.TokenBalance, error) {
	bal, ok := f[token]
	if !ok {
		return model.TokenBalance{}, fmt.Errorf("no balance for %s", token.Hex())
	}
	return model.TokenBalance{Token: token.Hex(), Holder: holder.Hex(), Symbol: "QT", Decimals: 18, Balance: bal, Block: block}, nil
}

func TestLiveReadsDeployedPool(t *testing.T) {
	caller := fakeCaller{values: map[string][]interface{}{
		"baseToken":      {baseAsset},
		"quoteToken":     {quoteAsset},
		"slopeNumerator": {uint32(1_000_000)},
		"n":              {uint8(1)},
		"fee":            {uint8(0)},
		"s":              {wad(10).ToBig()},
		"getReserves":    {wad(900).ToBig(), wad(50).ToBig()},
	}}
	tokens := fakeTokens{quoteAsset: wad(51).Dec()}

	res, err := Live(context.Background(), caller, tokens, poolAddr, 0, nil)
	require.NoError(t, err)
	require.Equal(t, poolAddr.Hex(), res.Pool)
	require.Equal(t, wad(10).Dec(), res.Supply)
	require.Equal(t, wad(10).Dec(), res.BasePrice)
	require.Equal(t, wad(50).Dec(), res.QuoteReserve)
	require.NotNil(t, res.QuoteToken)
	require.Equal(t, wad(51).Dec(), res.QuoteToken.Balance)
	require.Equal(t, poolAddr.Hex(), res.QuoteToken.Holder)

	res, err = Live(context.Background(), caller, fakeTokens{}, poolAddr, 0, nil)
	require.NoError(t, err)
	require.Nil(t, res.QuoteToken)
	require.Contains(t, res.Errors, "quote_token")
	require.Nil(t, res.Fee)

	delete(caller.values, "s")
	_, err = Live(context.Background(), caller, nil, poolAddr, 0, nil)
	require.Error(t, err)
}
