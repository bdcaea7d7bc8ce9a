package fee

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestNewPolicyBounds(t *testing.T) {
	_, err := NewPolicy(MaxOwnerRate + 1)
	require.ErrorIs(t, err, ErrInvalidFee)

	p, err := NewPolicy(MaxOwnerRate)
	require.NoError(t, err)
	require.Equal(t, uint8(MaxOwnerRate), p.OwnerRate())
}

func TestApplyExactRates(t *testing.T) {
	gross := uint256.NewInt(1_000_000)

	zero, err := NewPolicy(0)
	require.NoError(t, err)
	split := zero.Apply(gross)
	require.Equal(t, uint64(999_000), split.Net.Uint64())
	require.Equal(t, uint64(1_000), split.Platform.Uint64())
	require.True(t, split.Owner.IsZero())

	three, err := NewPolicy(3)
	require.NoError(t, err)
	split = three.Apply(gross)
	require.Equal(t, uint64(996_000), split.Net.Uint64())
	require.Equal(t, uint64(1_000), split.Platform.Uint64())
	require.Equal(t, uint64(3_000), split.Owner.Uint64())
}

func TestApplyConservesInput(t *testing.T) {
	for rate := uint8(0); rate <= MaxOwnerRate; rate++ {
		p, err := NewPolicy(rate)
		require.NoError(t, err)
		for _, in := range []uint64{0, 1, 999, 1001, 123_456_789, 1e18 + 7} {
			split := p.Apply(uint256.NewInt(in))
			sum := new(uint256.Int).Add(split.Net, split.Platform)
			sum.Add(sum, split.Owner)
			require.Equal(t, in, sum.Uint64(), "rate %d input %d", rate, in)
			require.LessOrEqual(t, split.Net.Uint64(), in)
			require.Equal(t, in/Denominator, split.Platform.Uint64(), "rate %d input %d", rate, in)
			require.Equal(t, in/Denominator*uint64(rate)+in%Denominator*uint64(rate)/Denominator, split.Owner.Uint64(), "rate %d input %d", rate, in)
		}
	}
}

func TestApplyZeroRateOwnerGetsNothing(t *testing.T) {
	p, err := NewPolicy(0)
	require.NoError(t, err)

	cases := []struct {
		in       uint64
		net      uint64
		platform uint64
	}{
		{1, 1, 0},
		{999, 999, 0},
		{1999, 1998, 1},
		{1e18 + 7, 999_000_000_000_000_007, 1_000_000_000_000_000},
	}
	for _, tc := range cases {
		split := p.Apply(uint256.NewInt(tc.in))
		require.True(t, split.Owner.IsZero(), "input %d", tc.in)
		require.Equal(t, tc.platform, split.Platform.Uint64(), "input %d", tc.in)
		require.Equal(t, tc.net, split.Net.Uint64(), "input %d", tc.in)
	}
}

func TestGrossFor(t *testing.T) {
	p, err := NewPolicy(3)
	require.NoError(t, err)

	for _, net := range []uint64{1, 996, 997, 1_000_000, 123_456_789_123} {
		gross, err := p.GrossFor(uint256.NewInt(net))
		require.NoError(t, err)
		require.GreaterOrEqual(t, p.Apply(gross).Net.Uint64(), net)

		below := new(uint256.Int).SubUint64(gross, 1)
		require.Less(t, p.Apply(below).Net.Uint64(), net, "gross %d is not minimal for %d", gross.Uint64(), net)
	}
}

func TestGrossForIsSmallestAcrossSkimSteps(t *testing.T) {
	for _, rate := range []uint8{0, 3, MaxOwnerRate} {
		p, err := NewPolicy(rate)
		require.NoError(t, err)

		want := uint64(0)
		for net := uint64(0); net <= 3_000; net++ {
			gross, err := p.GrossFor(uint256.NewInt(net))
			require.NoError(t, err)

			for p.Apply(uint256.NewInt(want)).Net.Uint64() < net {
				want++
			}
			require.Equal(t, want, gross.Uint64(), "rate %d net %d", rate, net)
		}
	}
}
