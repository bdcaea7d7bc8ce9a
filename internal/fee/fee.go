// Package fee splits a trade's gross input into the amount traded against the
// curve and the platform and owner skims.
package fee

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// Denominator expresses rates in tenths of a percent.
	Denominator = 1000
	// PlatformRate is the fixed platform skim, 0.1%.
	PlatformRate = 1
	// MaxOwnerRate caps the configurable owner skim at 1.0%.
	MaxOwnerRate = 10
)

var ErrInvalidFee = errors.New("invalid fee")

// Split is the decomposition of a gross input amount.
type Split struct {
	Gross    *uint256.Int
	Net      *uint256.Int
	Platform *uint256.Int
	Owner    *uint256.Int
}

// Policy applies the platform rate and an owner rate to trade inputs.
type Policy struct {
	ownerRate uint8
}

func NewPolicy(ownerRate uint8) (Policy, error) {
	if ownerRate > MaxOwnerRate {
		return Policy{}, fmt.Errorf("%w: rate %d exceeds %d", ErrInvalidFee, ownerRate, MaxOwnerRate)
	}
	return Policy{ownerRate: ownerRate}, nil
}

func (p Policy) OwnerRate() uint8 { return p.ownerRate }

// Apply splits amountIn. Both skims round down and the net amount takes the
// remainder, so Net+Platform+Owner always equals the gross input.
func (p Policy) Apply(amountIn *uint256.Int) Split {
	den := uint256.NewInt(Denominator)

	platform, _ := new(uint256.Int).MulDivOverflow(amountIn, uint256.NewInt(PlatformRate), den)
	owner, _ := new(uint256.Int).MulDivOverflow(amountIn, uint256.NewInt(uint64(p.ownerRate)), den)
	net := new(uint256.Int).Sub(amountIn, platform)
	net.Sub(net, owner)

	return Split{
		Gross:    new(uint256.Int).Set(amountIn),
		Net:      net,
		Platform: platform,
		Owner:    owner,
	}
}

// GrossFor returns the smallest gross input whose net part is at least net.
//
// Net is not monotone in the gross input (both skims step up together at
// multiples of Denominator), but it stays within two units above
// gross*keep/Denominator, so every gross below (net-2)*Denominator/keep
// falls short and the scan starts there.
func (p Policy) GrossFor(net *uint256.Int) (*uint256.Int, error) {
	keep := uint256.NewInt(Denominator - PlatformRate - uint64(p.ownerRate))
	den := uint256.NewInt(Denominator)

	lower := new(uint256.Int)
	if net.GtUint64(2) {
		lower.SubUint64(net, 2)
	}
	gross, overflow := new(uint256.Int).MulDivOverflow(lower, den, keep)
	if overflow {
		return nil, fmt.Errorf("gross input for %s overflows", net.Dec())
	}
	for p.Apply(gross).Net.Lt(net) {
		if gross.Eq(maxUint256) {
			return nil, fmt.Errorf("gross input for %s overflows", net.Dec())
		}
		gross.AddUint64(gross, 1)
	}
	return gross, nil
}

var maxUint256 = new(uint256.Int).SetAllOne()
