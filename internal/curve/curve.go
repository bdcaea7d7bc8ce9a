// Package curve evaluates the power bonding curve price(s) = m * s^n and its
// reserve integral Q(s) = m/(n+1) * s^(n+1).
//
// Supply and reserve amounts are raw 18-decimal token units; the curve is
// defined over whole-token units, so a price of 10 means ten quote tokens per
// base token regardless of the raw scale. Every query is a pure function of
// its arguments and the curve parameters.
package curve

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"curvePool/internal/fixedpoint"
)

const (
	// SlopeDenominator is the fixed denominator of the slope m.
	SlopeDenominator = 1_000_000
	// MaxSlopeNumerator caps m at 100.
	MaxSlopeNumerator = 100 * SlopeDenominator
	MinExponent       = 1
	MaxExponent       = 3
)

var (
	ErrInvalidSlope        = errors.New("invalid slope")
	ErrInvalidExponent     = errors.New("invalid exponent")
	ErrInsufficientSupply  = errors.New("insufficient supply")
	ErrInsufficientReserve = errors.New("insufficient reserve")
)

// Curve holds validated slope and exponent parameters.
type Curve struct {
	slopeNumerator uint32
	n              uint8

	slope      *big.Int
	reserveDen *big.Int // 1e6 * (n+1) * WAD^n
	supplyMul  *big.Int // (n+1) * 1e6 * WAD^n
	priceDen   *big.Int // 1e6 * WAD^(n-1)
}

// New validates the parameters and precomputes the curve constants.
func New(slopeNumerator uint32, n uint8) (Curve, error) {
	if slopeNumerator == 0 || slopeNumerator > MaxSlopeNumerator {
		return Curve{}, fmt.Errorf("%w: numerator %d not in (0, %d]", ErrInvalidSlope, slopeNumerator, MaxSlopeNumerator)
	}
	if n < MinExponent || n > MaxExponent {
		return Curve{}, fmt.Errorf("%w: n=%d not in [%d, %d]", ErrInvalidExponent, n, MinExponent, MaxExponent)
	}

	denom := big.NewInt(SlopeDenominator)
	nPlus1 := big.NewInt(int64(n) + 1)
	wadN := new(big.Int).Exp(fixedpoint.WAD, big.NewInt(int64(n)), nil)
	wadNMinus1 := new(big.Int).Exp(fixedpoint.WAD, big.NewInt(int64(n)-1), nil)

	scaled := new(big.Int).Mul(denom, nPlus1)
	scaled.Mul(scaled, wadN)

	return Curve{
		slopeNumerator: slopeNumerator,
		n:              n,
		slope:          new(big.Int).SetUint64(uint64(slopeNumerator)),
		reserveDen:     scaled,
		supplyMul:      new(big.Int).Set(scaled),
		priceDen:       new(big.Int).Mul(denom, wadNMinus1),
	}, nil
}

func (c Curve) SlopeNumerator() uint32 { return c.slopeNumerator }

func (c Curve) Exponent() uint8 { return c.n }

func (c Curve) String() string {
	return fmt.Sprintf("m=%d/%d n=%d", c.slopeNumerator, SlopeDenominator, c.n)
}

// ReserveAtSupply returns Q(s), the quote reserve backing supply s.
func (c Curve) ReserveAtSupply(s *uint256.Int, rounding fixedpoint.Rounding) (*uint256.Int, error) {
	q, err := c.reserveAtSupply(s.ToBig(), rounding)
	if err != nil {
		return nil, err
	}
	return toUint256(q)
}

// SupplyAtReserve returns the supply whose reserve integral equals q.
func (c Curve) SupplyAtReserve(q *uint256.Int, rounding fixedpoint.Rounding) (*uint256.Int, error) {
	s, err := c.supplyAtReserve(q.ToBig(), rounding)
	if err != nil {
		return nil, err
	}
	return toUint256(s)
}

// BaseOutForQuoteIn returns the base released for quoteIn at supply s.
func (c Curve) BaseOutForQuoteIn(s, quoteIn *uint256.Int) (*uint256.Int, error) {
	supply := s.ToBig()
	reserve, err := c.reserveAtSupply(supply, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	target, err := c.supplyAtReserve(reserve.Add(reserve, quoteIn.ToBig()), fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	if target.Cmp(supply) <= 0 {
		return new(uint256.Int), nil
	}
	return toUint256(target.Sub(target, supply))
}

// QuoteInForBaseOut returns the quote required to release baseOut at supply s.
func (c Curve) QuoteInForBaseOut(s, baseOut *uint256.Int) (*uint256.Int, error) {
	supply := s.ToBig()
	before, err := c.reserveAtSupply(supply, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	after, err := c.reserveAtSupply(new(big.Int).Add(supply, baseOut.ToBig()), fixedpoint.RoundUp)
	if err != nil {
		return nil, err
	}
	return toUint256(after.Sub(after, before))
}

// QuoteOutForBaseIn returns the quote paid for returning baseIn at supply s.
func (c Curve) QuoteOutForBaseIn(s, baseIn *uint256.Int) (*uint256.Int, error) {
	if baseIn.Gt(s) {
		return nil, fmt.Errorf("%w: base in %s exceeds supply %s", ErrInsufficientSupply, baseIn.Dec(), s.Dec())
	}
	before, err := c.reserveAtSupply(s.ToBig(), fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	after, err := c.reserveAtSupply(new(uint256.Int).Sub(s, baseIn).ToBig(), fixedpoint.RoundUp)
	if err != nil {
		return nil, err
	}
	if after.Cmp(before) >= 0 {
		return new(uint256.Int), nil
	}
	return toUint256(before.Sub(before, after))
}

// BaseInForQuoteOut returns the base that must be returned to withdraw
// quoteOut at supply s.
func (c Curve) BaseInForQuoteOut(s, quoteOut *uint256.Int) (*uint256.Int, error) {
	supply := s.ToBig()
	reserve, err := c.reserveAtSupply(supply, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	out := quoteOut.ToBig()
	if out.Cmp(reserve) > 0 {
		return nil, fmt.Errorf("%w: quote out %s exceeds reserve %s", ErrInsufficientReserve, out, reserve)
	}
	target, err := c.supplyAtReserve(reserve.Sub(reserve, out), fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	return toUint256(supply.Sub(supply, target))
}

// Price returns m * s^n in WAD, the quote paid per whole base token at s.
func (c Curve) Price(s *uint256.Int) (*uint256.Int, error) {
	p, err := c.price(s.ToBig())
	if err != nil {
		return nil, err
	}
	return toUint256(p)
}

// InversePrice returns the base received per whole quote token at s, in WAD.
func (c Curve) InversePrice(s *uint256.Int) (*uint256.Int, error) {
	p, err := c.price(s.ToBig())
	if err != nil {
		return nil, err
	}
	if p.Sign() == 0 {
		return nil, fmt.Errorf("%w: price is zero at supply %s", fixedpoint.ErrDomain, s.Dec())
	}
	inv, err := fixedpoint.MulDiv(fixedpoint.WAD, fixedpoint.WAD, p, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	return toUint256(inv)
}

func (c Curve) reserveAtSupply(s *big.Int, rounding fixedpoint.Rounding) (*big.Int, error) {
	raised, err := fixedpoint.Pow(s, uint32(c.n)+1, 1, rounding)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(c.slope, raised, c.reserveDen, rounding)
}

func (c Curve) supplyAtReserve(q *big.Int, rounding fixedpoint.Rounding) (*big.Int, error) {
	inner, err := fixedpoint.MulDiv(q, c.supplyMul, c.slope, rounding)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Pow(inner, 1, uint32(c.n)+1, rounding)
}

func (c Curve) price(s *big.Int) (*big.Int, error) {
	raised, err := fixedpoint.Pow(s, uint32(c.n), 1, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(c.slope, raised, c.priceDen, fixedpoint.RoundDown)
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: result %s overflows 256 bits", fixedpoint.ErrDomain, v)
	}
	return out, nil
}
