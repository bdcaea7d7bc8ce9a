// Package fixedpoint implements the integer arithmetic behind the bonding
// curve: multiply-divide with an explicit rounding direction, integer roots
// and a rational-exponent power function. Nothing in this package touches
// floating point.
//
// Results are exact up to the requested rounding: Pow and Root return the
// floor (or ceiling) of the real-valued result, so the absolute error is
// always below one unit and the relative error is at most 1/result.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
)

// Rounding selects the direction in which a non-exact result is rounded.
// Amounts owed to a pool round up, amounts paid out of a pool round down.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

func (r Rounding) String() string {
	if r == RoundUp {
		return "up"
	}
	return "down"
}

const (
	// MaxBaseBits bounds the bit length of a Pow or Root operand.
	MaxBaseBits = 1024
	// MaxExponentTerm bounds both the numerator and the denominator of a
	// rational exponent.
	MaxExponentTerm = 16
	// MaxRootIterations caps Newton iterations. With operands bounded by
	// MaxBaseBits*MaxExponentTerm bits convergence takes far fewer steps.
	MaxRootIterations = 512
)

// ErrDomain reports inputs outside the range the engine is defined on.
var ErrDomain = errors.New("fixedpoint: domain error")

var (
	one = big.NewInt(1)
	// WAD is the 18-decimal fixed-point scale.
	WAD = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// MulDiv returns x*y/d rounded in the requested direction.
func MulDiv(x, y, d *big.Int, rounding Rounding) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrDomain)
	}
	if x.Sign() < 0 || y.Sign() < 0 || d.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative operand", ErrDomain)
	}
	product := new(big.Int).Mul(x, y)
	return Div(product, d, rounding)
}

// Div returns n/d rounded in the requested direction. Both operands must be
// non-negative.
func Div(n, d *big.Int, rounding Rounding) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrDomain)
	}
	if n.Sign() < 0 || d.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative operand", ErrDomain)
	}
	q, m := new(big.Int).QuoRem(n, d, new(big.Int))
	if rounding == RoundUp && m.Sign() != 0 {
		q.Add(q, one)
	}
	return q, nil
}

// Root returns the k-th root of x rounded in the requested direction, along
// with the number of Newton iterations used.
func Root(x *big.Int, k uint, rounding Rounding) (*big.Int, int, error) {
	if k == 0 {
		return nil, 0, fmt.Errorf("%w: zeroth root", ErrDomain)
	}
	if x.Sign() < 0 {
		return nil, 0, fmt.Errorf("%w: negative operand", ErrDomain)
	}
	if k == 1 || x.Cmp(one) <= 0 {
		return new(big.Int).Set(x), 0, nil
	}
	if x.BitLen() > MaxBaseBits*MaxExponentTerm {
		return nil, 0, fmt.Errorf("%w: operand of %d bits exceeds limit", ErrDomain, x.BitLen())
	}

	// 2^ceil(bits/k) is never below the true root, so the iteration
	// descends monotonically onto the floor.
	shift := (uint(x.BitLen()) + k - 1) / k
	guess := new(big.Int).Lsh(one, shift)
	bigK := new(big.Int).SetUint64(uint64(k))
	bigKMinus1 := new(big.Int).SetUint64(uint64(k - 1))

	var (
		next  = new(big.Int)
		power = new(big.Int)
		iters int
	)
	for {
		if iters >= MaxRootIterations {
			return nil, iters, fmt.Errorf("%w: root did not converge", ErrDomain)
		}
		iters++

		// next = ((k-1)*guess + x/guess^(k-1)) / k
		power.Exp(guess, bigKMinus1, nil)
		next.Quo(x, power)
		next.Add(next, new(big.Int).Mul(bigKMinus1, guess))
		next.Quo(next, bigK)
		if next.Cmp(guess) >= 0 {
			break
		}
		guess.Set(next)
	}

	if rounding == RoundUp {
		if power.Exp(guess, bigK, nil).Cmp(x) < 0 {
			guess.Add(guess, one)
		}
	}
	return guess, iters, nil
}

// Pow returns base^(num/den) rounded in the requested direction.
//
// The integer power base^num is formed exactly and its den-th root is taken
// with Root, so the result is monotone non-decreasing in base and the cost is
// bounded by the operand limits rather than by the value of base.
func Pow(base *big.Int, num, den uint32, rounding Rounding) (*big.Int, error) {
	if den == 0 {
		return nil, fmt.Errorf("%w: zero exponent denominator", ErrDomain)
	}
	if num > MaxExponentTerm || den > MaxExponentTerm {
		return nil, fmt.Errorf("%w: exponent %d/%d exceeds limit", ErrDomain, num, den)
	}
	if base.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative base", ErrDomain)
	}
	if base.BitLen() > MaxBaseBits {
		return nil, fmt.Errorf("%w: base of %d bits exceeds limit", ErrDomain, base.BitLen())
	}
	if base.Sign() == 0 {
		if num == 0 {
			return nil, fmt.Errorf("%w: zero base with non-positive exponent", ErrDomain)
		}
		return new(big.Int), nil
	}
	if num == 0 {
		return big.NewInt(1), nil
	}

	raised := new(big.Int).Exp(base, big.NewInt(int64(num)), nil)
	if den == 1 {
		return raised, nil
	}
	root, _, err := Root(raised, uint(den), rounding)
	if err != nil {
		return nil, err
	}
	return root, nil
}
