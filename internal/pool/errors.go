package pool

import (
	"errors"

	"curvePool/internal/curve"
	"curvePool/internal/fee"
)

// Authorization errors.
var (
	ErrForbidden          = errors.New("forbidden")
	ErrForbiddenDeposit   = errors.New("forbidden deposit")
	ErrForbiddenWithdraw  = errors.New("forbidden withdraw")
	ErrForbiddenPairOwner = errors.New("forbidden pair owner")
)

// Validation errors.
var (
	ErrInvalidSlope       = curve.ErrInvalidSlope
	ErrInvalidExponent    = curve.ErrInvalidExponent
	ErrInvalidFee         = fee.ErrInvalidFee
	ErrIdenticalAssets    = errors.New("identical assets")
	ErrZeroAddress        = errors.New("zero address")
	ErrIncorrectTokens    = errors.New("incorrect tokens")
	ErrInvalidTo          = errors.New("invalid to")
	ErrInvalidBaseOutput  = errors.New("invalid base output")
	ErrInvalidQuoteOutput = errors.New("invalid quote output")
)

// Sequencing errors.
var (
	ErrUninitialized           = errors.New("uninitialized")
	ErrUninitializedSwap       = errors.New("uninitialized swap")
	ErrUninitializedBasePrice  = errors.New("uninitialized base price")
	ErrUninitializedQuotePrice = errors.New("uninitialized quote price")
	ErrUninitializedBaseOut    = errors.New("uninitialized base out")
	ErrUninitializedQuoteOut   = errors.New("uninitialized quote out")
	ErrUninitializedBaseIn     = errors.New("uninitialized base in")
	ErrUninitializedQuoteIn    = errors.New("uninitialized quote in")
	ErrDoubleDeposit           = errors.New("double deposit")
)

// Funding errors.
var (
	ErrIncorrectInputAmount = errors.New("incorrect input amount")
	ErrInsufficientIOAmount = errors.New("insufficient input or output amount")
	// ErrReserveDeficit reports an observed balance below the booked
	// reserves and fee accruals.
	ErrReserveDeficit = errors.New("reserve deficit")
)

// Domain errors surfaced from the curve engine.
var (
	ErrInsufficientSupply  = curve.ErrInsufficientSupply
	ErrInsufficientReserve = curve.ErrInsufficientReserve
)
