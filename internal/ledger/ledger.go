// Package ledger defines the token ledger a pool observes and pays out of.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInvalidTransfer     = errors.New("ledger: invalid transfer")
)

// Transfer moves Amount of Asset from From to To.
type Transfer struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// BalanceReader reads token balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*uint256.Int, error)
}

// Ledger reads balances and applies transfer batches. A batch is applied
// all-or-nothing: if any transfer in it cannot be applied none are.
type Ledger interface {
	BalanceReader
	Transfer(ctx context.Context, transfers ...Transfer) error
}
