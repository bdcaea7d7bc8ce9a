package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

// Memory is an in-process Ledger.
type Memory struct {
	mu       sync.RWMutex
	balances map[balanceKey]*uint256.Int
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[balanceKey]*uint256.Int)}
}

// Mint credits amount of asset to holder.
func (m *Memory) Mint(asset, holder common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{asset: asset, holder: holder}
	next, overflow := new(uint256.Int).AddOverflow(m.balanceLocked(key), amount)
	if overflow {
		return fmt.Errorf("%w: mint overflows balance of %s", ErrInvalidTransfer, holder.Hex())
	}
	m.balances[key] = next
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, asset, holder common.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(uint256.Int).Set(m.balanceLocked(balanceKey{asset: asset, holder: holder})), nil
}

// Transfer applies the batch against a staged copy of the touched balances
// and commits only when every transfer succeeds.
func (m *Memory) Transfer(ctx context.Context, transfers ...Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[balanceKey]*uint256.Int)
	get := func(key balanceKey) *uint256.Int {
		if v, ok := staged[key]; ok {
			return v
		}
		v := new(uint256.Int).Set(m.balanceLocked(key))
		staged[key] = v
		return v
	}

	for i, tr := range transfers {
		if tr.Amount == nil {
			return fmt.Errorf("%w: transfer %d has no amount", ErrInvalidTransfer, i)
		}
		if tr.Amount.IsZero() {
			continue
		}
		from := get(balanceKey{asset: tr.Asset, holder: tr.From})
		if from.Lt(tr.Amount) {
			return fmt.Errorf("%w: %s holds %s of %s, needs %s",
				ErrInsufficientBalance, tr.From.Hex(), from.Dec(), tr.Asset.Hex(), tr.Amount.Dec())
		}
		from.Sub(from, tr.Amount)

		to := get(balanceKey{asset: tr.Asset, holder: tr.To})
		if _, overflow := to.AddOverflow(to, tr.Amount); overflow {
			return fmt.Errorf("%w: transfer %d overflows balance of %s", ErrInvalidTransfer, i, tr.To.Hex())
		}
	}

	for key, v := range staged {
		m.balances[key] = v
	}
	return nil
}

func (m *Memory) balanceLocked(key balanceKey) *uint256.Int {
	if v, ok := m.balances[key]; ok {
		return v
	}
	return new(uint256.Int)
}
