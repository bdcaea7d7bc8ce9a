package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"curvePool/internal/ledger"
)

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger keeps token balances in the ledger_balances table. Each transfer
// batch runs in one transaction with the touched rows locked.
type Ledger struct {
	db txBeginner
}

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

func (k balanceKey) less(other balanceKey) bool {
	if c := bytes.Compare(k.asset.Bytes(), other.asset.Bytes()); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.holder.Bytes(), other.holder.Bytes()) < 0
}

func (l *Ledger) BalanceOf(ctx context.Context, asset, holder common.Address) (*uint256.Int, error) {
	var amount string
	err := l.db.QueryRow(ctx,
		`SELECT amount::text FROM ledger_balances WHERE asset=$1 AND holder=$2`,
		asset.Hex(), holder.Hex(),
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return parseAmount(amount)
}

// Mint credits amount of asset to holder.
func (l *Ledger) Mint(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error {
	return l.withTx(ctx, []balanceKey{{asset: asset, holder: holder}}, func(balances map[balanceKey]*uint256.Int) error {
		bal := balances[balanceKey{asset: asset, holder: holder}]
		if _, overflow := bal.AddOverflow(bal, amount); overflow {
			return fmt.Errorf("%w: mint overflows balance of %s", ledger.ErrInvalidTransfer, holder.Hex())
		}
		return nil
	})
}

// Transfer applies the batch all-or-nothing.
func (l *Ledger) Transfer(ctx context.Context, transfers ...ledger.Transfer) error {
	keys := make([]balanceKey, 0, 2*len(transfers))
	for i, tr := range transfers {
		if tr.Amount == nil {
			return fmt.Errorf("%w: transfer %d has no amount", ledger.ErrInvalidTransfer, i)
		}
		if tr.Amount.IsZero() {
			continue
		}
		keys = append(keys, balanceKey{asset: tr.Asset, holder: tr.From}, balanceKey{asset: tr.Asset, holder: tr.To})
	}
	if len(keys) == 0 {
		return ctx.Err()
	}

	return l.withTx(ctx, keys, func(balances map[balanceKey]*uint256.Int) error {
		for i, tr := range transfers {
			if tr.Amount.IsZero() {
				continue
			}
			from := balances[balanceKey{asset: tr.Asset, holder: tr.From}]
			if from.Lt(tr.Amount) {
				return fmt.Errorf("%w: %s holds %s of %s, needs %s",
					ledger.ErrInsufficientBalance, tr.From.Hex(), from.Dec(), tr.Asset.Hex(), tr.Amount.Dec())
			}
			from.Sub(from, tr.Amount)

			to := balances[balanceKey{asset: tr.Asset, holder: tr.To}]
			if _, overflow := to.AddOverflow(to, tr.Amount); overflow {
				return fmt.Errorf("%w: transfer %d overflows balance of %s", ledger.ErrInvalidTransfer, i, tr.To.Hex())
			}
		}
		return nil
	})
}

// withTx locks the rows for keys in a fixed order, hands their balances to
// apply and writes them back if apply succeeds.
func (l *Ledger) withTx(ctx context.Context, keys []balanceKey, apply func(map[balanceKey]*uint256.Int) error) error {
	keys = dedupeKeys(keys)

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	balances := make(map[balanceKey]*uint256.Int, len(keys))
	for _, key := range keys {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_balances (asset, holder, amount, updated_at)
			VALUES ($1, $2, 0, now())
			ON CONFLICT (asset, holder) DO NOTHING
		`, key.asset.Hex(), key.holder.Hex()); err != nil {
			return fmt.Errorf("ensure balance row: %w", err)
		}

		var amount string
		if err := tx.QueryRow(ctx,
			`SELECT amount::text FROM ledger_balances WHERE asset=$1 AND holder=$2 FOR UPDATE`,
			key.asset.Hex(), key.holder.Hex(),
		).Scan(&amount); err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		bal, err := parseAmount(amount)
		if err != nil {
			return err
		}
		balances[key] = bal
	}

	if err := apply(balances); err != nil {
		return err
	}

	for _, key := range keys {
		if _, err := tx.Exec(ctx,
			`UPDATE ledger_balances SET amount=$3::text::numeric, updated_at=now() WHERE asset=$1 AND holder=$2`,
			key.asset.Hex(), key.holder.Hex(), balances[key].Dec(),
		); err != nil {
			return fmt.Errorf("write balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func dedupeKeys(keys []balanceKey) []balanceKey {
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	out := keys[:0]
	for _, key := range keys {
		if len(out) > 0 && key == out[len(out)-1] {
			continue
		}
		out = append(out, key)
	}
	return out
}

func parseAmount(text string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(text)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", text, err)
	}
	return amount, nil
}
