package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curvePool/internal/model"
)

// Store provides Postgres persistence for pool snapshots, window metrics
// and aggregator state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ledger returns a token ledger sharing the store's connection pool.
func (s *Store) Ledger() *Ledger {
	return &Ledger{db: s.pool}
}

// UpsertPools inserts or updates pool snapshots.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, base_asset, quote_asset, owner,
				slope_numerator, exponent, fee_rate, initialized,
				supply, base_reserve, quote_reserve,
				platform_fee_base, platform_fee_quote, owner_fee_base, owner_fee_quote,
				price, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				owner = EXCLUDED.owner,
				initialized = EXCLUDED.initialized,
				supply = EXCLUDED.supply,
				base_reserve = EXCLUDED.base_reserve,
				quote_reserve = EXCLUDED.quote_reserve,
				platform_fee_base = EXCLUDED.platform_fee_base,
				platform_fee_quote = EXCLUDED.platform_fee_quote,
				owner_fee_base = EXCLUDED.owner_fee_base,
				owner_fee_quote = EXCLUDED.owner_fee_quote,
				price = EXCLUDED.price,
				updated_at = now()
		`,
			int64(p.ChainID),
			p.Address,
			p.BaseAsset,
			p.QuoteAsset,
			p.Owner,
			int64(p.SlopeNumerator),
			int16(p.Exponent),
			int16(p.FeeRate),
			p.Initialized,
			numeric(p.Supply),
			numeric(p.BaseReserve),
			numeric(p.QuoteReserve),
			numeric(p.PlatformFees.Base),
			numeric(p.PlatformFees.Quote),
			numeric(p.OwnerFees.Base),
			numeric(p.OwnerFees.Quote),
			nullableNumeric(p.Price),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, buy_count, sell_count, base_volume, quote_volume,
				platform_fee_base, platform_fee_quote, owner_fee_base, owner_fee_quote,
				base_reserve, quote_reserve, open_price, close_price, fee_method,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				base_volume = EXCLUDED.base_volume,
				quote_volume = EXCLUDED.quote_volume,
				platform_fee_base = EXCLUDED.platform_fee_base,
				platform_fee_quote = EXCLUDED.platform_fee_quote,
				owner_fee_base = EXCLUDED.owner_fee_base,
				owner_fee_quote = EXCLUDED.owner_fee_quote,
				base_reserve = EXCLUDED.base_reserve,
				quote_reserve = EXCLUDED.quote_reserve,
				open_price = EXCLUDED.open_price,
				close_price = EXCLUDED.close_price,
				fee_method = EXCLUDED.fee_method,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.BuyCount),
			int64(m.SellCount),
			numeric(m.BaseVolume),
			numeric(m.QuoteVolume),
			numeric(m.PlatformFee.Base),
			numeric(m.PlatformFee.Quote),
			numeric(m.OwnerFee.Base),
			numeric(m.OwnerFee.Quote),
			m.BaseReserve,
			m.QuoteReserve,
			m.OpenPrice,
			m.ClosePrice,
			m.FeeMethod,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

// numeric maps an empty decimal string to zero.
func numeric(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func nullableNumeric(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
