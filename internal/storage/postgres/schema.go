package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id           BIGINT      NOT NULL,
	pool_address       TEXT        NOT NULL,
	base_asset         TEXT        NOT NULL,
	quote_asset        TEXT        NOT NULL,
	owner              TEXT        NOT NULL,
	slope_numerator    BIGINT      NOT NULL,
	exponent           SMALLINT    NOT NULL,
	fee_rate           SMALLINT    NOT NULL,
	initialized        BOOLEAN     NOT NULL,
	supply             NUMERIC(78) NOT NULL,
	base_reserve       NUMERIC(78) NOT NULL,
	quote_reserve      NUMERIC(78) NOT NULL,
	platform_fee_base  NUMERIC(78) NOT NULL,
	platform_fee_quote NUMERIC(78) NOT NULL,
	owner_fee_base     NUMERIC(78) NOT NULL,
	owner_fee_quote    NUMERIC(78) NOT NULL,
	price              NUMERIC(78),
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	chain_id            BIGINT      NOT NULL,
	pool_address        TEXT        NOT NULL,
	window_size_seconds BIGINT      NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT      NOT NULL,
	buy_count           BIGINT      NOT NULL,
	sell_count          BIGINT      NOT NULL,
	base_volume         NUMERIC     NOT NULL,
	quote_volume        NUMERIC     NOT NULL,
	platform_fee_base   NUMERIC     NOT NULL,
	platform_fee_quote  NUMERIC     NOT NULL,
	owner_fee_base      NUMERIC     NOT NULL,
	owner_fee_quote     NUMERIC     NOT NULL,
	base_reserve        NUMERIC,
	quote_reserve       NUMERIC,
	open_price          NUMERIC,
	close_price         NUMERIC,
	fee_method          TEXT        NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name              TEXT        PRIMARY KEY,
	last_processed_ts BIGINT      NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_balances (
	asset      TEXT        NOT NULL,
	holder     TEXT        NOT NULL,
	amount     NUMERIC(78) NOT NULL CHECK (amount >= 0),
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (asset, holder)
);
`

// Migrate creates the tables used by the store and the ledger.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
