package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"curvePool/internal/model"
	"curvePool/internal/storage"
)

// feeMethodPolicy marks fees recomputed from the pool's fee policy.
const feeMethodPolicy = "fee_policy_split"

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	// Platform attributes fee sweeps by sender when set.
	Platform common.Address
}

// MetricsStore receives pool snapshots and window metrics.
// *postgres.Store implements it.
type MetricsStore interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator buckets pool events into per-window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	source       DecimalsSource
	logger       *zap.Logger
	decimals     *TokenDecimalsCache
	accumulators map[string]*Accumulator
	states       map[string]*PoolState
}

// NewAggregator builds an aggregator. source may be nil, in which case every
// token is treated as having 18 decimals.
func NewAggregator(cfg Config, store MetricsStore, source DecimalsSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		source:       source,
		logger:       logger,
		decimals:     NewTokenDecimalsCache(),
		accumulators: make(map[string]*Accumulator),
		states:       make(map[string]*PoolState),
	}
}

// Run aggregates a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return a.run(ctx, file)
}

func (a *Aggregator) run(ctx context.Context, input io.Reader) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 256)
	maxTs := startTs
	var total, windows, replayed, failed int

	err = storage.ScanJSONL(input, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			return nil
		}

		key := poolKey(record.Address)
		st := a.states[key]
		if st == nil {
			st = NewPoolState(record.PoolMeta, a.cfg.Platform)
			a.states[key] = st
		}

		if record.Timestamp <= startTs {
			if _, err := st.Apply(record); err != nil {
				a.logger.Warn("replay event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", record.EventName))
			}
			replayed++
			return nil
		}

		ws := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != ws {
			metrics, err := a.flushAccumulator(ctx, acc)
			if err != nil {
				return err
			}
			if metrics != nil {
				batch = append(batch, *metrics)
				pools = append(pools, st.Snapshot(acc.ChainID, acc.PoolAddress))
				windows++
			}
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, ws, ws+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}

		priceBefore := st.Price()
		trade, err := st.Apply(record)
		if err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", record.EventName))
			return nil
		}
		acc.AddEvent(record, trade, priceBefore, st)

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for key, acc := range a.accumulators {
		metrics, err := a.flushAccumulator(ctx, acc)
		if err != nil {
			return err
		}
		if metrics != nil {
			batch = append(batch, *metrics)
			pools = append(pools, a.states[key].Snapshot(acc.ChainID, acc.PoolAddress))
			windows++
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("replayed", replayed),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) (*model.PoolWindowMetrics, error) {
	if acc == nil || acc.events == 0 {
		return nil, nil
	}

	meta := acc.PoolMeta
	if meta.BaseAsset == "" || meta.QuoteAsset == "" {
		a.logger.Warn("missing pool meta", zap.String("pool", acc.PoolAddress))
		return nil, nil
	}

	baseDecimals := a.tokenDecimals(ctx, meta.BaseAsset)
	quoteDecimals := a.tokenDecimals(ctx, meta.QuoteAsset)

	return &model.PoolWindowMetrics{
		ChainID:        acc.ChainID,
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		BuyCount:       acc.BuyCount,
		SellCount:      acc.SellCount,
		BaseVolume:     formatTokenAmount(acc.BaseVolume, baseDecimals),
		QuoteVolume:    formatTokenAmount(acc.QuoteVolume, quoteDecimals),
		PlatformFee: model.Amounts{
			Base:  formatTokenAmount(acc.PlatformFee.Base, baseDecimals),
			Quote: formatTokenAmount(acc.PlatformFee.Quote, quoteDecimals),
		},
		OwnerFee: model.Amounts{
			Base:  formatTokenAmount(acc.OwnerFee.Base, baseDecimals),
			Quote: formatTokenAmount(acc.OwnerFee.Quote, quoteDecimals),
		},
		BaseReserve:  formatOptional(acc.BaseReserve, baseDecimals),
		QuoteReserve: formatOptional(acc.QuoteReserve, quoteDecimals),
		OpenPrice:    formatOptional(acc.OpenPrice, wadDecimals),
		ClosePrice:   formatOptional(acc.ClosePrice, wadDecimals),
		FeeMethod:    feeMethodPolicy,
	}, nil
}

// tokenDecimals falls back to 18 when the token cannot be read.
func (a *Aggregator) tokenDecimals(ctx context.Context, token string) uint8 {
	if !common.IsHexAddress(token) {
		return defaultDecimals
	}
	addr := common.HexToAddress(token)
	if decimals, ok := a.decimals.Get(addr); ok {
		return decimals
	}
	decimals := uint8(defaultDecimals)
	if a.source != nil {
		fetched, err := a.source.TokenDecimals(ctx, addr)
		if err != nil {
			a.logger.Warn("token decimals", zap.String("token", token), zap.Error(err))
		} else {
			decimals = fetched
		}
	}
	a.decimals.Set(addr, decimals)
	return decimals
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
