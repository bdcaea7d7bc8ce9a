package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"curvePool/internal/events"
	"curvePool/internal/model"
	"curvePool/internal/storage"
)

const defaultTimestampConcurrency = 8

// LogSource is the chain surface the runner reads from. *chain.Client
// implements it.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	// Topic0 defaults to every curve pool event.
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// TimestampConcurrency bounds parallel block header reads per batch.
	TimestampConcurrency int
}

// Runner streams pool logs from the chain and writes them to storage.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

func NewRunner(cfg RunConfig, source LogSource, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimestampConcurrency <= 0 {
		cfg.TimestampConcurrency = defaultTimestampConcurrency
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		storage:    storageSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one pool address is required")
	}
	if len(r.cfg.Topic0) == 0 {
		topics, err := events.Topic0s()
		if err != nil {
			return fmt.Errorf("pool event topics: %w", err)
		}
		r.cfg.Topic0 = topics
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		if cp.ChainID != 0 && cp.ChainID != chainIDValue {
			return fmt.Errorf("checkpoint chain id %d does not match chain %d", cp.ChainID, chainIDValue)
		}
		if cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		fresh := make([]types.Log, 0, len(logs))
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}
			fresh = append(fresh, log)
		}

		timestamps, err := r.blockTimestamps(ctx, fresh)
		if err != nil {
			return err
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(fresh))
		for _, log := range fresh {
			records = append(records, events.ToLogRecord(chainIDValue, log, timestamps[log.BlockNumber], ingestedAt))
		}

		if err := r.storage.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}

		if err := r.checkpoint.Save(chainIDValue, blockRange.To); err != nil {
			return err
		}

		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	notify := func(err error, next time.Duration) {
		r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Duration("retry_in", next))
	}
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, notify, func(ctx context.Context) ([]types.Log, error) {
		return r.source.FilterLogs(ctx, blockRange.From, blockRange.To, r.cfg.Addresses, r.cfg.Topic0)
	})
}

// blockTimestamps reads the header time of every distinct block in logs.
func (r *Runner) blockTimestamps(ctx context.Context, logs []types.Log) (map[uint64]uint64, error) {
	blocks := make([]uint64, 0, len(logs))
	seen := make(map[uint64]struct{}, len(logs))
	for _, log := range logs {
		if _, ok := seen[log.BlockNumber]; ok {
			continue
		}
		seen[log.BlockNumber] = struct{}{}
		blocks = append(blocks, log.BlockNumber)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	results := make([]uint64, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.TimestampConcurrency)
	for i, number := range blocks {
		i, number := i, number
		g.Go(func() error {
			notify := func(err error, next time.Duration) {
				r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", number), zap.Duration("retry_in", next))
			}
			ts, err := withRetry(gctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, notify, func(ctx context.Context) (uint64, error) {
				return r.source.BlockTimestamp(ctx, number)
			})
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", number, err)
			}
			results[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[uint64]uint64, len(blocks))
	for i, number := range blocks {
		out[number] = results[i]
	}
	return out, nil
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
