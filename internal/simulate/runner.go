package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"curvePool/internal/events"
	"curvePool/internal/ledger"
	"curvePool/internal/metrics"
	"curvePool/internal/model"
	"curvePool/internal/pool"
	"curvePool/internal/registry"
	"curvePool/internal/storage"
)

// ErrUnexpectedSuccess is returned when a step marked expect_error succeeds.
var ErrUnexpectedSuccess = errors.New("step succeeded but an error was expected")

const (
	defaultChainID   = 31337
	defaultBlockTime = 12
)

// Ledger is the balance store a run executes against.
type Ledger interface {
	ledger.Ledger
	Mint(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error
}

// memoryLedger adapts ledger.Memory to Ledger.
type memoryLedger struct {
	*ledger.Memory
}

func (m memoryLedger) Mint(_ context.Context, asset, holder common.Address, amount *uint256.Int) error {
	return m.Memory.Mint(asset, holder, amount)
}

// Config controls where a run keeps balances and writes decoded events.
type Config struct {
	// OutputPath receives typed event JSONL; empty disables the file.
	OutputPath string
	Append     bool
	// Ledger, when nil, is a fresh in-memory ledger per run.
	Ledger Ledger
}

// Result is the outcome of a scenario run.
type Result struct {
	Steps          int
	ExpectedErrors int
	Events         []model.TypedEvent
	Pools          []model.Pool
}

type Runner struct {
	cfg     Config
	metrics *metrics.Pool
	logger  *zap.Logger
}

func NewRunner(cfg Config, m *metrics.Pool, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, metrics: m, logger: logger}
}

// run holds the per-scenario world.
type run struct {
	sc       *Scenario
	ledger   Ledger
	registry *registry.Registry
	pools    map[string]*pool.Pool
}

// Run executes the scenario against the configured ledger. A step that fails
// without expect_error aborts the run.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	chainID := sc.ChainID
	if chainID == 0 {
		chainID = defaultChainID
	}
	blockTime := sc.BlockTime
	if blockTime == 0 {
		blockTime = defaultBlockTime
	}
	startTime := sc.StartTime
	if startTime == 0 {
		startTime = uint64(time.Now().Unix())
	}

	balances := r.cfg.Ledger
	if balances == nil {
		balances = memoryLedger{ledger.NewMemory()}
	}
	w := &run{sc: sc, ledger: balances, pools: make(map[string]*pool.Pool)}
	registryAddr, err := w.address(sc.Registry)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	platform, err := w.address(sc.Platform)
	if err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}

	sink := &events.LogSink{StartBlock: sc.StartBlock, StartTime: startTime, BlockTime: blockTime}
	w.registry = registry.New(registry.Config{Address: registryAddr, Platform: platform}, w.ledger, sink, r.metrics, r.logger)

	for _, spec := range sc.Pools {
		p, err := w.construct(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", spec.Name, err)
		}
		w.pools[spec.Name] = p
		r.logger.Info("pool constructed", zap.String("name", spec.Name), zap.Stringer("pool", p.Address()))
	}
	// Mints run after construction so they may fund pools by name.
	for i, m := range sc.Mints {
		if err := w.mint(ctx, m); err != nil {
			return nil, fmt.Errorf("mint %d: %w", i, err)
		}
	}

	res := &Result{}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := w.exec(ctx, step)
		switch {
		case step.ExpectError != "" && err == nil:
			return nil, fmt.Errorf("step %d (%s): %w: %q", i, step.Action, ErrUnexpectedSuccess, step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			return nil, fmt.Errorf("step %d (%s): expected error %q, got: %w", i, step.Action, step.ExpectError, err)
		case step.ExpectError != "":
			res.ExpectedErrors++
			r.logger.Debug("expected step error", zap.Int("step", i), zap.String("action", step.Action), zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		res.Steps++
	}

	typed, err := r.decode(ctx, chainID, sink, w.registry.AllPools())
	if err != nil {
		return nil, err
	}
	res.Events = typed
	if err := r.write(typed); err != nil {
		return nil, err
	}

	for _, p := range w.registry.AllPools() {
		res.Pools = append(res.Pools, PoolRecord(chainID, p))
	}
	r.logger.Info("scenario complete",
		zap.Int("steps", res.Steps),
		zap.Int("expected_errors", res.ExpectedErrors),
		zap.Int("events", len(res.Events)),
		zap.Int("pools", len(res.Pools)),
	)
	return res, nil
}

func (r *Runner) decode(ctx context.Context, chainID uint64, sink *events.LogSink, pools []*pool.Pool) ([]model.TypedEvent, error) {
	logs, err := sink.Logs()
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	decoder, err := events.NewPoolDecoder(events.DecoderConfig{})
	if err != nil {
		return nil, err
	}
	cache := events.NewPoolMetaCache()
	for _, p := range pools {
		cache.Set(p.Address(), events.MetaFromSnapshot(p.Snapshot()))
	}
	dctx := events.DecodeContext{Context: ctx, PoolMetaCache: cache, Logger: r.logger}

	now := time.Now().UTC()
	out := make([]model.TypedEvent, 0, len(logs))
	for _, log := range logs {
		record := events.ToLogRecord(chainID, log, sink.Timestamp(log.BlockNumber), now)
		typed, err := decoder.Decode(record, dctx)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", record.TxHash, err)
		}
		out = append(out, *typed)
	}
	return out, nil
}

func (r *Runner) write(typed []model.TypedEvent) error {
	if r.cfg.OutputPath == "" {
		return nil
	}
	writer, err := storage.NewJSONLWriter(r.cfg.OutputPath, r.cfg.Append)
	if err != nil {
		return err
	}
	for _, ev := range typed {
		if err := writer.Write(ev); err != nil {
			writer.Close()
			return err
		}
	}
	return writer.Close()
}

// PoolRecord renders a pool's current state as a storage record.
func PoolRecord(chainID uint64, p *pool.Pool) model.Pool {
	snap := p.Snapshot()
	out := model.Pool{
		ChainID:        chainID,
		Address:        snap.Address.Hex(),
		BaseAsset:      snap.BaseAsset.Hex(),
		QuoteAsset:     snap.QuoteAsset.Hex(),
		Owner:          snap.Owner.Hex(),
		SlopeNumerator: snap.SlopeNumerator,
		Exponent:       snap.Exponent,
		FeeRate:        snap.FeeRate,
		Initialized:    snap.Initialized,
		Supply:         snap.Supply.Dec(),
		BaseReserve:    snap.Reserves.Base.Dec(),
		QuoteReserve:   snap.Reserves.Quote.Dec(),
		PlatformFees:   model.Amounts{Base: snap.PlatformFees.Base.Dec(), Quote: snap.PlatformFees.Quote.Dec()},
		OwnerFees:      model.Amounts{Base: snap.OwnerFees.Base.Dec(), Quote: snap.OwnerFees.Quote.Dec()},
	}
	if price, err := p.BasePrice(); err == nil {
		out.Price = price.Dec()
	}
	return out
}

// address resolves an account name, a pool name or a hex address.
func (w *run) address(ref string) (common.Address, error) {
	if ref == "" {
		return common.Address{}, fmt.Errorf("address is empty")
	}
	if addr, ok := w.sc.Accounts[ref]; ok {
		return common.HexToAddress(addr), nil
	}
	if p, ok := w.pools[ref]; ok {
		return p.Address(), nil
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	return common.Address{}, fmt.Errorf("unknown account %q", ref)
}

func (w *run) mint(ctx context.Context, m Mint) error {
	asset, err := w.address(m.Asset)
	if err != nil {
		return err
	}
	holder, err := w.address(m.Holder)
	if err != nil {
		return err
	}
	amount, err := ParseAmount(m.Amount)
	if err != nil {
		return err
	}
	return w.ledger.Mint(ctx, asset, holder, amount)
}

func (w *run) construct(ctx context.Context, spec PoolSpec) (*pool.Pool, error) {
	base, err := w.address(spec.Base)
	if err != nil {
		return nil, err
	}
	quote, err := w.address(spec.Quote)
	if err != nil {
		return nil, err
	}
	router, err := w.address(spec.Router)
	if err != nil {
		return nil, err
	}
	owner, err := w.address(spec.Owner)
	if err != nil {
		return nil, err
	}
	return w.registry.Construct(ctx, base, quote, router, owner, spec.SlopeNumerator, spec.Exponent, spec.FeeRate)
}

func (w *run) exec(ctx context.Context, step Step) error {
	if step.Action == ActionTransfer {
		return w.transfer(ctx, step.Asset, step.From, step.To, step.Amount)
	}

	p := w.pools[step.Pool]
	caller, err := w.address(step.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}
	switch step.Action {
	case ActionDeposit:
		to, err := w.address(step.To)
		if err != nil {
			return err
		}
		_, err = p.Deposit(ctx, caller, to)
		return err
	case ActionSwap:
		return w.swap(ctx, p, caller, step)
	case ActionWithdraw:
		to, err := w.address(step.To)
		if err != nil {
			return err
		}
		return p.Withdraw(ctx, caller, to)
	case ActionWithdrawPlatformFees:
		to, err := w.address(step.To)
		if err != nil {
			return err
		}
		return p.WithdrawPlatformFees(ctx, caller, to)
	case ActionWithdrawOwnerFees:
		to, err := w.address(step.To)
		if err != nil {
			return err
		}
		return p.WithdrawOwnerFees(ctx, caller, to)
	case ActionSetOwner:
		owner, err := w.address(step.NewOwner)
		if err != nil {
			return err
		}
		return p.SetPairOwner(caller, owner)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (w *run) transfer(ctx context.Context, assetRef, fromRef, toRef, amountRef string) error {
	asset, err := w.address(assetRef)
	if err != nil {
		return err
	}
	from, err := w.address(fromRef)
	if err != nil {
		return err
	}
	to, err := w.address(toRef)
	if err != nil {
		return err
	}
	amount, err := ParseAmount(amountRef)
	if err != nil {
		return err
	}
	return w.ledger.Transfer(ctx, ledger.Transfer{Asset: asset, From: from, To: to, Amount: amount})
}

// swap sends amount_in from the caller to the pool, then swaps. An empty
// amount_out takes the pool's own quote.
func (w *run) swap(ctx context.Context, p *pool.Pool, caller common.Address, step Step) error {
	assetIn, err := w.address(step.AssetIn)
	if err != nil {
		return err
	}
	assetOut, err := w.address(step.AssetOut)
	if err != nil {
		return err
	}
	to, err := w.address(step.To)
	if err != nil {
		return err
	}
	amountIn, err := ParseAmount(step.AmountIn)
	if err != nil {
		return err
	}

	var amountOut *uint256.Int
	if step.AmountOut != "" {
		if amountOut, err = ParseAmount(step.AmountOut); err != nil {
			return err
		}
	} else {
		params := p.Params()
		if assetIn == params.QuoteAsset {
			amountOut, err = p.GetBaseOut(amountIn)
		} else {
			amountOut, err = p.GetQuoteOut(amountIn)
		}
		if err != nil {
			return fmt.Errorf("quote swap: %w", err)
		}
	}

	err = w.ledger.Transfer(ctx, ledger.Transfer{Asset: assetIn, From: caller, To: p.Address(), Amount: amountIn})
	if err != nil {
		return fmt.Errorf("send input: %w", err)
	}
	return p.Swap(ctx, caller, assetIn, assetOut, amountIn, amountOut, to)
}
