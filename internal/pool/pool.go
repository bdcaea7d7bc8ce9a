package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"curvePool/internal/curve"
	"curvePool/internal/fee"
	"curvePool/internal/fixedpoint"
	"curvePool/internal/ledger"
	"curvePool/internal/metrics"
)

// Config identifies a pool and the accounts allowed to configure it.
type Config struct {
	// Address is the pool's own holder identity in the ledger.
	Address  common.Address
	Registry common.Address
	Platform common.Address
}

// Params are fixed by Initialize.
type Params struct {
	Router         common.Address
	BaseAsset      common.Address
	QuoteAsset     common.Address
	Owner          common.Address
	SlopeNumerator uint32
	Exponent       uint8
	FeeRate        uint8
}

// Balances holds one amount per pool asset.
type Balances struct {
	Base  *uint256.Int
	Quote *uint256.Int
}

func zeroBalances() Balances {
	return Balances{Base: new(uint256.Int), Quote: new(uint256.Int)}
}

func (b Balances) clone() Balances {
	return Balances{Base: new(uint256.Int).Set(b.Base), Quote: new(uint256.Int).Set(b.Quote)}
}

func (b Balances) isZero() bool {
	return b.Base.IsZero() && b.Quote.IsZero()
}

// state is everything a mutating call may change. Calls work on a clone and
// swap it in once the ledger batch has settled.
type state struct {
	supply       *uint256.Int
	reserves     Balances
	platformFees Balances
	ownerFees    Balances
}

func newState() state {
	return state{
		supply:       new(uint256.Int),
		reserves:     zeroBalances(),
		platformFees: zeroBalances(),
		ownerFees:    zeroBalances(),
	}
}

func (s state) clone() state {
	return state{
		supply:       new(uint256.Int).Set(s.supply),
		reserves:     s.reserves.clone(),
		platformFees: s.platformFees.clone(),
		ownerFees:    s.ownerFees.clone(),
	}
}

// Pool is a two-asset bonding curve pool.
type Pool struct {
	cfg     Config
	ledger  ledger.Ledger
	sink    EventSink
	metrics *metrics.Pool
	logger  *zap.Logger

	// Events are queued under mu and delivered after it is released.
	pendingMu sync.Mutex
	pending   []Event
	emitMu    sync.Mutex

	mu          sync.RWMutex
	configured  bool
	initialized bool
	params      Params
	curve       curve.Curve
	fees        fee.Policy
	st          state
}

// New builds an unconfigured pool. The registry identity in cfg is the only
// caller allowed to Initialize it.
func New(cfg Config, l ledger.Ledger, sink EventSink, m *metrics.Pool, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:     cfg,
		ledger:  l,
		sink:    sink,
		metrics: m,
		logger:  logger.With(zap.Stringer("pool", cfg.Address)),
		st:      newState(),
	}
}

func (p *Pool) Address() common.Address { return p.cfg.Address }

// Initialize fixes the pool's assets, curve and fee parameters.
func (p *Pool) Initialize(caller common.Address, params Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Registry || p.configured {
		return p.fail("initialize", ErrForbidden)
	}
	if params.BaseAsset == params.QuoteAsset {
		return p.fail("initialize", ErrIdenticalAssets)
	}
	if params.BaseAsset == (common.Address{}) || params.QuoteAsset == (common.Address{}) {
		return p.fail("initialize", ErrZeroAddress)
	}
	c, err := curve.New(params.SlopeNumerator, params.Exponent)
	if err != nil {
		return p.fail("initialize", err)
	}
	policy, err := fee.NewPolicy(params.FeeRate)
	if err != nil {
		return p.fail("initialize", err)
	}

	p.params = params
	p.curve = c
	p.fees = policy
	p.configured = true
	p.logger.Debug("pool configured",
		zap.Stringer("base", params.BaseAsset),
		zap.Stringer("quote", params.QuoteAsset),
		zap.Stringer("curve", c),
		zap.Uint8("fee_rate", params.FeeRate),
	)
	return nil
}

// Deposit bootstraps the curve from the balances already sent to the pool.
// The quote balance fixes the starting supply; the base the curve would have
// sold to reach it goes to to.
func (p *Pool) Deposit(ctx context.Context, caller, to common.Address) (*uint256.Int, error) {
	defer p.flush()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configured || caller != p.params.Router {
		return nil, p.fail("deposit", ErrForbiddenDeposit)
	}
	if p.initialized {
		return nil, p.fail("deposit", ErrDoubleDeposit)
	}

	observed, err := p.observe(ctx)
	if err != nil {
		return nil, p.fail("deposit", err)
	}
	supply, err := p.curve.SupplyAtReserve(observed.Quote, fixedpoint.RoundDown)
	if err != nil {
		return nil, p.fail("deposit", fmt.Errorf("supply at reserve: %w", err))
	}
	if supply.Gt(observed.Base) {
		return nil, p.fail("deposit", fmt.Errorf("%w: deposit needs %s base, pool holds %s",
			ErrInsufficientReserve, supply.Dec(), observed.Base.Dec()))
	}

	next := newState()
	next.supply.Set(supply)
	next.reserves.Base.Sub(observed.Base, supply)
	next.reserves.Quote.Set(observed.Quote)

	if !supply.IsZero() {
		if err := p.send(ctx, ledger.Transfer{Asset: p.params.BaseAsset, To: to, Amount: supply}); err != nil {
			return nil, p.fail("deposit", err)
		}
	}

	p.st = next
	p.initialized = true
	p.metrics.Deposit()
	p.logger.Info("pool bootstrapped",
		zap.String("supply", supply.Dec()),
		zap.String("base_reserve", next.reserves.Base.Dec()),
		zap.String("quote_reserve", next.reserves.Quote.Dec()),
	)
	p.emit(DepositEvent{
		Pool:         p.cfg.Address,
		Sender:       caller,
		BaseReserve:  new(uint256.Int).Set(next.reserves.Base),
		QuoteReserve: new(uint256.Int).Set(next.reserves.Quote),
		BaseOut:      new(uint256.Int).Set(supply),
		To:           to,
	})
	return new(uint256.Int).Set(supply), nil
}

// Withdraw sends both reserves to to. Fee accruals stay with the pool.
func (p *Pool) Withdraw(ctx context.Context, caller, to common.Address) error {
	defer p.flush()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configured || caller != p.params.Owner {
		return p.fail("withdraw", ErrForbiddenWithdraw)
	}
	if !p.initialized {
		return p.fail("withdraw", ErrUninitialized)
	}
	if _, err := p.observe(ctx); err != nil {
		return p.fail("withdraw", err)
	}

	paid := p.st.reserves.clone()
	next := p.st.clone()
	next.reserves = zeroBalances()

	if err := p.send(ctx,
		ledger.Transfer{Asset: p.params.BaseAsset, To: to, Amount: paid.Base},
		ledger.Transfer{Asset: p.params.QuoteAsset, To: to, Amount: paid.Quote},
	); err != nil {
		return p.fail("withdraw", err)
	}

	p.st = next
	p.metrics.Withdraw()
	p.logger.Info("reserves withdrawn",
		zap.Stringer("to", to),
		zap.String("base", paid.Base.Dec()),
		zap.String("quote", paid.Quote.Dec()),
	)
	p.emit(WithdrawEvent{
		Pool:        p.cfg.Address,
		Sender:      caller,
		BaseAmount:  paid.Base,
		QuoteAmount: paid.Quote,
		To:          to,
	})
	return nil
}

// WithdrawPlatformFees sweeps the platform accruals to to.
func (p *Pool) WithdrawPlatformFees(ctx context.Context, caller, to common.Address) error {
	defer p.flush()
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.cfg.Platform {
		return p.fail("withdraw_platform_fees", ErrForbiddenWithdraw)
	}
	return p.sweep(ctx, "platform", caller, to, func(s *state) *Balances { return &s.platformFees })
}

// WithdrawOwnerFees sweeps the owner accruals to to.
func (p *Pool) WithdrawOwnerFees(ctx context.Context, caller, to common.Address) error {
	defer p.flush()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configured || caller != p.params.Owner {
		return p.fail("withdraw_owner_fees", ErrForbiddenWithdraw)
	}
	return p.sweep(ctx, "owner", caller, to, func(s *state) *Balances { return &s.ownerFees })
}

func (p *Pool) sweep(ctx context.Context, beneficiary string, caller, to common.Address, pick func(*state) *Balances) error {
	op := "withdraw_" + beneficiary + "_fees"
	if !p.initialized {
		return p.fail(op, ErrUninitialized)
	}
	if _, err := p.observe(ctx); err != nil {
		return p.fail(op, err)
	}

	next := p.st.clone()
	accrued := pick(&next)
	paid := accrued.clone()
	*accrued = zeroBalances()

	if err := p.send(ctx,
		ledger.Transfer{Asset: p.params.BaseAsset, To: to, Amount: paid.Base},
		ledger.Transfer{Asset: p.params.QuoteAsset, To: to, Amount: paid.Quote},
	); err != nil {
		return p.fail(op, err)
	}

	p.st = next
	p.metrics.FeeSweep(beneficiary)
	p.logger.Debug("fees withdrawn",
		zap.String("beneficiary", beneficiary),
		zap.Stringer("to", to),
		zap.String("base", paid.Base.Dec()),
		zap.String("quote", paid.Quote.Dec()),
	)
	p.emit(WithdrawFeesEvent{
		Pool:        p.cfg.Address,
		Sender:      caller,
		BaseAmount:  paid.Base,
		QuoteAmount: paid.Quote,
		To:          to,
	})
	return nil
}

// SetPairOwner hands ownership to newOwner.
func (p *Pool) SetPairOwner(caller, newOwner common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configured || caller != p.params.Owner {
		return p.fail("set_pair_owner", ErrForbiddenPairOwner)
	}
	if !p.initialized {
		return p.fail("set_pair_owner", ErrUninitialized)
	}
	if newOwner == (common.Address{}) {
		return p.fail("set_pair_owner", ErrZeroAddress)
	}
	p.params.Owner = newOwner
	p.logger.Info("pair owner changed", zap.Stringer("owner", newOwner))
	return nil
}

// observe reads the pool's ledger balances and checks them against the
// booked reserves and accruals.
func (p *Pool) observe(ctx context.Context) (Balances, error) {
	base, err := p.ledger.BalanceOf(ctx, p.params.BaseAsset, p.cfg.Address)
	if err != nil {
		return Balances{}, fmt.Errorf("read base balance: %w", err)
	}
	quote, err := p.ledger.BalanceOf(ctx, p.params.QuoteAsset, p.cfg.Address)
	if err != nil {
		return Balances{}, fmt.Errorf("read quote balance: %w", err)
	}
	booked := p.booked()
	if base.Lt(booked.Base) {
		return Balances{}, fmt.Errorf("%w: base balance %s below booked %s", ErrReserveDeficit, base.Dec(), booked.Base.Dec())
	}
	if quote.Lt(booked.Quote) {
		return Balances{}, fmt.Errorf("%w: quote balance %s below booked %s", ErrReserveDeficit, quote.Dec(), booked.Quote.Dec())
	}
	return Balances{Base: base, Quote: quote}, nil
}

// booked is reserves plus unswept fees, per asset.
func (p *Pool) booked() Balances {
	out := p.st.reserves.clone()
	out.Base.Add(out.Base, p.st.platformFees.Base)
	out.Base.Add(out.Base, p.st.ownerFees.Base)
	out.Quote.Add(out.Quote, p.st.platformFees.Quote)
	out.Quote.Add(out.Quote, p.st.ownerFees.Quote)
	return out
}

func (p *Pool) send(ctx context.Context, transfers ...ledger.Transfer) error {
	batch := make([]ledger.Transfer, 0, len(transfers))
	for _, tr := range transfers {
		if tr.Amount == nil || tr.Amount.IsZero() {
			continue
		}
		tr.From = p.cfg.Address
		batch = append(batch, tr)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := p.ledger.Transfer(ctx, batch...); err != nil {
		return fmt.Errorf("ledger transfer: %w", err)
	}
	return nil
}

// emit queues ev for delivery. Callers hold mu.
func (p *Pool) emit(ev Event) {
	if p.sink == nil {
		return
	}
	p.pendingMu.Lock()
	p.pending = append(p.pending, ev)
	p.pendingMu.Unlock()
}

// flush hands queued events to the sink in commit order. It runs after mu is
// released so a sink may read the pool. If another goroutine is already
// delivering, that goroutine drains the queue instead.
func (p *Pool) flush() {
	for {
		if !p.emitMu.TryLock() {
			return
		}
		for {
			p.pendingMu.Lock()
			if len(p.pending) == 0 {
				p.pendingMu.Unlock()
				break
			}
			ev := p.pending[0]
			p.pending = p.pending[1:]
			p.pendingMu.Unlock()
			p.sink.Emit(ev)
		}
		p.emitMu.Unlock()

		p.pendingMu.Lock()
		more := len(p.pending) > 0
		p.pendingMu.Unlock()
		if !more {
			return
		}
	}
}

func (p *Pool) fail(op string, err error) error {
	p.metrics.Failure(op)
	p.logger.Debug("pool call rejected", zap.String("op", op), zap.Error(err))
	return err
}
