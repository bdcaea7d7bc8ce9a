package pool

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	EventDeposit      = "Deposit"
	EventWithdraw     = "Withdraw"
	EventSwap         = "Swap"
	EventWithdrawFees = "WithdrawFees"
)

// Event is a record emitted by a pool after a mutating call commits.
type Event interface {
	EventName() string
	PoolAddress() common.Address
}

// EventSink receives pool events in commit order. Emit is called without the
// pool's lock held, so a sink may read pool state.
type EventSink interface {
	Emit(Event)
}

// DepositEvent records the bootstrap: reserves after the deposit and the
// base pre-sold to the depositor.
type DepositEvent struct {
	Pool         common.Address
	Sender       common.Address
	BaseReserve  *uint256.Int
	QuoteReserve *uint256.Int
	BaseOut      *uint256.Int
	To           common.Address
}

func (DepositEvent) EventName() string             { return EventDeposit }
func (e DepositEvent) PoolAddress() common.Address { return e.Pool }

// WithdrawEvent records the reserves paid out by a withdrawal.
type WithdrawEvent struct {
	Pool        common.Address
	Sender      common.Address
	BaseAmount  *uint256.Int
	QuoteAmount *uint256.Int
	To          common.Address
}

func (WithdrawEvent) EventName() string             { return EventWithdraw }
func (e WithdrawEvent) PoolAddress() common.Address { return e.Pool }

type SwapEvent struct {
	Pool      common.Address
	Sender    common.Address
	AssetIn   common.Address
	AssetOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	To        common.Address
}

func (SwapEvent) EventName() string             { return EventSwap }
func (e SwapEvent) PoolAddress() common.Address { return e.Pool }

// WithdrawFeesEvent records a platform or owner fee sweep.
type WithdrawFeesEvent struct {
	Pool        common.Address
	Sender      common.Address
	BaseAmount  *uint256.Int
	QuoteAmount *uint256.Int
	To          common.Address
}

func (WithdrawFeesEvent) EventName() string             { return EventWithdrawFees }
func (e WithdrawFeesEvent) PoolAddress() common.Address { return e.Pool }

// Recorder is an EventSink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event, or nil.
func (r *Recorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}
