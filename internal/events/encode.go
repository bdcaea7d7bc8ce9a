package events

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"curvePool/internal/pool"
)

// Encode renders a pool event as the log the pool contract would emit.
// Block and transaction fields are left zero.
func Encode(ev pool.Event) (types.Log, error) {
	parsed, err := PoolABI()
	if err != nil {
		return types.Log{}, fmt.Errorf("parse pool abi: %w", err)
	}
	event, ok := parsed.Events[ev.EventName()]
	if !ok {
		return types.Log{}, fmt.Errorf("unsupported event name: %s", ev.EventName())
	}

	var (
		sender, to common.Address
		values     []interface{}
	)
	switch e := ev.(type) {
	case pool.DepositEvent:
		sender, to = e.Sender, e.To
		values = []interface{}{toBig(e.BaseReserve), toBig(e.QuoteReserve), toBig(e.BaseOut)}
	case pool.WithdrawEvent:
		sender, to = e.Sender, e.To
		values = []interface{}{toBig(e.BaseAmount), toBig(e.QuoteAmount)}
	case pool.SwapEvent:
		sender, to = e.Sender, e.To
		values = []interface{}{e.AssetIn, e.AssetOut, toBig(e.AmountIn), toBig(e.AmountOut)}
	case pool.WithdrawFeesEvent:
		sender, to = e.Sender, e.To
		values = []interface{}{toBig(e.BaseAmount), toBig(e.QuoteAmount)}
	default:
		return types.Log{}, fmt.Errorf("unsupported event type %T", ev)
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return types.Log{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}
	return types.Log{
		Address: ev.PoolAddress(),
		Topics:  []common.Hash{event.ID, addressTopic(sender), addressTopic(to)},
		Data:    data,
	}, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// LogSink is a pool.EventSink that encodes every event into a log. Each
// event gets its own block and transaction, numbered from StartBlock with
// BlockTime seconds between blocks.
type LogSink struct {
	StartBlock uint64
	StartTime  uint64
	BlockTime  uint64

	mu   sync.Mutex
	logs []types.Log
	err  error
}

func (s *LogSink) Emit(ev pool.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := Encode(ev)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		return
	}
	seq := uint64(len(s.logs))
	log.BlockNumber = s.StartBlock + seq
	log.BlockHash = crypto.Keccak256Hash([]byte("block"), new(big.Int).SetUint64(log.BlockNumber).Bytes())
	log.TxHash = crypto.Keccak256Hash([]byte("tx"), new(big.Int).SetUint64(seq).Bytes())
	s.logs = append(s.logs, log)
}

// Logs returns the encoded logs and the first encoding error, if any.
func (s *LogSink) Logs() ([]types.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Log, len(s.logs))
	copy(out, s.logs)
	return out, s.err
}

// Timestamp returns the synthetic timestamp of a block produced by the sink.
func (s *LogSink) Timestamp(block uint64) uint64 {
	if block < s.StartBlock {
		return s.StartTime
	}
	return s.StartTime + (block-s.StartBlock)*s.BlockTime
}
