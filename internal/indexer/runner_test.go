package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"curvePool/internal/events"
	"curvePool/internal/model"
	"curvePool/internal/pool"
)

var poolAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fakeSource struct {
	mu          sync.Mutex
	chainID     uint64
	latest      uint64
	logs        []types.Log
	filterFails int
	filterCalls [][2]uint64
	tsCalls     map[uint64]int
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(f.chainID), nil
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tsCalls == nil {
		f.tsCalls = make(map[uint64]int)
	}
	f.tsCalls[number]++
	return 1_700_000_000 + number*12, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filterFails > 0 {
		f.filterFails--
		return nil, errors.New("429 too many requests")
	}
	f.filterCalls = append(f.filterCalls, [2]uint64{from, to})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if len(topic0) > 0 && !containsHash(topic0, log.Topics[0]) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func containsHash(set []common.Hash, h common.Hash) bool {
	for _, v := range set {
		if v == h {
			return true
		}
	}
	return false
}

type memStorage struct {
	records []model.LogRecord
}

func (m *memStorage) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func swapLog(t *testing.T, block uint64, index uint) types.Log {
	t.Helper()
	log, err := events.Encode(pool.SwapEvent{
		Pool:      poolAddr,
		Sender:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		AssetIn:   common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		AssetOut:  common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		AmountIn:  uint256.NewInt(1000),
		AmountOut: uint256.NewInt(10),
		To:        common.HexToAddress("0x3333333333333333333333333333333333333333"),
	})
	if err != nil {
		t.Fatalf("encode swap: %v", err)
	}
	log.BlockNumber = block
	log.Index = index
	log.TxHash = common.BigToHash(new(big.Int).SetUint64(block*100 + uint64(index)))
	return log
}

func TestRunnerIndexesPoolLogs(t *testing.T) {
	foreign := swapLog(t, 12, 5)
	foreign.Topics = append([]common.Hash{common.HexToHash("0xdddd")}, foreign.Topics[1:]...)

	source := &fakeSource{
		chainID:     31337,
		latest:      15,
		filterFails: 1,
		logs: []types.Log{
			swapLog(t, 10, 0),
			swapLog(t, 10, 1),
			swapLog(t, 10, 1),
			swapLog(t, 13, 0),
			foreign,
		},
	}
	sink := &memStorage{}
	runner := NewRunner(RunConfig{
		FromBlock:    10,
		Addresses:    []common.Address{poolAddr},
		BatchSize:    3,
		MaxRetries:   2,
		RetryBackoff: 1,
	}, source, sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.records) != 3 {
		t.Fatalf("records=%d", len(sink.records))
	}
	for _, record := range sink.records {
		if record.ChainID != 31337 {
			t.Fatalf("chain id %d", record.ChainID)
		}
		if record.Timestamp != 1_700_000_000+record.BlockNumber*12 {
			t.Fatalf("timestamp mismatch for block %d", record.BlockNumber)
		}
	}
	if source.tsCalls[10] != 1 || source.tsCalls[13] != 1 {
		t.Fatalf("timestamp calls %+v", source.tsCalls)
	}
	want := [][2]uint64{{10, 12}, {13, 15}}
	if len(source.filterCalls) != len(want) || source.filterCalls[0] != want[0] || source.filterCalls[1] != want[1] {
		t.Fatalf("filter calls %+v", source.filterCalls)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	source := &fakeSource{
		chainID: 31337,
		latest:  20,
		logs:    []types.Log{swapLog(t, 11, 0), swapLog(t, 19, 0)},
	}
	cfg := RunConfig{
		FromBlock:         10,
		ToBlock:           15,
		Addresses:         []common.Address{poolAddr},
		BatchSize:         100,
		CheckpointPath:    path,
		CheckpointEnabled: true,
	}

	first := &memStorage{}
	if err := NewRunner(cfg, source, first, nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first.records) != 1 {
		t.Fatalf("first run records=%d", len(first.records))
	}

	cp, ok, err := NewCheckpointStore(path, true).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.LastProcessedBlock != 15 || cp.ChainID != 31337 {
		t.Fatalf("checkpoint %+v", cp)
	}

	cfg.ToBlock = 0
	second := &memStorage{}
	if err := NewRunner(cfg, source, second, nil).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.records) != 1 || second.records[0].BlockNumber != 19 {
		t.Fatalf("second run records %+v", second.records)
	}

	source.chainID = 1
	if err := NewRunner(cfg, source, &memStorage{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected chain id mismatch")
	}
}

func TestRunnerValidatesConfig(t *testing.T) {
	source := &fakeSource{chainID: 1}
	if err := NewRunner(RunConfig{BatchSize: 1}, source, &memStorage{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected missing address error")
	}
	if err := NewRunner(RunConfig{Addresses: []common.Address{poolAddr}}, source, &memStorage{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected batch size error")
	}
	if err := NewRunner(RunConfig{Addresses: []common.Address{poolAddr}, BatchSize: 1}, source, nil, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestParseTopic0AcceptsEventNames(t *testing.T) {
	all, err := events.Topic0s()
	if err != nil {
		t.Fatalf("topic0s: %v", err)
	}
	got, err := ParseTopic0([]string{"swap", all[0].Hex(), " "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != all[2] || got[1] != all[0] {
		t.Fatalf("topics %+v", got)
	}
	if _, err := ParseTopic0([]string{"mint"}); err == nil {
		t.Fatalf("expected unknown event error")
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
}
