package events

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"curvePool/internal/model"
	"curvePool/internal/pool"
)

var (
	testPool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSender = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTo     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testBase   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testQuote  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func testMeta() model.PoolMeta {
	return model.PoolMeta{
		BaseAsset:      testBase.Hex(),
		QuoteAsset:     testQuote.Hex(),
		SlopeNumerator: 1_000_000,
		Exponent:       1,
		FeeRate:        3,
	}
}

func encodeRecord(t *testing.T, ev pool.Event) model.LogRecord {
	t.Helper()
	log, err := Encode(ev)
	if err != nil {
		t.Fatalf("encode %s: %v", ev.EventName(), err)
	}
	log.BlockNumber = 1200
	return ToLogRecord(31337, log, 1700000000, time.Unix(1700000100, 0))
}

func newTestDecoder(t *testing.T) (*PoolDecoder, DecodeContext) {
	t.Helper()
	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := NewPoolMetaCache()
	cache.Set(testPool, testMeta())
	return decoder, DecodeContext{PoolMetaCache: cache, Logger: zap.NewNop()}
}

func TestPoolDecoderSwap(t *testing.T) {
	decoder, ctx := newTestDecoder(t)

	record := encodeRecord(t, pool.SwapEvent{
		Pool:      testPool,
		Sender:    testSender,
		AssetIn:   testQuote,
		AssetOut:  testBase,
		AmountIn:  uint256.NewInt(1_000_000_000_000_000_000),
		AmountOut: uint256.NewInt(99_108_871_578_719_642),
		To:        testTo,
	})
	if !decoder.CanDecode(record.Topics[0]) {
		t.Fatalf("swap topic not recognized")
	}
	if record.ChainID != 31337 || record.Timestamp != 1700000000 || record.BlockNumber != 1200 {
		t.Fatalf("record mismatch: %+v", record)
	}

	event, err := decoder.Decode(record, ctx)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if event.EventName != pool.EventSwap {
		t.Fatalf("event name: %s", event.EventName)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}
	if swap.AmountIn != "1000000000000000000" || swap.AmountOut != "99108871578719642" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.AssetIn != testQuote.Hex() || swap.AssetOut != testBase.Hex() {
		t.Fatalf("assets mismatch: %+v", swap)
	}
	if swap.Sender != testSender.Hex() || swap.To != testTo.Hex() {
		t.Fatalf("address mismatch")
	}
	if event.PoolMeta != testMeta() {
		t.Fatalf("pool meta mismatch: %+v", event.PoolMeta)
	}
	if event.Raw == nil || event.Raw.Topic0 != record.Topics[0] {
		t.Fatalf("raw ref missing")
	}
	if event.Reserves != nil {
		t.Fatalf("reserves attached without request")
	}
}

func TestPoolDecoderDepositWithdrawFees(t *testing.T) {
	decoder, ctx := newTestDecoder(t)

	deposit, err := decoder.Decode(encodeRecord(t, pool.DepositEvent{
		Pool:         testPool,
		Sender:       testSender,
		BaseReserve:  uint256.NewInt(900),
		QuoteReserve: uint256.NewInt(50),
		BaseOut:      uint256.NewInt(100),
		To:           testTo,
	}), ctx)
	if err != nil {
		t.Fatalf("decode deposit: %v", err)
	}
	depositData := deposit.Decoded.(model.DepositEventData)
	if depositData.BaseReserve != "900" || depositData.QuoteReserve != "50" || depositData.BaseOut != "100" {
		t.Fatalf("deposit mismatch: %+v", depositData)
	}

	withdraw, err := decoder.Decode(encodeRecord(t, pool.WithdrawEvent{
		Pool:        testPool,
		Sender:      testSender,
		BaseAmount:  uint256.NewInt(7),
		QuoteAmount: uint256.NewInt(8),
		To:          testTo,
	}), ctx)
	if err != nil {
		t.Fatalf("decode withdraw: %v", err)
	}
	withdrawData := withdraw.Decoded.(model.WithdrawEventData)
	if withdrawData.BaseAmount != "7" || withdrawData.QuoteAmount != "8" || withdrawData.To != testTo.Hex() {
		t.Fatalf("withdraw mismatch: %+v", withdrawData)
	}

	fees, err := decoder.Decode(encodeRecord(t, pool.WithdrawFeesEvent{
		Pool:        testPool,
		Sender:      testSender,
		BaseAmount:  uint256.NewInt(0),
		QuoteAmount: uint256.NewInt(3),
		To:          testTo,
	}), ctx)
	if err != nil {
		t.Fatalf("decode withdraw fees: %v", err)
	}
	if fees.EventName != pool.EventWithdrawFees {
		t.Fatalf("event name: %s", fees.EventName)
	}
	feesData := fees.Decoded.(model.WithdrawFeesEventData)
	if feesData.BaseAmount != "0" || feesData.QuoteAmount != "3" {
		t.Fatalf("fees mismatch: %+v", feesData)
	}
}

func TestPoolDecoderRejectsMalformedLogs(t *testing.T) {
	decoder, ctx := newTestDecoder(t)

	record := encodeRecord(t, pool.WithdrawEvent{
		Pool:        testPool,
		Sender:      testSender,
		BaseAmount:  uint256.NewInt(1),
		QuoteAmount: uint256.NewInt(1),
		To:          testTo,
	})

	missingTopic := record
	missingTopic.Topics = record.Topics[:2]
	if _, err := decoder.Decode(missingTopic, ctx); err == nil {
		t.Fatalf("expected topic count error")
	}

	unknown := record
	unknown.Topics = append([]string{common.HexToHash("0xdead").Hex()}, record.Topics[1:]...)
	if decoder.CanDecode(unknown.Topics[0]) {
		t.Fatalf("unknown topic recognized")
	}
	if _, err := decoder.Decode(unknown, ctx); err == nil {
		t.Fatalf("expected unsupported topic error")
	}

	uncached := record
	uncached.Address = "0x4444444444444444444444444444444444444444"
	if _, err := decoder.Decode(uncached, ctx); err == nil || !strings.Contains(err.Error(), "not cached") {
		t.Fatalf("expected cache miss error, got %v", err)
	}
}

func TestPoolDecoderTopic0Alias(t *testing.T) {
	alias := common.HexToHash("0x0102").Hex()
	decoder, err := NewPoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "withdraw_fees"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias) {
		t.Fatalf("alias not recognized")
	}

	if _, err := NewPoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "mint"}}); err == nil {
		t.Fatalf("expected unsupported event name error")
	}
}

func TestTopic0sMatchesDecoder(t *testing.T) {
	decoder, _ := newTestDecoder(t)
	topics, err := Topic0s()
	if err != nil {
		t.Fatalf("topic0s: %v", err)
	}
	if len(topics) != 4 {
		t.Fatalf("topic count %d", len(topics))
	}
	for _, topic := range topics {
		if !decoder.CanDecode(topic.Hex()) {
			t.Fatalf("topic %s not decodable", topic.Hex())
		}
	}
}

type fakeCaller struct {
	values map[string][]interface{}
	blocks []*big.Int
}

func (f *fakeCaller) Call(_ context.Context, _ common.Address, _ abi.ABI, method string, block *big.Int, _ ...interface{}) ([]interface{}, error) {
	f.blocks = append(f.blocks, block)
	values, ok := f.values[method]
	if !ok {
		return nil, fmt.Errorf("call %s: execution reverted", method)
	}
	return values, nil
}

func TestDecodeFetchesMetaAndReserves(t *testing.T) {
	caller := &fakeCaller{values: map[string][]interface{}{
		"baseToken":      {testBase},
		"quoteToken":     {testQuote},
		"slopeNumerator": {uint32(1_000_000)},
		"n":              {uint8(1)},
		"fee":            {uint8(3)},
		"getReserves":    {big.NewInt(900), big.NewInt(50)},
	}}
	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := NewPoolMetaCache()
	ctx := DecodeContext{
		Context:         context.Background(),
		Chain:           caller,
		PoolMetaCache:   cache,
		IncludeReserves: true,
	}

	event, err := decoder.Decode(encodeRecord(t, pool.WithdrawEvent{
		Pool:        testPool,
		Sender:      testSender,
		BaseAmount:  uint256.NewInt(1),
		QuoteAmount: uint256.NewInt(2),
		To:          testTo,
	}), ctx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.PoolMeta != testMeta() {
		t.Fatalf("pool meta mismatch: %+v", event.PoolMeta)
	}
	if cache.Len() != 1 {
		t.Fatalf("meta not cached")
	}
	if event.Reserves == nil || event.Reserves.Base != "900" || event.Reserves.Quote != "50" {
		t.Fatalf("reserves mismatch: %+v", event.Reserves)
	}
	last := caller.blocks[len(caller.blocks)-1]
	if last == nil || last.Uint64() != 1200 {
		t.Fatalf("reserves read at wrong block: %v", last)
	}

	delete(caller.values, "getReserves")
	event, err = decoder.Decode(encodeRecord(t, pool.WithdrawEvent{
		Pool:        testPool,
		Sender:      testSender,
		BaseAmount:  uint256.NewInt(1),
		QuoteAmount: uint256.NewInt(2),
		To:          testTo,
	}), ctx)
	if err != nil {
		t.Fatalf("decode without reserves: %v", err)
	}
	if event.Reserves != nil {
		t.Fatalf("expected reserves to be skipped on failure")
	}
}

func TestLogSinkNumbersBlocks(t *testing.T) {
	sink := &LogSink{StartBlock: 100, StartTime: 1000, BlockTime: 12}
	for i := 0; i < 3; i++ {
		sink.Emit(pool.WithdrawFeesEvent{
			Pool:        testPool,
			Sender:      testSender,
			BaseAmount:  uint256.NewInt(uint64(i)),
			QuoteAmount: uint256.NewInt(0),
			To:          testTo,
		})
	}
	logs, err := sink.Logs()
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("log count %d", len(logs))
	}
	if logs[2].BlockNumber != 102 || sink.Timestamp(logs[2].BlockNumber) != 1024 {
		t.Fatalf("block numbering mismatch: %d", logs[2].BlockNumber)
	}
	if logs[0].TxHash == logs[1].TxHash {
		t.Fatalf("tx hashes collide")
	}
}

func TestFetchPoolSupply(t *testing.T) {
	caller := &fakeCaller{values: map[string][]interface{}{"s": {big.NewInt(1e18)}}}
	supply, err := FetchPoolSupply(context.Background(), caller, testPool, 0)
	if err != nil {
		t.Fatalf("fetch supply: %v", err)
	}
	if supply.Cmp(big.NewInt(1e18)) != 0 {
		t.Fatalf("supply mismatch: %s", supply)
	}
	if caller.blocks[0] != nil {
		t.Fatalf("expected latest block read, got %v", caller.blocks[0])
	}
	if _, err := FetchPoolSupply(context.Background(), &fakeCaller{}, testPool, 10); err == nil {
		t.Fatalf("expected error for reverted call")
	}
}
