package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"curvePool/internal/events"
	"curvePool/internal/ledger"
	"curvePool/internal/model"
	"curvePool/internal/pool"
)

var (
	poolAddr     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	platformAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	routerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	traderAddr   = common.HexToAddress("0x0000000000000000000000000000000000000011")
	baseAsset    = common.HexToAddress("0x000000000000000000000000000000000000b000")
	quoteAsset   = common.HexToAddress("0x000000000000000000000000000000000000c000")
)

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

type fakeStore struct {
	pools   []model.Pool
	metrics []model.PoolWindowMetrics
}

func (f *fakeStore) UpsertPools(_ context.Context, pools []model.Pool) error {
	f.pools = append(f.pools, pools...)
	return nil
}

func (f *fakeStore) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	f.metrics = append(f.metrics, metrics...)
	return nil
}

// history drives a real pool and renders its events as typed event lines.
type history struct {
	t       *testing.T
	ctx     context.Context
	ledger  *ledger.Memory
	rec     *pool.Recorder
	pool    *pool.Pool
	decoder *events.PoolDecoder
	dctx    events.DecodeContext
	lines   bytes.Buffer
	block   uint64
}

func newHistory(t *testing.T, feeRate uint8) *history {
	t.Helper()
	h := &history{t: t, ctx: context.Background(), ledger: ledger.NewMemory(), rec: &pool.Recorder{}}
	h.pool = pool.New(pool.Config{Address: poolAddr, Registry: registryAddr, Platform: platformAddr}, h.ledger, h.rec, nil, nil)
	require.NoError(t, h.pool.Initialize(registryAddr, pool.Params{
		Router:         routerAddr,
		BaseAsset:      baseAsset,
		QuoteAsset:     quoteAsset,
		Owner:          ownerAddr,
		SlopeNumerator: 1_000_000,
		Exponent:       1,
		FeeRate:        feeRate,
	}))

	decoder, err := events.NewPoolDecoder(events.DecoderConfig{})
	require.NoError(t, err)
	cache := events.NewPoolMetaCache()
	cache.Set(poolAddr, events.MetaFromSnapshot(h.pool.Snapshot()))
	h.decoder = decoder
	h.dctx = events.DecodeContext{PoolMetaCache: cache}
	return h
}

// record appends the pool's latest event at timestamp ts.
func (h *history) record(ts uint64) {
	h.t.Helper()
	log, err := events.Encode(h.rec.Last())
	require.NoError(h.t, err)
	h.block++
	log.BlockNumber = h.block

	typed, err := h.decoder.Decode(events.ToLogRecord(31337, log, ts, time.Unix(int64(ts), 0)), h.dctx)
	require.NoError(h.t, err)
	line, err := json.Marshal(typed)
	require.NoError(h.t, err)
	h.lines.Write(append(line, '\n'))
}

func (h *history) mint(asset common.Address, v *uint256.Int) {
	require.NoError(h.t, h.ledger.Mint(asset, poolAddr, v))
}

func (h *history) deposit(ts uint64) {
	h.mint(baseAsset, tokens(1_000_000_000))
	h.mint(quoteAsset, tokens(50))
	_, err := h.pool.Deposit(h.ctx, routerAddr, routerAddr)
	require.NoError(h.t, err)
	h.record(ts)
}

func (h *history) buy(ts uint64, quoteIn *uint256.Int) *uint256.Int {
	out, err := h.pool.GetBaseOut(quoteIn)
	require.NoError(h.t, err)
	h.mint(quoteAsset, quoteIn)
	require.NoError(h.t, h.pool.Swap(h.ctx, traderAddr, quoteAsset, baseAsset, quoteIn, out, traderAddr))
	h.record(ts)
	return out
}

func (h *history) sell(ts uint64, baseIn *uint256.Int) *uint256.Int {
	out, err := h.pool.GetQuoteOut(baseIn)
	require.NoError(h.t, err)
	h.mint(baseAsset, baseIn)
	require.NoError(h.t, h.pool.Swap(h.ctx, traderAddr, baseAsset, quoteAsset, baseIn, out, traderAddr))
	h.record(ts)
	return out
}

func (h *history) price() string {
	p, err := h.pool.BasePrice()
	require.NoError(h.t, err)
	return formatTokenAmount(p.ToBig(), wadDecimals)
}

func TestAggregatorWindows(t *testing.T) {
	h := newHistory(t, 3)

	h.deposit(100)
	openPrice := h.price()
	baseOut := h.buy(200, tokens(1))
	afterBuy := h.price()
	baseIn := new(uint256.Int).Div(tokens(1), uint256.NewInt(10))
	quoteOut := h.sell(4000, baseIn)
	require.NoError(t, h.pool.WithdrawPlatformFees(h.ctx, platformAddr, platformAddr))
	h.record(4100)

	store := &fakeStore{}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json"), Name: "aggregator:3600"}
	agg := NewAggregator(Config{WindowSeconds: 3600, StateStore: state, Platform: platformAddr}, store, nil, nil)
	require.NoError(t, agg.run(h.ctx, bytes.NewReader(h.lines.Bytes())))

	require.Len(t, store.metrics, 2)
	first, second := store.metrics[0], store.metrics[1]

	require.Equal(t, int64(0), first.WindowStart.Unix())
	require.Equal(t, int64(3600), first.WindowEnd.Unix())
	require.Equal(t, uint64(1), first.SwapCount)
	require.Equal(t, uint64(1), first.BuyCount)
	require.Equal(t, "1.000000000000000000", first.QuoteVolume)
	require.Equal(t, formatTokenAmount(baseOut.ToBig(), 18), first.BaseVolume)
	require.Equal(t, "0.001000000000000000", first.PlatformFee.Quote)
	require.Equal(t, "0.003000000000000000", first.OwnerFee.Quote)
	require.Equal(t, "0.000000000000000000", first.PlatformFee.Base)
	require.Equal(t, "10.000000000000000000", openPrice)
	require.Equal(t, openPrice, *first.OpenPrice)
	require.Equal(t, afterBuy, *first.ClosePrice)
	require.Equal(t, feeMethodPolicy, first.FeeMethod)

	require.Equal(t, int64(3600), second.WindowStart.Unix())
	require.Equal(t, uint64(1), second.SellCount)
	require.Equal(t, "0.100000000000000000", second.BaseVolume)
	require.Equal(t, formatTokenAmount(quoteOut.ToBig(), 18), second.QuoteVolume)
	require.Equal(t, "0.000100000000000000", second.PlatformFee.Base)
	require.Equal(t, "0.000300000000000000", second.OwnerFee.Base)
	require.Equal(t, afterBuy, *second.OpenPrice)
	require.Equal(t, h.price(), *second.ClosePrice)

	base, quote := h.pool.Reserves()
	require.Equal(t, formatTokenAmount(base.ToBig(), 18), *second.BaseReserve)
	require.Equal(t, formatTokenAmount(quote.ToBig(), 18), *second.QuoteReserve)

	require.Len(t, store.pools, 2)
	final := store.pools[1]
	snap := h.pool.Snapshot()
	require.Equal(t, snap.Supply.Dec(), final.Supply)
	require.Equal(t, snap.Reserves.Base.Dec(), final.BaseReserve)
	require.Equal(t, snap.Reserves.Quote.Dec(), final.QuoteReserve)
	require.Equal(t, model.Amounts{Base: "0", Quote: "0"}, final.PlatformFees)
	require.Equal(t, snap.OwnerFees.Base.Dec(), final.OwnerFees.Base)
	require.Equal(t, snap.OwnerFees.Quote.Dec(), final.OwnerFees.Quote)
	price, err := h.pool.BasePrice()
	require.NoError(t, err)
	require.Equal(t, price.Dec(), final.Price)

	last, ok, err := state.Load(h.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4100), last)

	// A rerun from saved state only replays.
	again := NewAggregator(Config{WindowSeconds: 3600, StateStore: state, Platform: platformAddr}, store, nil, nil)
	require.NoError(t, again.run(h.ctx, bytes.NewReader(h.lines.Bytes())))
	require.Len(t, store.metrics, 2)
	require.Len(t, store.pools, 2)
}

func TestPoolStateAttributesSweepsByAmount(t *testing.T) {
	h := newHistory(t, 5)
	h.deposit(100)
	h.buy(200, tokens(2))
	require.NoError(t, h.pool.WithdrawOwnerFees(h.ctx, ownerAddr, ownerAddr))
	h.record(300)

	var records []model.TypedEventRecord
	for _, line := range bytes.Split(bytes.TrimSpace(h.lines.Bytes()), []byte("\n")) {
		var record model.TypedEventRecord
		require.NoError(t, json.Unmarshal(line, &record))
		records = append(records, record)
	}

	st := NewPoolState(records[0].PoolMeta, common.Address{})
	for _, record := range records {
		_, err := st.Apply(record)
		require.NoError(t, err)
	}
	snap := h.pool.Snapshot()
	require.True(t, st.OwnerFees.Quote.IsZero())
	require.Equal(t, snap.PlatformFees.Quote.Dec(), st.PlatformFees.Quote.Dec())
	require.Equal(t, "2000000000000000", st.PlatformFees.Quote.Dec())
}

func TestPoolStateRejectsInconsistentHistory(t *testing.T) {
	meta := model.PoolMeta{BaseAsset: baseAsset.Hex(), QuoteAsset: quoteAsset.Hex(), SlopeNumerator: 1_000_000, Exponent: 1}
	st := NewPoolState(meta, common.Address{})

	swap, err := json.Marshal(model.SwapEventData{AssetIn: quoteAsset.Hex(), AssetOut: baseAsset.Hex(), AmountIn: "10", AmountOut: "1"})
	require.NoError(t, err)
	_, err = st.Apply(model.TypedEventRecord{EventHeader: model.EventHeader{EventName: pool.EventSwap}, Decoded: swap})
	require.Error(t, err)
	require.Nil(t, st.Price())

	bad := NewPoolState(model.PoolMeta{SlopeNumerator: 0, Exponent: 1}, common.Address{})
	_, err = bad.Apply(model.TypedEventRecord{EventHeader: model.EventHeader{EventName: pool.EventDeposit}})
	require.Error(t, err)
}

func TestFormatTokenAmount(t *testing.T) {
	v, err := parseBigInt("1500000000000000000")
	require.NoError(t, err)
	require.Equal(t, "1.500000000000000000", formatTokenAmount(v, 18))
	require.Equal(t, "1500", formatTokenAmount(big.NewInt(1500), 0))
	require.Equal(t, "0", formatTokenAmount(nil, 18))
	require.Nil(t, formatOptional(nil, 18))
}

func TestFileStateStoreKeepsNamedCursors(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	hourly := &FileStateStore{Path: path, Name: "aggregator:3600"}
	daily := &FileStateStore{Path: path, Name: "aggregator:86400"}

	_, ok, err := hourly.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, hourly.Save(ctx, 7199))
	require.NoError(t, daily.Save(ctx, 86399))

	got, ok, err := hourly.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7199), got)

	got, ok, err = daily.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(86399), got)
}

func TestRecomputeFromSkipsEarlierWindows(t *testing.T) {
	h := newHistory(t, 0)
	h.deposit(100)
	h.buy(200, tokens(1))
	h.buy(3700, tokens(1))

	store := &fakeStore{}
	agg := NewAggregator(Config{WindowSeconds: 3600, RecomputeFrom: 3600}, store, nil, nil)
	require.NoError(t, agg.run(h.ctx, bytes.NewReader(h.lines.Bytes())))

	require.Len(t, store.metrics, 1)
	require.Equal(t, int64(3600), store.metrics[0].WindowStart.Unix())
	require.Equal(t, uint64(1), store.metrics[0].BuyCount)
	require.Equal(t, h.price(), *store.metrics[0].ClosePrice)
	require.Equal(t, h.pool.Supply().Dec(), store.pools[0].Supply)
}
