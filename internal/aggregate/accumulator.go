package aggregate

import (
	"math/big"

	"curvePool/internal/model"
	"curvePool/internal/pool"
)

type feeTotals struct {
	Base  *big.Int
	Quote *big.Int
}

func newFeeTotals() feeTotals {
	return feeTotals{Base: big.NewInt(0), Quote: big.NewInt(0)}
}

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	ChainID     uint64
	PoolAddress string
	PoolMeta    model.PoolMeta
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	BuyCount    uint64
	SellCount   uint64
	BaseVolume  *big.Int
	QuoteVolume *big.Int
	PlatformFee feeTotals
	OwnerFee    feeTotals
	// OpenPrice is the spot price before the window's first event and
	// ClosePrice the price after its last one; both WAD scaled.
	OpenPrice    *big.Int
	ClosePrice   *big.Int
	BaseReserve  *big.Int
	QuoteReserve *big.Int
	LastBlock    uint64
	LastTS       uint64
	FirstBlock   uint64
	events       int
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     record.ChainID,
		PoolAddress: record.Address,
		PoolMeta:    record.PoolMeta,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		BaseVolume:  big.NewInt(0),
		QuoteVolume: big.NewInt(0),
		PlatformFee: newFeeTotals(),
		OwnerFee:    newFeeTotals(),
		LastBlock:   record.BlockNumber,
		LastTS:      record.Timestamp,
		FirstBlock:  record.BlockNumber,
	}
}

// AddEvent folds an event that has already been applied to st. priceBefore
// is the spot price before the event and trade is set for swaps.
func (a *Accumulator) AddEvent(record model.TypedEventRecord, trade *Trade, priceBefore *big.Int, st *PoolState) {
	if a.events == 0 && priceBefore != nil {
		a.OpenPrice = priceBefore
	}
	a.events++

	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}
	if a.FirstBlock == 0 || record.BlockNumber < a.FirstBlock {
		a.FirstBlock = record.BlockNumber
	}

	if trade != nil {
		a.applyTrade(trade)
	}

	a.ClosePrice = st.Price()
	if a.OpenPrice == nil {
		a.OpenPrice = a.ClosePrice
	}
	if record.Reserves != nil {
		base, errBase := parseBigInt(record.Reserves.Base)
		quote, errQuote := parseBigInt(record.Reserves.Quote)
		if errBase == nil && errQuote == nil {
			a.BaseReserve, a.QuoteReserve = base, quote
			return
		}
	}
	a.BaseReserve = st.BaseReserve.ToBig()
	a.QuoteReserve = st.QuoteReserve.ToBig()
}

func (a *Accumulator) applyTrade(trade *Trade) {
	a.SwapCount++
	a.BaseVolume.Add(a.BaseVolume, trade.BaseAmount.ToBig())
	a.QuoteVolume.Add(a.QuoteVolume, trade.QuoteAmount.ToBig())

	if trade.Direction == pool.DirectionBuy {
		a.BuyCount++
		a.PlatformFee.Quote.Add(a.PlatformFee.Quote, trade.Split.Platform.ToBig())
		a.OwnerFee.Quote.Add(a.OwnerFee.Quote, trade.Split.Owner.ToBig())
		return
	}
	a.SellCount++
	a.PlatformFee.Base.Add(a.PlatformFee.Base, trade.Split.Platform.ToBig())
	a.OwnerFee.Base.Add(a.OwnerFee.Base, trade.Split.Owner.ToBig())
}
