package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	ChainID        uint64
	PoolAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	BuyCount       uint64
	SellCount      uint64
	BaseVolume     string
	QuoteVolume    string
	PlatformFee    Amounts
	OwnerFee       Amounts
	BaseReserve    *string
	QuoteReserve   *string
	OpenPrice      *string
	ClosePrice     *string
	FeeMethod      string
}
