package model

// PoolMeta captures the immutable curve parameters of a pool.
type PoolMeta struct {
	BaseAsset      string `json:"base_asset"`
	QuoteAsset     string `json:"quote_asset"`
	SlopeNumerator uint32 `json:"slope_numerator"`
	Exponent       uint8  `json:"exponent"`
	FeeRate        uint8  `json:"fee_rate"`
}

// PoolReserves are reserves read at a block height.
type PoolReserves struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}
