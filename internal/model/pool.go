package model

// Pool is a pool state record for storage.
type Pool struct {
	ChainID        uint64  `json:"chain_id"`
	Address        string  `json:"address"`
	BaseAsset      string  `json:"base_asset"`
	QuoteAsset     string  `json:"quote_asset"`
	Owner          string  `json:"owner"`
	SlopeNumerator uint32  `json:"slope_numerator"`
	Exponent       uint8   `json:"exponent"`
	FeeRate        uint8   `json:"fee_rate"`
	Initialized    bool    `json:"initialized"`
	Supply         string  `json:"supply"`
	BaseReserve    string  `json:"base_reserve"`
	QuoteReserve   string  `json:"quote_reserve"`
	PlatformFees   Amounts `json:"platform_fees"`
	OwnerFees      Amounts `json:"owner_fees"`
	Price          string  `json:"price,omitempty"`
}

// Amounts is a base/quote amount pair in decimal strings.
type Amounts struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}
