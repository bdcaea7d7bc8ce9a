package model

// TokenBalance is an ERC20 balance read for a holder.
type TokenBalance struct {
	Token    string `json:"token"`
	Holder   string `json:"holder"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
	Balance  string `json:"balance"`
	Block    uint64 `json:"block,omitempty"`
}
