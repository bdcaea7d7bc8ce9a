package model

// DepositEventData is the decoded Deposit event payload.
type DepositEventData struct {
	Sender       string `json:"sender"`
	BaseReserve  string `json:"base_reserve"`
	QuoteReserve string `json:"quote_reserve"`
	BaseOut      string `json:"base_out"`
	To           string `json:"to"`
}

// WithdrawEventData is the decoded Withdraw event payload.
type WithdrawEventData struct {
	Sender      string `json:"sender"`
	BaseAmount  string `json:"base_amount"`
	QuoteAmount string `json:"quote_amount"`
	To          string `json:"to"`
}

// SwapEventData is the decoded Swap event payload.
type SwapEventData struct {
	Sender    string `json:"sender"`
	AssetIn   string `json:"asset_in"`
	AssetOut  string `json:"asset_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	To        string `json:"to"`
}

// WithdrawFeesEventData is the decoded WithdrawFees event payload.
type WithdrawFeesEventData struct {
	Sender      string `json:"sender"`
	BaseAmount  string `json:"base_amount"`
	QuoteAmount string `json:"quote_amount"`
	To          string `json:"to"`
}
