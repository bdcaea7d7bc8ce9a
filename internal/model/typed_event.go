package model

// EventHeader locates a decoded pool event on chain.
type EventHeader struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	EventName   string `json:"event_name"`
	Timestamp   uint64 `json:"timestamp"`
}

// TypedEvent is a decoded pool event with the pool's curve parameters.
// Decoded holds one of the *EventData payloads.
type TypedEvent struct {
	EventHeader
	Decoded  interface{} `json:"decoded"`
	PoolMeta PoolMeta    `json:"pool_meta"`
	// Reserves are the pool's booked reserves at the event block, when read.
	Reserves *PoolReserves `json:"reserves,omitempty"`
	Raw      *RawLogRef    `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
