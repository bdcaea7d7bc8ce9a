package model

import "encoding/json"

// TypedEventRecord is a TypedEvent read back from JSONL with the payload
// left raw until the event name selects its type.
type TypedEventRecord struct {
	EventHeader
	Decoded  json.RawMessage `json:"decoded"`
	PoolMeta PoolMeta        `json:"pool_meta"`
	Reserves *PoolReserves   `json:"reserves,omitempty"`
	Raw      *RawLogRef      `json:"raw,omitempty"`
}
