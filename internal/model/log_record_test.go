package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLogRecordTopic0(t *testing.T) {
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("anonymous log topic0 = %q", got)
	}
	record := LogRecord{Topics: []string{"0xaaa", "0xbbb"}}
	if got := record.Topic0(); got != "0xaaa" {
		t.Fatalf("topic0 = %q", got)
	}
}

func TestLogRecordJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(LogRecord{ChainID: 31337, BlockNumber: 1200, Topics: []string{"0xaaa"}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"chain_id", "block_number", "tx_hash", "log_index", "topics", "ingested_at"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing field %s in %s", key, data)
		}
	}
}

func TestNewDecodeError(t *testing.T) {
	record := LogRecord{ChainID: 1, BlockNumber: 9, TxHash: "0x01", LogIndex: 2, Address: "0xpool"}
	got := NewDecodeError(4, record, errors.New("boom"))
	if got.Line != 4 || got.BlockNumber != 9 || got.Topic0 != "" || got.Error != "boom" {
		t.Fatalf("unexpected decode error: %+v", got)
	}
}
