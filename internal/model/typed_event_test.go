package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:    "0x1111111111111111111111111111111111111111",
		AssetIn:   "0x2222222222222222222222222222222222222222",
		AssetOut:  "0x3333333333333333333333333333333333333333",
		AmountIn:  "12345678901234567890",
		AmountOut: "99405923122409084",
		To:        "0x4444444444444444444444444444444444444444",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := decoded["amount_in"].(string); !ok {
		t.Fatalf("amount_in should be string")
	}
	if _, ok := decoded["amount_out"].(string); !ok {
		t.Fatalf("amount_out should be string")
	}
	if decoded["asset_in"] != payload.AssetIn {
		t.Fatalf("asset_in mismatch: %v", decoded["asset_in"])
	}
}

func TestTypedEventRecordKeepsDecodedRaw(t *testing.T) {
	event := TypedEvent{
		EventHeader: EventHeader{
			ChainID:     31337,
			BlockNumber: 7,
			Address:     "0x1111111111111111111111111111111111111111",
			EventName:   "Deposit",
		},
		Decoded: DepositEventData{
			Sender:       "0x2222222222222222222222222222222222222222",
			BaseReserve:  "999999990000000000000000000",
			QuoteReserve: "50000000000000000000",
			BaseOut:      "10000000000000000000",
			To:           "0x2222222222222222222222222222222222222222",
		},
		PoolMeta: PoolMeta{SlopeNumerator: 1000000, Exponent: 1, FeeRate: 3},
		Reserves: &PoolReserves{Base: "1", Quote: "2"},
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record TypedEventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	var deposit DepositEventData
	if err := json.Unmarshal(record.Decoded, &deposit); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if deposit.BaseOut != "10000000000000000000" {
		t.Fatalf("base_out mismatch: %s", deposit.BaseOut)
	}
	if record.BlockNumber != 7 || record.EventName != "Deposit" {
		t.Fatalf("header mismatch: %+v", record.EventHeader)
	}
	if record.PoolMeta.FeeRate != 3 || record.PoolMeta.Exponent != 1 {
		t.Fatalf("pool meta mismatch: %+v", record.PoolMeta)
	}
	if record.Reserves == nil || record.Reserves.Quote != "2" {
		t.Fatalf("reserves mismatch: %+v", record.Reserves)
	}
}
