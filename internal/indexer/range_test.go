package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name      string
		from, to  uint64
		batchSize uint64
		want      []BlockRange
	}{
		{"even", 100, 105, 2, []BlockRange{{From: 100, To: 101}, {From: 102, To: 103}, {From: 104, To: 105}}},
		{"remainder", 100, 104, 2, []BlockRange{{From: 100, To: 101}, {From: 102, To: 103}, {From: 104, To: 104}}},
		{"single", 5, 5, 10, []BlockRange{{From: 5, To: 5}}},
		{"genesis", 0, 2, 3, []BlockRange{{From: 0, To: 2}}},
	}
	for _, tc := range cases {
		got, err := SplitRange(tc.from, tc.to, tc.batchSize)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ranges mismatch: %+v != %+v", tc.name, got, tc.want)
		}
		var total uint64
		for _, r := range got {
			total += r.Len()
		}
		if total != tc.to-tc.from+1 {
			t.Fatalf("%s: ranges cover %d blocks", tc.name, total)
		}
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
