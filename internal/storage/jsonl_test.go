package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"curvePool/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "logs.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch created the file")
	}

	first := []model.LogRecord{{ChainID: 31337, BlockNumber: 1, Topics: []string{"0x01"}}}
	second := []model.LogRecord{{ChainID: 31337, BlockNumber: 2}, {ChainID: 31337, BlockNumber: 3}}
	if err := s.PutLogBatch(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutLogBatch(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var blocks []uint64
	err = ScanJSONL(file, func(line []byte) error {
		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return err
		}
		blocks = append(blocks, record.BlockNumber)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(blocks) != 3 || blocks[0] != 1 || blocks[2] != 3 {
		t.Fatalf("blocks %v", blocks)
	}
}

func TestJSONLWriterTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	for i := 0; i < 2; i++ {
		w, err := NewJSONLWriter(path, false)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := w.Write(map[string]int{"run": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "{\"run\":1}\n" {
		t.Fatalf("content %q", data)
	}
}
