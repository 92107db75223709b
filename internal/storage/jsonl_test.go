package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"logsync/internal/model"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		out = append(out, line)
	}
	return out
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.jsonl")
	sink := NewJsonlStorage(path)

	if err := sink.PutLogBatch([]model.LogRecord{{BlockNumber: 1, Decoded: false}}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := sink.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if err := sink.PutEntries([]model.StoredEntry{{Key: "1_0", Value: []byte(`{"n":1}`)}}); err != nil {
		t.Fatalf("entries: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["block_number"] != float64(1) || lines[0]["args"] != nil {
		t.Fatalf("log line mismatch: %v", lines[0])
	}
	if _, ok := lines[0]["args"]; !ok {
		t.Fatalf("args must be present as null: %v", lines[0])
	}
	if lines[1]["key"] != "1_0" {
		t.Fatalf("entry line mismatch: %v", lines[1])
	}
}

func TestJsonlStorageCopiesStoredBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl")
	sink := NewJsonlStorage(path)

	stored := []byte(`{"args":[{"name":"seq","value":9223372036854775809}]}`)
	if err := sink.PutEntries([]model.StoredEntry{{Key: "5_0", Value: stored}}); err != nil {
		t.Fatalf("entries: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := `{"key":"5_0","value":` + string(stored) + "}\n"
	if string(data) != want {
		t.Fatalf("export changed stored value:\n got %s\nwant %s", data, want)
	}
}
