package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteJSONAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	if err := WriteJSONAtomic(path, map[string]string{"status": "queued"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteJSONAtomic(path, map[string]string{"status": "completed"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "completed" {
		t.Fatalf("expected replaced content, got %v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestEmptyPaths(t *testing.T) {
	if err := EnsureDir(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if err := WriteJSONAtomic("", 1); err == nil {
		t.Fatalf("expected error for empty filename")
	}
}
