package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTextAtomicCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "nested", "r.txt")
	if err := WriteTextAtomic(path, "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content: %q", b)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, got %d entries", len(entries))
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := WriteJSONAtomic(path, map[string]float64{"m1": 0.5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(path)
	var got map[string]float64
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["m1"] != 0.5 {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestWriteJSONAtomicEncodeErrorLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := WriteJSONAtomic(path, func() {}); err == nil {
		t.Fatalf("expected encode error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected temp file cleanup, got %d entries", len(entries))
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	got, err := SafeJoin(root, "../../etc/passwd")
	if err != nil || got != filepath.Join(root, "passwd") {
		t.Fatalf("unexpected join: %q, %v", got, err)
	}
	if _, err := SafeJoin(root, ".."); err == nil {
		t.Fatalf("expected error for parent dir name")
	}
}
