package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type row struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestReadAllMissingFile(t *testing.T) {
	rows, err := ReadAll[row](filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("read missing: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty, got %d rows", len(rows))
	}
}

func TestRewriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	want := []row{{Name: "a", Count: 1}, {Name: "b", Count: 2}}

	if err := RewriteAll(path, want); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err := ReadAll[row](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %+v; want %+v", got, want)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestReadAllSkipsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	content := `{"name":"a","count":1}
{not valid json
{"name":"b","count":2}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := ReadAll[row](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(rows))
	}
	if rows[0].Name != "a" || rows[1].Name != "b" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestReadAllLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	content := `[
  {"name": "a", "count": 1},
  {"name": "b", "count": 2}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := ReadAll[row](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 || rows[1].Count != 2 {
		t.Fatalf("legacy rows = %+v", rows)
	}
}

func TestAppendRowsDoesNotRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.jsonl")

	if err := AppendRows(path, []row{{Name: "a"}}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := AppendRows(path, []row{{Name: "b"}}); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	rows, err := ReadAll[row](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "a" || rows[1].Name != "b" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestLedgerLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.txt")

	lines, err := ReadLines(path)
	if err != nil || len(lines) != 0 {
		t.Fatalf("missing ledger: lines=%v err=%v", lines, err)
	}

	if err := AppendLine(path, "/clips/a.mp4"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := AppendLine(path, "/clips/b.mp4"); err != nil {
		t.Fatalf("append: %v", err)
	}

	lines, err = ReadLines(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"/clips/a.mp4", "/clips/b.mp4"}) {
		t.Fatalf("lines = %v", lines)
	}
}
