// Package store owns the on-disk state of an event: line-delimited JSON
// collections and the plain-text posted ledger. Full rewrites go through a
// temp file and rename so a crash never leaves a partially written file
// visible; incremental additions use append-only writes.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// maxLineBytes bounds a single JSONL line. Combo payloads with long move
// lists stay well under this.
const maxLineBytes = 1 << 20

// ReadAll decodes one JSON object per line into T. A missing or empty file
// yields an empty slice. A line that fails to decode is logged and skipped;
// one corrupt line must not lose the rest of the file.
//
// Files written by older tooling as a single pretty-printed JSON array are
// decoded whole; callers rewrite them in JSONL form on the next persist.
func ReadAll[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("store: %s missing, treating as empty", path)
			return nil, nil
		}
		return nil, errors.Wrap(err, "read "+path)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// Legacy layout: one JSON array for the whole file.
	if trimmed[0] == '[' {
		var rows []T
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			log.Printf("store: %s: legacy array decode failed: %v", path, err)
			return nil, nil
		}
		return rows, nil
	}

	var rows []T
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row T
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			log.Printf("store: %s line %d: skipping malformed row: %v", path, lineNo, err)
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return rows, errors.Wrap(err, "scan "+path)
	}
	return rows, nil
}

// AppendRows writes one JSON object per line in append mode, creating parent
// directories if needed. Existing content is never rewritten.
func AppendRows[T any](path string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ensureParent(path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open append "+path)
	}
	defer f.Close()

	var buf bytes.Buffer
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.Wrap(err, "marshal row")
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "append "+path)
	}
	return errors.Wrap(f.Sync(), "sync "+path)
}

// RewriteAll atomically replaces path with the given rows, one JSON object
// per line. Readers observe either the old file or the new one, never a
// partial write.
func RewriteAll[T any](path string, rows []T) error {
	var buf bytes.Buffer
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.Wrap(err, "marshal row")
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return atomicWrite(path, buf.Bytes(), 0o644)
}

// ReadLines returns the non-empty lines of a plain-text file (the posted
// ledger). A missing file yields an empty slice.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read "+path)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// AppendLine appends a single line to a plain-text file, creating parents
// as needed, and syncs before returning.
func AppendLine(path, line string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open append "+path)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return errors.Wrap(err, "append "+path)
	}
	return errors.Wrap(f.Sync(), "sync "+path)
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
		return errors.Wrap(err, "mkdir "+dir)
	}
	return nil
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return errors.Wrap(err, "write "+tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename "+tmp)
	}
	return nil
}
