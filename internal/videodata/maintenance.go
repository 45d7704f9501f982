package videodata

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/you/flippi-shorts/internal/store"
)

// Remuxer rewrites a media file's container metadata in place.
type Remuxer interface {
	FixMetadata(ctx context.Context, path string) error
}

// EnsurePromptField backfills a missing prompt field with the empty string
// and returns how many records were patched. Idempotent.
func EnsurePromptField(records []VideoRecord) int {
	patched := 0
	for i := range records {
		if records[i].Prompt == nil {
			records[i].Prompt = StringPtr("")
			patched++
		}
	}
	return patched
}

// FixMetadataInFolder remuxes every mp4 in folder whose record is not yet
// marked fixed, marking records as it goes and persisting once at the end.
// A remux failure for one file is logged and the pass continues.
func FixMetadataInFolder(ctx context.Context, folder, videoPath string, remux Remuxer) error {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("videodata: clip folder missing: %s", folder)
			return nil
		}
		return err
	}

	records, err := store.ReadAll[VideoRecord](videoPath)
	if err != nil {
		return err
	}
	byPath := make(map[string]int, len(records))
	for i, r := range records {
		if r.FilePath != "" {
			byPath[r.FilePath] = i
		}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		files = append(files, filepath.ToSlash(filepath.Join(folder, e.Name())))
	}
	sort.Strings(files)

	checked, fixed, skipped := 0, 0, 0
	changed := false
	for _, path := range files {
		checked++
		idx, known := byPath[path]
		if known && records[idx].Fixed {
			skipped++
			continue
		}
		if err := remux.FixMetadata(ctx, path); err != nil {
			log.Printf("videodata: metadata fix failed for %s: %v", path, err)
			continue
		}
		fixed++
		if known {
			records[idx].Fixed = true
			changed = true
		}
	}
	log.Printf("videodata: metadata pass checked=%d fixed=%d skipped=%d", checked, fixed, skipped)

	if !changed {
		return nil
	}
	return store.RewriteAll(videoPath, records)
}
