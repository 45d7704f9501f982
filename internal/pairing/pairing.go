// Package pairing matches video metadata records to on-disk replay files by
// timestamp proximity. A file is assigned to at most one record per run, and
// records that find no file within tolerance are left alone so the next run
// can retry them once the file shows up.
package pairing

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/you/flippi-shorts/internal/store"
	"github.com/you/flippi-shorts/internal/timestamp"
	"github.com/you/flippi-shorts/internal/videodata"
)

// DefaultTolerance is the widest clock drift observed between the capture
// process and the recorder's filename stamps.
const DefaultTolerance = 16 * time.Second

const (
	replayPrefix = "Replay "
	replaySuffix = ".mp4"
)

type candidate struct {
	name string
	at   time.Time
}

// Result summarizes one pairing pass.
type Result struct {
	Paired    int
	Unmatched int
	Changed   bool
}

// Pair fills FilePath for records lacking one, matching each to the nearest
// unassigned replay file within tolerance. Records slice is mutated in place.
func Pair(records []videodata.VideoRecord, videoFolder string, tolerance time.Duration) Result {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	candidates := listReplays(videoFolder)
	used := make(map[string]struct{})
	var res Result

	for i := range records {
		if records[i].FilePath != "" {
			continue
		}
		at, ok := timestamp.Parse(records[i].Timestamp)
		if !ok {
			log.Printf("pairing: unparseable timestamp %q, skipping", records[i].Timestamp)
			res.Unmatched++
			continue
		}

		best := -1
		bestDelta := tolerance + 1
		for j, c := range candidates {
			if _, taken := used[c.name]; taken {
				continue
			}
			delta := timestamp.Delta(c.at, at)
			if delta <= tolerance && delta < bestDelta {
				best = j
				bestDelta = delta
			}
		}

		if best < 0 {
			log.Printf("pairing: no replay within %s for %s", tolerance, records[i].Timestamp)
			res.Unmatched++
			continue
		}

		name := candidates[best].name
		used[name] = struct{}{}
		records[i].FilePath = filepath.ToSlash(filepath.Join(videoFolder, name))
		res.Paired++
		res.Changed = true
		log.Printf("pairing: %s -> %s (delta %s)", records[i].Timestamp, name, bestDelta)
	}

	return res
}

// PairFile runs a pairing pass over the videodata store, rewriting the file
// only when at least one record changed.
func PairFile(videoPath, videoFolder string, tolerance time.Duration) (Result, error) {
	records, err := store.ReadAll[videodata.VideoRecord](videoPath)
	if err != nil {
		return Result{}, err
	}

	res := Pair(records, videoFolder, tolerance)
	if !res.Changed {
		log.Printf("pairing: no changes (paired=%d unmatched=%d)", res.Paired, res.Unmatched)
		return res, nil
	}
	if err := store.RewriteAll(videoPath, records); err != nil {
		return res, err
	}
	log.Printf("pairing: wrote %s (paired=%d unmatched=%d)", videoPath, res.Paired, res.Unmatched)
	return res, nil
}

// listReplays returns the parseable "Replay <ts>.mp4" files in the folder,
// sorted by name so tie-breaks are deterministic for a fixed listing.
func listReplays(folder string) []candidate {
	entries, err := os.ReadDir(folder)
	if err != nil {
		log.Printf("pairing: video folder unavailable: %v", err)
		return nil
	}

	var out []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, replayPrefix) || !strings.HasSuffix(name, replaySuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, replayPrefix), replaySuffix)
		at, ok := timestamp.Parse(raw)
		if !ok {
			continue
		}
		out = append(out, candidate{name: name, at: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
