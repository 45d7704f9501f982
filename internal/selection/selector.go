// Package selection chooses which unused clips go into the next
// compilation. The walk is greedy and sequential by design: clips are taken
// oldest first until the next one would overflow the window, with no
// best-fit search past that point, so older clips are never starved.
package selection

import (
	"context"
	"log"
	"os"
	"sort"
	"time"

	"github.com/you/flippi-shorts/internal/timestamp"
	"github.com/you/flippi-shorts/internal/videodata"
)

// Compilation length window in seconds.
const (
	DefaultMinLength = 50
	DefaultMaxLength = 305
)

// Prober reports the playable duration of a media file in seconds.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Clip is one selected source file with its probed duration.
type Clip struct {
	FilePath string
	Duration float64
}

// Select walks unused clips oldest first and accepts each until accepting
// the next would push the total strictly above maxLength. It succeeds only
// when the total reaches minLength with at least one clip; on success the
// returned records are a copy with exactly the accepted clips marked used,
// and on failure the input records are returned untouched.
func Select(ctx context.Context, records []videodata.VideoRecord, prober Prober, minLength, maxLength float64) ([]Clip, []videodata.VideoRecord, bool) {
	var candidates []int
	for i := range records {
		if records[i].Used || records[i].FilePath == "" {
			continue
		}
		if _, err := os.Stat(records[i].FilePath); err != nil {
			log.Printf("selection: skipping %s: %v", records[i].FilePath, err)
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		log.Printf("selection: no unused clips available")
		return nil, records, false
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ta, okA := timestamp.Parse(records[candidates[a]].Timestamp)
		tb, okB := timestamp.Parse(records[candidates[b]].Timestamp)
		if okA && okB {
			return ta.Before(tb)
		}
		if okA != okB {
			return okA
		}
		return records[candidates[a]].Timestamp < records[candidates[b]].Timestamp
	})

	working := make([]videodata.VideoRecord, len(records))
	copy(working, records)

	var (
		selected []Clip
		total    float64
	)
	for _, idx := range candidates {
		path := working[idx].FilePath
		duration, err := prober.ProbeDuration(ctx, path)
		if err != nil || duration <= 0 {
			log.Printf("selection: skipping %s: could not determine duration (%v)", path, err)
			continue
		}
		if total+duration > maxLength {
			log.Printf("selection: stopping, %s (%.2fs) would exceed %.0fs", path, duration, maxLength)
			break
		}
		selected = append(selected, Clip{FilePath: path, Duration: duration})
		total += duration
		working[idx].Used = true
	}

	if total >= minLength && len(selected) > 0 {
		log.Printf("selection: chose %d clips totalling %.2fs", len(selected), total)
		return selected, working, true
	}

	log.Printf("selection: compilation too short: %.2fs (minimum %.0fs)", total, minLength)
	return nil, records, false
}

// Titles returns the clip titles parallel to the selected files, looked up
// by file path in the record set.
func Titles(selected []Clip, records []videodata.VideoRecord) []string {
	titles := make([]string, 0, len(selected))
	for _, clip := range selected {
		title := ""
		for i := range records {
			if records[i].FilePath == clip.FilePath {
				title = records[i].Title
				break
			}
		}
		titles = append(titles, title)
	}
	return titles
}

// OutputName renders a compilation filename from the build time, matching
// the timestamp style used everywhere else on disk.
func OutputName(at time.Time) string {
	return timestamp.Format(at) + ".mp4"
}
