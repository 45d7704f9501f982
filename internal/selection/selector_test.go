package selection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/you/flippi-shorts/internal/videodata"
)

type fakeProber struct {
	durations map[string]float64
}

func (f *fakeProber) ProbeDuration(_ context.Context, path string) (float64, error) {
	d, ok := f.durations[filepath.Base(path)]
	if !ok {
		return 0, fmt.Errorf("ffprobe failed")
	}
	return d, nil
}

// three clips of 40s, 120s, 200s, oldest first
func seedClips(t *testing.T) ([]videodata.VideoRecord, *fakeProber) {
	t.Helper()
	dir := t.TempDir()
	names := []string{"a.mp4", "b.mp4", "c.mp4"}
	records := make([]videodata.VideoRecord, 0, len(names))
	timestamps := []string{"2025-08-12 21-00-00", "2025-08-12 21-10-00", "2025-08-12 21-20-00"}
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		records = append(records, videodata.VideoRecord{
			Timestamp: timestamps[i],
			Title:     "Title " + name,
			FilePath:  filepath.ToSlash(path),
		})
	}
	prober := &fakeProber{durations: map[string]float64{"a.mp4": 40, "b.mp4": 120, "c.mp4": 200}}
	return records, prober
}

func TestSelectGreedyStopsAtOverflow(t *testing.T) {
	records, prober := seedClips(t)

	selected, updated, ok := Select(context.Background(), records, prober, 120, 305)
	if !ok {
		t.Fatalf("selection failed")
	}
	if len(selected) != 2 {
		t.Fatalf("selected %d clips", len(selected))
	}
	// oldest first: 40 then 120, clip 3 would push 160+200 > 305
	if selected[0].Duration != 40 || selected[1].Duration != 120 {
		t.Fatalf("selected = %+v", selected)
	}
	if !updated[0].Used || !updated[1].Used {
		t.Fatalf("accepted clips not marked used: %+v", updated)
	}
	if updated[2].Used {
		t.Fatalf("clip 3 should stay unused")
	}
	// input untouched
	for i, r := range records {
		if r.Used {
			t.Fatalf("input record %d mutated", i)
		}
	}
}

func TestSelectFailureLeavesRecordsUnmodified(t *testing.T) {
	records, prober := seedClips(t)

	selected, updated, ok := Select(context.Background(), records, prober, 400, 305)
	if ok || selected != nil {
		t.Fatalf("selection should fail: %+v", selected)
	}
	if !reflect.DeepEqual(updated, records) {
		t.Fatalf("failed selection mutated records")
	}
	for _, r := range updated {
		if r.Used {
			t.Fatalf("used flag leaked on failure")
		}
	}
}

func TestSelectSkipsUnprobeableClip(t *testing.T) {
	records, prober := seedClips(t)
	delete(prober.durations, "a.mp4")

	selected, _, ok := Select(context.Background(), records, prober, 120, 305)
	if !ok {
		t.Fatalf("selection failed")
	}
	if len(selected) != 1 || selected[0].Duration != 120 {
		t.Fatalf("selected = %+v", selected)
	}
}

func TestSelectSkipsUsedAndMissing(t *testing.T) {
	records, prober := seedClips(t)
	records[0].Used = true
	if err := os.Remove(records[1].FilePath); err != nil {
		t.Fatalf("remove: %v", err)
	}

	selected, _, ok := Select(context.Background(), records, prober, 100, 305)
	if !ok {
		t.Fatalf("selection failed")
	}
	if len(selected) != 1 || selected[0].FilePath != records[2].FilePath {
		t.Fatalf("selected = %+v", selected)
	}
}

func TestSelectOrderPreserving(t *testing.T) {
	records, prober := seedClips(t)
	// shuffle the record order; selection must still emit oldest first
	records[0], records[2] = records[2], records[0]

	selected, _, ok := Select(context.Background(), records, prober, 50, 305)
	if !ok {
		t.Fatalf("selection failed")
	}
	if len(selected) != 2 {
		t.Fatalf("selected %d", len(selected))
	}
	if filepath.Base(selected[0].FilePath) != "a.mp4" || filepath.Base(selected[1].FilePath) != "b.mp4" {
		t.Fatalf("selection out of order: %+v", selected)
	}
}

func TestTitles(t *testing.T) {
	records, prober := seedClips(t)
	selected, _, ok := Select(context.Background(), records, prober, 50, 305)
	if !ok {
		t.Fatalf("selection failed")
	}
	titles := Titles(selected, records)
	if !reflect.DeepEqual(titles, []string{"Title a.mp4", "Title b.mp4"}) {
		t.Fatalf("titles = %v", titles)
	}
}
