// Package timestamp normalizes the loosely formatted capture timestamps
// used across combo logs, video metadata, and replay filenames.
package timestamp

import (
	"strings"
	"time"
)

// Layout is the canonical rendering, matching on-disk replay filenames
// ("Replay 2025-08-12 21-04-33.mp4").
const Layout = "2006-01-02 15-04-05"

// layouts are tried in order; the first successful parse wins.
var layouts = []string{
	Layout,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// Parse attempts each known layout against the trimmed input. It reports
// false when no layout matches; it never panics.
func Parse(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Format renders the canonical form.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Normalize re-renders raw in canonical form when it parses; otherwise it
// returns the trimmed input unchanged so the original value stays traceable.
func Normalize(raw string) string {
	if t, ok := Parse(raw); ok {
		return Format(t)
	}
	return strings.TrimSpace(raw)
}

// Delta returns the absolute distance between two instants.
func Delta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
