package combo

import (
	"log"

	"github.com/you/flippi-shorts/internal/store"
	"github.com/you/flippi-shorts/internal/timestamp"
)

// ParseEventLog reads the combo event log (one JSON object per line).
// Malformed lines are skipped by the store; records without a parseable
// timestamp are dropped here because nothing downstream can correlate them.
func ParseEventLog(path string) ([]Record, error) {
	rows, err := store.ReadAll[Record](path)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	dropped := 0
	for _, r := range rows {
		if _, ok := timestamp.Parse(r.Timestamp); !ok {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		log.Printf("combo: %s: dropped %d records with unparseable timestamps", path, dropped)
	}
	log.Printf("combo: parsed %d records from %s", len(out), path)
	return out, nil
}
