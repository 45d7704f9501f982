package ytupload

import (
	"strings"

	"github.com/you/flippi-shorts/internal/store"
)

// Ledger is the plain-text list of clip filenames that have already been
// posted. One filename per line.
type Ledger struct {
	Path string
}

// Posted reports whether name already appears in the ledger. A missing
// ledger file means nothing has been posted yet.
func (l *Ledger) Posted(name string) (bool, error) {
	lines, err := store.ReadLines(l.Path)
	if err != nil {
		return false, err
	}
	name = strings.TrimSpace(name)
	for _, line := range lines {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// MarkPosted appends name to the ledger.
func (l *Ledger) MarkPosted(name string) error {
	return store.AppendLine(l.Path, strings.TrimSpace(name))
}
