// Package event models the on-disk layout of one tournament event: a
// directory tree holding raw combo data, paired clips, compilations and
// generated artwork. All pipeline jobs operate on a Context.
package event

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const eventsDirName = "Event"

// Context points at one event directory and derives every path the
// pipeline needs from it.
type Context struct {
	Base string
	Name string
}

// New returns the context for the named event under base. It does not
// touch the filesystem.
func New(base, name string) Context {
	return Context{Base: base, Name: name}
}

func (c Context) Root() string            { return filepath.Join(c.Base, eventsDirName, c.Name) }
func (c Context) DataDir() string         { return filepath.Join(c.Root(), "data") }
func (c Context) ClipsDir() string        { return filepath.Join(c.Root(), "clips") }
func (c Context) CompilationsDir() string { return filepath.Join(c.Root(), "compilations") }
func (c Context) ThumbnailsDir() string   { return filepath.Join(c.Root(), "thumbnails") }
func (c Context) ImagesDir() string       { return filepath.Join(c.Root(), "images") }

func (c Context) ComboDataPath() string   { return filepath.Join(c.DataDir(), "combodata.jsonl") }
func (c Context) VideoDataPath() string   { return filepath.Join(c.DataDir(), "videodata.jsonl") }
func (c Context) CompDataPath() string    { return filepath.Join(c.DataDir(), "compdata.jsonl") }
func (c Context) PostedPath() string      { return filepath.Join(c.DataDir(), "postedvids.txt") }
func (c Context) TitlePath() string       { return filepath.Join(c.DataDir(), "event_title.txt") }
func (c Context) VenueDescPath() string   { return filepath.Join(c.DataDir(), "venue_desc.txt") }
func (c Context) FallbackImagePath() string {
	return filepath.Join(c.ThumbnailsDir(), "image.png")
}

// Title reads the display title from event_title.txt, falling back to the
// directory name when the file is absent or empty.
func (c Context) Title() string {
	data, err := os.ReadFile(c.TitlePath())
	if err != nil {
		return c.Name
	}
	title := strings.TrimSpace(string(data))
	if title == "" {
		return c.Name
	}
	return title
}

// VenueDescription reads the optional venue blurb appended to video
// descriptions. Missing file means no blurb.
func (c Context) VenueDescription() string {
	data, err := os.ReadFile(c.VenueDescPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// List returns contexts for every event directory under base, sorted by
// name. A missing events directory is not an error.
func List(base string) ([]Context, error) {
	entries, err := os.ReadDir(filepath.Join(base, eventsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("event: list events: %w", err)
	}

	var out []Context
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, New(base, e.Name()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Bootstrap creates the directory tree for a new event and seeds
// event_title.txt with the display title.
func Bootstrap(base, name, title string) (Context, error) {
	name = SanitizeName(name)
	if name == "" {
		return Context{}, fmt.Errorf("event: empty event name")
	}
	c := New(base, name)
	for _, dir := range []string{c.DataDir(), c.ClipsDir(), c.CompilationsDir(), c.ThumbnailsDir(), c.ImagesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Context{}, fmt.Errorf("event: create %s: %w", dir, err)
		}
	}
	if strings.TrimSpace(title) == "" {
		title = name
	}
	if _, err := os.Stat(c.TitlePath()); os.IsNotExist(err) {
		if err := os.WriteFile(c.TitlePath(), []byte(title+"\n"), 0o644); err != nil {
			return Context{}, fmt.Errorf("event: write title: %w", err)
		}
	}
	return c, nil
}

// SanitizeName turns an arbitrary event title into a filesystem-safe
// Title-Case-With-Dashes directory name.
func SanitizeName(raw string) string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		}
		return true
	})
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
	}
	return strings.Join(fields, "-")
}

// Rotation hands out events round-robin so the shorts job cycles through
// them across runs.
type Rotation struct {
	Base string

	mu   sync.Mutex
	next int
}

// Order returns every event starting from the rotation cursor and
// advances the cursor by one. An empty events directory yields nil.
func (r *Rotation) Order() ([]Context, error) {
	events, err := List(r.Base)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	start := r.next % len(events)
	r.next = start + 1
	r.mu.Unlock()

	out := make([]Context, 0, len(events))
	out = append(out, events[start:]...)
	out = append(out, events[:start]...)
	return out, nil
}
