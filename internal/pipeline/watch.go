package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/you/flippi-shorts/internal/event"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WatchComboLogs preps an event shortly after its combo log changes, so
// titles are ready before the next scheduled upload instead of being
// generated under it. Watches are per event data directory; the tagging
// tool rewrites the log file in place, so directory watches survive the
// replace.
func (p *Pipeline) WatchComboLogs(ctx context.Context, events ...event.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	byDir := make(map[string]event.Context, len(events))
	added := false
	for _, ev := range events {
		dir := ev.DataDir()
		if err := w.Add(dir); err != nil {
			slog.Error("watch add", "path", dir, "err", err)
			continue
		}
		byDir[dir] = ev
		added = true
	}
	if !added {
		w.Close()
		return nil
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		pending := make(map[string]event.Context)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				owner, known := byDir[filepath.Dir(ev.Name)]
				if !known || filepath.Base(ev.Name) != "combodata.jsonl" {
					continue
				}
				pending[owner.Name] = owner
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(250 * time.Millisecond)
			case <-debounce.C:
				for name, owner := range pending {
					if err := p.PrepEvent(ctx, owner); err != nil {
						slog.Error("prep on combo change failed", "event", name, "err", err)
					}
					delete(pending, name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("watch error", "err", err)
			}
		}
	}()
	return nil
}
