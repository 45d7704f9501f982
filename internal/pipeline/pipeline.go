// Package pipeline ties the stages together: combo logs become titled
// records, records pair with replay files, clips go out as shorts, and
// leftover clips roll up into compilations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/you/flippi-shorts/internal/combo"
	"github.com/you/flippi-shorts/internal/event"
	"github.com/you/flippi-shorts/internal/history"
	"github.com/you/flippi-shorts/internal/pairing"
	"github.com/you/flippi-shorts/internal/selection"
	"github.com/you/flippi-shorts/internal/store"
	"github.com/you/flippi-shorts/internal/textgen"
	"github.com/you/flippi-shorts/internal/videodata"
	"github.com/you/flippi-shorts/internal/ytupload"
)

// MediaTools is the slice of ffmpeg functionality the pipeline needs.
type MediaTools interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	BuildCompilation(ctx context.Context, files []string, outPath string) error
	FixMetadata(ctx context.Context, path string) error
}

// VideoUploader publishes videos and thumbnails.
type VideoUploader interface {
	Upload(ctx context.Context, v ytupload.Video) (string, error)
	SetThumbnail(ctx context.Context, videoID, imagePath string) error
}

// Recorder persists completed uploads. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, u history.Upload) error
}

// Pipeline holds every collaborator the jobs need. Zero-value optional
// fields (History, Metrics, Reauthorize) are skipped.
type Pipeline struct {
	Gen      textgen.Generator
	Media    MediaTools
	Uploader VideoUploader
	History  Recorder
	Tables   combo.Tables
	Metrics  *Metrics

	Tolerance float64 // pairing tolerance in seconds
	MinLength float64 // compilation window in seconds
	MaxLength float64
	PromoLine string
	Hashtags  string
	Tags      []string
	Privacy   string

	// Reauthorize is invoked when the refresh token is rejected. When it
	// succeeds the failed upload is retried once.
	Reauthorize func(ctx context.Context) error
}

func (p *Pipeline) tolerance() time.Duration {
	if p.Tolerance <= 0 {
		return pairing.DefaultTolerance
	}
	return time.Duration(p.Tolerance * float64(time.Second))
}

func (p *Pipeline) window() (float64, float64) {
	min, max := p.MinLength, p.MaxLength
	if min <= 0 {
		min = selection.DefaultMinLength
	}
	if max <= 0 {
		max = selection.DefaultMaxLength
	}
	return min, max
}

// PrepEvent brings one event's records up to date: new combos get titles,
// titled records get descriptions, and described records get paired with
// replay files.
func (p *Pipeline) PrepEvent(ctx context.Context, ev event.Context) error {
	titled, err := videodata.GenerateTitles(ctx, ev.ComboDataPath(), ev.VideoDataPath(), p.Gen, p.Tables)
	if err != nil {
		return fmt.Errorf("pipeline: generate titles for %s: %w", ev.Name, err)
	}
	p.Metrics.AddTitles(titled)

	records, err := store.ReadAll[videodata.VideoRecord](ev.VideoDataPath())
	if err != nil {
		return fmt.Errorf("pipeline: read records for %s: %w", ev.Name, err)
	}
	if patched := videodata.EnsurePromptField(records); patched > 0 {
		if err := store.RewriteAll(ev.VideoDataPath(), records); err != nil {
			return fmt.Errorf("pipeline: persist prompt backfill for %s: %w", ev.Name, err)
		}
		log.Printf("pipeline: %s: backfilled prompt field on %d records", ev.Name, patched)
	}

	described, err := videodata.FillDescriptions(ctx, ev.VideoDataPath(), p.Gen, p.PromoLine)
	if err != nil {
		return fmt.Errorf("pipeline: fill descriptions for %s: %w", ev.Name, err)
	}
	p.Metrics.AddDescriptions(described)

	res, err := pairing.PairFile(ev.VideoDataPath(), ev.ClipsDir(), p.tolerance())
	if err != nil {
		return fmt.Errorf("pipeline: pair clips for %s: %w", ev.Name, err)
	}
	p.Metrics.AddPaired(res.Paired)

	if titled > 0 || described > 0 || res.Paired > 0 {
		log.Printf("pipeline: %s prepped: %d titled, %d described, %d paired",
			ev.Name, titled, described, res.Paired)
	}
	return nil
}

// RunShorts walks events in rotation order and uploads the first unposted
// paired clip it finds. One run posts at most one short.
func (p *Pipeline) RunShorts(ctx context.Context, rotation *event.Rotation) error {
	p.Metrics.JobRun("shorts")

	events, err := rotation.Order()
	if err != nil {
		p.Metrics.JobFailure("shorts")
		return err
	}
	if len(events) == 0 {
		log.Printf("pipeline: no events configured, skipping shorts run")
		return nil
	}

	for _, ev := range events {
		if err := p.PrepEvent(ctx, ev); err != nil {
			log.Printf("pipeline: prep %s failed: %v", ev.Name, err)
			continue
		}
		posted, err := p.postShort(ctx, ev)
		if err != nil {
			p.Metrics.JobFailure("shorts")
			return err
		}
		if posted {
			return nil
		}
	}
	log.Printf("pipeline: no unposted clips in any event")
	return nil
}

func (p *Pipeline) postShort(ctx context.Context, ev event.Context) (bool, error) {
	records, err := store.ReadAll[videodata.VideoRecord](ev.VideoDataPath())
	if err != nil {
		return false, fmt.Errorf("pipeline: read records for %s: %w", ev.Name, err)
	}
	ledger := &ytupload.Ledger{Path: ev.PostedPath()}

	for i := range records {
		r := &records[i]
		if r.FilePath == "" || r.Title == "" || !r.HasDescription() {
			continue
		}
		done, err := ledger.Posted(r.FilePath)
		if err != nil {
			return false, err
		}
		if done || r.VideoID != "" {
			continue
		}
		localPath := filepath.FromSlash(r.FilePath)
		if _, err := os.Stat(localPath); err != nil {
			log.Printf("pipeline: clip %s missing on disk, skipping: %v", r.FilePath, err)
			continue
		}

		id, err := p.upload(ctx, ytupload.Video{
			FilePath:    localPath,
			Title:       r.Title,
			Description: p.composeDescription(r.Description, ev),
			Tags:        p.Tags,
			Privacy:     p.Privacy,
		})
		if err != nil {
			return false, fmt.Errorf("pipeline: upload short %s: %w", filepath.Base(r.FilePath), err)
		}

		r.VideoID = id
		if err := ledger.MarkPosted(r.FilePath); err != nil {
			log.Printf("pipeline: ledger append failed: %v", err)
		}
		if err := store.RewriteAll(ev.VideoDataPath(), records); err != nil {
			return false, fmt.Errorf("pipeline: persist records for %s: %w", ev.Name, err)
		}

		p.Metrics.Uploaded(history.KindShort)
		p.recordUpload(ctx, history.Upload{
			VideoID:  id,
			Kind:     history.KindShort,
			Event:    ev.Name,
			Title:    r.Title,
			FilePath: r.FilePath,
		})
		return true, nil
	}
	return false, nil
}

// RunCompilation assembles unused clips from one event into a single
// video and posts it. The compilation record and the used flags are
// persisted before the upload so an interrupted or failed upload is
// retried from compdata on the next cycle instead of reassembling the
// same clips.
func (p *Pipeline) RunCompilation(ctx context.Context, ev event.Context) error {
	p.Metrics.JobRun("compilation")

	if err := p.PrepEvent(ctx, ev); err != nil {
		p.Metrics.JobFailure("compilation")
		return err
	}
	if err := videodata.FixMetadataInFolder(ctx, ev.ClipsDir(), ev.VideoDataPath(), p.Media); err != nil {
		log.Printf("pipeline: metadata fix for %s: %v", ev.Name, err)
	}

	records, err := store.ReadAll[videodata.VideoRecord](ev.VideoDataPath())
	if err != nil {
		p.Metrics.JobFailure("compilation")
		return fmt.Errorf("pipeline: read records for %s: %w", ev.Name, err)
	}

	min, max := p.window()
	clips, updated, ok := selection.Select(ctx, records, p.Media, min, max)
	if ok {
		if err := p.buildCompilation(ctx, ev, records, clips, updated); err != nil {
			p.Metrics.JobFailure("compilation")
			return err
		}
	} else {
		log.Printf("pipeline: %s has insufficient unused footage, skipping compilation", ev.Name)
	}

	if err := p.postPendingCompilations(ctx, ev); err != nil {
		p.Metrics.JobFailure("compilation")
		return err
	}
	return nil
}

func (p *Pipeline) buildCompilation(ctx context.Context, ev event.Context, records []videodata.VideoRecord, clips []selection.Clip, updated []videodata.VideoRecord) error {
	outPath := filepath.Join(ev.CompilationsDir(), selection.OutputName(time.Now()))
	files := make([]string, 0, len(clips))
	for _, c := range clips {
		files = append(files, filepath.FromSlash(c.FilePath))
	}
	if err := p.Media.BuildCompilation(ctx, files, outPath); err != nil {
		return fmt.Errorf("pipeline: build compilation for %s: %w", ev.Name, err)
	}

	clipTitles := selection.Titles(clips, records)
	title, err := p.Gen.CompilationTitle(ctx, clipTitles)
	if err != nil || strings.TrimSpace(title) == "" {
		title = "Best of " + ev.Title()
	}
	desc := p.compilationDescription(ctx, title, clipTitles, ev)

	comp := videodata.CompilationRecord{
		FilePath:    filepath.ToSlash(outPath),
		Title:       title,
		Description: videodata.StringPtr(desc),
		ClipTitles:  clipTitles,
		ClipFiles:   files,
	}
	if err := store.AppendRows(ev.CompDataPath(), []videodata.CompilationRecord{comp}); err != nil {
		return fmt.Errorf("pipeline: record compilation for %s: %w", ev.Name, err)
	}
	if err := store.RewriteAll(ev.VideoDataPath(), updated); err != nil {
		return fmt.Errorf("pipeline: persist used flags for %s: %w", ev.Name, err)
	}
	log.Printf("pipeline: compilation %q assembled (%d clips)", title, len(clips))
	return nil
}

// postPendingCompilations uploads every compdata record without a video id,
// including ones left behind by earlier interrupted runs. The posted ledger
// is checked first so a run that died between uploading and recording the
// id does not post the same file twice.
func (p *Pipeline) postPendingCompilations(ctx context.Context, ev event.Context) error {
	comps, err := store.ReadAll[videodata.CompilationRecord](ev.CompDataPath())
	if err != nil {
		return fmt.Errorf("pipeline: read compilations for %s: %w", ev.Name, err)
	}
	ledger := &ytupload.Ledger{Path: ev.PostedPath()}

	changed := false
	persist := func() error {
		if !changed {
			return nil
		}
		changed = false
		return store.RewriteAll(ev.CompDataPath(), comps)
	}

	for i := range comps {
		c := &comps[i]
		if c.VideoID != "" {
			continue
		}
		done, err := ledger.Posted(c.FilePath)
		if err != nil {
			return err
		}
		if done {
			log.Printf("pipeline: compilation %s already posted, id lost, not re-uploading", c.FilePath)
			continue
		}
		localPath := filepath.FromSlash(c.FilePath)
		if _, err := os.Stat(localPath); err != nil {
			log.Printf("pipeline: compilation %s missing on disk, skipping: %v", c.FilePath, err)
			continue
		}

		desc := ""
		if c.Description != nil {
			desc = *c.Description
		}
		id, err := p.upload(ctx, ytupload.Video{
			FilePath:    localPath,
			Title:       c.Title,
			Description: desc,
			Tags:        p.Tags,
			Privacy:     p.Privacy,
		})
		if err != nil {
			if perr := persist(); perr != nil {
				log.Printf("pipeline: persist compilations for %s: %v", ev.Name, perr)
			}
			return fmt.Errorf("pipeline: upload compilation %s: %w", filepath.Base(c.FilePath), err)
		}
		c.VideoID = id
		if err := ledger.MarkPosted(c.FilePath); err != nil {
			log.Printf("pipeline: ledger append failed: %v", err)
		}
		changed = true

		if thumb := p.makeThumbnail(ctx, c.Title, ev); thumb != "" {
			c.Thumbnail = thumb
			if err := p.Uploader.SetThumbnail(ctx, id, thumb); err != nil {
				log.Printf("pipeline: set thumbnail for %s: %v", id, err)
			} else {
				c.ThumbnailSet = true
			}
		}

		p.Metrics.Uploaded(history.KindCompilation)
		p.recordUpload(ctx, history.Upload{
			VideoID:  id,
			Kind:     history.KindCompilation,
			Event:    ev.Name,
			Title:    c.Title,
			FilePath: c.FilePath,
		})
		log.Printf("pipeline: compilation %q posted as %s", c.Title, id)
	}
	return persist()
}

// upload appends the hashtag line and retries exactly once after a
// successful re-authorization when the refresh token was rejected.
func (p *Pipeline) upload(ctx context.Context, v ytupload.Video) (string, error) {
	if p.Hashtags != "" {
		v.Description = strings.TrimRight(v.Description, "\n") + "\n" + p.Hashtags
	}
	id, err := p.Uploader.Upload(ctx, v)
	if err == nil || !errors.Is(err, ytupload.ErrInvalidGrant) || p.Reauthorize == nil {
		return id, err
	}

	log.Printf("pipeline: refresh token rejected, re-authorizing")
	if reauthErr := p.Reauthorize(ctx); reauthErr != nil {
		return "", fmt.Errorf("pipeline: re-authorization failed: %w", reauthErr)
	}
	return p.Uploader.Upload(ctx, v)
}

func (p *Pipeline) composeDescription(body *string, ev event.Context) string {
	var parts []string
	if body != nil && strings.TrimSpace(*body) != "" {
		parts = append(parts, strings.TrimSpace(*body))
	} else if p.PromoLine != "" {
		parts = append(parts, p.PromoLine)
	}
	if venue := ev.VenueDescription(); venue != "" {
		parts = append(parts, venue)
	}
	return strings.Join(parts, "\n\n")
}

func (p *Pipeline) compilationDescription(ctx context.Context, title string, clipTitles []string, ev event.Context) string {
	var parts []string
	if body, err := p.Gen.Description(ctx, title); err == nil && strings.TrimSpace(body) != "" {
		parts = append(parts, strings.TrimSpace(body))
	}
	if len(clipTitles) > 0 {
		lines := make([]string, 0, len(clipTitles)+1)
		lines = append(lines, "Featuring:")
		for _, t := range clipTitles {
			lines = append(lines, "- "+t)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if p.PromoLine != "" {
		parts = append(parts, p.PromoLine)
	}
	if venue := ev.VenueDescription(); venue != "" {
		parts = append(parts, venue)
	}
	return strings.Join(parts, "\n\n")
}

// makeThumbnail prefers a generated image and falls back to the event's
// stock image.png.
func (p *Pipeline) makeThumbnail(ctx context.Context, title string, ev event.Context) string {
	path, err := p.Gen.Thumbnail(ctx, title, ev.ThumbnailsDir())
	if err == nil && path != "" {
		return path
	}
	if err != nil {
		log.Printf("pipeline: thumbnail generation failed: %v", err)
	}
	fallback := ev.FallbackImagePath()
	if fileExists(fallback) {
		return fallback
	}
	return ""
}

func (p *Pipeline) recordUpload(ctx context.Context, u history.Upload) {
	if p.History == nil {
		return
	}
	u.Ts = time.Now()
	if err := p.History.Record(ctx, u); err != nil {
		log.Printf("pipeline: record upload history: %v", err)
	}
}
