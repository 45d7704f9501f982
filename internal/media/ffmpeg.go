// Package media wraps the external ffmpeg/ffprobe tools behind the small
// probe/concat/layout/remux surface the pipeline needs. All calls are
// blocking and fail loudly with the tool's combined output in the error.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// layoutFilter crops the captured top/bottom halves, stacks them side by
// side, then scales and letterboxes to 1920x1080.
const layoutFilter = "[0:v]crop=1080:960:0:0[top];" +
	"[0:v]crop=1080:960:0:960[bottom];" +
	"[top][bottom]hstack=inputs=2[stacked];" +
	"[stacked]scale=1920:852[scaled];" +
	"[scaled]pad=1920:1080:(ow-iw)/2:(oh-ih)/2:#5c3a21[out]"

// FFmpeg shells out to ffmpeg/ffprobe. Zero value uses the binaries from
// PATH.
type FFmpeg struct {
	FFmpegBin  string
	FFprobeBin string
}

func (f *FFmpeg) ffmpeg() string {
	if f.FFmpegBin != "" {
		return f.FFmpegBin
	}
	return "ffmpeg"
}

func (f *FFmpeg) ffprobe() string {
	if f.FFprobeBin != "" {
		return f.FFprobeBin
	}
	return "ffprobe"
}

// Check verifies both binaries are reachable.
func (f *FFmpeg) Check() error {
	for _, bin := range []string{f.ffmpeg(), f.ffprobe()} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("media: %s not found in PATH: %w", bin, err)
		}
	}
	return nil
}

// ProbeDuration returns the container duration in seconds. Valid media
// yields a positive value; anything else is an error.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("media: probe %s: %w: %s", path, err, strings.TrimSpace(out.String()))
	}
	raw := strings.TrimSpace(out.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: unparseable duration %q", path, raw)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("media: probe %s: non-positive duration %f", path, duration)
	}
	return duration, nil
}

// Concatenate joins the ordered source files stream-copy into outPath using
// ffmpeg's concat demuxer.
func (f *FFmpeg) Concatenate(ctx context.Context, files []string, outPath string) error {
	if len(files) == 0 {
		return fmt.Errorf("media: no files to concatenate")
	}

	listDir, err := os.MkdirTemp("", "flippi-concat-*")
	if err != nil {
		return fmt.Errorf("media: temp dir: %w", err)
	}
	defer os.RemoveAll(listDir)

	var list strings.Builder
	for _, path := range files {
		fmt.Fprintf(&list, "file '%s'\n", concatEscape(path))
	}
	listPath := filepath.Join(listDir, "list.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("media: write concat list: %w", err)
	}

	return f.run(ctx,
		"-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy",
		outPath,
	)
}

// ApplyLayout re-encodes inPath through the fixed crop/stack/scale/pad
// chain into outPath, copying audio through.
func (f *FFmpeg) ApplyLayout(ctx context.Context, inPath, outPath string) error {
	return f.run(ctx,
		"-y",
		"-i", inPath,
		"-filter_complex", layoutFilter,
		"-map", "[out]",
		"-map", "0:a?",
		"-c:v", "libx264", "-preset", "fast", "-crf", "18",
		"-c:a", "copy",
		outPath,
	)
}

// BuildCompilation concatenates the sources and applies the layout,
// producing outPath. Intermediates live in a temp dir removed afterwards.
func (f *FFmpeg) BuildCompilation(ctx context.Context, files []string, outPath string) error {
	tempDir, err := os.MkdirTemp("", "flippi-comp-*")
	if err != nil {
		return fmt.Errorf("media: temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	raw := filepath.Join(tempDir, "concatenated.mp4")
	if err := f.Concatenate(ctx, files, raw); err != nil {
		return err
	}
	return f.ApplyLayout(ctx, raw, outPath)
}

// FixMetadata losslessly remuxes the file with the moov atom up front so
// players and the probe see a duration, then replaces the original.
func (f *FFmpeg) FixMetadata(ctx context.Context, path string) error {
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + "_remux" + ext

	err := f.run(ctx,
		"-y",
		"-i", path,
		"-c", "copy",
		"-movflags", "+faststart",
		tmp,
	)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("media: replace %s: %w", path, err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.ffmpeg(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: ffmpeg %s: %w: %s", args[0], err, tail(out.String(), 2048))
	}
	return nil
}

// concatEscape renders a path for ffmpeg's concat list: forward slashes,
// internal single quotes doubled.
func concatEscape(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), "'", "''")
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
