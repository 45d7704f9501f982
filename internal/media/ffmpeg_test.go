package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func stubTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not portable to windows")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestProbeDuration(t *testing.T) {
	f := &FFmpeg{FFprobeBin: stubTool(t, "echo 42.5")}
	d, err := f.ProbeDuration(context.Background(), "whatever.mp4")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if d != 42.5 {
		t.Fatalf("duration = %f", d)
	}
}

func TestProbeDurationRejectsBadOutput(t *testing.T) {
	for _, script := range []string{"echo N/A", "echo 0", "echo -3", "exit 1"} {
		f := &FFmpeg{FFprobeBin: stubTool(t, script)}
		if _, err := f.ProbeDuration(context.Background(), "whatever.mp4"); err == nil {
			t.Fatalf("stub %q: expected error", script)
		}
	}
}

func TestConcatEscape(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b.mp4", "/a/b.mp4"},
		{`C:\clips\a.mp4`, `C:\clips\a.mp4`}, // backslashes only rewritten on windows
		{"/a/it's.mp4", "/a/it''s.mp4"},
	}
	if runtime.GOOS == "windows" {
		cases[1].want = "C:/clips/a.mp4"
	}
	for _, c := range cases {
		if got := concatEscape(c.in); got != c.want {
			t.Fatalf("concatEscape(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}
