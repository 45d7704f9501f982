package timestamp

import (
	"testing"
	"time"
)

func TestParseAcceptsKnownLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-08-12 21-04-33", "2025-08-12 21-04-33"},
		{"2025-08-12 21:04:33", "2025-08-12 21-04-33"},
		{"2025/08/12 21:04:33", "2025-08-12 21-04-33"},
		{"  2025-08-12 21-04-33\n", "2025-08-12 21-04-33"},
	}

	for _, c := range cases {
		got, ok := Parse(c.in)
		if !ok {
			t.Fatalf("Parse(%q) failed", c.in)
		}
		if Format(got) != c.want {
			t.Fatalf("Parse(%q) = %q; want %q", c.in, Format(got), c.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not a timestamp", "2025-13-99 99:99:99", "12:00"} {
		if _, ok := Parse(in); ok {
			t.Fatalf("Parse(%q) unexpectedly succeeded", in)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("2025-08-12 21:04:33"); got != "2025-08-12 21-04-33" {
		t.Fatalf("Normalize = %q", got)
	}
	if got := Normalize(" junk "); got != "junk" {
		t.Fatalf("Normalize passthrough = %q", got)
	}
}

func TestDelta(t *testing.T) {
	a, _ := Parse("2025-08-12 21-04-33")
	b, _ := Parse("2025-08-12 21-04-40")
	if Delta(a, b) != 7*time.Second {
		t.Fatalf("Delta = %s", Delta(a, b))
	}
	if Delta(b, a) != 7*time.Second {
		t.Fatalf("Delta reversed = %s", Delta(b, a))
	}
}
