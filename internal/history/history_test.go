package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	uploads := []Upload{
		{VideoID: "a", Ts: base, Kind: KindShort, Event: "Weekly", Title: "Combo 1"},
		{VideoID: "b", Ts: base.Add(time.Hour), Kind: KindCompilation, Event: "Weekly", Title: "Best of"},
		{VideoID: "c", Ts: base.Add(2 * time.Hour), Kind: KindShort, Event: "Major", Title: "Combo 2"},
	}
	for _, u := range uploads {
		if err := s.Record(ctx, u); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	got, err := s.List(ctx, Filters{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(got))
	}
	// Default order is newest first.
	if got[0].VideoID != "c" || got[2].VideoID != "a" {
		t.Fatalf("unexpected order: %v, %v, %v", got[0].VideoID, got[1].VideoID, got[2].VideoID)
	}
}

func TestRecordDuplicateIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := Upload{VideoID: "dup", Kind: KindShort, Event: "Weekly", Title: "first"}
	if err := s.Record(ctx, u); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	u.Title = "second"
	if err := s.Record(ctx, u); err != nil {
		t.Fatalf("Record duplicate error: %v", err)
	}

	got, err := s.List(ctx, Filters{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(got))
	}
	if got[0].Title != "first" {
		t.Fatalf("duplicate overwrote row: %q", got[0].Title)
	}
}

func TestListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	for i, u := range []Upload{
		{VideoID: "a", Kind: KindShort, Event: "Weekly", Title: "t"},
		{VideoID: "b", Kind: KindCompilation, Event: "Weekly", Title: "t"},
		{VideoID: "c", Kind: KindShort, Event: "Major", Title: "t"},
	} {
		u.Ts = base.Add(time.Duration(i) * time.Hour)
		if err := s.Record(ctx, u); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	got, err := s.List(ctx, Filters{Kinds: []string{KindShort}})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 shorts, got %d", len(got))
	}

	got, err = s.List(ctx, Filters{Events: []string{"Major"}})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 1 || got[0].VideoID != "c" {
		t.Fatalf("unexpected event filter result: %v", got)
	}

	since := base.Add(30 * time.Minute)
	got, err = s.List(ctx, Filters{Since: &since, Asc: true})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].VideoID != "b" {
		t.Fatalf("unexpected since filter result: %v", got)
	}

	n, err := s.Count(ctx, Filters{Kinds: []string{KindCompilation}})
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 compilation, got %d", n)
	}
}

func TestListLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		u := Upload{
			VideoID: string(rune('a' + i)),
			Ts:      time.Date(2024, 3, 1, i, 0, 0, 0, time.UTC),
			Kind:    KindShort,
			Event:   "Weekly",
			Title:   "t",
		}
		if err := s.Record(ctx, u); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	got, err := s.List(ctx, Filters{Limit: 2})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(got))
	}
}
