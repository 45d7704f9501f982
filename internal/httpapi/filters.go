package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/flippi-shorts/internal/history"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ParseFilters parses query parameters into upload-history filters.
// Accepted parameters: kind, event (both repeatable or comma separated),
// since (RFC3339, unix seconds, or a duration like 24h), limit, order.
func ParseFilters(values url.Values) (history.Filters, error) {
	f := history.Filters{Limit: defaultLimit}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return history.Filters{}, errors.New("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}

	if raw := values.Get("order"); raw != "" {
		switch strings.ToLower(raw) {
		case "desc":
			f.Asc = false
		case "asc":
			f.Asc = true
		default:
			return history.Filters{}, errors.New("order must be asc or desc")
		}
	}

	if rawSince := values.Get("since"); rawSince != "" {
		parsed, err := parseSince(rawSince)
		if err != nil {
			return history.Filters{}, err
		}
		f.Since = &parsed
	}

	for _, raw := range collect(values, "kind") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			canonical, ok := normalizeKind(part)
			if !ok {
				return history.Filters{}, errors.New("invalid kind filter")
			}
			f.Kinds = appendUnique(f.Kinds, canonical)
		}
	}

	for _, raw := range collect(values, "event") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f.Events = appendUnique(f.Events, part)
		}
	}

	return f, nil
}

// FiltersFromRequest parses filters from an HTTP request.
func FiltersFromRequest(r *http.Request) (history.Filters, error) {
	return ParseFilters(r.URL.Query())
}

func collect(values url.Values, key string) []string {
	out := values[key]
	if out == nil {
		return nil
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func normalizeKind(k string) (string, bool) {
	switch strings.ToLower(k) {
	case "short", "shorts", "s":
		return history.KindShort, true
	case "compilation", "comp", "c":
		return history.KindCompilation, true
	default:
		return "", false
	}
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(-d).UTC(), nil
	}
	return time.Time{}, errors.New("invalid since parameter")
}
