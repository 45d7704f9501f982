package httpapi

import (
	"compress/gzip"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// statusWriter records the status code and body size for the access log
// and request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type gzipWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (g *gzipWriter) Write(b []byte) (int, error) { return g.gz.Write(b) }

func (g *gzipWriter) Flush() {
	_ = g.gz.Flush()
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (g *gzipWriter) Close() error { return g.gz.Close() }

// compressResponse routes the recorder's writes through gzip when the
// client accepts it. The recorder stays outermost so status and byte
// counts still land in the access log.
func compressResponse(rec *statusWriter, r *http.Request) (*gzipWriter, bool) {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return nil, false
	}

	inner := rec.ResponseWriter
	gw := &gzipWriter{ResponseWriter: inner, gz: gzip.NewWriter(inner)}
	rec.Header().Set("Content-Encoding", "gzip")
	rec.Header().Add("Vary", "Accept-Encoding")
	rec.ResponseWriter = gw
	return gw, true
}

// visitorLimiter applies a token bucket per client IP. A nil limiter
// allows everything.
type visitorLimiter struct {
	mu    sync.Mutex
	seen  map[string]*visitor
	limit rate.Limit
	burst int
}

type visitor struct {
	bucket *rate.Limiter
	last   time.Time
}

func newVisitorLimiter(rps, burst int) *visitorLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &visitorLimiter{
		seen:  make(map[string]*visitor),
		limit: rate.Limit(rps),
		burst: burst,
	}
}

func (l *visitorLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.seen[ip]
	if v == nil {
		v = &visitor{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.seen[ip] = v
	}
	v.last = now

	if len(l.seen) > 1024 {
		stale := now.Add(-5 * time.Minute)
		for ip, v := range l.seen {
			if v.last.Before(stale) {
				delete(l.seen, ip)
			}
		}
	}
	return v.bucket.Allow()
}

func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if p := strings.TrimSpace(part); p != "" {
				return p
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// corsPolicy is an origin allowlist. nil means no CORS headers at all,
// which also rejects nothing.
type corsPolicy struct {
	allowAll bool
	origins  []string
}

func newCORSPolicy(origins []string) *corsPolicy {
	var kept []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return &corsPolicy{allowAll: true}
		}
		kept = append(kept, o)
	}
	if len(kept) == 0 {
		return nil
	}
	return &corsPolicy{origins: kept}
}

func (c *corsPolicy) allows(origin string) bool {
	if c == nil {
		return false
	}
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return false
	}
	if c.allowAll {
		return true
	}
	for _, o := range c.origins {
		if o == origin {
			return true
		}
	}
	return false
}

// handlePreflight answers CORS OPTIONS requests. Returns whether the
// request was consumed and the status written.
func (c *corsPolicy) handlePreflight(w http.ResponseWriter, r *http.Request) (bool, int) {
	if c == nil || r.Method != http.MethodOptions {
		return false, 0
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false, 0
	}
	if !c.allows(origin) {
		w.WriteHeader(http.StatusForbidden)
		return true, http.StatusForbidden
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
	}
	w.Header().Set("Access-Control-Max-Age", "300")
	w.Header().Add("Vary", "Origin")
	w.WriteHeader(http.StatusNoContent)
	return true, http.StatusNoContent
}

// applyHeaders sets CORS headers on plain requests. Returns false when
// the Origin is present but not on the allowlist.
func (c *corsPolicy) applyHeaders(w http.ResponseWriter, r *http.Request) bool {
	if c == nil {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if !c.allows(origin) {
		return false
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
	return true
}
