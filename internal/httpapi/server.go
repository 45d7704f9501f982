// Package httpapi exposes the uploader's ops surface: health, status,
// per-event records, upload history and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/flippi-shorts/internal/event"
	"github.com/you/flippi-shorts/internal/history"
	"github.com/you/flippi-shorts/internal/store"
	"github.com/you/flippi-shorts/internal/videodata"
)

// UploadStore answers queries about past uploads. *history.Store
// implements it.
type UploadStore interface {
	Count(ctx context.Context, filters history.Filters) (int64, error)
	List(ctx context.Context, filters history.Filters) ([]history.Upload, error)
}

type Options struct {
	Addr           string
	Build          BuildInfo
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int

	// Registry carries pipeline collectors onto the same /metrics page.
	Registry *prometheus.Registry

	// ConfigSnapshot is served verbatim on /status.
	ConfigSnapshot map[string]any
}

type Server struct {
	httpServer *http.Server
	base       string
	uploads    UploadStore
	opts       Options
	metrics    *Metrics
	limiter    *visitorLimiter
	cors       *corsPolicy
	started    time.Time
}

// New builds the server over the events base directory and the upload
// history. uploads may be nil when history is disabled.
func New(base string, uploads UploadStore, opts Options) *Server {
	srv := &Server{
		base:    base,
		uploads: uploads,
		opts:    opts,
		metrics: newMetrics(opts.Registry),
		limiter: newVisitorLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cors:    newCORSPolicy(opts.AllowedOrigins),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/records", srv.handleRecords)
	mux.HandleFunc("/uploads", srv.handleUploads)
	mux.HandleFunc("/info", srv.handleInfo)
	mux.Handle("/metrics", srv.metrics.Handler())

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// wrap applies access logging, rate limiting, CORS and gzip around the mux.
func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w}

		if handled, status := s.cors.handlePreflight(rec, r); handled {
			s.metrics.ObserveRequest(r.URL.Path, r.Method, status, time.Since(start))
			return
		}
		if !s.cors.applyHeaders(rec, r) {
			http.Error(rec, "origin not allowed", http.StatusForbidden)
			s.metrics.ObserveRequest(r.URL.Path, r.Method, http.StatusForbidden, time.Since(start))
			return
		}
		if !s.limiter.Allow(remoteIP(r)) {
			s.metrics.IncRateLimited()
			http.Error(rec, "rate limit exceeded", http.StatusTooManyRequests)
			s.metrics.ObserveRequest(r.URL.Path, r.Method, http.StatusTooManyRequests, time.Since(start))
			return
		}

		// promhttp negotiates its own compression.
		if r.URL.Path != "/metrics" {
			if gz, ok := compressResponse(rec, r); ok {
				defer gz.Close()
			}
		}
		next.ServeHTTP(rec, r)

		s.metrics.ObserveRequest(r.URL.Path, r.Method, rec.Status(), time.Since(start))
		log.Printf("httpapi: %s %s %d %dB %s from %s",
			r.Method, r.URL.Path, rec.Status(), rec.bytes,
			time.Since(start).Round(time.Millisecond), remoteIP(r))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type eventStatus struct {
	Name     string `json:"name"`
	Records  int    `json:"records"`
	Paired   int    `json:"paired"`
	Used     int    `json:"used"`
	Uploaded int    `json:"uploaded"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	events, err := event.List(s.base)
	if err != nil {
		http.Error(w, "list events error", http.StatusInternalServerError)
		return
	}

	statuses := make([]eventStatus, 0, len(events))
	for _, ev := range events {
		records, err := store.ReadAll[videodata.VideoRecord](ev.VideoDataPath())
		if err != nil {
			log.Printf("httpapi: read records for %s: %v", ev.Name, err)
			continue
		}
		st := eventStatus{Name: ev.Name, Records: len(records)}
		for _, rec := range records {
			if rec.FilePath != "" {
				st.Paired++
			}
			if rec.Used {
				st.Used++
			}
			if rec.VideoID != "" {
				st.Uploaded++
			}
		}
		statuses = append(statuses, st)
	}

	payload := map[string]any{
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"events": statuses,
	}
	if s.uploads != nil {
		if n, err := s.uploads.Count(r.Context(), history.Filters{}); err == nil {
			payload["uploads_total"] = n
		}
	}
	if s.opts.ConfigSnapshot != nil {
		payload["config"] = s.opts.ConfigSnapshot
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("event")
	if name == "" {
		http.Error(w, "event parameter is required", http.StatusBadRequest)
		return
	}

	ev := event.New(s.base, name)
	records, err := store.ReadAll[videodata.VideoRecord](ev.VideoDataPath())
	if err != nil {
		http.Error(w, "read records error", http.StatusInternalServerError)
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(records)
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		http.Error(w, "upload history disabled", http.StatusNotFound)
		return
	}

	filters, err := FiltersFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.uploads.List(r.Context(), filters)
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(rows)
}

func (s *Server) Start() error {
	log.Printf("http api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
