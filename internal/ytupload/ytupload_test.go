package ytupload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeCredentials(t *testing.T, creds Credentials) string {
	t.Helper()
	data, err := json.Marshal(creds)
	if err != nil {
		t.Fatalf("marshal credentials: %v", err)
	}
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	return path
}

func newTokenSource(t *testing.T, handler http.HandlerFunc) *TokenSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	original := tokenEndpoint
	tokenEndpoint = srv.URL
	t.Cleanup(func() {
		tokenEndpoint = original
		srv.Close()
	})
	return &TokenSource{
		Path: writeCredentials(t, Credentials{
			ClientID:     "cid",
			ClientSecret: "secret",
			RefreshToken: "refresh",
		}),
	}
}

func TestTokenRefreshAndPersist(t *testing.T) {
	ts := newTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Fatalf("unexpected grant type %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc123","expires_in":3600}`))
	})

	token, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if token != "abc123" {
		t.Fatalf("unexpected token %q", token)
	}

	// Refreshed credentials are written back to disk.
	data, err := os.ReadFile(ts.Path)
	if err != nil {
		t.Fatalf("read credentials: %v", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		t.Fatalf("decode credentials: %v", err)
	}
	if creds.AccessToken != "abc123" {
		t.Fatalf("unexpected persisted token %q", creds.AccessToken)
	}
	if creds.RefreshToken != "refresh" {
		t.Fatalf("refresh token lost: %q", creds.RefreshToken)
	}
	if _, err := os.Stat(ts.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp credentials file left behind")
	}
}

func TestTokenCached(t *testing.T) {
	var calls int32
	ts := newTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":3600}`))
	})

	for i := 0; i < 3; i++ {
		if _, err := ts.Token(context.Background()); err != nil {
			t.Fatalf("Token error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 refresh call, got %d", got)
	}
}

func TestTokenInvalidGrant(t *testing.T) {
	ts := newTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been revoked."}`))
	})

	_, err := ts.Token(context.Background())
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant, got %v", err)
	}
}

func newUploader(t *testing.T, handler http.Handler) *Uploader {
	t.Helper()
	srv := httptest.NewServer(handler)
	origUpload, origToken := uploadEndpoint, tokenEndpoint
	uploadEndpoint = srv.URL + "/upload/youtube/v3/videos"
	tokenEndpoint = srv.URL + "/token"
	t.Cleanup(func() {
		uploadEndpoint = origUpload
		tokenEndpoint = origToken
		srv.Close()
	})

	return &Uploader{
		Tokens: &TokenSource{
			Path: writeCredentials(t, Credentials{
				ClientID:     "cid",
				ClientSecret: "secret",
				RefreshToken: "refresh",
			}),
		},
		Sleep: func(time.Duration) {},
	}
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really mp4"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func TestUploadSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	var gotTitle string
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		var res videoResource
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			t.Fatalf("decode resource: %v", err)
		}
		gotTitle = res.Snippet.Title
		if res.Snippet.CategoryID != gamingCategory {
			t.Fatalf("unexpected category %q", res.Snippet.CategoryID)
		}
		w.Header().Set("Location", "http://"+r.Host+"/session")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"vid123"}`))
	})

	up := newUploader(t, mux)
	id, err := up.Upload(context.Background(), Video{
		FilePath: writeVideo(t),
		Title:    "Big combo",
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if id != "vid123" {
		t.Fatalf("unexpected id %q", id)
	}
	if gotTitle != "Big combo" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
}

func TestUploadRetriesTransientStatus(t *testing.T) {
	var putCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://"+r.Host+"/session")
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&putCalls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"vid456"}`))
	})

	up := newUploader(t, mux)
	id, err := up.Upload(context.Background(), Video{FilePath: writeVideo(t), Title: "t"})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if id != "vid456" {
		t.Fatalf("unexpected id %q", id)
	}
	if got := atomic.LoadInt32(&putCalls); got != 3 {
		t.Fatalf("expected 3 PUT attempts, got %d", got)
	}
}

func TestUploadGivesUpAfterMaxRetries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	up := newUploader(t, mux)
	_, err := up.Upload(context.Background(), Video{FilePath: writeVideo(t), Title: "t"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "giving up") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUploadNonRetriableStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://"+r.Host+"/session")
	})
	var putCalls int32
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&putCalls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	})

	up := newUploader(t, mux)
	_, err := up.Upload(context.Background(), Video{FilePath: writeVideo(t), Title: "t"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&putCalls); got != 1 {
		t.Fatalf("expected no retries on 403, got %d attempts", got)
	}
}

func TestSetThumbnail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	var gotVideoID string
	mux.HandleFunc("/thumbnails/set", func(w http.ResponseWriter, r *http.Request) {
		gotVideoID = r.URL.Query().Get("videoId")
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	origThumb, origToken := thumbnailEndpoint, tokenEndpoint
	thumbnailEndpoint = srv.URL + "/thumbnails/set"
	tokenEndpoint = srv.URL + "/token"
	t.Cleanup(func() {
		thumbnailEndpoint = origThumb
		tokenEndpoint = origToken
		srv.Close()
	})

	img := filepath.Join(t.TempDir(), "thumb.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatalf("write thumb: %v", err)
	}

	up := &Uploader{Tokens: &TokenSource{
		Path: writeCredentials(t, Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "refresh"}),
	}}
	if err := up.SetThumbnail(context.Background(), "vid789", img); err != nil {
		t.Fatalf("SetThumbnail error: %v", err)
	}
	if gotVideoID != "vid789" {
		t.Fatalf("unexpected video id %q", gotVideoID)
	}
}

func TestLedger(t *testing.T) {
	l := &Ledger{Path: filepath.Join(t.TempDir(), "postedvids.txt")}

	posted, err := l.Posted("clip.mp4")
	if err != nil {
		t.Fatalf("Posted error: %v", err)
	}
	if posted {
		t.Fatalf("empty ledger reported posted")
	}

	if err := l.MarkPosted("clip.mp4"); err != nil {
		t.Fatalf("MarkPosted error: %v", err)
	}
	posted, err = l.Posted("clip.mp4")
	if err != nil {
		t.Fatalf("Posted error: %v", err)
	}
	if !posted {
		t.Fatalf("ledger missed recorded clip")
	}

	posted, err = l.Posted("other.mp4")
	if err != nil {
		t.Fatalf("Posted error: %v", err)
	}
	if posted {
		t.Fatalf("unrecorded clip reported posted")
	}
}
