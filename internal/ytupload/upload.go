package ytupload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var uploadEndpoint = "https://www.googleapis.com/upload/youtube/v3/videos"

const (
	gamingCategory = "20"
	maxRetries     = 10
)

// retriableStatus mirrors the statuses the resumable upload protocol
// documents as transient.
var retriableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Video describes one upload request.
type Video struct {
	FilePath    string
	Title       string
	Description string
	Tags        []string
	Privacy     string
}

// Uploader performs resumable uploads against the YouTube Data API.
type Uploader struct {
	Tokens *TokenSource
	HTTP   *http.Client

	// Sleep is swapped out in tests. Nil means real randomized backoff.
	Sleep func(d time.Duration)
}

type videoResource struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
		CategoryID  string   `json:"categoryId"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload pushes a video and returns the assigned video id. Transient
// failures are retried with randomized backoff; a refresh failure with
// ErrInvalidGrant is surfaced unwrapped so the caller can re-authorize.
func (u *Uploader) Upload(ctx context.Context, v Video) (string, error) {
	if strings.TrimSpace(v.Title) == "" {
		return "", errors.New("ytupload: upload requires a title")
	}
	info, err := os.Stat(v.FilePath)
	if err != nil {
		return "", fmt.Errorf("ytupload: stat video: %w", err)
	}

	token, err := u.Tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			u.backoff(ctx, attempt)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}

		session, err := u.startSession(ctx, token, v, info.Size())
		if err != nil {
			if errors.Is(err, errUnauthorized) {
				token, err = u.Tokens.ForceRefresh(ctx)
				if err != nil {
					return "", err
				}
				lastErr = errUnauthorized
				continue
			}
			if isRetriable(err) {
				lastErr = err
				log.Printf("ytupload: start session failed (attempt %d): %v", attempt+1, err)
				continue
			}
			return "", err
		}

		id, err := u.putFile(ctx, session, token, v.FilePath, info.Size())
		if err == nil {
			log.Printf("ytupload: uploaded %q as %s", v.Title, id)
			return id, nil
		}
		if !isRetriable(err) {
			return "", err
		}
		lastErr = err
		log.Printf("ytupload: upload failed (attempt %d): %v", attempt+1, err)
	}
	return "", fmt.Errorf("ytupload: giving up after %d retries: %w", maxRetries, lastErr)
}

var errUnauthorized = errors.New("ytupload: unauthorized")

type retriableError struct{ err error }

func (e retriableError) Error() string { return e.err.Error() }
func (e retriableError) Unwrap() error { return e.err }

func isRetriable(err error) bool {
	var re retriableError
	return errors.As(err, &re)
}

func (u *Uploader) startSession(ctx context.Context, token string, v Video, size int64) (string, error) {
	var res videoResource
	res.Snippet.Title = v.Title
	res.Snippet.Description = v.Description
	res.Snippet.Tags = v.Tags
	res.Snippet.CategoryID = gamingCategory
	res.Status.PrivacyStatus = v.Privacy
	if res.Status.PrivacyStatus == "" {
		res.Status.PrivacyStatus = "public"
	}

	body, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("ytupload: encode video resource: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		uploadEndpoint+"?uploadType=resumable&part=snippet,status", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ytupload: create session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Upload-Content-Type", "video/mp4")

	resp, err := u.client().Do(req)
	if err != nil {
		return "", retriableError{fmt.Errorf("ytupload: session request: %w", err)}
	}
	defer resp.Body.Close()
	drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return "", errUnauthorized
	case retriableStatus[resp.StatusCode]:
		return "", retriableError{fmt.Errorf("ytupload: session status %d", resp.StatusCode)}
	default:
		return "", fmt.Errorf("ytupload: session status %d", resp.StatusCode)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.New("ytupload: session response missing location")
	}
	return loc, nil
}

func (u *Uploader) putFile(ctx context.Context, session, token, path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ytupload: open video: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, f)
	if err != nil {
		return "", fmt.Errorf("ytupload: create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "video/mp4")

	resp, err := u.client().Do(req)
	if err != nil {
		return "", retriableError{fmt.Errorf("ytupload: upload request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", retriableError{fmt.Errorf("ytupload: read upload response: %w", err)}
	}

	if retriableStatus[resp.StatusCode] {
		return "", retriableError{fmt.Errorf("ytupload: upload status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ytupload: upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ytupload: decode upload response: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("ytupload: upload response missing video id")
	}
	return parsed.ID, nil
}

// backoff sleeps a random duration capped at 2^attempt seconds.
func (u *Uploader) backoff(ctx context.Context, attempt int) {
	cap := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	d := time.Duration(rand.Int63n(int64(cap)))
	if u.Sleep != nil {
		u.Sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (u *Uploader) client() *http.Client {
	if u.HTTP != nil {
		return u.HTTP
	}
	return http.DefaultClient
}

func drain(r io.Reader) {
	io.Copy(io.Discard, io.LimitReader(r, 1<<16)) //nolint:errcheck
}
