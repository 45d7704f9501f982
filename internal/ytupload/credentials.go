// Package ytupload talks to the YouTube Data API directly: token refresh,
// resumable video uploads and thumbnail sets. It holds no SDK dependency,
// just the handful of endpoints the uploader needs.
package ytupload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var tokenEndpoint = "https://oauth2.googleapis.com/token"

const defaultRefreshTimeout = 15 * time.Second

// ErrInvalidGrant is returned when the refresh token has been revoked or
// expired and interactive re-authorization is required.
var ErrInvalidGrant = errors.New("ytupload: invalid grant")

// Credentials is the on-disk shape of the OAuth credential file.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry,omitempty"`
}

// TokenSource loads credentials from a JSON file, refreshes the access
// token when needed and writes the refreshed credentials back.
type TokenSource struct {
	Path string
	HTTP *http.Client

	mu      sync.Mutex
	creds   Credentials
	loaded  bool
	expires time.Time
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// Token returns a valid access token, refreshing first when the cached one
// is expired or nearly so.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.loadLocked(); err != nil {
		return "", err
	}
	if t.creds.AccessToken != "" && time.Until(t.expires) > time.Minute {
		return t.creds.AccessToken, nil
	}
	return t.refreshLocked(ctx)
}

// ForceRefresh discards the cached access token and refreshes immediately.
func (t *TokenSource) ForceRefresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.loadLocked(); err != nil {
		return "", err
	}
	return t.refreshLocked(ctx)
}

// Reload rereads the credentials file from disk and refreshes with the new
// refresh token. Call it after the file is replaced by a manual
// re-authorization.
func (t *TokenSource) Reload(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.loaded = false
	if err := t.loadLocked(); err != nil {
		return err
	}
	_, err := t.refreshLocked(ctx)
	return err
}

func (t *TokenSource) loadLocked() error {
	if t.loaded {
		return nil
	}
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return fmt.Errorf("ytupload: read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("ytupload: decode credentials: %w", err)
	}
	if strings.TrimSpace(creds.ClientID) == "" || strings.TrimSpace(creds.ClientSecret) == "" {
		return errors.New("ytupload: credentials missing client id or secret")
	}
	if strings.TrimSpace(creds.RefreshToken) == "" {
		return errors.New("ytupload: credentials missing refresh token")
	}
	t.creds = creds
	if creds.Expiry != "" {
		if at, err := time.Parse(time.RFC3339, creds.Expiry); err == nil {
			t.expires = at
		}
	}
	t.loaded = true
	return nil
}

func (t *TokenSource) refreshLocked(ctx context.Context) (string, error) {
	reqCtx := ctx
	cancel := func() {}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		reqCtx, cancel = context.WithTimeout(ctx, defaultRefreshTimeout)
	}
	defer cancel()

	form := url.Values{}
	form.Set("client_id", t.creds.ClientID)
	form.Set("client_secret", t.creds.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", t.creds.RefreshToken)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("ytupload: create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := t.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ytupload: refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("ytupload: read refresh response: %w", err)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ytupload: decode refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error == "invalid_grant" {
			return "", ErrInvalidGrant
		}
		msg := strings.TrimSpace(parsed.ErrorDesc)
		if msg == "" {
			msg = strings.TrimSpace(parsed.Error)
		}
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("ytupload: refresh: %s", msg)
	}

	token := strings.TrimSpace(parsed.AccessToken)
	if token == "" {
		return "", errors.New("ytupload: refresh returned empty token")
	}

	expiresIn := time.Duration(parsed.ExpiresIn) * time.Second
	if parsed.ExpiresIn <= 0 {
		expiresIn = time.Hour
	}
	t.creds.AccessToken = token
	t.expires = time.Now().Add(expiresIn)
	t.creds.Expiry = t.expires.UTC().Format(time.RFC3339)

	if err := t.saveLocked(); err != nil {
		log.Printf("ytupload: persist credentials failed: %v", err)
	}
	log.Printf("ytupload: refreshed access token; expires at %s", t.expires.UTC().Format(time.RFC3339))
	return token, nil
}

// saveLocked writes the credentials file through a sibling temp file so a
// crash mid-write cannot destroy the refresh token.
func (t *TokenSource) saveLocked() error {
	data, err := json.MarshalIndent(t.creds, "", "  ")
	if err != nil {
		return fmt.Errorf("ytupload: encode credentials: %w", err)
	}
	data = append(data, '\n')

	tmp := t.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("ytupload: write credentials file: %w", err)
	}
	if err := os.Rename(tmp, t.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ytupload: replace credentials file: %w", err)
	}
	return nil
}
