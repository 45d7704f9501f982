// Package obsctl is a minimal obs-websocket v4 client. The pipeline uses
// it for one thing: pointing the OBS recording path at the active event's
// clips directory when the rotation changes.
package obsctl

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client speaks the obs-websocket v4 JSON protocol over one connection.
type Client struct {
	Addr     string
	Password string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
}

type response struct {
	MessageID    string `json:"message-id"`
	Status       string `json:"status"`
	Error        string `json:"error"`
	AuthRequired bool   `json:"authRequired"`
	Challenge    string `json:"challenge"`
	Salt         string `json:"salt"`
	Value        string `json:"value"`
}

// Connect dials the server and authenticates when the server demands it.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	addr := c.Addr
	if addr == "" {
		addr = "127.0.0.1:4444"
	}
	conn, _, err := websocket.Dial(ctx, "ws://"+addr, nil)
	if err != nil {
		return fmt.Errorf("obsctl: dial %s: %w", addr, err)
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn

	auth, err := c.sendLocked(ctx, "GetAuthRequired", nil)
	if err != nil {
		c.closeLocked()
		return err
	}
	if !auth.AuthRequired {
		return nil
	}
	if c.Password == "" {
		c.closeLocked()
		return fmt.Errorf("obsctl: server requires a password")
	}

	_, err = c.sendLocked(ctx, "Authenticate", map[string]any{
		"auth": authResponse(c.Password, auth.Salt, auth.Challenge),
	})
	if err != nil {
		c.closeLocked()
		return fmt.Errorf("obsctl: authenticate: %w", err)
	}
	return nil
}

// Close shuts the connection down. Safe to call when never connected.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		c.conn = nil
	}
}

// SetRecordPath points the recording output at dir, optionally switching
// profile first. Servers without SetProfileParameter fall back to the
// older SetRecordingFolder request.
func (c *Client) SetRecordPath(ctx context.Context, dir, profile string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if profile != "" {
		if _, err := c.sendLocked(ctx, "SetCurrentProfile", map[string]any{
			"profile-name": profile,
		}); err != nil {
			return err
		}
	}

	err := c.setProfileParametersLocked(ctx, dir)
	if err == nil {
		log.Printf("obsctl: recording path set to %s", dir)
		return nil
	}
	if !isUnknownRequest(err) {
		return err
	}

	// Pre-4.9 servers only know SetRecordingFolder.
	if _, err := c.sendLocked(ctx, "SetRecordingFolder", map[string]any{
		"rec-folder": dir,
	}); err != nil {
		return err
	}
	log.Printf("obsctl: recording path set to %s (legacy request)", dir)
	return nil
}

func (c *Client) setProfileParametersLocked(ctx context.Context, dir string) error {
	for _, p := range []struct{ category, parameter string }{
		{"SimpleOutput", "FilePath"},
		{"AdvOut", "RecFilePath"},
	} {
		if _, err := c.sendLocked(ctx, "SetProfileParameter", map[string]any{
			"category":  p.category,
			"parameter": p.parameter,
			"value":     dir,
		}); err != nil {
			return err
		}
	}
	return nil
}

func isUnknownRequest(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid request type") || strings.Contains(msg, "unknown request")
}

// sendLocked issues one request and waits for its reply, discarding any
// event frames that arrive in between. Events carry an update-type and no
// message-id.
func (c *Client) sendLocked(ctx context.Context, requestType string, fields map[string]any) (*response, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("obsctl: not connected")
	}

	c.nextID++
	id := strconv.Itoa(c.nextID)

	msg := map[string]any{
		"request-type": requestType,
		"message-id":   id,
	}
	for k, v := range fields {
		msg[k] = v
	}
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("obsctl: send %s: %w", requestType, err)
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, c.conn, &raw); err != nil {
			c.closeLocked()
			return nil, fmt.Errorf("obsctl: read reply for %s: %w", requestType, err)
		}
		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("obsctl: decode reply for %s: %w", requestType, err)
		}
		if resp.MessageID != id {
			continue
		}
		if resp.Status == "error" {
			return nil, fmt.Errorf("obsctl: %s: %s", requestType, resp.Error)
		}
		return &resp, nil
	}
}

// authResponse derives the v4 challenge response:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}
