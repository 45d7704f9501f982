package obsctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// fakeOBS implements just enough of the v4 protocol for the client.
type fakeOBS struct {
	password       string
	profileParam   bool
	recFolder      string
	currentProfile string
	simplePath     string
	advPath        string
}

func (f *fakeOBS) serve(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for {
			var msg map[string]any
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			reply := f.handle(msg)
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func (f *fakeOBS) handle(msg map[string]any) map[string]any {
	id, _ := msg["message-id"].(string)
	ok := map[string]any{"message-id": id, "status": "ok"}
	fail := func(text string) map[string]any {
		return map[string]any{"message-id": id, "status": "error", "error": text}
	}

	switch msg["request-type"] {
	case "GetAuthRequired":
		if f.password == "" {
			return map[string]any{"message-id": id, "status": "ok", "authRequired": false}
		}
		return map[string]any{
			"message-id": id, "status": "ok",
			"authRequired": true, "challenge": "chal", "salt": "salt",
		}
	case "Authenticate":
		if got, _ := msg["auth"].(string); got != authResponse(f.password, "salt", "chal") {
			return fail("Authentication Failed.")
		}
		return ok
	case "SetCurrentProfile":
		f.currentProfile, _ = msg["profile-name"].(string)
		return ok
	case "SetProfileParameter":
		if !f.profileParam {
			return fail("invalid request type")
		}
		value, _ := msg["value"].(string)
		switch msg["category"] {
		case "SimpleOutput":
			f.simplePath = value
		case "AdvOut":
			f.advPath = value
		}
		return ok
	case "SetRecordingFolder":
		f.recFolder, _ = msg["rec-folder"].(string)
		return ok
	}
	return fail("invalid request type")
}

func TestSetRecordPathModernServer(t *testing.T) {
	srv := &fakeOBS{profileParam: true}
	c := &Client{Addr: srv.serve(t)}
	defer c.Close()

	if err := c.SetRecordPath(context.Background(), "/videos/Weekly/clips", "Streaming"); err != nil {
		t.Fatalf("SetRecordPath error: %v", err)
	}
	if srv.currentProfile != "Streaming" {
		t.Fatalf("profile not switched: %q", srv.currentProfile)
	}
	if srv.simplePath != "/videos/Weekly/clips" || srv.advPath != "/videos/Weekly/clips" {
		t.Fatalf("profile parameters not set: %q, %q", srv.simplePath, srv.advPath)
	}
	if srv.recFolder != "" {
		t.Fatalf("legacy fallback used unnecessarily")
	}
}

func TestSetRecordPathLegacyFallback(t *testing.T) {
	srv := &fakeOBS{}
	c := &Client{Addr: srv.serve(t)}
	defer c.Close()

	if err := c.SetRecordPath(context.Background(), "/videos/clips", ""); err != nil {
		t.Fatalf("SetRecordPath error: %v", err)
	}
	if srv.recFolder != "/videos/clips" {
		t.Fatalf("legacy folder not set: %q", srv.recFolder)
	}
}

func TestAuthentication(t *testing.T) {
	srv := &fakeOBS{password: "hunter2", profileParam: true}
	c := &Client{Addr: srv.serve(t), Password: "hunter2"}
	defer c.Close()

	if err := c.SetRecordPath(context.Background(), "/videos", ""); err != nil {
		t.Fatalf("SetRecordPath error: %v", err)
	}
}

func TestAuthenticationWrongPassword(t *testing.T) {
	srv := &fakeOBS{password: "hunter2"}
	c := &Client{Addr: srv.serve(t), Password: "wrong"}
	defer c.Close()

	err := c.Connect(context.Background())
	if err == nil {
		t.Fatalf("expected auth failure")
	}
	if !strings.Contains(err.Error(), "authenticate") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEventFramesSkipped(t *testing.T) {
	// A server that emits an event before every reply.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := context.Background()
		for {
			var msg map[string]any
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			event := map[string]any{"update-type": "StreamStatus"}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
			id, _ := msg["message-id"].(string)
			reply := map[string]any{"message-id": id, "status": "ok"}
			if raw, err := json.Marshal(reply); err == nil {
				_ = conn.Write(ctx, websocket.MessageText, raw)
			}
		}
	}))
	t.Cleanup(srv.Close)

	c := &Client{Addr: strings.TrimPrefix(srv.URL, "http://")}
	defer c.Close()
	if err := c.SetRecordPath(context.Background(), "/videos", ""); err != nil {
		t.Fatalf("SetRecordPath error: %v", err)
	}
}
