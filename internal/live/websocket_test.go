package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/supportline/supportline/internal/notify"
)

type fakeEngine struct {
	text string
	err  error
}

func (f *fakeEngine) Recognize(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

func newTestHandler(t *testing.T, engine *fakeEngine) (*Handler, *notify.Hub) {
	t.Helper()
	hub := notify.NewHub()
	return NewHandler(hub, nil, engine, t.TempDir(), "", true), hub
}

func dialTest(t *testing.T, h *Handler) (*websocket.Conn, context.Context) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = ws.Close(websocket.StatusNormalClosure, "test done")
	})

	return ws, ctx
}

func readJSON(t *testing.T, ctx context.Context, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read websocket message: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message %q: %v", data, err)
	}
	return msg
}

func sendFrame(t *testing.T, ctx context.Context, ws *websocket.Conn) {
	t.Helper()
	frame := map[string]string{
		"type":      "frame",
		"image_b64": base64.StdEncoding.EncodeToString([]byte("fake image bytes")),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
}

func TestInvalidJSONGetsErrorMessage(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{})
	ws, ctx := dialTest(t, h)

	if err := ws.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	msg := readJSON(t, ctx, ws)
	if msg["type"] != "error" || msg["message"] != "invalid JSON" {
		t.Errorf("Unexpected message: %v", msg)
	}
}

func TestFrameWithNoVisibleText(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{text: "  hi  "})
	ws, ctx := dialTest(t, h)

	sendFrame(t, ctx, ws)

	msg := readJSON(t, ctx, ws)
	if msg["type"] != "info" || msg["message"] != "No visible text detected." {
		t.Errorf("Unexpected message: %v", msg)
	}
}

func TestFrameWithoutErrorWordsGetsHint(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{text: "just some ordinary console output here"})
	ws, ctx := dialTest(t, h)

	sendFrame(t, ctx, ws)

	msg := readJSON(t, ctx, ws)
	if msg["type"] != "hint" {
		t.Fatalf("Expected hint, got %v", msg)
	}
	snippet, _ := msg["snippet"].(string)
	if !strings.Contains(snippet, "ordinary console output") {
		t.Errorf("Expected snippet of extracted text, got %q", snippet)
	}
}

func TestFrameWithErrorTextFallsBackToHintWithoutAnalyzer(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{text: "TypeError: cannot read property of undefined"})
	ws, ctx := dialTest(t, h)

	sendFrame(t, ctx, ws)

	// No analyzer is configured, so even error-looking text gets a hint.
	msg := readJSON(t, ctx, ws)
	if msg["type"] != "hint" {
		t.Errorf("Expected hint without analyzer, got %v", msg)
	}
}

func TestOCRFailureGetsErrorMessage(t *testing.T) {
	h, _ := newTestHandler(t, &fakeEngine{err: context.DeadlineExceeded})
	ws, ctx := dialTest(t, h)

	sendFrame(t, ctx, ws)

	msg := readJSON(t, ctx, ws)
	if msg["type"] != "error" || msg["message"] != "failed to process frame" {
		t.Errorf("Unexpected message: %v", msg)
	}
}

func TestHubBroadcastReachesLiveClient(t *testing.T) {
	h, hub := newTestHandler(t, &fakeEngine{})
	ws, ctx := dialTest(t, h)

	// Wait for the server side to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered with the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(map[string]string{"type": "help_resolved", "id": "r1"})

	msg := readJSON(t, ctx, ws)
	if msg["type"] != "help_resolved" || msg["id"] != "r1" {
		t.Errorf("Unexpected broadcast payload: %v", msg)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(notify.NewHub(), nil, &fakeEngine{}, t.TempDir(), "https://app.example.com", false)

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := h.checkOrigin(r); got != tc.want {
			t.Errorf("checkOrigin(origin=%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}

	dev := NewHandler(notify.NewHub(), nil, &fakeEngine{}, t.TempDir(), "https://app.example.com", true)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	if !dev.checkOrigin(r) {
		t.Error("Development mode must allow any origin")
	}
}
