// Package live serves the persistent client connection: escalation events
// are pushed out through the notify hub, and inbound screen-share frames are
// run through OCR and error analysis.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/coder/websocket"
	"github.com/supportline/supportline/internal/analysis"
	"github.com/supportline/supportline/internal/notify"
	"github.com/supportline/supportline/internal/ocr"
	"golang.org/x/time/rate"
)

const hintSnippetLen = 200

// Handler upgrades connections to the push channel and processes
// screen-share frames.
type Handler struct {
	hub           *notify.Hub
	analyzer      *analysis.Analyzer // nil disables model analysis
	engine        ocr.Engine
	uploadDir     string
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a live connection handler. analyzer may be nil, in
// which case frames with error text get a hint instead of an analysis.
func NewHandler(hub *notify.Hub, analyzer *analysis.Analyzer, engine ocr.Engine, uploadDir, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		hub:           hub,
		analyzer:      analyzer,
		engine:        engine,
		uploadDir:     uploadDir,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// inboundMessage is the client-to-server message envelope.
type inboundMessage struct {
	Type     string `json:"type"`
	ImageB64 string `json:"image_b64,omitempty"`
}

type infoMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type analysisMessage struct {
	Type      string    `json:"type"`
	Analysis  string    `json:"analysis"`
	Timestamp time.Time `json:"timestamp"`
}

type hintMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Snippet string `json:"snippet"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("Live connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := notify.NewClient(ws)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	go client.WritePump(ctx)

	h.readLoop(ctx, ws, client)
	slog.Info("Live connection ended", "ip", r.RemoteAddr)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("Live connection origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, client *notify.Client) {
	// Frames arrive faster than OCR is worth running; process at most one
	// per second per connection, dropping the rest.
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Live connection closed by client")
			} else {
				slog.Warn("Live connection read error", "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, "invalid JSON")
			continue
		}

		if msg.Type != "frame" || msg.ImageB64 == "" {
			continue
		}
		if !limiter.Allow() {
			continue
		}

		h.processFrame(ctx, client, msg.ImageB64)
	}
}

// processFrame runs OCR over one frame and replies on this connection only.
// Frame failures never tear down the connection.
func (h *Handler) processFrame(ctx context.Context, client *notify.Client, imageB64 string) {
	image, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		h.sendError(client, "invalid frame encoding")
		return
	}

	framePath, err := h.writeFrame(image)
	if err != nil {
		slog.Error("Failed to write frame to disk", "error", err)
		h.sendError(client, "failed to process frame")
		return
	}
	defer func() {
		if rmErr := os.Remove(framePath); rmErr != nil {
			slog.Debug("Failed to remove frame file", "error", rmErr, "path", framePath)
		}
	}()

	text, err := h.engine.Recognize(ctx, framePath)
	if err != nil {
		slog.Error("OCR failed", "error", err)
		h.sendError(client, "failed to process frame")
		return
	}

	if !analysis.HasVisibleText(text) {
		h.send(client, infoMessage{Type: "info", Message: "No visible text detected."})
		return
	}

	if analysis.LooksLikeError(text) && h.analyzer != nil {
		result, err := h.analyzer.AnalyzeErrors(ctx, text)
		if err != nil {
			slog.Error("Frame analysis failed", "error", err)
			h.sendError(client, "failed to analyze frame")
			return
		}
		h.send(client, analysisMessage{Type: "analysis", Analysis: result, Timestamp: time.Now()})
		return
	}

	h.send(client, hintMessage{
		Type:    "hint",
		Message: "No obvious error words detected.",
		Snippet: analysis.Snippet(text, hintSnippetLen),
	})
}

func (h *Handler) writeFrame(image []byte) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(h.uploadDir, fmt.Sprintf("frame-%d.jpg", time.Now().UnixNano()))
	if err := os.WriteFile(path, image, 0644); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	return path, nil
}

func (h *Handler) send(client *notify.Client, v interface{}) {
	if err := client.Send(v); err != nil {
		slog.Debug("Failed to send live message", "error", err)
	}
}

func (h *Handler) sendError(client *notify.Client, message string) {
	h.send(client, map[string]string{"type": "error", "message": message})
}
