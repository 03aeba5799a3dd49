package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/supportline/supportline/internal/domain"
	"github.com/supportline/supportline/internal/escalation"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// EscalationHandler exposes the chat and help request endpoints.
type EscalationHandler struct {
	svc       *escalation.Service
	uploadDir string
}

// NewEscalationHandler creates the handler for the escalation surface.
func NewEscalationHandler(svc *escalation.Service, uploadDir string) *EscalationHandler {
	return &EscalationHandler{
		svc:       svc,
		uploadDir: uploadDir,
	}
}

// RegisterRoutes registers chat and help request routes.
func (h *EscalationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Get("/helprequests", h.ListHelpRequests)
		r.Put("/helprequests/{id}/resolve", h.Resolve)
		r.Put("/helprequests/{id}/unresolved", h.MarkUnresolved)
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat submits a user message. Accepts a JSON body or a multipart form with
// a "message" field and an optional "file" attachment.
func (h *EscalationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	message, err := h.readMessage(r)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.svc.HandleMessage(r.Context(), message)
	if err != nil {
		if errors.Is(err, escalation.ErrEmptyMessage) {
			Error(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.Error("Chat handling failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// ListHelpRequests returns help requests, optionally filtered by status.
func (h *EscalationHandler) ListHelpRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.HelpStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		Error(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	reqs, err := h.svc.List(r.Context(), status)
	if err != nil {
		slog.Error("Failed to list help requests", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if reqs == nil {
		reqs = []*domain.HelpRequest{}
	}

	JSON(w, http.StatusOK, reqs)
}

type resolveRequest struct {
	Answer string `json:"answer"`
}

// Resolve records a supervisor's answer for a help request.
func (h *EscalationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.svc.Resolve(r.Context(), id, body.Answer)
	if err != nil {
		h.writeEscalationError(w, err, id)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "req": req})
}

// MarkUnresolved closes a help request without an answer.
func (h *EscalationHandler) MarkUnresolved(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.svc.MarkUnresolved(r.Context(), id); err != nil {
		h.writeEscalationError(w, err, id)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *EscalationHandler) writeEscalationError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, escalation.ErrMissingAnswer):
		Error(w, http.StatusBadRequest, "answer is required")
	case errors.Is(err, escalation.ErrNotFound):
		Error(w, http.StatusNotFound, "help request not found")
	case errors.Is(err, escalation.ErrAlreadyClosed):
		Error(w, http.StatusConflict, "help request already closed")
	default:
		slog.Error("Help request operation failed", "error", err, "id", id)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// readMessage extracts the chat message from a JSON or multipart body. An
// attached file is stored in the upload directory; storage lifecycle beyond
// that is out of scope.
func (h *EscalationHandler) readMessage(r *http.Request) (string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", err
		}
		message := r.FormValue("message")

		file, header, err := r.FormFile("file")
		if err == nil {
			defer func() {
				if closeErr := file.Close(); closeErr != nil {
					slog.Debug("Failed to close uploaded file", "error", closeErr)
				}
			}()
			if saveErr := h.saveUpload(file, header.Filename); saveErr != nil {
				slog.Warn("Failed to store uploaded file", "error", saveErr, "filename", header.Filename)
			}
		}

		return message, nil
	}

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Message, nil
}

func (h *EscalationHandler) saveUpload(src io.Reader, filename string) error {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return err
	}

	// Discard the client-supplied path, keep only the extension.
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
	dst, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil {
			slog.Debug("Failed to close upload destination", "error", closeErr)
		}
	}()

	if _, err := io.Copy(dst, io.LimitReader(src, maxUploadBytes)); err != nil {
		return err
	}

	slog.Info("Stored chat upload", "filename", filename, "stored_as", name)
	return nil
}
