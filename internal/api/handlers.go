package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/clara/internal/session"
	"github.com/yegors/clara/internal/templating"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/internal/websocket"
	"github.com/yegors/clara/pkg/logger"
)

// fetchHeader marks requests made by the page script; they get the
// rendered fragment back instead of a redirect
const fetchHeader = "X-Requested-With"

// Handler contains the front-end HTTP handlers
type Handler struct {
	sessions   *session.Manager
	views      *templating.Service
	wsServer   *websocket.Server
	uploads    *upload.Reader
	backendURL string
	logger     *logger.Logger
}

// NewHandler creates a new front-end handler
func NewHandler(sessions *session.Manager, views *templating.Service, wsServer *websocket.Server, uploads *upload.Reader, backendURL string, logger *logger.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		views:      views,
		wsServer:   wsServer,
		uploads:    uploads,
		backendURL: backendURL,
		logger:     logger.Named("api-handler"),
	}
}

// Index starts a fresh page session. Every page load gets its own state.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ctrl := h.newSession()
	h.renderPage(w, ctrl.Snapshot())
}

// SessionPage renders the full page of an existing session
func (h *Handler) SessionPage(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderPage(w, ctrl.Snapshot())
}

// View renders the #app fragment for the current state
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.renderView(w, http.StatusOK, ctrl.Snapshot())
}

// GetState returns the current snapshot as JSON
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, ctrl.Snapshot())
}

// UploadFile selects the uploaded file and transcribes it
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	file, err := h.uploads.FirstFile(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		h.logger.Warn("Rejected upload", logger.Error(err), logger.String("session_id", ctrl.ID()))
		h.respond(w, r, status, ctrl.Snapshot())
		return
	}

	// the backend call outlives a client that navigates away
	snap, err := ctrl.SelectFile(context.WithoutCancel(r.Context()), file)
	h.respond(w, r, statusFor(err), snap)
}

// Analyze requests the analysis of the current transcript
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snap, err := ctrl.Analyze(context.WithoutCancel(r.Context()))
	h.respond(w, r, statusFor(err), snap)
}

// Reset returns the session to its initial state
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, ctrl.Reset())
}

// DownloadTranscript returns the transcript as a text file attachment
func (h *Handler) DownloadTranscript(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	if snap.Transcript == "" {
		http.Error(w, "No transcript available", http.StatusNotFound)
		return
	}

	name := session.TranscriptFileName(snap.FileName)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(snap.Transcript))
}

// Events upgrades to a websocket that receives every state change
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.wsServer.HandleConnection(w, r, ctrl.ID(), stateMessage(ctrl.Snapshot()))
}

// GetHealth returns the health status of the front-end
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"time":        time.Now().UTC(),
		"backend_url": h.backendURL,
		"sessions":    h.sessions.Len(),
		"templates":   h.views.GetCacheStats(),
	})
}

// newSession creates a session and forwards its updates to websocket clients
func (h *Handler) newSession() *session.Controller {
	ctrl := h.sessions.Create()
	updates, unsubscribe := ctrl.Subscribe()

	go func() {
		defer unsubscribe()
		for snap := range updates {
			h.wsServer.Publish(ctrl.ID(), stateMessage(snap))
		}
		// channel closed: the session was evicted
		h.wsServer.Publish(ctrl.ID(), &websocket.Message{Type: websocket.MessageTypeClose})
	}()

	return ctrl
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return ctrl, true
}

// respond answers script requests with the fragment and plain form posts
// with a redirect back to the session page
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, snap session.Snapshot) {
	if r.Header.Get(fetchHeader) == "" {
		http.Redirect(w, r, "/sessions/"+snap.ID, http.StatusSeeOther)
		return
	}
	h.renderView(w, status, snap)
}

func (h *Handler) renderPage(w http.ResponseWriter, snap session.Snapshot) {
	var buf bytes.Buffer
	if err := h.views.RenderIndex(&buf, snap); err != nil {
		h.logger.Error("Failed to render page", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, &buf)
}

func (h *Handler) renderView(w http.ResponseWriter, status int, snap session.Snapshot) {
	var buf bytes.Buffer
	if err := h.views.RenderView(&buf, snap); err != nil {
		h.logger.Error("Failed to render view", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, &buf)
}

func writeHTML(w http.ResponseWriter, status int, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func statusFor(err error) int {
	if errors.Is(err, session.ErrBusy) {
		return http.StatusConflict
	}
	return http.StatusOK
}

func stateMessage(snap session.Snapshot) *websocket.Message {
	return &websocket.Message{Type: websocket.MessageTypeState, Data: snap}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
