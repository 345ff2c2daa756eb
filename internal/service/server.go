package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/yegors/clara/internal/ai"
	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/pkg/logger"
)

// ChatAnalyzer produces a call analysis from a transcript
type ChatAnalyzer interface {
	Analyze(ctx context.Context, text string) (*analysis.Result, error)
}

// AnalysisRequest is the body of POST /analyze/
type AnalysisRequest struct {
	Text string `json:"text" validate:"required"`
}

// TranscriptionResponse is the body returned by POST /speech-to-text/
type TranscriptionResponse struct {
	Filename      string `json:"filename"`
	Transcription string `json:"transcription"`
}

// ErrorResponse carries the failure reason the front-end surfaces
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Options configures the reference backend
type Options struct {
	Transcription  ai.TranscriptionConfig
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server exposes the speech-to-text and analysis endpoints. A nil provider
// means no credentials were configured; every request then fails with
// ai.ErrMissingAPIKey.
type Server struct {
	transcriber ai.TranscriptionProvider
	analyzer    ChatAnalyzer
	opts        Options
	uploads     *upload.Reader
	validate    *validator.Validate
	logger      *logger.Logger
}

// NewServer creates the reference backend
func NewServer(transcriber ai.TranscriptionProvider, analyzer ChatAnalyzer, opts Options, logger *logger.Logger) *Server {
	return &Server{
		transcriber: transcriber,
		analyzer:    analyzer,
		opts:        opts,
		uploads:     upload.NewReader(opts.MaxUploadBytes),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.Named("service"),
	}
}

// Routes returns the backend's handler: the two endpoints behind CORS
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !containsWildcard(s.opts.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Post("/speech-to-text/", s.SpeechToText)
	r.Post("/analyze/", s.Analyze)
	r.Get("/healthz", s.Health)

	return r
}

// SpeechToText transcribes the uploaded file
func (s *Server) SpeechToText(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeDetail(w, http.StatusInternalServerError, ai.ErrMissingAPIKey.Error())
		return
	}

	file, err := s.uploads.FirstFile(w, r)
	if err != nil {
		s.logger.Warn("Rejected upload", logger.Error(err))
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start := time.Now()
	s.logger.Info("Transcribing",
		logger.String("file", file.Name),
		logger.String("content_type", file.ContentType),
		logger.Int("bytes", file.Size()))

	text, err := s.transcriber.Transcribe(r.Context(), ai.AudioFile{
		Name:        file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	}, s.opts.Transcription)
	if err != nil {
		s.logger.Error("Error calling transcription provider", logger.Error(err), logger.String("file", file.Name))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("Transcription complete",
		logger.String("file", file.Name),
		logger.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, TranscriptionResponse{
		Filename:      file.Name,
		Transcription: text,
	})
}

// Analyze produces the call analysis for a transcript
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request payload: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			writeDetail(w, http.StatusUnprocessableEntity, strings.Join(FormatValidationErrors(validationErrors), ", "))
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if s.analyzer == nil {
		writeDetail(w, http.StatusInternalServerError, ai.ErrMissingAPIKey.Error())
		return
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("Error calling analysis provider", logger.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("Analysis complete",
		logger.String("sentiment", string(result.Sentiment)),
		logger.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, result)
}

// Health reports whether providers are configured
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"transcription": s.transcriber != nil,
		"analysis":      s.analyzer != nil,
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorResponse{Detail: detail})
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
