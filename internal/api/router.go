package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/clara/pkg/logger"
)

// Router wires the front-end handlers into a chi mux
type Router struct {
	handler *Handler
	static  http.Handler
	backend http.Handler
	logger  *logger.Logger
}

// NewRouter creates a new router. backend, when non-nil, is mounted under
// /api so a production build can talk to a same-origin backend.
func NewRouter(handler *Handler, static http.Handler, backend http.Handler, logger *logger.Logger) *Router {
	return &Router{
		handler: handler,
		static:  static,
		backend: backend,
		logger:  logger.Named("router"),
	}
}

// Routes returns the router's handler
func (r *Router) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(RequestLogger(r.logger))
	mux.Use(middleware.Recoverer)

	mux.Get("/", r.handler.Index)
	mux.Get("/healthz", r.handler.GetHealth)
	mux.Handle("/static/*", http.StripPrefix("/static", r.static))

	mux.Route("/sessions/{id}", func(s chi.Router) {
		s.Get("/", r.handler.SessionPage)
		s.Get("/view", r.handler.View)
		s.Get("/state", r.handler.GetState)
		s.Get("/transcript", r.handler.DownloadTranscript)
		s.Get("/events", r.handler.Events)
		s.Post("/file", r.handler.UploadFile)
		s.Post("/analyze", r.handler.Analyze)
		s.Post("/reset", r.handler.Reset)
	})

	if r.backend != nil {
		mux.Mount("/api", r.backend)
	}

	return mux
}

// RequestLogger logs one line per request
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Debug("HTTP request",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.Int("status", ww.Status()),
					logger.Int("bytes", ww.BytesWritten()),
					logger.Duration("duration", time.Since(start)),
					logger.String("request_id", middleware.GetReqID(r.Context())))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
