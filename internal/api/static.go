package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yegors/clara/pkg/logger"
)

// StaticFileHandler serves the browser assets. Files come from staticDir
// when it is set (read on every request, so edits show up without a
// restart), otherwise from the embedded copy.
type StaticFileHandler struct {
	staticDir string
	embedded  fs.FS
	logger    *logger.Logger
}

// NewStaticFileHandler creates a new static file handler
func NewStaticFileHandler(staticDir string, embedded fs.FS, logger *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		staticDir: staticDir,
		embedded:  embedded,
		logger:    logger.Named("static-handler"),
	}
}

// ServeHTTP serves one asset; directories are never listed
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	if h.staticDir != "" {
		h.serveFromDisk(w, r, name)
		return
	}

	info, err := fs.Stat(h.embedded, name)
	if err != nil || info.IsDir() {
		h.logger.Debug("File not found", logger.String("path", name))
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFileFS(w, r, h.embedded, name)
}

func (h *StaticFileHandler) serveFromDisk(w http.ResponseWriter, r *http.Request, name string) {
	fullPath := filepath.Join(h.staticDir, filepath.FromSlash(name))

	// Ensure the file is within the static directory
	absStaticDir, err := filepath.Abs(h.staticDir)
	if err != nil {
		h.logger.Error("Failed to get absolute path for static directory", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		h.logger.Error("Failed to get absolute path for requested file", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !strings.HasPrefix(absFullPath, absStaticDir+string(filepath.Separator)) {
		h.logger.Warn("Attempted directory traversal attack",
			logger.String("requested_path", name),
			logger.String("full_path", absFullPath),
			logger.String("static_dir", absStaticDir))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	fileInfo, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.logger.Debug("File not found", logger.String("path", fullPath))
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Failed to stat file", logger.Error(err), logger.String("path", fullPath))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if fileInfo.IsDir() {
		h.logger.Debug("Directory listing not allowed", logger.String("path", fullPath))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Set headers to prevent caching (for dynamic serving)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	http.ServeFile(w, r, fullPath)
}
