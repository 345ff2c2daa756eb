package templating

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/yegors/clara/internal/config"
	"github.com/yegors/clara/internal/session"
	"github.com/yegors/clara/pkg/logger"
)

// Page names
const (
	PageIndex = "index.html" // full document
	PageView  = "view.html"  // the #app fragment only
)

// Service renders session state into HTML
type Service struct {
	engine *Engine
	ui     config.UIConfig
	logger *logger.Logger
}

// NewService creates a templating service. Templates come from
// ui.TemplatesDir when set, otherwise from embedded.
func NewService(embedded fs.FS, ui config.UIConfig, log *logger.Logger) *Service {
	fsys := embedded
	if ui.TemplatesDir != "" {
		fsys = os.DirFS(ui.TemplatesDir)
		log.Info("Using templates from disk", logger.String("dir", ui.TemplatesDir))
	}

	return &Service{
		engine: NewEngine(fsys, ui.ReloadTemplates, log),
		ui:     ui,
		logger: log.Named("templating-service"),
	}
}

// PageData builds the render data for a snapshot
func (s *Service) PageData(snap session.Snapshot) PageData {
	return PageData{
		Title:            s.ui.Title,
		Tagline:          s.ui.Tagline,
		Year:             time.Now().Year(),
		Accept:           s.ui.AcceptedMIMETypes,
		CopiedFeedbackMs: s.ui.CopiedFeedbackMs,
		SessionID:        snap.ID,
		State:            snap,
	}
}

// RenderIndex renders the full page for a session
func (s *Service) RenderIndex(w io.Writer, snap session.Snapshot) error {
	return s.engine.Render(w, PageIndex, s.PageData(snap))
}

// RenderView renders the #app fragment for a session
func (s *Service) RenderView(w io.Writer, snap session.Snapshot) error {
	return s.engine.Render(w, PageView, s.PageData(snap))
}

// ReloadAllTemplates forces all cached templates to be reloaded
func (s *Service) ReloadAllTemplates() error {
	return s.engine.ReloadAllTemplates()
}

// GetCacheStats returns statistics about the template cache
func (s *Service) GetCacheStats() map[string]any {
	return s.engine.GetCacheStats()
}
