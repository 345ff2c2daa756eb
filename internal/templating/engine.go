package templating

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"

	"github.com/yegors/clara/pkg/logger"
)

// partialsFile holds the named blocks shared by every page
const partialsFile = "partials.html"

// Engine handles template loading, caching, and rendering
type Engine struct {
	fsys          fs.FS
	reload        bool
	funcs         template.FuncMap
	templateCache map[string]*template.Template
	cacheMutex    sync.RWMutex
	logger        *logger.Logger
}

// NewEngine creates a template engine reading pages from fsys. With reload
// set every render re-parses its page.
func NewEngine(fsys fs.FS, reload bool, logger *logger.Logger) *Engine {
	return &Engine{
		fsys:          fsys,
		reload:        reload,
		funcs:         FuncMap(),
		templateCache: make(map[string]*template.Template),
		logger:        logger.Named("template-engine"),
	}
}

// Render executes the named page into w. The page is rendered into a
// buffer first so a failing template never produces partial output.
func (e *Engine) Render(w io.Writer, page string, data any) error {
	tmpl, err := e.getTemplate(page)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", page, err)
	}

	_, err = buf.WriteTo(w)
	return err
}

// getTemplate retrieves a page from cache or loads it
func (e *Engine) getTemplate(page string) (*template.Template, error) {
	if e.reload {
		return e.loadTemplate(page)
	}

	e.cacheMutex.RLock()
	if tmpl, exists := e.templateCache[page]; exists {
		e.cacheMutex.RUnlock()
		return tmpl, nil
	}
	e.cacheMutex.RUnlock()

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	if tmpl, exists := e.templateCache[page]; exists {
		return tmpl, nil
	}

	tmpl, err := e.loadTemplate(page)
	if err != nil {
		return nil, err
	}

	e.templateCache[page] = tmpl
	e.logger.Debug("Template loaded and cached", logger.String("page", page))

	return tmpl, nil
}

// loadTemplate parses a page together with the shared partials
func (e *Engine) loadTemplate(page string) (*template.Template, error) {
	tmpl, err := template.New(page).Funcs(e.funcs).ParseFS(e.fsys, page, partialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", page, err)
	}
	return tmpl, nil
}

// ReloadAllTemplates re-parses every cached page. The cache is left
// untouched if any page fails to parse.
func (e *Engine) ReloadAllTemplates() error {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	reloaded := make(map[string]*template.Template, len(e.templateCache))
	for page := range e.templateCache {
		tmpl, err := e.loadTemplate(page)
		if err != nil {
			e.logger.Error("Template failed to reload", logger.String("page", page), logger.Error(err))
			return err
		}
		reloaded[page] = tmpl
	}
	e.templateCache = reloaded

	e.logger.Info("All templates reloaded successfully", logger.Int("count", len(reloaded)))
	return nil
}

// ClearCache clears the template cache
func (e *Engine) ClearCache() {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	count := len(e.templateCache)
	e.templateCache = make(map[string]*template.Template)

	e.logger.Info("Template cache cleared", logger.Int("cleared_count", count))
}

// GetCacheStats returns statistics about the template cache
func (e *Engine) GetCacheStats() map[string]any {
	e.cacheMutex.RLock()
	defer e.cacheMutex.RUnlock()

	pages := make([]string, 0, len(e.templateCache))
	for page := range e.templateCache {
		pages = append(pages, page)
	}

	return map[string]any{
		"cached_template_count": len(e.templateCache),
		"cached_templates":      pages,
		"reload":                e.reload,
	}
}
