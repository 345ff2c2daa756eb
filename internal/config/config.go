package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultDevelopmentAPIURL is used when no override is set outside production
	DefaultDevelopmentAPIURL = "http://127.0.0.1:8000"
	// DefaultProductionAPIPath is the relative base used by production builds
	DefaultProductionAPIPath = "/api"

	envAPIURL    = "CLARA_API_URL"
	envOpenAIKey = "OPENAI_API_KEY"
	envHFToken   = "HF_TOKEN"
	envGeminiKey = "GEMINI_API_KEY"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings for the web front-end
	Backend BackendConfig `toml:"backend"` // Remote transcription/analysis backend settings
	Upload  UploadConfig  `toml:"upload"`  // Audio upload handling
	Session SessionConfig `toml:"session"` // Page session lifecycle
	UI      UIConfig      `toml:"ui"`      // Presentation settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Service ServiceConfig `toml:"service"` // Reference backend (cmd/backend) settings
	OpenAI  OpenAIConfig  `toml:"openai"`  // OpenAI-compatible provider settings
	Gemini  GeminiConfig  `toml:"gemini"`  // Gemini provider settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the front-end
	Host             string `toml:"host"`                  // Host address to bind to
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended since transcription can be slow)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	StaticFilesDir   string `toml:"static_files_dir"`      // Optional directory overriding the embedded script and stylesheet
	ProxyBackend     bool   `toml:"proxy_backend"`         // Mount the reference backend under /api in the same process
}

// BackendConfig describes how the front-end reaches the remote backend
type BackendConfig struct {
	APIURL         string `toml:"api_url"`         // Explicit base URL override (highest priority, also CLARA_API_URL)
	Production     bool   `toml:"production"`      // Production build: use the relative /api base when no override is set
	PublicOrigin   string `toml:"public_origin"`   // Origin that relative bases resolve against (defaults to the front-end's own address)
	TimeoutSeconds int    `toml:"timeout_seconds"` // HTTP timeout for backend calls (0 = wait indefinitely)
}

// UploadConfig contains upload handling settings
type UploadConfig struct {
	MaxSizeMB int `toml:"max_size_mb"` // Upper bound on buffered upload size (0 = unlimited)
}

// SessionConfig contains page session lifecycle settings
type SessionConfig struct {
	IdleTimeoutMinutes   int `toml:"idle_timeout_minutes"`   // Sessions untouched for this long are evicted
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"` // How often the janitor looks for idle sessions
}

// UIConfig contains presentation settings
type UIConfig struct {
	Title             string `toml:"title"`               // Page heading
	Tagline           string `toml:"tagline"`             // Sub heading
	CopiedFeedbackMs  int    `toml:"copied_feedback_ms"`  // How long "Copied!" stays visible
	ReloadTemplates   bool   `toml:"reload_templates"`    // Re-parse templates on every render (development mode)
	TemplatesDir      string `toml:"templates_dir"`       // Optional directory overriding the embedded templates
	AcceptedMIMETypes string `toml:"accepted_mime_types"` // accept attribute of the file picker
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// ServiceConfig configures the reference backend
type ServiceConfig struct {
	Port               int      `toml:"port"`                 // Listen port for cmd/backend
	Host               string   `toml:"host"`                 // Bind address for cmd/backend
	Provider           string   `toml:"provider"`             // "openai" or "gemini"
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"` // Origins allowed for CORS requests (use ["*"] for all origins)
	AnalysisMaxTokens  int      `toml:"analysis_max_tokens"`  // Token limit for the analysis completion
	AnalysisTemp       *float64 `toml:"analysis_temperature"` // Sampling temperature for the analysis completion (unset = 0.1; 0 is allowed)
}

// Temperature returns the analysis sampling temperature, 0.1 when unset
func (s ServiceConfig) Temperature() float64 {
	if s.AnalysisTemp == nil {
		return 0.1
	}
	return *s.AnalysisTemp
}

// OpenAIConfig contains OpenAI-compatible provider settings
type OpenAIConfig struct {
	APIKey              string `toml:"api_key"`               // API key (falls back to OPENAI_API_KEY, then HF_TOKEN)
	BaseURL             string `toml:"base_url"`              // e.g. https://api.openai.com or https://router.huggingface.co/hf-inference
	TranscriptionsPath  string `toml:"transcriptions_path"`   // Default: /v1/audio/transcriptions
	ChatCompletionsPath string `toml:"chat_completions_path"` // Default: /v1/chat/completions
	TranscriptionModel  string `toml:"transcription_model"`   // e.g. whisper-1 or openai/whisper-large-v3-turbo
	ChatModel           string `toml:"chat_model"`            // e.g. gpt-4o-mini or Qwen/Qwen2.5-7B-Instruct
	TimeoutSeconds      int    `toml:"timeout_seconds"`       // HTTP timeout for provider calls
}

// GeminiConfig contains Gemini provider settings
type GeminiConfig struct {
	APIKey             string `toml:"api_key"`             // API key (falls back to GEMINI_API_KEY)
	TranscriptionModel string `toml:"transcription_model"` // Model used for audio transcription
	ChatModel          string `toml:"chat_model"`          // Model used for call analysis
}

// Default returns a configuration populated with defaults only
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in
// order of preference. When no file exists anywhere the defaults are used,
// since every setting has a sensible default.
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return config, nil
		}
	}

	// An explicitly requested file must exist
	if preferredPath != "" {
		return nil, fmt.Errorf("config file not found: %s", preferredPath)
	}

	config := &Config{}
	config.applyEnv()
	return config, nil
}

// applyEnv lets environment variables fill in secrets and the API override
func (c *Config) applyEnv() {
	if v := os.Getenv(envAPIURL); v != "" {
		c.Backend.APIURL = v
	}
	if c.OpenAI.APIKey == "" {
		if v := os.Getenv(envOpenAIKey); v != "" {
			c.OpenAI.APIKey = v
		} else if v := os.Getenv(envHFToken); v != "" {
			c.OpenAI.APIKey = v
		}
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv(envGeminiKey)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5173
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 60
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}

	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = 100
	}

	if c.Session.IdleTimeoutMinutes == 0 {
		c.Session.IdleTimeoutMinutes = 60
	}
	if c.Session.SweepIntervalSeconds == 0 {
		c.Session.SweepIntervalSeconds = 60
	}

	if c.UI.Title == "" {
		c.UI.Title = "CLARA AI"
	}
	if c.UI.Tagline == "" {
		c.UI.Tagline = "Intelligent Call Analysis & Insights"
	}
	if c.UI.CopiedFeedbackMs == 0 {
		c.UI.CopiedFeedbackMs = 2000
	}
	if c.UI.AcceptedMIMETypes == "" {
		c.UI.AcceptedMIMETypes = "audio/*"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.Service.Port == 0 {
		c.Service.Port = 8000
	}
	if c.Service.Host == "" {
		c.Service.Host = "127.0.0.1"
	}
	if c.Service.Provider == "" {
		c.Service.Provider = "openai"
	}
	if len(c.Service.CORSAllowedOrigins) == 0 {
		c.Service.CORSAllowedOrigins = []string{"*"}
	}
	if c.Service.AnalysisMaxTokens == 0 {
		c.Service.AnalysisMaxTokens = 600
	}
	if c.Service.AnalysisTemp == nil {
		temp := 0.1
		c.Service.AnalysisTemp = &temp
	}

	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.OpenAI.TranscriptionsPath == "" {
		c.OpenAI.TranscriptionsPath = "/v1/audio/transcriptions"
	}
	if c.OpenAI.ChatCompletionsPath == "" {
		c.OpenAI.ChatCompletionsPath = "/v1/chat/completions"
	}
	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = 120
	}

	if c.Gemini.TranscriptionModel == "" {
		c.Gemini.TranscriptionModel = "gemini-2.5-flash"
	}
	if c.Gemini.ChatModel == "" {
		c.Gemini.ChatModel = "gemini-2.5-flash"
	}
}

// Validate fills in defaults and validates the configuration
func (c *Config) Validate() error {
	c.applyDefaults()

	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	if c.UI.TemplatesDir != "" {
		if _, err := os.Stat(c.UI.TemplatesDir); os.IsNotExist(err) {
			return fmt.Errorf("templates directory does not exist: %s", c.UI.TemplatesDir)
		}
	}

	// Validate backend config
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("invalid backend timeout_seconds: %d (must be >= 0)", c.Backend.TimeoutSeconds)
	}
	if c.Backend.APIURL != "" && !strings.HasPrefix(c.Backend.APIURL, "/") &&
		!strings.HasPrefix(c.Backend.APIURL, "http://") && !strings.HasPrefix(c.Backend.APIURL, "https://") {
		return fmt.Errorf("invalid backend api_url: %s (must be absolute http(s) URL or a path)", c.Backend.APIURL)
	}

	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("invalid upload max_size_mb: %d", c.Upload.MaxSizeMB)
	}

	if c.Session.IdleTimeoutMinutes < 0 || c.Session.SweepIntervalSeconds < 0 {
		return fmt.Errorf("session timeouts must be >= 0")
	}

	if c.UI.CopiedFeedbackMs < 0 {
		return fmt.Errorf("invalid ui copied_feedback_ms: %d", c.UI.CopiedFeedbackMs)
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate reference backend config
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", c.Service.Port)
	}
	switch c.Service.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid service provider: %s (must be 'openai' or 'gemini')", c.Service.Provider)
	}
	if temp := c.Service.Temperature(); temp < 0 || temp > 2 {
		return fmt.Errorf("invalid analysis_temperature: %f", temp)
	}

	return nil
}

// ResolveAPIBase picks the backend base URL: explicit override first, then
// the relative production path, then the local development address. A
// trailing slash is stripped.
func ResolveAPIBase(override string, production bool) string {
	base := override
	if base == "" {
		if production {
			base = DefaultProductionAPIPath
		} else {
			base = DefaultDevelopmentAPIURL
		}
	}
	return strings.TrimSuffix(base, "/")
}

// APIBase returns the resolved backend base URL for this configuration
func (c *Config) APIBase() string {
	return ResolveAPIBase(c.Backend.APIURL, c.Backend.Production)
}

// ListenAddr returns the front-end listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServiceAddr returns the reference backend listen address
func (c *Config) ServiceAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}
