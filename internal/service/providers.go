package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/clara/internal/ai"
	"github.com/yegors/clara/internal/ai/gemini"
	"github.com/yegors/clara/internal/ai/openai"
	"github.com/yegors/clara/internal/config"
	"github.com/yegors/clara/pkg/logger"
)

// NewProvider builds the provider selected by cfg.Service.Provider along
// with the model settings for both operations. A missing API key is not an
// error: the provider is nil and the server answers with
// ai.ErrMissingAPIKey.
func NewProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) (ai.Provider, ai.TranscriptionConfig, ai.ChatConfig, error) {
	chat := ai.ChatConfig{
		Temperature: cfg.Service.Temperature(),
		MaxTokens:   cfg.Service.AnalysisMaxTokens,
	}

	switch cfg.Service.Provider {
	case "openai":
		chat.Model = cfg.OpenAI.ChatModel
		transcription := ai.TranscriptionConfig{Model: cfg.OpenAI.TranscriptionModel}
		if cfg.OpenAI.APIKey == "" {
			log.Warn("No OpenAI API key configured; requests will fail")
			return nil, transcription, chat, nil
		}

		client := openai.NewClient(cfg.OpenAI.APIKey, log, cfg.OpenAI.BaseURL)
		client.SetPaths(cfg.OpenAI.TranscriptionsPath, cfg.OpenAI.ChatCompletionsPath)
		client.SetTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second)
		return client, transcription, chat, nil

	case "gemini":
		chat.Model = cfg.Gemini.ChatModel
		transcription := ai.TranscriptionConfig{Model: cfg.Gemini.TranscriptionModel}

		client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, "", log)
		if errors.Is(err, ai.ErrMissingAPIKey) {
			log.Warn("No Gemini API key configured; requests will fail")
			return nil, transcription, chat, nil
		}
		if err != nil {
			return nil, transcription, chat, err
		}
		return client, transcription, chat, nil

	default:
		return nil, ai.TranscriptionConfig{}, chat, fmt.Errorf("unknown provider %q", cfg.Service.Provider)
	}
}

// FromConfig builds the reference backend from configuration
func FromConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Server, error) {
	provider, transcription, chat, err := NewProvider(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Transcription:  transcription,
		AllowedOrigins: cfg.Service.CORSAllowedOrigins,
		MaxUploadBytes: int64(cfg.Upload.MaxSizeMB) << 20,
	}

	if provider == nil {
		return NewServer(nil, nil, opts, log), nil
	}

	log.Info("Using provider",
		logger.String("provider", cfg.Service.Provider),
		logger.String("transcription_model", transcription.Model),
		logger.String("chat_model", chat.Model))

	return NewServer(provider, NewAnalyzer(provider, chat, log), opts, log), nil
}
