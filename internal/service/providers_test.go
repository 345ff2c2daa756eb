package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yegors/clara/internal/config"
	"github.com/yegors/clara/pkg/logger"
)

func health(t *testing.T, srv *Server) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewProviderOpenAI(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"

	provider, transcription, chat, err := NewProvider(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.Equal(t, "whisper-1", transcription.Model)
	require.Equal(t, "gpt-4o-mini", chat.Model)
	require.Equal(t, 600, chat.MaxTokens)
	require.InDelta(t, 0.1, chat.Temperature, 1e-9)

	srv, err := FromConfig(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	body := health(t, srv)
	require.Equal(t, true, body["transcription"])
	require.Equal(t, true, body["analysis"])
}

func TestNewProviderZeroTemperature(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	zero := 0.0
	cfg.Service.AnalysisTemp = &zero

	_, _, chat, err := NewProvider(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	require.Zero(t, chat.Temperature)
}

func TestNewProviderMissingKey(t *testing.T) {
	for _, name := range []string{"openai", "gemini"} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Service.Provider = name
			cfg.OpenAI.APIKey = ""
			cfg.Gemini.APIKey = ""

			provider, _, _, err := NewProvider(context.Background(), cfg, logger.NewNop())
			require.NoError(t, err)
			require.Nil(t, provider)

			srv, err := FromConfig(context.Background(), cfg, logger.NewNop())
			require.NoError(t, err)
			body := health(t, srv)
			require.Equal(t, false, body["transcription"])
			require.Equal(t, false, body["analysis"])
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Provider = "whisper.cpp"

	_, _, _, err := NewProvider(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)

	_, err = FromConfig(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
}
