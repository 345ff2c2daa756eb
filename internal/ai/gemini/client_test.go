package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yegors/clara/internal/ai"
	"github.com/yegors/clara/pkg/logger"
)

func fakeGemini(t *testing.T, reply string, inspect func(body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if inspect != nil {
			inspect(body)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": reply}},
					},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "", logger.NewNop())
	require.ErrorIs(t, err, ai.ErrMissingAPIKey)
}

func TestChatCompletion(t *testing.T) {
	srv := fakeGemini(t, `{"sentiment":"Neutral"}`, func(body map[string]any) {
		require.Contains(t, body, "systemInstruction")
		require.Len(t, body["contents"], 1)
	})

	client, err := NewClient(context.Background(), "test-key", srv.URL, logger.NewNop())
	require.NoError(t, err)

	out, err := client.ChatCompletion(context.Background(), []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: "json only"},
		{Role: ai.RoleUser, Content: "analyze this"},
	}, ai.ChatConfig{Model: "gemini-2.5-flash", Temperature: 0.1, MaxTokens: 600})
	require.NoError(t, err)
	require.Equal(t, `{"sentiment":"Neutral"}`, out)
}

func TestChatCompletionNeedsUserMessage(t *testing.T) {
	client, err := NewClient(context.Background(), "test-key", "http://127.0.0.1:1", logger.NewNop())
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), []ai.ChatMessage{{Role: ai.RoleSystem, Content: "x"}}, ai.ChatConfig{})
	require.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	srv := fakeGemini(t, "  hello from gemini \n", func(body map[string]any) {
		contents := body["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		require.Len(t, parts, 2)
		require.Contains(t, parts[0], "inlineData")
	})

	client, err := NewClient(context.Background(), "test-key", srv.URL, logger.NewNop())
	require.NoError(t, err)

	text, err := client.Transcribe(context.Background(),
		ai.AudioFile{Name: "a.wav", ContentType: "audio/wav", Data: []byte("RIFF")},
		ai.TranscriptionConfig{Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	require.Equal(t, "hello from gemini", text)
}
