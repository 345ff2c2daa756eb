package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{BaseURL: srv.URL + "/"}, logger.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "/api/", Origin: "http://127.0.0.1:5173/"}, logger.NewNop())
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5173/api", c.BaseURL())

	_, err = NewClient(Options{BaseURL: "/api"}, logger.NewNop())
	require.Error(t, err)

	_, err = NewClient(Options{BaseURL: "backend:8000"}, logger.NewNop())
	require.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	t.Run("posts multipart file and returns transcription", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/speech-to-text/", r.URL.Path)

			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			data, _ := io.ReadAll(f)
			require.Equal(t, "call.mp3", hdr.Filename)
			require.Equal(t, "audio/mpeg", hdr.Header.Get("Content-Type"))
			require.Equal(t, "audio-bytes", string(data))

			json.NewEncoder(w).Encode(map[string]string{"filename": "call.mp3", "transcription": "hello there"})
		}))

		text, err := client.Transcribe(context.Background(), &upload.File{Name: "call.mp3", ContentType: "audio/mpeg", Data: []byte("audio-bytes")})
		require.NoError(t, err)
		require.Equal(t, "hello there", text)
	})

	t.Run("non-2xx is a status error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"HF_TOKEN not configured"}`))
		}))

		_, err := client.Transcribe(context.Background(), &upload.File{Name: "a.wav", Data: []byte("x")})
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
		require.Equal(t, "Internal Server Error", statusErr.Status)
		require.Equal(t, "HF_TOKEN not configured", DetailOf(err))
	})

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client, err := NewClient(Options{BaseURL: srv.URL}, logger.NewNop())
		require.NoError(t, err)

		_, err = client.Transcribe(context.Background(), &upload.File{Name: "a.wav", Data: []byte("x")})
		require.Error(t, err)
	})
}

func TestAnalyze(t *testing.T) {
	object := `{"sentiment":"Negative","overall_score":3,"overall_feedback":"f","call_clarity":6,"call_clarity_feedback":"c","response_time_rating":"Slow","response_time_feedback":"r","summary":"s"}`

	t.Run("sends text and parses object", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/analyze/", r.URL.Path)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "the transcript", body["text"])
			w.Write([]byte(object))
		}))

		res, err := client.Analyze(context.Background(), "the transcript")
		require.NoError(t, err)
		require.Equal(t, analysis.SentimentNegative, res.Sentiment)
		require.Equal(t, analysis.Score(3), res.OverallScore)
		require.Equal(t, "s", res.Summary)
	})

	t.Run("parses JSON string body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(object)
		}))

		res, err := client.Analyze(context.Background(), "x")
		require.NoError(t, err)
		require.Equal(t, analysis.Rating("Slow"), res.ResponseTimeRating)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode("I could not analyze that.")
		}))

		_, err := client.Analyze(context.Background(), "x")
		require.True(t, errors.Is(err, analysis.ErrMalformed))
	})

	t.Run("detail from error body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"model overloaded"}`))
		}))

		_, err := client.Analyze(context.Background(), "x")
		require.Equal(t, "model overloaded", DetailOf(err))
	})

	t.Run("non-string detail is ignored", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":[{"loc":["body","text"],"msg":"field required"}]}`))
		}))

		_, err := client.Analyze(context.Background(), "x")
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Empty(t, statusErr.Detail)
	})
}
