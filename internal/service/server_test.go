package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yegors/clara/internal/ai"
	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/pkg/logger"
)

type fakeProvider struct {
	transcript string
	reply      string
	err        error

	gotAudio    ai.AudioFile
	gotMessages []ai.ChatMessage
	gotConfig   ai.ChatConfig
}

func (f *fakeProvider) Transcribe(ctx context.Context, audio ai.AudioFile, config ai.TranscriptionConfig) (string, error) {
	f.gotAudio = audio
	return f.transcript, f.err
}

func (f *fakeProvider) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	f.gotMessages = messages
	f.gotConfig = config
	return f.reply, f.err
}

const validReply = `Sure! Here is the analysis:
` + "```json" + `
{
  "overall_score": 8,
  "overall_feedback": "Great opening.",
  "sentiment": "Positive",
  "response_time_rating": "Fast",
  "response_time_feedback": "Good pace.",
  "call_clarity": "9",
  "call_clarity_feedback": "Clear.",
  "summary": "Customer was happy with the resolution."
}
` + "```"

func newTestServer(p *fakeProvider) *Server {
	analyzer := NewAnalyzer(p, ai.ChatConfig{Model: "m", MaxTokens: 600, Temperature: 0.1}, logger.NewNop())
	return NewServer(p, analyzer, Options{AllowedOrigins: []string{"*"}}, logger.NewNop())
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestSpeechToText(t *testing.T) {
	p := &fakeProvider{transcript: "hello world"}
	srv := newTestServer(p)

	body, contentType := multipartBody(t, "file", "call.mp3", []byte("ID3audio"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-text/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "call.mp3", resp.Filename)
	require.Equal(t, "hello world", resp.Transcription)
	require.Equal(t, "call.mp3", p.gotAudio.Name)
	require.Equal(t, []byte("ID3audio"), p.gotAudio.Data)
}

func TestSpeechToTextMissingFile(t *testing.T) {
	srv := newTestServer(&fakeProvider{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("note", "no file here"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/speech-to-text/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSpeechToTextProviderError(t *testing.T) {
	srv := newTestServer(&fakeProvider{err: errors.New("model overloaded")})

	body, contentType := multipartBody(t, "file", "call.mp3", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-text/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "model overloaded", decodeDetail(t, rec))
}

func TestMissingProvider(t *testing.T) {
	srv := NewServer(nil, nil, Options{AllowedOrigins: []string{"*"}}, logger.NewNop())

	body, contentType := multipartBody(t, "file", "call.mp3", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-text/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "API key not configured", decodeDetail(t, rec))

	req = httptest.NewRequest(http.MethodPost, "/analyze/", strings.NewReader(`{"text":"hi"}`))
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "API key not configured", decodeDetail(t, rec))
}

func TestAnalyze(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	srv := newTestServer(p)

	req := httptest.NewRequest(http.MethodPost, "/analyze/", strings.NewReader(`{"text":"agent: hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result, err := analysis.Parse(rec.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, analysis.SentimentPositive, result.Sentiment)
	require.Equal(t, analysis.Score(8), result.OverallScore)
	require.Equal(t, analysis.Score(9), result.CallClarity)
	require.Equal(t, analysis.Rating("Fast"), result.ResponseTimeRating)

	require.Len(t, p.gotMessages, 2)
	require.Equal(t, ai.RoleSystem, p.gotMessages[0].Role)
	require.Contains(t, p.gotMessages[1].Content, `Transcript: "agent: hello"`)
	require.Equal(t, 600, p.gotConfig.MaxTokens)
}

func TestAnalyzeValidation(t *testing.T) {
	srv := newTestServer(&fakeProvider{reply: validReply})

	for _, body := range []string{`{"text":""}`, `{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/analyze/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		require.NotEmpty(t, decodeDetail(t, rec))
	}
}

func TestAnalyzeProviderError(t *testing.T) {
	srv := newTestServer(&fakeProvider{err: errors.New("rate limited")})

	req := httptest.NewRequest(http.MethodPost, "/analyze/", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "rate limited", decodeDetail(t, rec))
}

func TestAnalyzerRejectsBadReplies(t *testing.T) {
	cases := map[string]string{
		"no json":         "I cannot help with that.",
		"bad sentiment":   `{"sentiment":"Ecstatic","overall_score":5,"call_clarity":5}`,
		"score too large": `{"sentiment":"Neutral","overall_score":11,"call_clarity":5}`,
		"broken json":     `{"sentiment": }`,
	}

	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			a := NewAnalyzer(&fakeProvider{reply: reply}, ai.ChatConfig{}, logger.NewNop())
			_, err := a.Analyze(context.Background(), "text")
			require.Error(t, err)
		})
	}
}

func TestAnalyzerNoJSON(t *testing.T) {
	a := NewAnalyzer(&fakeProvider{reply: "nothing here"}, ai.ChatConfig{}, logger.NewNop())
	_, err := a.Analyze(context.Background(), "text")
	require.ErrorIs(t, err, ErrNoJSON)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeProvider{})

	req := httptest.NewRequest(http.MethodOptions, "/analyze/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
