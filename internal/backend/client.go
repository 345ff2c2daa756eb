package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/pkg/logger"
)

const (
	speechToTextPath = "/speech-to-text/"
	analyzePath      = "/analyze/"
)

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string // status text, e.g. "Internal Server Error"
	Detail     string // "detail" field of the JSON error body, if any
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d %s: %s", e.StatusCode, e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, e.Status)
}

// Options configures a Client
type Options struct {
	BaseURL string        // resolved base, absolute or a path such as /api
	Origin  string        // origin used when BaseURL is a path
	Timeout time.Duration // 0 waits indefinitely
}

// Client talks to the remote speech-to-text and analysis endpoints
type Client struct {
	baseURL    string // absolute, stored without trailing slash
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a backend client
func NewClient(opts Options, logger *logger.Logger) (*Client, error) {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	if strings.HasPrefix(base, "/") {
		if opts.Origin == "" {
			return nil, fmt.Errorf("relative backend base %q needs an origin", base)
		}
		base = strings.TrimSuffix(opts.Origin, "/") + base
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid backend base URL: %q", opts.BaseURL)
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger.Named("backend"),
	}, nil
}

// BaseURL returns the absolute base the client posts to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Transcribe uploads the file as multipart form data and returns the transcript
func (c *Client) Transcribe(ctx context.Context, file *upload.File) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, upload.FieldName, escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", fmt.Errorf("copy file to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+speechToTextPath, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending audio for transcription",
		logger.String("file", file.Name),
		logger.String("content_type", contentType),
		logger.Int("bytes", file.Size()))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Detail:     detailFrom(body),
		}
	}

	var result struct {
		Filename      string `json:"filename"`
		Transcription string `json:"transcription"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	c.logger.Debug("Transcription received",
		logger.String("file", file.Name),
		logger.Int("chars", len(result.Transcription)),
		logger.Duration("duration", time.Since(start)))

	return result.Transcription, nil
}

// Analyze posts the transcript text and returns the normalized analysis.
// An undecodable success body yields an error wrapping analysis.ErrMalformed.
func (c *Client) Analyze(ctx context.Context, text string) (*analysis.Result, error) {
	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Detail:     detailFrom(body),
		}
	}

	result, err := analysis.Parse(body)
	if err != nil {
		c.logger.Warn("Analysis payload could not be parsed",
			logger.Error(err),
			logger.Int("bytes", len(body)))
		return nil, err
	}

	c.logger.Debug("Analysis received",
		logger.String("sentiment", string(result.Sentiment)),
		logger.Duration("duration", time.Since(start)))

	return result, nil
}

// DetailOf returns the backend-supplied detail of a StatusError, if any
func DetailOf(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Detail
	}
	return ""
}

// detailFrom extracts a string "detail" field from a JSON error body
func detailFrom(body []byte) string {
	var errBody struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &errBody); err != nil {
		return ""
	}
	if detail, ok := errBody.Detail.(string); ok {
		return detail
	}
	return ""
}

// statusText returns the reason phrase of the response, e.g. "Bad Gateway"
func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
