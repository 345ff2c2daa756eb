package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/yegors/clara/internal/ai"
	"github.com/yegors/clara/pkg/logger"
)

// transcribePrompt accompanies the audio part of a transcription request
const transcribePrompt = "Transcribe this audio recording verbatim. Return only the transcript text, without timestamps, speaker labels or commentary."

// Client represents a Google Gemini API client
type Client struct {
	genai  *genai.Client
	logger *logger.Logger
}

// NewClient creates a new Gemini client. baseURL is optional and only used
// to point the SDK at a different endpoint.
func NewClient(ctx context.Context, apiKey, baseURL string, logger *logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		genai:  client,
		logger: logger.Named("gemini"),
	}, nil
}

// -- TranscriptionProvider Implementation --

// Transcribe sends the audio inline with an instruction to transcribe it
func (c *Client) Transcribe(ctx context.Context, audio ai.AudioFile, config ai.TranscriptionConfig) (string, error) {
	mimeType := audio.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "audio/mpeg"
	}

	prompt := transcribePrompt
	if config.Language != "" {
		prompt += " The spoken language is " + config.Language + "."
	}
	if config.Prompt != "" {
		prompt += " Context: " + config.Prompt
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio.Data, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	genCfg := &genai.GenerateContentConfig{}
	if config.Temperature != 0 {
		genCfg.Temperature = genai.Ptr(float32(config.Temperature))
	}

	c.logger.Debug("Sending transcription request",
		logger.String("model", config.Model),
		logger.String("mime_type", mimeType),
		logger.Int("bytes", len(audio.Data)))

	resp, err := c.genai.Models.GenerateContent(ctx, config.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}

// -- ChatProvider Implementation --

// ChatCompletion maps the conversation onto a single GenerateContent call.
// System messages become the system instruction.
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleSystem:
			system = append(system, msg.Content)
		case ai.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no user messages")
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(config.Temperature)),
	}
	if config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(config.MaxTokens)
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, config.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini chat completion failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no candidates in response")
	}
	return text, nil
}
