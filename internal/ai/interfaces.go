package ai

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned by providers constructed without credentials
var ErrMissingAPIKey = errors.New("API key not configured")

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AudioFile is an uploaded recording handed to a transcription provider
type AudioFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// TranscriptionConfig holds configuration for transcription requests
type TranscriptionConfig struct {
	Model       string
	Language    string // optional ISO-639-1 hint
	Prompt      string // optional vocabulary/context hint
	Temperature float64
}

// TranscriptionProvider defines the interface for converting audio to text
type TranscriptionProvider interface {
	// Transcribe returns the text spoken in the recording
	Transcribe(ctx context.Context, audio AudioFile, config TranscriptionConfig) (string, error)
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string
	Content string
}

// ChatConfig holds configuration for chat completions
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatProvider defines the interface for text-to-text chat completions (used for call analysis)
type ChatProvider interface {
	// ChatCompletion sends a conversation to the LLM and returns the text response
	ChatCompletion(ctx context.Context, messages []ChatMessage, config ChatConfig) (string, error)
}

// Provider is a hosted model service able to both transcribe and analyze
type Provider interface {
	TranscriptionProvider
	ChatProvider
}
