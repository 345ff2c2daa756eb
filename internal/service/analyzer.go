package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yegors/clara/internal/ai"
	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/pkg/logger"
)

const systemPrompt = "You are a helpful assistant that outputs only JSON. Do not write any text outside the JSON object."

const analysisPrompt = `Analyze the following transcript and provide a JSON response with these exact metrics and actionable feedback.

1. overall_score (0-10)
2. overall_feedback (Advice on general improvement)
3. sentiment (Positive, Neutral, Negative)
4. response_time_rating (Fast, Moderate, Slow)
5. response_time_feedback (Comments on pacing and pauses)
6. call_clarity (0-10)
7. call_clarity_feedback (Tips on articulation and communication)
8. summary (1 sentence)

Transcript: %q

Return ONLY valid JSON.
Example format:
{
    "overall_score": 8,
    "overall_feedback": "Great opening, but could be more empathetic in the middle.",
    "sentiment": "Positive",
    "response_time_rating": "Fast",
    "response_time_feedback": "Good pace, but allow the customer to finish speaking.",
    "call_clarity": 9,
    "call_clarity_feedback": "Very clear articulation, professional tone.",
    "summary": "Customer was happy with the resolution."
}`

// ErrNoJSON is returned when the model reply contains no JSON object
var ErrNoJSON = errors.New("model reply contained no JSON object")

// Analyzer turns a transcript into a validated call analysis using a chat model
type Analyzer struct {
	chat     ai.ChatProvider
	config   ai.ChatConfig
	validate *validator.Validate
	logger   *logger.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(chat ai.ChatProvider, config ai.ChatConfig, logger *logger.Logger) *Analyzer {
	return &Analyzer{
		chat:     chat,
		config:   config,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("analyzer"),
	}
}

// Messages builds the conversation sent to the model for a transcript
func Messages(text string) []ai.ChatMessage {
	return []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: fmt.Sprintf(analysisPrompt, text)},
	}
}

// Analyze asks the model for an analysis and normalizes its reply
func (a *Analyzer) Analyze(ctx context.Context, text string) (*analysis.Result, error) {
	reply, err := a.chat.ChatCompletion(ctx, Messages(text), a.config)
	if err != nil {
		return nil, err
	}

	object, ok := analysis.ExtractObject(reply)
	if !ok {
		a.logger.Warn("Model reply had no JSON object", logger.String("reply", truncate(reply, 200)))
		return nil, ErrNoJSON
	}

	result, err := analysis.Parse(json.RawMessage(object))
	if err != nil {
		return nil, err
	}

	if err := a.validate.Struct(result); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("invalid analysis: %s", strings.Join(FormatValidationErrors(validationErrors), ", "))
		}
		return nil, err
	}

	return result, nil
}

// FormatValidationErrors formats validation errors from validator/v10
func FormatValidationErrors(errs validator.ValidationErrors) []string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		element := fmt.Sprintf("Field '%s' failed on the '%s' tag", err.Field(), err.Tag())
		if err.Param() != "" {
			element = fmt.Sprintf("%s (value: %s)", element, err.Param())
		}
		messages = append(messages, element)
	}
	return messages
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
