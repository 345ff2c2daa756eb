package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when an analysis payload cannot be decoded
var ErrMalformed = errors.New("malformed analysis payload")

// Parse normalizes a backend analysis payload into a Result. The payload is
// either the JSON object itself or a JSON string whose content is the object.
func Parse(payload []byte) (*Result, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		payload = bytes.TrimSpace([]byte(inner))
	}

	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &result, nil
}

// ExtractObject returns the outermost {...} block of free-form text,
// which is how LLM replies wrapped in prose or code fences are cleaned up.
func ExtractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start >= end {
		return "", false
	}
	return text[start : end+1], true
}
