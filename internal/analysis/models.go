package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Sentiment is the overall mood label of a call
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// Class returns the CSS-friendly form of the label (e.g. "positive")
func (s Sentiment) Class() string {
	return strings.ToLower(strings.TrimSpace(string(s)))
}

// Score is a 0-10 rating. The backend sends it either as a JSON number
// or as a numeric string.
type Score float64

// UnmarshalJSON accepts 8, 8.5 and "8"
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSuffix(strings.TrimSpace(str), "/10")
		f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", str, err)
		}
		*s = Score(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid score %s: %w", string(data), err)
	}
	*s = Score(f)
	return nil
}

// String formats whole scores without a decimal point
func (s Score) String() string {
	return strconv.FormatFloat(float64(s), 'f', -1, 64)
}

// Rating is the response-time rating, either a label ("Fast") or a number
type Rating string

// UnmarshalJSON keeps labels verbatim and formats numbers as text
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*r = Rating(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid rating %s: %w", string(data), err)
	}
	*r = Rating(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Result is the structured call analysis produced by the analysis backend
type Result struct {
	Sentiment            Sentiment `json:"sentiment" validate:"required,oneof=Positive Neutral Negative"`
	OverallScore         Score     `json:"overall_score" validate:"gte=0,lte=10"`
	OverallFeedback      string    `json:"overall_feedback"`
	CallClarity          Score     `json:"call_clarity" validate:"gte=0,lte=10"`
	CallClarityFeedback  string    `json:"call_clarity_feedback"`
	ResponseTimeRating   Rating    `json:"response_time_rating"`
	ResponseTimeFeedback string    `json:"response_time_feedback"`
	Summary              string    `json:"summary"`
}
