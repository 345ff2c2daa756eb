package templating

import (
	"html/template"

	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/internal/session"
)

// FuncMap returns the helpers available to every page
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"scoreClass":         ScoreClass,
		"sentimentClass":     SentimentClass,
		"transcriptFileName": session.TranscriptFileName,
	}
}

// ScoreClass maps a 0-10 score to its CSS class
func ScoreClass(score analysis.Score) string {
	return analysis.BandFor(score).Class()
}

// SentimentClass maps a sentiment label to its badge CSS class
func SentimentClass(sentiment analysis.Sentiment) string {
	return sentiment.Class()
}
