package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yegors/clara/internal/analysis"
)

var (
	highColor   = lipgloss.Color("82")  // Green
	mediumColor = lipgloss.Color("214") // Orange
	lowColor    = lipgloss.Color("196") // Red
	mutedColor  = lipgloss.Color("245") // Gray

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

func bandColor(band analysis.Band) lipgloss.Color {
	switch band {
	case analysis.BandHigh:
		return highColor
	case analysis.BandMedium:
		return mediumColor
	default:
		return lowColor
	}
}

func sentimentColor(s analysis.Sentiment) lipgloss.Color {
	switch s {
	case analysis.SentimentPositive:
		return highColor
	case analysis.SentimentNegative:
		return lowColor
	default:
		return mediumColor
	}
}

// renderAnalysis formats a call analysis the way the web view lays it out
func renderAnalysis(r *analysis.Result) string {
	score := lipgloss.NewStyle().Bold(true).Foreground(bandColor(analysis.BandFor(r.OverallScore)))
	sentiment := lipgloss.NewStyle().Bold(true).Foreground(sentimentColor(r.Sentiment))

	var b strings.Builder
	b.WriteString(headingStyle.Render("Call Analysis"))
	b.WriteString("  ")
	b.WriteString(sentiment.Render(fmt.Sprintf("%s Sentiment", r.Sentiment)))
	b.WriteString("\n\n")

	writeMetric(&b, "Quality Score", score.Render(r.OverallScore.String()+"/10"), r.OverallFeedback)
	writeMetric(&b, "Clarity", headingStyle.Render(r.CallClarity.String()+"/10"), r.CallClarityFeedback)
	writeMetric(&b, "Response Time", headingStyle.Render(string(r.ResponseTimeRating)), r.ResponseTimeFeedback)

	b.WriteString(labelStyle.Render("Summary"))
	b.WriteString("\n")
	b.WriteString(r.Summary)

	return panelStyle.Render(b.String())
}

func writeMetric(b *strings.Builder, label, value, feedback string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
	if feedback != "" {
		b.WriteString(feedback)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
