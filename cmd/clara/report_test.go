package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yegors/clara/internal/analysis"
)

func TestRenderAnalysis(t *testing.T) {
	out := renderAnalysis(&analysis.Result{
		Sentiment:            analysis.SentimentNegative,
		OverallScore:         4,
		OverallFeedback:      "Show more empathy.",
		CallClarity:          7.5,
		ResponseTimeRating:   "Slow",
		ResponseTimeFeedback: "Long pauses.",
		Summary:              "Customer left unhappy.",
	})

	for _, want := range []string{
		"Negative Sentiment",
		"Quality Score",
		"4/10",
		"Show more empathy.",
		"7.5/10",
		"Slow",
		"Long pauses.",
		"Customer left unhappy.",
	} {
		require.Contains(t, out, want)
	}
}

func TestBandColor(t *testing.T) {
	require.Equal(t, highColor, bandColor(analysis.BandFor(8)))
	require.Equal(t, mediumColor, bandColor(analysis.BandFor(5)))
	require.Equal(t, lowColor, bandColor(analysis.BandFor(4.9)))
}

func TestReadAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF\x24\x00\x00\x00WAVEfmt "), 0o644))

	file, err := readAudio(path)
	require.NoError(t, err)
	require.Equal(t, "call.wav", file.Name)
	require.Equal(t, "audio/wav", file.ContentType)
}
