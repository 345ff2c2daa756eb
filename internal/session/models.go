package session

import (
	"time"

	"github.com/yegors/clara/internal/analysis"
)

// Phase is the position of a session in the upload/transcribe/analyze flow
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseUploading   Phase = "uploading"
	PhaseTranscribed Phase = "transcribed"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseAnalyzed    Phase = "analyzed"
)

// Snapshot is an immutable view of a session's state
type Snapshot struct {
	ID              string           `json:"id"`
	Version         uint64           `json:"version"`
	Phase           Phase            `json:"phase"`
	FileName        string           `json:"file_name,omitempty"`
	Transcript      string           `json:"transcript"`
	Analysis        *analysis.Result `json:"analysis,omitempty"`
	AnalysisInvalid bool             `json:"analysis_invalid,omitempty"`
	Transcribing    bool             `json:"transcribing"`
	Analyzing       bool             `json:"analyzing"`
	Error           string           `json:"error,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasAnalysis reports whether an analysis (or an unparseable one) is present
func (s Snapshot) HasAnalysis() bool {
	return s.Analysis != nil || s.AnalysisInvalid
}

func (s Snapshot) busy() bool {
	return s.Transcribing || s.Analyzing
}

func (s Snapshot) derivePhase() Phase {
	switch {
	case s.Transcribing:
		return PhaseUploading
	case s.Analyzing:
		return PhaseAnalyzing
	case s.Transcript != "" && s.HasAnalysis():
		return PhaseAnalyzed
	case s.Transcript != "":
		return PhaseTranscribed
	default:
		return PhaseIdle
	}
}

// TranscriptFileName is the name of the downloadable transcript for an
// uploaded file
func TranscriptFileName(fileName string) string {
	return "transcription-" + fileName + ".txt"
}
