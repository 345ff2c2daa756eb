package analysis

// Band is the display bucket of a score
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor maps a score to its band: >=8 high, >=5 medium, otherwise low
func BandFor(score Score) Band {
	switch {
	case score >= 8:
		return BandHigh
	case score >= 5:
		return BandMedium
	default:
		return BandLow
	}
}

// Class is the CSS class used by the analysis view
func (b Band) Class() string {
	return "score-" + string(b)
}
