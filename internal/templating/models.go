package templating

import (
	"github.com/yegors/clara/internal/session"
)

// PageData is the data every page and fragment is rendered with
type PageData struct {
	Title            string
	Tagline          string
	Year             int
	Accept           string // accept attribute of the file picker
	CopiedFeedbackMs int
	SessionID        string
	State            session.Snapshot
}
