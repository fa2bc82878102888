package domain

import "time"

const (
	// RetentionWindow is how long visits stay reportable before cleanup removes them.
	RetentionWindow = 7 * 24 * time.Hour

	MaxURLLength  = 2083
	MaxTextLength = 500

	// UnknownContext labels a visit whose user agent matched no known browser.
	UnknownContext = "Unknown"

	// NoTextSentinel is the text of a link with no text, image alt or aria-label.
	NoTextSentinel = "[No discernible text]"

	// TrackAction identifies the ingestion operation on the wire.
	TrackAction = "atf_lt_track_links"
)

// Visit is one page load that reported at least one above-the-fold link
type Visit struct {
	ID           int64     `json:"id"`
	VisitTime    time.Time `json:"visit_time"` // UTC
	ScreenWidth  int       `json:"screen_width"`
	ScreenHeight int       `json:"screen_height"`
	Context      string    `json:"context"`
}

// TrackedLink is owned by its Visit and has no identity without it.
type TrackedLink struct {
	ID      int64  `json:"id"`
	VisitID int64  `json:"visit_id"`
	URL     string `json:"url"`
	Text    string `json:"text"`
}

// ReportRow is a TrackedLink joined to its Visit
type ReportRow struct {
	VisitID      int64     `json:"visit_id"`
	VisitTime    time.Time `json:"visit_time"`
	ScreenWidth  int       `json:"screen_width"`
	ScreenHeight int       `json:"screen_height"`
	Context      string    `json:"context"`
	LinkID       int64     `json:"link_id"`
	URL          string    `json:"url"`
	Text         string    `json:"text"`
}

// RetentionResult reports how many rows each cleanup phase removed.
type RetentionResult struct {
	OrphansPruned int64 `json:"orphans_pruned"`
	VisitsDeleted int64 `json:"visits_deleted"`
}

// RetentionCutoff returns the oldest visit time still inside the window.
// A visit exactly at the cutoff is retained.
func RetentionCutoff(now time.Time) time.Time {
	return now.UTC().Add(-RetentionWindow)
}
