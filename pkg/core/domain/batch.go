package domain

// LinkInput is one scanner candidate as received over the wire.
// HasURL and HasText record whether the keys were present at all.
type LinkInput struct {
	URL     string `json:"url"`
	Text    string `json:"text"`
	HasURL  bool   `json:"-"`
	HasText bool   `json:"-"`
}

// Batch is one scanner submission plus the server-observed request context.
type Batch struct {
	Action       string
	Nonce        string
	ScreenWidth  int `validate:"gt=0"`
	ScreenHeight int `validate:"gt=0"`
	Links        []LinkInput
	UserAgent    string
}

// SkipReason explains why a link was dropped from an otherwise valid batch.
type SkipReason string

const (
	SkipMissingField SkipReason = "missing_field"
	SkipInvalidURL   SkipReason = "invalid_url"
	SkipInsertFailed SkipReason = "insert_failed"
)

// IngestResult is the outcome of a successful ingestion.
type IngestResult struct {
	VisitID      int64 `json:"visit_id"`
	LinksSaved   int   `json:"links_saved"`
	LinksSkipped int   `json:"links_skipped"`
}

// TrackerConfig is what a page needs to submit batches: where, which
// action name and a current nonce.
type TrackerConfig struct {
	Endpoint string `json:"endpoint"`
	Action   string `json:"action"`
	Nonce    string `json:"nonce"`
}
