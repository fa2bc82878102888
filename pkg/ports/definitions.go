package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
)

// TrackingRepository defines storage operations for visits and their links.
// The store does not cascade deletes; callers prune orphans explicitly.
type TrackingRepository interface {
	InsertVisit(ctx context.Context, visit *domain.Visit) error
	InsertLink(ctx context.Context, link *domain.TrackedLink) error

	// ListSince returns links joined to visits with visit_time >= cutoff,
	// newest visit first, then visit id desc, then link id asc.
	ListSince(ctx context.Context, cutoff time.Time) ([]domain.ReportRow, error)

	DeleteOrphanLinks(ctx context.Context) (int64, error)
	// DeleteVisitsBefore removes visits with visit_time strictly before cutoff.
	DeleteVisitsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// IngestionService accepts scanner batches and serves the report query
type IngestionService interface {
	Ingest(ctx context.Context, batch domain.Batch) (domain.IngestResult, error)
	Report(ctx context.Context) ([]domain.ReportRow, error)
}

// RetentionService runs the two-phase cleanup
type RetentionService interface {
	Run(ctx context.Context) (domain.RetentionResult, error)
}

// NonceVerifier checks the anti-forgery token sent with a batch.
type NonceVerifier interface {
	Verify(nonce, action string) error
}
