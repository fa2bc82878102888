package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/ports"
)

type IngestionService struct {
	repo     ports.TrackingRepository
	nonces   ports.NonceVerifier
	validate *validator.Validate
	now      func() time.Time
}

func NewIngestionService(repo ports.TrackingRepository, nonces ports.NonceVerifier) *IngestionService {
	if repo == nil {
		panic("services.NewIngestionService: nil repository")
	}
	if nonces == nil {
		panic("services.NewIngestionService: nil nonce verifier")
	}
	return &IngestionService{
		repo:     repo,
		nonces:   nonces,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for visit times and the report window.
func (s *IngestionService) WithClock(now func() time.Time) *IngestionService {
	s.now = now
	return s
}

// Ingest validates a batch, writes its Visit and then each surviving link.
// Link inserts are independent: one failure does not stop the rest, and a
// visit whose links all fail is kept (it ages out with retention).
func (s *IngestionService) Ingest(ctx context.Context, batch domain.Batch) (domain.IngestResult, error) {
	log := logger.WithCtx(ctx)

	if batch.Action != domain.TrackAction {
		received := batch.Action
		if received == "" {
			received = "None"
		}
		return domain.IngestResult{}, fmt.Errorf("%w: invalid or missing action parameter. Expected: %s; Received: %s",
			domain.ErrInvalidBatch, domain.TrackAction, received)
	}
	if err := s.nonces.Verify(batch.Nonce, domain.TrackAction); err != nil {
		return domain.IngestResult{}, fmt.Errorf("%w: nonce verification failed, the security token is invalid or has expired: %v",
			domain.ErrForbidden, err)
	}
	if len(batch.Links) == 0 {
		return domain.IngestResult{}, fmt.Errorf("%w: no link data provided in the request", domain.ErrInvalidBatch)
	}
	if err := s.validate.Struct(batch); err != nil {
		return domain.IngestResult{}, fmt.Errorf("%w: missing or invalid screen dimensions. Width: %d, Height: %d",
			domain.ErrInvalidBatch, batch.ScreenWidth, batch.ScreenHeight)
	}

	visit := &domain.Visit{
		VisitTime:    s.now().UTC(),
		ScreenWidth:  batch.ScreenWidth,
		ScreenHeight: batch.ScreenHeight,
		Context:      ClassifyUserAgent(batch.UserAgent),
	}
	if err := s.repo.InsertVisit(ctx, visit); err != nil {
		log.Error().Err(err).Msg("visit insert failed")
		return domain.IngestResult{}, fmt.Errorf("%w: failed to save visit data: %v", domain.ErrPersistence, err)
	}

	result := domain.IngestResult{VisitID: visit.ID}
	for i, in := range batch.Links {
		link, reason := prepareLink(in)
		if reason != "" {
			result.LinksSkipped++
			log.Debug().Int64("visit_id", visit.ID).Int("index", i).Str("reason", string(reason)).Msg("link skipped")
			continue
		}
		link.VisitID = visit.ID
		if err := s.repo.InsertLink(ctx, &link); err != nil {
			result.LinksSkipped++
			log.Warn().Err(err).Int64("visit_id", visit.ID).Int("index", i).Str("reason", string(domain.SkipInsertFailed)).Msg("link skipped")
			continue
		}
		result.LinksSaved++
	}

	if result.LinksSaved == 0 {
		log.Warn().Int64("visit_id", visit.ID).Int("skipped", result.LinksSkipped).Msg("visit saved without links")
		return result, fmt.Errorf("%w: visit data saved, but no valid links were processed or saved from the submitted data. Ensure links have valid URLs",
			domain.ErrNoLinksSaved)
	}

	log.Info().
		Int64("visit_id", visit.ID).
		Str("context", visit.Context).
		Int("saved", result.LinksSaved).
		Int("skipped", result.LinksSkipped).
		Msg("batch ingested")
	return result, nil
}

// Report returns every tracked link inside the retention window.
func (s *IngestionService) Report(ctx context.Context) ([]domain.ReportRow, error) {
	rows, err := s.repo.ListSince(ctx, domain.RetentionCutoff(s.now()))
	if err != nil {
		return nil, fmt.Errorf("list tracked links: %w", err)
	}
	if rows == nil {
		rows = []domain.ReportRow{}
	}
	return rows, nil
}

func prepareLink(in domain.LinkInput) (domain.TrackedLink, domain.SkipReason) {
	if !in.HasURL || !in.HasText {
		return domain.TrackedLink{}, domain.SkipMissingField
	}
	u, ok := SanitizeURL(in.URL)
	if !ok {
		return domain.TrackedLink{}, domain.SkipInvalidURL
	}
	return domain.TrackedLink{URL: u, Text: SanitizeText(in.Text)}, ""
}

// Ensure interface compliance
var _ ports.IngestionService = (*IngestionService)(nil)
