package services

import (
	"context"
	"fmt"
	"time"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/ports"
)

type RetentionService struct {
	repo ports.TrackingRepository
	now  func() time.Time
}

func NewRetentionService(repo ports.TrackingRepository) *RetentionService {
	if repo == nil {
		panic("services.NewRetentionService: nil repository")
	}
	return &RetentionService{repo: repo, now: time.Now}
}

// WithClock replaces the time source used to compute the cutoff.
func (s *RetentionService) WithClock(now func() time.Time) *RetentionService {
	s.now = now
	return s
}

// Run prunes orphan links, then deletes visits older than the retention
// window. Links of visits deleted here become orphans for the next run.
// If pruning fails the visit phase is not attempted.
func (s *RetentionService) Run(ctx context.Context) (domain.RetentionResult, error) {
	log := logger.WithCtx(ctx).With().Str("component", "retention").Logger()
	var res domain.RetentionResult

	pruned, err := s.repo.DeleteOrphanLinks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("orphan pruning failed")
		return res, fmt.Errorf("prune orphan links: %w", err)
	}
	res.OrphansPruned = pruned

	cutoff := domain.RetentionCutoff(s.now())
	deleted, err := s.repo.DeleteVisitsBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("expired visit deletion failed")
		return res, fmt.Errorf("delete expired visits: %w", err)
	}
	res.VisitsDeleted = deleted

	log.Info().
		Int64("orphans_pruned", res.OrphansPruned).
		Int64("visits_deleted", res.VisitsDeleted).
		Time("cutoff", cutoff).
		Msg("retention run complete")
	return res, nil
}

var _ ports.RetentionService = (*RetentionService)(nil)
