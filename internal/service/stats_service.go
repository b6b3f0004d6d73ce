package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type statsStore interface {
	UploadCountsByStatus(ctx context.Context, semesterID string) ([]models.UploadStatusCount, error)
	UploadCountsByDepartment(ctx context.Context, semesterID string) ([]models.DepartmentUploadCount, error)
	RegistrationCount(ctx context.Context, semesterID string) (int, error)
}

// StatsService aggregates read-only registration statistics. Overviews are
// cached per semester; lifecycle writes invalidate through InvalidateSemester.
type StatsService struct {
	repo      statsStore
	semesters semesterReader
	cache     *CacheService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(repo statsStore, semesters semesterReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, semesters: semesters, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func statsCacheKey(semesterID string) string {
	return fmt.Sprintf("stats:overview:%s", semesterID)
}

// Overview returns upload counts by status and department plus the number of
// registrations for a semester. The bool reports whether the result came from
// cache.
func (s *StatsService) Overview(ctx context.Context, semesterID string) (*models.RegistrationOverview, bool, error) {
	if s.cache.Enabled() {
		var cached models.RegistrationOverview
		if hit, err := s.cache.Get(ctx, statsCacheKey(semesterID), &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	byStatus, err := s.repo.UploadCountsByStatus(ctx, semesterID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate upload statuses")
	}
	byDepartment, err := s.repo.UploadCountsByDepartment(ctx, semesterID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate department uploads")
	}
	registrations, err := s.repo.RegistrationCount(ctx, semesterID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}

	total := 0
	for _, count := range byStatus {
		total += count.Count
	}
	overview := &models.RegistrationOverview{
		SemesterID:    semesterID,
		TotalUploads:  total,
		ByStatus:      byStatus,
		ByDepartment:  byDepartment,
		Registrations: registrations,
	}

	if err := s.cache.Set(ctx, statsCacheKey(semesterID), overview, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache stats overview", zap.String("semester_id", semesterID), zap.Error(err))
	}
	return overview, false, nil
}

// InvalidateSemester drops the cached overview for a semester after a
// lifecycle write.
func (s *StatsService) InvalidateSemester(ctx context.Context, semesterID string) {
	if err := s.cache.Invalidate(ctx, statsCacheKey(semesterID)); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.String("semester_id", semesterID), zap.Error(err))
	}
}
