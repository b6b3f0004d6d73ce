package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type announcementStore interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementRequest describes create and update payloads.
type AnnouncementRequest struct {
	Title       string                      `json:"title" validate:"required"`
	Content     string                      `json:"content" validate:"required"`
	Audience    models.AnnouncementAudience `json:"audience" validate:"required,oneof=ALL STUDENTS FACULTY"`
	Priority    models.AnnouncementPriority `json:"priority" validate:"required,oneof=LOW NORMAL HIGH"`
	IsPinned    bool                        `json:"is_pinned"`
	PublishedAt *time.Time                  `json:"published_at"`
	ExpiresAt   *time.Time                  `json:"expires_at"`
}

// AnnouncementService manages portal announcements.
type AnnouncementService struct {
	repo      announcementStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs AnnouncementService.
func NewAnnouncementService(repo announcementStore, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, validator: validate, logger: logger}
}

// audienceForRole maps a viewer role onto the announcement audience filter.
func audienceForRole(role models.UserRole) models.AnnouncementAudience {
	switch role {
	case models.RoleStudent:
		return models.AnnouncementAudienceStudents
	case models.RoleFaculty:
		return models.AnnouncementAudienceFaculty
	default:
		return models.AnnouncementAudienceAll
	}
}

// ListForRole returns live announcements visible to the viewer's role.
func (s *AnnouncementService) ListForRole(ctx context.Context, role models.UserRole, page, pageSize int) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{
		Audience:      audienceForRole(role),
		IncludePinned: true,
		Page:          page,
		PageSize:      pageSize,
	}
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return announcements, pagination, nil
}

// Get returns one announcement.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Create publishes an announcement authored by the given user.
func (s *AnnouncementService) Create(ctx context.Context, authorID string, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	publishedAt := time.Now().UTC()
	if req.PublishedAt != nil {
		publishedAt = *req.PublishedAt
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(publishedAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiry must follow publication")
	}
	announcement := &models.Announcement{
		Title:       req.Title,
		Content:     req.Content,
		Audience:    req.Audience,
		Priority:    req.Priority,
		IsPinned:    req.IsPinned,
		PublishedAt: publishedAt,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   authorID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update modifies an announcement.
func (s *AnnouncementService) Update(ctx context.Context, id string, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	announcement.Title = req.Title
	announcement.Content = req.Content
	announcement.Audience = req.Audience
	announcement.Priority = req.Priority
	announcement.IsPinned = req.IsPinned
	if req.PublishedAt != nil {
		announcement.PublishedAt = *req.PublishedAt
	}
	announcement.ExpiresAt = req.ExpiresAt
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}
