package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/internal/repository"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type decisionUploadStore interface {
	List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseUploadDetail, error)
	Approve(ctx context.Context, id, approverID string) (bool, error)
	BulkApprove(ctx context.Context, ids []string, approverID string) ([]repository.BulkDecision, error)
	RejectWithSeatRelease(ctx context.Context, id, approverID, reason, courseID string) (bool, error)
}

type decisionRegistrationStore interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ApplyDecision(ctx context.Context, id string, status models.RegistrationStatus, approverID string, reason *string) (*repository.DecisionResult, error)
}

// RejectRequest carries the mandatory reason for a rejection.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// BulkApproveRequest lists the uploads to approve in one call.
type BulkApproveRequest struct {
	UploadIDs []string `json:"upload_ids" validate:"required,min=1,dive,required"`
}

// BulkApproveResult reports how many uploads actually transitioned.
type BulkApproveResult struct {
	Requested int `json:"requested"`
	Approved  int `json:"approved"`
	Skipped   int `json:"skipped"`
}

// ApprovalService finalizes course uploads and whole registrations. Decisions
// are terminal; repeated decisions on the same entity fail with FINALIZED.
type ApprovalService struct {
	uploads       decisionUploadStore
	registrations decisionRegistrationStore
	notifications notifier
	stats         statsInvalidator
	logger        *zap.Logger
}

// NewApprovalService constructs ApprovalService.
func NewApprovalService(uploads decisionUploadStore, registrations decisionRegistrationStore, notifications notifier, stats statsInvalidator, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{uploads: uploads, registrations: registrations, notifications: notifications, stats: stats, logger: logger}
}

// ListPending returns course uploads awaiting a decision, optionally scoped to
// a semester or department for faculty review queues.
func (s *ApprovalService) ListPending(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, *models.Pagination, error) {
	filter.Status = models.UploadStatusPending
	uploads, total, err := s.uploads.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending uploads")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return uploads, pagination, nil
}

// Approve finalizes a PENDING course upload as APPROVED and notifies the
// student after the write commits.
func (s *ApprovalService) Approve(ctx context.Context, uploadID, approverID string) (*models.CourseUploadDetail, error) {
	detail, err := s.uploads.FindDetailByID(ctx, uploadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course upload not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course upload")
	}
	if detail.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	}
	approved, err := s.uploads.Approve(ctx, uploadID, approverID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve course upload")
	}
	if !approved {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	}
	s.invalidateStats(ctx, detail.SemesterID)

	s.notify(ctx, detail.StudentID, models.NotificationTypeApproval,
		"Course registration approved",
		fmt.Sprintf("Your registration for %s %s has been approved.", detail.CourseCode, detail.CourseTitle))

	return s.uploads.FindDetailByID(ctx, uploadID)
}

// Reject finalizes a PENDING course upload as REJECTED, releasing its seat in
// the same transaction. The reason is mandatory and is embedded in the
// notification sent to the student.
func (s *ApprovalService) Reject(ctx context.Context, uploadID, approverID string, req RejectRequest) (*models.CourseUploadDetail, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	detail, err := s.uploads.FindDetailByID(ctx, uploadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course upload not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course upload")
	}
	if detail.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	}
	rejected, err := s.uploads.RejectWithSeatRelease(ctx, uploadID, approverID, reason, detail.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject course upload")
	}
	if !rejected {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	}
	s.invalidateStats(ctx, detail.SemesterID)

	s.notify(ctx, detail.StudentID, models.NotificationTypeRejection,
		"Course registration rejected",
		fmt.Sprintf("Your registration for %s %s was rejected: %s", detail.CourseCode, detail.CourseTitle, reason))

	return s.uploads.FindDetailByID(ctx, uploadID)
}

// BulkApprove approves every PENDING upload in the request, silently skipping
// uploads that are already finalized, and reports the counts. Each student
// whose upload transitioned is notified, the same as an individual approval.
func (s *ApprovalService) BulkApprove(ctx context.Context, approverID string, req BulkApproveRequest) (*BulkApproveResult, error) {
	if len(req.UploadIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "upload_ids is required")
	}
	decisions, err := s.uploads.BulkApprove(ctx, req.UploadIDs, approverID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk approve uploads")
	}

	semesters := make(map[string]bool, 1)
	for _, decision := range decisions {
		if !semesters[decision.SemesterID] {
			semesters[decision.SemesterID] = true
			s.invalidateStats(ctx, decision.SemesterID)
		}
		s.notify(ctx, decision.StudentID, models.NotificationTypeApproval,
			"Course registration approved",
			fmt.Sprintf("Your registration for %s %s has been approved.", decision.CourseCode, decision.CourseTitle))
	}

	return &BulkApproveResult{
		Requested: len(req.UploadIDs),
		Approved:  len(decisions),
		Skipped:   len(req.UploadIDs) - len(decisions),
	}, nil
}

// ApproveRegistration approves a PENDING registration, cascading APPROVED to
// every currently-PENDING child upload in one transaction.
func (s *ApprovalService) ApproveRegistration(ctx context.Context, registrationID, approverID string) (*repository.DecisionResult, error) {
	registration, err := s.requirePendingRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	result, err := s.registrations.ApplyDecision(ctx, registrationID, models.RegistrationStatusApproved, approverID, nil)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve registration")
	}
	s.invalidateStats(ctx, registration.SemesterID)

	s.notify(ctx, result.StudentID, models.NotificationTypeApproval,
		"Registration approved",
		fmt.Sprintf("Your semester registration was approved (%d course(s)).", result.Transitioned))

	return result, nil
}

// RejectRegistration rejects a PENDING registration, cascading REJECTED to
// every currently-PENDING child upload and releasing their seats in one
// transaction.
func (s *ApprovalService) RejectRegistration(ctx context.Context, registrationID, approverID string, req RejectRequest) (*repository.DecisionResult, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	registration, err := s.requirePendingRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	result, err := s.registrations.ApplyDecision(ctx, registrationID, models.RegistrationStatusRejected, approverID, &reason)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject registration")
	}
	s.invalidateStats(ctx, registration.SemesterID)

	s.notify(ctx, result.StudentID, models.NotificationTypeRejection,
		"Registration rejected",
		fmt.Sprintf("Your semester registration was rejected: %s", reason))

	return result, nil
}

func (s *ApprovalService) requirePendingRegistration(ctx context.Context, registrationID string) (*models.Registration, error) {
	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	switch {
	case registration.Status.Terminal():
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	case registration.Status != models.RegistrationStatusPending:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "registration has not been submitted")
	}
	return registration, nil
}

func (s *ApprovalService) notify(ctx context.Context, userID string, notificationType models.NotificationType, title, message string) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Dispatch(ctx, userID, notificationType, title, message); err != nil {
		s.logger.Warn("failed to dispatch decision notification",
			zap.String("user_id", userID), zap.String("title", title), zap.Error(err))
	}
}

// invalidateStats drops the cached semester overview after a decision that
// changes upload counts.
func (s *ApprovalService) invalidateStats(ctx context.Context, semesterID string) {
	if s.stats == nil {
		return
	}
	s.stats.InvalidateSemester(ctx, semesterID)
}
