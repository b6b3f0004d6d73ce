package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
	"github.com/uniportal/registrar-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type recipientReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type emailSender interface {
	Enabled() bool
	Send(to, subject, body string) error
}

type emailPayload struct {
	To      string
	Subject string
	Body    string
}

// NotificationService persists in-app notifications and pushes best-effort
// emails through the background queue. It never participates in lifecycle
// transactions; callers invoke Dispatch only after their own commit.
type NotificationService struct {
	repo   notificationRepository
	users  recipientReader
	mailer emailSender
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService with its email queue.
func NewNotificationService(repo notificationRepository, users recipientReader, mailer emailSender, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, users: users, mailer: mailer, logger: logger}
	s.queue = jobs.NewQueue("notification-email", s.handleEmailJob, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start begins email queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the email queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch stores an in-app notification and enqueues the matching email. The
// in-app row is authoritative; email delivery failures are logged and dropped.
func (s *NotificationService) Dispatch(ctx context.Context, userID string, notificationType models.NotificationType, title, message string) error {
	notification := &models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notificationType,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}

	if s.mailer == nil || !s.mailer.Enabled() {
		return nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("skipping notification email, recipient lookup failed",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "email",
		Payload: emailPayload{To: user.Email, Subject: title, Body: message},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification email",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *NotificationService) handleEmailJob(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(emailPayload)
	if !ok {
		s.logger.Error("dropping email job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.mailer.Send(payload.To, payload.Subject, payload.Body); err != nil {
		return fmt.Errorf("deliver notification email: %w", err)
	}
	return nil
}

// List returns a user's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
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
	return notifications, pagination, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks a single notification as read. Ownership is enforced in the
// query so users cannot touch other inboxes.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	updated, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification for the user and returns the
// number updated.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return count, nil
}
