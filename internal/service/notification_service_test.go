package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type mockNotificationRepo struct {
	created   []models.Notification
	unread    int
	markOK    bool
	markedAll int
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = "n1"
	}
	m.created = append(m.created, *notification)
	return nil
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return m.created, len(m.created), nil
}

func (m *mockNotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	return m.markOK, nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return m.markedAll, nil
}

type mockRecipientReader struct {
	users map[string]*models.User
}

func (m *mockRecipientReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockMailer struct {
	mu      sync.Mutex
	enabled bool
	sent    []string
}

func (m *mockMailer) Enabled() bool { return m.enabled }

func (m *mockMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func (m *mockMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestNotificationServiceDispatchPersistsRow(t *testing.T) {
	repo := &mockNotificationRepo{}
	users := &mockRecipientReader{users: map[string]*models.User{"s1": {ID: "s1", Email: "s1@uni.edu"}}}
	mailer := &mockMailer{enabled: false}
	svc := NewNotificationService(repo, users, mailer, zap.NewNop())

	err := svc.Dispatch(context.Background(), "s1", models.NotificationTypeApproval, "Course approved", "CS101 approved")
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.NotificationTypeApproval, repo.created[0].Type)
	assert.Empty(t, mailer.sentTo())
}

func TestNotificationServiceDispatchSendsEmail(t *testing.T) {
	repo := &mockNotificationRepo{}
	users := &mockRecipientReader{users: map[string]*models.User{"s1": {ID: "s1", Email: "s1@uni.edu"}}}
	mailer := &mockMailer{enabled: true}
	svc := NewNotificationService(repo, users, mailer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	err := svc.Dispatch(ctx, "s1", models.NotificationTypeRejection, "Course rejected", "CS101 rejected")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(mailer.sentTo()) == 1
	}, time.Second, 10*time.Millisecond)
	svc.Stop()

	assert.Equal(t, []string{"s1@uni.edu"}, mailer.sentTo())
}

func TestNotificationServiceDispatchUnknownRecipient(t *testing.T) {
	repo := &mockNotificationRepo{}
	users := &mockRecipientReader{}
	mailer := &mockMailer{enabled: true}
	svc := NewNotificationService(repo, users, mailer, zap.NewNop())

	err := svc.Dispatch(context.Background(), "ghost", models.NotificationTypeSystem, "Hello", "world")
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Empty(t, mailer.sentTo())
}

func TestNotificationServiceMarkRead(t *testing.T) {
	repo := &mockNotificationRepo{markOK: true}
	svc := NewNotificationService(repo, &mockRecipientReader{}, &mockMailer{}, zap.NewNop())

	require.NoError(t, svc.MarkRead(context.Background(), "n1", "s1"))
}

func TestNotificationServiceMarkReadNotFound(t *testing.T) {
	repo := &mockNotificationRepo{markOK: false}
	svc := NewNotificationService(repo, &mockRecipientReader{}, &mockMailer{}, zap.NewNop())

	err := svc.MarkRead(context.Background(), "n1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceList(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, &mockRecipientReader{}, &mockMailer{}, zap.NewNop())
	require.NoError(t, svc.Dispatch(context.Background(), "s1", models.NotificationTypeSystem, "t", "m"))

	list, pagination, err := svc.List(context.Background(), models.NotificationFilter{UserID: "s1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.WithinDuration(t, time.Now().UTC(), list[0].CreatedAt, time.Minute)
}
