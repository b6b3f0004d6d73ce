package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type mockStatsStore struct {
	byStatus     []models.UploadStatusCount
	byDepartment []models.DepartmentUploadCount
	count        int
	calls        int
}

func (m *mockStatsStore) UploadCountsByStatus(ctx context.Context, semesterID string) ([]models.UploadStatusCount, error) {
	m.calls++
	return m.byStatus, nil
}

func (m *mockStatsStore) UploadCountsByDepartment(ctx context.Context, semesterID string) ([]models.DepartmentUploadCount, error) {
	return m.byDepartment, nil
}

func (m *mockStatsStore) RegistrationCount(ctx context.Context, semesterID string) (int, error) {
	return m.count, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

func newStatsFixture() (*StatsService, *mockStatsStore, *memoryCacheRepo) {
	store := &mockStatsStore{
		byStatus: []models.UploadStatusCount{
			{Status: models.UploadStatusPending, Count: 3},
			{Status: models.UploadStatusApproved, Count: 5},
		},
		byDepartment: []models.DepartmentUploadCount{
			{DepartmentID: "d1", DepartmentName: "Computer Science", Pending: 3, Approved: 5},
		},
		count: 4,
	}
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	semesters := &mockSemesterReader{semesters: map[string]models.Semester{"sem1": {ID: "sem1"}}}
	return NewStatsService(store, semesters, cache, time.Minute, zap.NewNop()), store, cacheRepo
}

func TestStatsServiceOverview(t *testing.T) {
	svc, _, _ := newStatsFixture()

	overview, cached, err := svc.Overview(context.Background(), "sem1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 8, overview.TotalUploads)
	assert.Equal(t, 4, overview.Registrations)
	assert.Len(t, overview.ByDepartment, 1)
}

func TestStatsServiceOverviewCachesResult(t *testing.T) {
	svc, store, _ := newStatsFixture()

	_, cached, err := svc.Overview(context.Background(), "sem1")
	require.NoError(t, err)
	assert.False(t, cached)

	overview, cached, err := svc.Overview(context.Background(), "sem1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 8, overview.TotalUploads)
	assert.Equal(t, 1, store.calls)
}

func TestStatsServiceInvalidateSemester(t *testing.T) {
	svc, store, _ := newStatsFixture()

	_, _, err := svc.Overview(context.Background(), "sem1")
	require.NoError(t, err)
	svc.InvalidateSemester(context.Background(), "sem1")

	_, cached, err := svc.Overview(context.Background(), "sem1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, store.calls)
}

func TestStatsServiceOverviewUnknownSemester(t *testing.T) {
	svc, _, _ := newStatsFixture()

	_, _, err := svc.Overview(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
