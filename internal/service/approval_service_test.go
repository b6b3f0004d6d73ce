package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/internal/repository"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type mockDecisionUploadStore struct {
	details      map[string]models.CourseUploadDetail
	approved     []string
	rejected     []string
	bulkApproved int
	releasedID   string
}

func (m *mockDecisionUploadStore) List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error) {
	var list []models.CourseUploadDetail
	for _, d := range m.details {
		if filter.Status == "" || d.Status == filter.Status {
			list = append(list, d)
		}
	}
	return list, len(list), nil
}

func (m *mockDecisionUploadStore) FindDetailByID(ctx context.Context, id string) (*models.CourseUploadDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDecisionUploadStore) Approve(ctx context.Context, id, approverID string) (bool, error) {
	d, ok := m.details[id]
	if !ok || d.Status != models.UploadStatusPending {
		return false, nil
	}
	d.Status = models.UploadStatusApproved
	m.details[id] = d
	m.approved = append(m.approved, id)
	return true, nil
}

func (m *mockDecisionUploadStore) BulkApprove(ctx context.Context, ids []string, approverID string) ([]repository.BulkDecision, error) {
	var decisions []repository.BulkDecision
	for _, id := range ids {
		detail := m.details[id]
		if ok, _ := m.Approve(ctx, id, approverID); ok {
			decisions = append(decisions, repository.BulkDecision{
				StudentID:   detail.StudentID,
				SemesterID:  detail.SemesterID,
				CourseCode:  detail.CourseCode,
				CourseTitle: detail.CourseTitle,
			})
		}
	}
	m.bulkApproved = len(decisions)
	return decisions, nil
}

func (m *mockDecisionUploadStore) RejectWithSeatRelease(ctx context.Context, id, approverID, reason, courseID string) (bool, error) {
	d, ok := m.details[id]
	if !ok || d.Status != models.UploadStatusPending {
		return false, nil
	}
	d.Status = models.UploadStatusRejected
	d.RejectionReason = &reason
	m.details[id] = d
	m.rejected = append(m.rejected, id)
	m.releasedID = courseID
	return true, nil
}

type mockDecisionRegistrationStore struct {
	registrations map[string]models.Registration
	decision      *repository.DecisionResult
	applied       []models.RegistrationStatus
	raced         bool
}

func (m *mockDecisionRegistrationStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if r, ok := m.registrations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDecisionRegistrationStore) ApplyDecision(ctx context.Context, id string, status models.RegistrationStatus, approverID string, reason *string) (*repository.DecisionResult, error) {
	if m.raced {
		return nil, sql.ErrNoRows
	}
	m.applied = append(m.applied, status)
	return m.decision, nil
}

func pendingUpload(id string) models.CourseUploadDetail {
	return models.CourseUploadDetail{
		CourseUpload: models.CourseUpload{ID: id, CourseID: "c1", StudentID: "s1", SemesterID: "sem1", Status: models.UploadStatusPending},
		CourseCode:   "CS101",
		CourseTitle:  "Intro",
	}
}

func newApprovalFixture() (*ApprovalService, *mockDecisionUploadStore, *mockDecisionRegistrationStore, *mockNotifier) {
	uploads := &mockDecisionUploadStore{details: map[string]models.CourseUploadDetail{"u1": pendingUpload("u1")}}
	regs := &mockDecisionRegistrationStore{
		registrations: map[string]models.Registration{
			"r1": {ID: "r1", StudentID: "s1", Status: models.RegistrationStatusPending},
		},
		decision: &repository.DecisionResult{Transitioned: 2, StudentID: "s1"},
	}
	notifier := &mockNotifier{}
	return NewApprovalService(uploads, regs, notifier, nil, zap.NewNop()), uploads, regs, notifier
}

func TestApprovalServiceApprove(t *testing.T) {
	svc, uploads, _, notifier := newApprovalFixture()

	detail, err := svc.Approve(context.Background(), "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusApproved, detail.Status)
	assert.Contains(t, uploads.approved, "u1")
	assert.Len(t, notifier.dispatched, 1)
}

func TestApprovalServiceApproveFinalized(t *testing.T) {
	svc, uploads, _, notifier := newApprovalFixture()
	d := uploads.details["u1"]
	d.Status = models.UploadStatusApproved
	uploads.details["u1"] = d

	_, err := svc.Approve(context.Background(), "u1", "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.dispatched)
}

func TestApprovalServiceRejectRequiresReason(t *testing.T) {
	svc, uploads, _, _ := newApprovalFixture()

	_, err := svc.Reject(context.Background(), "u1", "admin", RejectRequest{Reason: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, uploads.rejected)
}

func TestApprovalServiceRejectReleasesSeat(t *testing.T) {
	svc, uploads, _, notifier := newApprovalFixture()

	detail, err := svc.Reject(context.Background(), "u1", "admin", RejectRequest{Reason: "capacity reallocated"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusRejected, detail.Status)
	assert.Equal(t, "c1", uploads.releasedID)
	require.Len(t, notifier.dispatched, 1)
}

func TestApprovalServiceBulkApproveSkipsFinalized(t *testing.T) {
	svc, uploads, _, _ := newApprovalFixture()
	uploads.details["u2"] = pendingUpload("u2")
	done := pendingUpload("u3")
	done.Status = models.UploadStatusApproved
	uploads.details["u3"] = done

	result, err := svc.BulkApprove(context.Background(), "admin", BulkApproveRequest{UploadIDs: []string{"u1", "u2", "u3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Approved)
	assert.Equal(t, 1, result.Skipped)
}

func TestApprovalServiceBulkApproveNotifiesStudents(t *testing.T) {
	svc, uploads, _, notifier := newApprovalFixture()
	second := pendingUpload("u2")
	second.StudentID = "s2"
	uploads.details["u2"] = second
	done := pendingUpload("u3")
	done.Status = models.UploadStatusRejected
	uploads.details["u3"] = done

	result, err := svc.BulkApprove(context.Background(), "admin", BulkApproveRequest{UploadIDs: []string{"u1", "u2", "u3"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Approved)
	require.Len(t, notifier.dispatched, 2)
	assert.Equal(t, []string{"Course registration approved", "Course registration approved"}, notifier.dispatched)
}

func TestApprovalServiceDecisionsInvalidateOverview(t *testing.T) {
	uploads := &mockDecisionUploadStore{details: map[string]models.CourseUploadDetail{
		"u1": pendingUpload("u1"),
		"u2": pendingUpload("u2"),
		"u3": pendingUpload("u3"),
	}}
	stats := &mockStatsInvalidator{}
	svc := NewApprovalService(uploads, &mockDecisionRegistrationStore{}, &mockNotifier{}, stats, zap.NewNop())

	_, err := svc.Approve(context.Background(), "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"sem1"}, stats.semesters)

	// Bulk decisions invalidate once per distinct semester, not per upload.
	_, err = svc.BulkApprove(context.Background(), "admin", BulkApproveRequest{UploadIDs: []string{"u2", "u3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sem1", "sem1"}, stats.semesters)
}

func TestApprovalServiceListPendingForcesStatus(t *testing.T) {
	svc, uploads, _, _ := newApprovalFixture()
	done := pendingUpload("u2")
	done.Status = models.UploadStatusRejected
	uploads.details["u2"] = done

	list, pagination, err := svc.ListPending(context.Background(), models.CourseUploadFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestApprovalServiceApproveRegistration(t *testing.T) {
	svc, _, regs, notifier := newApprovalFixture()

	result, err := svc.ApproveRegistration(context.Background(), "r1", "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Transitioned)
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusApproved}, regs.applied)
	assert.Len(t, notifier.dispatched, 1)
}

func TestApprovalServiceApproveRegistrationNotSubmitted(t *testing.T) {
	svc, _, regs, _ := newApprovalFixture()
	r := regs.registrations["r1"]
	r.Status = models.RegistrationStatusDraft
	regs.registrations["r1"] = r

	_, err := svc.ApproveRegistration(context.Background(), "r1", "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceApproveRegistrationRace(t *testing.T) {
	svc, _, regs, notifier := newApprovalFixture()
	regs.raced = true

	_, err := svc.ApproveRegistration(context.Background(), "r1", "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.dispatched)
}

func TestApprovalServiceRejectRegistration(t *testing.T) {
	svc, _, regs, notifier := newApprovalFixture()

	result, err := svc.RejectRegistration(context.Background(), "r1", "admin", RejectRequest{Reason: "incomplete records"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Transitioned)
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusRejected}, regs.applied)
	require.Len(t, notifier.dispatched, 1)
	assert.Contains(t, notifier.dispatched[0], "rejected")
}

func TestApprovalServiceRejectRegistrationFinalized(t *testing.T) {
	svc, _, regs, _ := newApprovalFixture()
	r := regs.registrations["r1"]
	r.Status = models.RegistrationStatusRejected
	regs.registrations["r1"] = r

	_, err := svc.RejectRegistration(context.Background(), "r1", "admin", RejectRequest{Reason: "late"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}
