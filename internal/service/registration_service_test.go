package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/internal/repository"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type mockRegistrationRepo struct {
	registrations map[string]models.Registration
	open          map[string]models.Registration
	uploadCounts  map[string]int
	created       *models.Registration
	statusMoves   []string
	cancelled     []string
	cancelResult  bool
}

func (m *mockRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	return nil, 0, nil
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if r, ok := m.registrations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	if r, ok := m.registrations[id]; ok {
		return &models.RegistrationDetail{Registration: r}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindOpenByStudentAndSemester(ctx context.Context, studentID, semesterID string) (*models.Registration, error) {
	if r, ok := m.open[studentID+semesterID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) Create(ctx context.Context, registration *models.Registration) error {
	if m.registrations == nil {
		m.registrations = make(map[string]models.Registration)
	}
	if registration.ID == "" {
		registration.ID = "new-reg"
	}
	m.registrations[registration.ID] = *registration
	m.created = registration
	return nil
}

func (m *mockRegistrationRepo) UpdateStatus(ctx context.Context, id string, from, to models.RegistrationStatus) (bool, error) {
	r, ok := m.registrations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	m.registrations[id] = r
	m.statusMoves = append(m.statusMoves, id)
	return true, nil
}

func (m *mockRegistrationRepo) CancelWithSeatRelease(ctx context.Context, id string) (bool, error) {
	m.cancelled = append(m.cancelled, id)
	if r, ok := m.registrations[id]; ok && m.cancelResult {
		r.Status = models.RegistrationStatusCancelled
		m.registrations[id] = r
	}
	return m.cancelResult, nil
}

func (m *mockRegistrationRepo) UploadCount(ctx context.Context, id string) (int, error) {
	return m.uploadCounts[id], nil
}

type mockUploadRepo struct {
	uploads     map[string]models.CourseUpload
	duplicates  map[string]bool
	activeCount int
	noSeats     bool
	created     *models.CourseUpload
	deleted     []string
	releasedID  string
}

func (m *mockUploadRepo) List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error) {
	return nil, 0, nil
}

func (m *mockUploadRepo) FindByID(ctx context.Context, id string) (*models.CourseUpload, error) {
	if u, ok := m.uploads[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUploadRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseUploadDetail, error) {
	if u, ok := m.uploads[id]; ok {
		return &models.CourseUploadDetail{CourseUpload: u}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUploadRepo) ExistsActive(ctx context.Context, studentID, courseID, semesterID string) (bool, error) {
	return m.duplicates[studentID+courseID+semesterID], nil
}

func (m *mockUploadRepo) CountActiveForSemester(ctx context.Context, studentID, semesterID string) (int, error) {
	return m.activeCount, nil
}

func (m *mockUploadRepo) CreateWithSeatClaim(ctx context.Context, upload *models.CourseUpload) error {
	if m.noSeats {
		return repository.ErrNoSeats
	}
	if m.uploads == nil {
		m.uploads = make(map[string]models.CourseUpload)
	}
	if upload.ID == "" {
		upload.ID = "new-upload"
	}
	m.uploads[upload.ID] = *upload
	m.created = upload
	return nil
}

func (m *mockUploadRepo) DeleteWithSeatRelease(ctx context.Context, id, courseID string, releaseSeat bool) error {
	m.deleted = append(m.deleted, id)
	if releaseSeat {
		m.releasedID = courseID
	}
	delete(m.uploads, id)
	return nil
}

type mockCourseCatalog struct {
	courses       map[string]models.Course
	prerequisites map[string][]string
	programCourse map[string]bool
}

func (m *mockCourseCatalog) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseCatalog) Prerequisites(ctx context.Context, courseID string) ([]string, error) {
	return m.prerequisites[courseID], nil
}

func (m *mockCourseCatalog) ProgramIncludesCourse(ctx context.Context, programID, courseID string) (bool, error) {
	return m.programCourse[programID+courseID], nil
}

type mockSemesterReader struct {
	semesters map[string]models.Semester
}

func (m *mockSemesterReader) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentDirectory struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentDirectory) FindStudentDetail(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockNotifier struct {
	dispatched []string
}

func (m *mockNotifier) Dispatch(ctx context.Context, userID string, notificationType models.NotificationType, title, message string) error {
	m.dispatched = append(m.dispatched, title)
	return nil
}

type mockStatsInvalidator struct {
	semesters []string
}

func (m *mockStatsInvalidator) InvalidateSemester(ctx context.Context, semesterID string) {
	m.semesters = append(m.semesters, semesterID)
}

func openSemester() models.Semester {
	now := time.Now().UTC()
	return models.Semester{
		ID:                "sem1",
		Name:              "Fall 2026",
		RegistrationOpen:  now.Add(-24 * time.Hour),
		RegistrationClose: now.Add(24 * time.Hour),
		IsActive:          true,
	}
}

func activeStudent(id string) *models.StudentDetail {
	return &models.StudentDetail{User: models.User{ID: id, Role: models.RoleStudent, Active: true}}
}

func newRegistrationFixture() (*RegistrationService, *mockRegistrationRepo, *mockUploadRepo, *mockCourseCatalog, *mockStudentDirectory, *mockNotifier) {
	regs := &mockRegistrationRepo{
		registrations: map[string]models.Registration{
			"r1": {ID: "r1", StudentID: "s1", SemesterID: "sem1", Status: models.RegistrationStatusDraft},
		},
		cancelResult: true,
	}
	uploads := &mockUploadRepo{}
	courses := &mockCourseCatalog{
		courses: map[string]models.Course{
			"c1": {ID: "c1", Code: "CS101", Title: "Intro", MaxStudents: 30, CurrentStudents: 10, IsActive: true},
		},
	}
	semesters := &mockSemesterReader{semesters: map[string]models.Semester{"sem1": openSemester()}}
	students := &mockStudentDirectory{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	notifier := &mockNotifier{}
	svc := NewRegistrationService(regs, uploads, courses, semesters, students, notifier, nil, 6, validator.New(), zap.NewNop())
	return svc, regs, uploads, courses, students, notifier
}

func TestRegistrationServiceCreate(t *testing.T) {
	svc, regs, _, _, _, _ := newRegistrationFixture()

	detail, err := svc.Create(context.Background(), "s1", CreateRegistrationRequest{SemesterID: "sem1"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusDraft, detail.Status)
	assert.NotNil(t, regs.created)
}

func TestRegistrationServiceCreateWindowClosed(t *testing.T) {
	svc, _, _, _, _, _ := newRegistrationFixture()
	closed := openSemester()
	closed.RegistrationClose = time.Now().UTC().Add(-time.Hour)
	svc.semesters = &mockSemesterReader{semesters: map[string]models.Semester{"sem1": closed}}

	_, err := svc.Create(context.Background(), "s1", CreateRegistrationRequest{SemesterID: "sem1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCreateDuplicateOpen(t *testing.T) {
	svc, regs, _, _, _, _ := newRegistrationFixture()
	regs.open = map[string]models.Registration{"s1sem1": {ID: "r1"}}

	_, err := svc.Create(context.Background(), "s1", CreateRegistrationRequest{SemesterID: "sem1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceAddCourse(t *testing.T) {
	svc, _, uploads, _, _, notifier := newRegistrationFixture()

	detail, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusPending, detail.Status)
	require.NotNil(t, uploads.created)
	assert.Equal(t, "sem1", uploads.created.SemesterID)
	assert.Len(t, notifier.dispatched, 1)
}

func TestRegistrationServiceAddCourseFull(t *testing.T) {
	svc, _, _, courses, _, _ := newRegistrationFixture()
	full := courses.courses["c1"]
	full.CurrentStudents = full.MaxStudents
	courses.courses["c1"] = full

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceAddCourseSeatRace(t *testing.T) {
	svc, _, uploads, _, _, notifier := newRegistrationFixture()
	uploads.noSeats = true

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.dispatched)
}

func TestRegistrationServiceAddCourseDuplicate(t *testing.T) {
	svc, _, uploads, _, _, _ := newRegistrationFixture()
	uploads.duplicates = map[string]bool{"s1c1sem1": true}

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceAddCourseMissingPrerequisite(t *testing.T) {
	svc, _, _, courses, students, _ := newRegistrationFixture()
	courses.prerequisites = map[string][]string{"c1": {"MATH100"}}
	students.students["s1"].History = []string{"PHYS100"}

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "MATH100")
}

func TestRegistrationServiceAddCoursePrerequisiteSatisfied(t *testing.T) {
	svc, _, _, courses, students, _ := newRegistrationFixture()
	courses.prerequisites = map[string][]string{"c1": {"MATH100"}}
	students.students["s1"].History = []string{"MATH100"}

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.NoError(t, err)
}

func TestRegistrationServiceAddCourseLimitReached(t *testing.T) {
	svc, _, uploads, _, _, _ := newRegistrationFixture()
	uploads.activeCount = 6

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "limit")
}

func TestRegistrationServiceAddCourseOutsideProgram(t *testing.T) {
	svc, _, _, _, students, _ := newRegistrationFixture()
	program := "p1"
	students.students["s1"].Profile = &models.StudentProfile{UserID: "s1", ProgramID: &program}

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceAddCourseProgramMember(t *testing.T) {
	svc, _, _, courses, students, _ := newRegistrationFixture()
	program := "p1"
	students.students["s1"].Profile = &models.StudentProfile{UserID: "s1", ProgramID: &program}
	courses.programCourse = map[string]bool{"p1c1": true}

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.NoError(t, err)
}

func TestRegistrationServiceAddCourseWrongStudent(t *testing.T) {
	svc, _, _, _, students, _ := newRegistrationFixture()
	students.students["s2"] = activeStudent("s2")

	_, err := svc.AddCourse(context.Background(), "r1", "s2", AddCourseRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceRemoveCourseReleasesSeat(t *testing.T) {
	svc, _, uploads, _, _, _ := newRegistrationFixture()
	uploads.uploads = map[string]models.CourseUpload{
		"u1": {ID: "u1", RegistrationID: "r1", CourseID: "c1", StudentID: "s1", Status: models.UploadStatusPending},
	}

	err := svc.RemoveCourse(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Contains(t, uploads.deleted, "u1")
	assert.Equal(t, "c1", uploads.releasedID)
}

func TestRegistrationServiceRemoveRejectedCourseKeepsSeats(t *testing.T) {
	svc, _, uploads, _, _, _ := newRegistrationFixture()
	uploads.uploads = map[string]models.CourseUpload{
		"u1": {ID: "u1", RegistrationID: "r1", CourseID: "c1", StudentID: "s1", Status: models.UploadStatusRejected},
	}

	err := svc.RemoveCourse(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, uploads.releasedID)
}

func TestRegistrationServiceRemoveCourseFinalizedParent(t *testing.T) {
	svc, regs, uploads, _, _, _ := newRegistrationFixture()
	r := regs.registrations["r1"]
	r.Status = models.RegistrationStatusApproved
	regs.registrations["r1"] = r
	uploads.uploads = map[string]models.CourseUpload{
		"u1": {ID: "u1", RegistrationID: "r1", CourseID: "c1", StudentID: "s1", Status: models.UploadStatusApproved},
	}

	err := svc.RemoveCourse(context.Background(), "u1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, uploads.deleted)
	assert.Empty(t, uploads.releasedID)
}

func TestRegistrationServiceAddCourseInvalidatesOverview(t *testing.T) {
	regs := &mockRegistrationRepo{
		registrations: map[string]models.Registration{
			"r1": {ID: "r1", StudentID: "s1", SemesterID: "sem1", Status: models.RegistrationStatusDraft},
		},
	}
	uploads := &mockUploadRepo{}
	courses := &mockCourseCatalog{
		courses: map[string]models.Course{
			"c1": {ID: "c1", Code: "CS101", Title: "Intro", MaxStudents: 30, CurrentStudents: 10, IsActive: true},
		},
	}
	semesters := &mockSemesterReader{semesters: map[string]models.Semester{"sem1": openSemester()}}
	students := &mockStudentDirectory{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	stats := &mockStatsInvalidator{}
	svc := NewRegistrationService(regs, uploads, courses, semesters, students, &mockNotifier{}, stats, 6, validator.New(), zap.NewNop())

	_, err := svc.AddCourse(context.Background(), "r1", "s1", AddCourseRequest{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sem1"}, stats.semesters)

	require.NoError(t, svc.RemoveCourse(context.Background(), "new-upload", "s1"))
	assert.Equal(t, []string{"sem1", "sem1"}, stats.semesters)
}

func TestRegistrationServiceSubmit(t *testing.T) {
	svc, regs, _, _, _, notifier := newRegistrationFixture()
	regs.uploadCounts = map[string]int{"r1": 2}

	detail, err := svc.Submit(context.Background(), "r1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusPending, detail.Status)
	assert.Len(t, notifier.dispatched, 1)
}

func TestRegistrationServiceSubmitEmpty(t *testing.T) {
	svc, _, _, _, _, _ := newRegistrationFixture()

	_, err := svc.Submit(context.Background(), "r1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceSubmitNotDraft(t *testing.T) {
	svc, regs, _, _, _, _ := newRegistrationFixture()
	r := regs.registrations["r1"]
	r.Status = models.RegistrationStatusPending
	regs.registrations["r1"] = r
	regs.uploadCounts = map[string]int{"r1": 1}

	_, err := svc.Submit(context.Background(), "r1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCancel(t *testing.T) {
	svc, regs, _, _, _, _ := newRegistrationFixture()

	err := svc.Cancel(context.Background(), "r1", "s1")
	require.NoError(t, err)
	assert.Contains(t, regs.cancelled, "r1")
}

func TestRegistrationServiceCancelFinalized(t *testing.T) {
	svc, regs, _, _, _, _ := newRegistrationFixture()
	r := regs.registrations["r1"]
	r.Status = models.RegistrationStatusApproved
	regs.registrations["r1"] = r

	err := svc.Cancel(context.Background(), "r1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, regs.cancelled)
}
