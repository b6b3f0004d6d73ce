package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/internal/repository"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
)

type registrationStore interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	FindOpenByStudentAndSemester(ctx context.Context, studentID, semesterID string) (*models.Registration, error)
	Create(ctx context.Context, registration *models.Registration) error
	UpdateStatus(ctx context.Context, id string, from, to models.RegistrationStatus) (bool, error)
	CancelWithSeatRelease(ctx context.Context, id string) (bool, error)
	UploadCount(ctx context.Context, id string) (int, error)
}

type uploadStore interface {
	List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseUpload, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseUploadDetail, error)
	ExistsActive(ctx context.Context, studentID, courseID, semesterID string) (bool, error)
	CountActiveForSemester(ctx context.Context, studentID, semesterID string) (int, error)
	CreateWithSeatClaim(ctx context.Context, upload *models.CourseUpload) error
	DeleteWithSeatRelease(ctx context.Context, id, courseID string, releaseSeat bool) error
}

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Prerequisites(ctx context.Context, courseID string) ([]string, error)
	ProgramIncludesCourse(ctx context.Context, programID, courseID string) (bool, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type studentDirectory interface {
	FindStudentDetail(ctx context.Context, id string) (*models.StudentDetail, error)
}

type notifier interface {
	Dispatch(ctx context.Context, userID string, notificationType models.NotificationType, title, message string) error
}

type statsInvalidator interface {
	InvalidateSemester(ctx context.Context, semesterID string)
}

// CreateRegistrationRequest opens a registration for a semester.
type CreateRegistrationRequest struct {
	SemesterID string `json:"semester_id" validate:"required"`
}

// AddCourseRequest attaches a course to a registration.
type AddCourseRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// RegistrationService orchestrates the registration lifecycle: opening a
// draft, attaching courses through the eligibility checks, withdrawal,
// submission and cancellation.
type RegistrationService struct {
	registrations registrationStore
	uploads       uploadStore
	courses       courseCatalog
	semesters     semesterReader
	students      studentDirectory
	notifications notifier
	stats         statsInvalidator
	courseLimit   int
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRegistrationService constructs RegistrationService. courseLimit caps
// non-rejected uploads per student per semester; non-positive values fall back
// to the default policy of 6.
func NewRegistrationService(registrations registrationStore, uploads uploadStore, courses courseCatalog, semesters semesterReader, students studentDirectory, notifications notifier, stats statsInvalidator, courseLimit int, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if courseLimit <= 0 {
		courseLimit = 6
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		registrations: registrations,
		uploads:       uploads,
		courses:       courses,
		semesters:     semesters,
		students:      students,
		notifications: notifications,
		stats:         stats,
		courseLimit:   courseLimit,
		validator:     validate,
		logger:        logger,
	}
}

// List returns registrations with pagination metadata.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	registrations, total, err := s.registrations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
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
	return registrations, pagination, nil
}

// Get returns a registration with student and semester info.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	detail, err := s.registrations.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return detail, nil
}

// Uploads returns the course uploads attached to a registration.
func (s *RegistrationService) Uploads(ctx context.Context, registrationID string) ([]models.CourseUploadDetail, error) {
	uploads, _, err := s.uploads.List(ctx, models.CourseUploadFilter{RegistrationID: registrationID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registration uploads")
	}
	return uploads, nil
}

// Create opens a DRAFT registration for the student in a semester. A student
// holds at most one open registration per semester; the registration window of
// the semester must be open.
func (s *RegistrationService) Create(ctx context.Context, studentID string, req CreateRegistrationRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	student, err := s.students.FindStudentDetail(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "student account inactive")
	}
	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	now := time.Now().UTC()
	if now.Before(semester.RegistrationOpen) || now.After(semester.RegistrationClose) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "registration window is closed")
	}
	if _, err := s.registrations.FindOpenByStudentAndSemester(ctx, studentID, req.SemesterID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration already open for this semester")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open registration")
	}

	registration := &models.Registration{StudentID: studentID, SemesterID: req.SemesterID, Status: models.RegistrationStatusDraft}
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	s.invalidateStats(ctx, req.SemesterID)
	return s.registrations.FindDetailByID(ctx, registration.ID)
}

// AddCourse runs the ordered eligibility checks and, when all pass, creates a
// PENDING course upload while claiming one seat atomically. The in-memory
// capacity check is a fast path; the conditional seat update inside
// CreateWithSeatClaim is the authoritative one under concurrency.
func (s *RegistrationService) AddCourse(ctx context.Context, registrationID, studentID string, req AddCourseRequest) (*models.CourseUploadDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	if registration.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "registration already finalized")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is not open for registration")
	}
	if course.CurrentStudents >= course.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrCourseFull, "")
	}

	duplicate, err := s.uploads.ExistsActive(ctx, studentID, req.CourseID, registration.SemesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate registration")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course already registered for this semester")
	}

	prerequisites, err := s.courses.Prerequisites(ctx, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	student, err := s.students.FindStudentDetail(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student history")
	}
	completed := make(map[string]bool, len(student.History))
	for _, code := range student.History {
		completed[code] = true
	}
	for _, code := range prerequisites {
		if !completed[code] {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("missing prerequisite %s", code))
		}
	}

	count, err := s.uploads.CountActiveForSemester(ctx, studentID, registration.SemesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count semester registrations")
	}
	if count >= s.courseLimit {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("semester course limit of %d reached", s.courseLimit))
	}

	if student.Profile != nil && student.Profile.ProgramID != nil {
		member, err := s.courses.ProgramIncludesCourse(ctx, *student.Profile.ProgramID, req.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program membership")
		}
		if !member {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course is not part of the declared program")
		}
	}

	upload := &models.CourseUpload{
		RegistrationID: registrationID,
		CourseID:       req.CourseID,
		SemesterID:     registration.SemesterID,
		StudentID:      studentID,
		Status:         models.UploadStatusPending,
	}
	if err := s.uploads.CreateWithSeatClaim(ctx, upload); err != nil {
		if errors.Is(err, repository.ErrNoSeats) {
			return nil, appErrors.Clone(appErrors.ErrCourseFull, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course upload")
	}
	s.invalidateStats(ctx, registration.SemesterID)

	s.notify(ctx, studentID, models.NotificationTypeRegistration,
		"Course registration pending",
		fmt.Sprintf("Your registration for %s %s is pending approval.", course.Code, course.Title))

	detail, err := s.uploads.FindDetailByID(ctx, upload.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload detail")
	}
	return detail, nil
}

// RemoveCourse withdraws a course upload while its parent registration is
// still DRAFT or PENDING. The upload row is deleted and its seat released only
// when the upload held a counted seat.
func (s *RegistrationService) RemoveCourse(ctx context.Context, uploadID, studentID string) error {
	upload, err := s.uploads.FindByID(ctx, uploadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course upload not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course upload")
	}
	if upload.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "course upload belongs to another student")
	}
	registration, err := s.registrations.FindByID(ctx, upload.RegistrationID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrInvalidState, "registration already finalized")
	}
	if err := s.uploads.DeleteWithSeatRelease(ctx, uploadID, upload.CourseID, upload.Status.HoldsSeat()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw course")
	}
	s.invalidateStats(ctx, upload.SemesterID)
	return nil
}

// Submit moves a DRAFT registration with at least one course to PENDING.
func (s *RegistrationService) Submit(ctx context.Context, registrationID, studentID string) (*models.RegistrationDetail, error) {
	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	if registration.Status != models.RegistrationStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only draft registrations can be submitted")
	}
	count, err := s.registrations.UploadCount(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registration courses")
	}
	if count == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration has no courses")
	}
	moved, err := s.registrations.UpdateStatus(ctx, registrationID, models.RegistrationStatusDraft, models.RegistrationStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit registration")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "registration changed state, submit again")
	}

	s.notify(ctx, studentID, models.NotificationTypeRegistration,
		"Registration submitted",
		fmt.Sprintf("Your registration with %d course(s) was submitted for approval.", count))

	return s.registrations.FindDetailByID(ctx, registrationID)
}

// Cancel moves an open registration to CANCELLED, removing its uploads and
// returning every counted seat in one transaction.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, studentID string) error {
	registration, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	if registration.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrInvalidState, "registration already finalized")
	}
	cancelled, err := s.registrations.CancelWithSeatRelease(ctx, registrationID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel registration")
	}
	if !cancelled {
		return appErrors.Clone(appErrors.ErrInvalidState, "registration changed state, cancel again")
	}
	s.invalidateStats(ctx, registration.SemesterID)
	return nil
}

// notify dispatches a lifecycle notification after the triggering write has
// committed. Dispatch failures never fail the lifecycle operation.
func (s *RegistrationService) notify(ctx context.Context, userID string, notificationType models.NotificationType, title, message string) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Dispatch(ctx, userID, notificationType, title, message); err != nil {
		s.logger.Warn("failed to dispatch notification",
			zap.String("user_id", userID), zap.String("title", title), zap.Error(err))
	}
}

// invalidateStats drops the cached semester overview after a write that
// changes registration or upload counts.
func (s *RegistrationService) invalidateStats(ctx context.Context, semesterID string) {
	if s.stats == nil {
		return
	}
	s.stats.InvalidateSemester(ctx, semesterID)
}
