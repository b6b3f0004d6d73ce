package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniportal/registrar-api/internal/models"
)

// RegistrationRepository handles persistence of registrations as aggregate
// roots over their course uploads.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// List returns registrations filtered by the provided criteria.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := `FROM registrations reg
LEFT JOIN users u ON u.id = reg.student_id
LEFT JOIN semesters s ON s.id = reg.semester_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("reg.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("reg.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("reg.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "reg.created_at",
		"student_name": "u.full_name",
		"status":       "reg.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "reg.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT reg.id, reg.student_id, reg.semester_id, reg.status, reg.approved_by_id, reg.approved_at, reg.created_at, reg.updated_at,
        u.full_name AS student_name, u.email AS student_email, s.name AS semester_name, s.academic_year
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT id, student_id, semester_id, status, approved_by_id, approved_at, created_at, updated_at FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindDetailByID returns a registration with student and semester info.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	const query = `SELECT reg.id, reg.student_id, reg.semester_id, reg.status, reg.approved_by_id, reg.approved_at, reg.created_at, reg.updated_at,
        u.full_name AS student_name, u.email AS student_email, s.name AS semester_name, s.academic_year
        FROM registrations reg
        LEFT JOIN users u ON u.id = reg.student_id
        LEFT JOIN semesters s ON s.id = reg.semester_id
        WHERE reg.id = $1`
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindOpenByStudentAndSemester returns the student's non-terminal registration
// for a semester, if any.
func (r *RegistrationRepository) FindOpenByStudentAndSemester(ctx context.Context, studentID, semesterID string) (*models.Registration, error) {
	const query = `SELECT id, student_id, semester_id, status, approved_by_id, approved_at, created_at, updated_at
        FROM registrations WHERE student_id = $1 AND semester_id = $2 AND status IN ($3, $4) LIMIT 1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, studentID, semesterID, models.RegistrationStatusDraft, models.RegistrationStatusPending); err != nil {
		return nil, err
	}
	return &registration, nil
}

// Create persists a new registration record.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusDraft
	}
	const query = `INSERT INTO registrations (id, student_id, semester_id, status, approved_by_id, approved_at, created_at, updated_at)
        VALUES (:id, :student_id, :semester_id, :status, :approved_by_id, :approved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// UpdateStatus moves a registration between non-decision states. The guard on
// the current status keeps concurrent transitions from clobbering a terminal
// state; it returns false when no row matched.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, from, to models.RegistrationStatus) (bool, error) {
	const query = `UPDATE registrations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update registration status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update registration status result: %w", err)
	}
	return affected == 1, nil
}

// DecisionResult reports the outcome of a registration-level decision.
type DecisionResult struct {
	// Transitioned is the number of child uploads cascaded to the terminal
	// status.
	Transitioned int
	// StudentID is the owner to notify after commit.
	StudentID string
}

// ApplyDecision approves or rejects a registration and cascades the terminal
// status to every currently-PENDING child upload in one transaction. For
// rejections the seat held by each cascaded upload is released.
func (r *RegistrationRepository) ApplyDecision(ctx context.Context, id string, status models.RegistrationStatus, approverID string, reason *string) (*DecisionResult, error) {
	if status != models.RegistrationStatusApproved && status != models.RegistrationStatusRejected {
		return nil, fmt.Errorf("apply decision: unsupported status %s", status)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var studentID string
	const regQuery = `UPDATE registrations SET status = $2, approved_by_id = $3, approved_at = $4, updated_at = $4
        WHERE id = $1 AND status = $5 RETURNING student_id`
	if err := tx.GetContext(ctx, &studentID, regQuery, id, status, approverID, now, models.RegistrationStatusPending); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	var courseIDs []string
	if status == models.RegistrationStatusApproved {
		const cascade = `UPDATE course_uploads SET status = $2, approved_by_id = $3, approved_at = $4, updated_at = $4
            WHERE registration_id = $1 AND status = $5 RETURNING course_id`
		if err := tx.SelectContext(ctx, &courseIDs, cascade, id, models.UploadStatusApproved, approverID, now, models.UploadStatusPending); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("cascade approval: %w", err)
		}
	} else {
		const cascade = `UPDATE course_uploads SET status = $2, rejected_by_id = $3, rejected_at = $4, rejection_reason = $5, updated_at = $4
            WHERE registration_id = $1 AND status = $6 RETURNING course_id`
		if err := tx.SelectContext(ctx, &courseIDs, cascade, id, models.UploadStatusRejected, approverID, now, reason, models.UploadStatusPending); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("cascade rejection: %w", err)
		}
		for _, courseID := range courseIDs {
			if err := releaseSeatTx(ctx, tx, courseID); err != nil {
				tx.Rollback() //nolint:errcheck
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration decision: %w", err)
	}
	return &DecisionResult{Transitioned: len(courseIDs), StudentID: studentID}, nil
}

// CancelWithSeatRelease moves an open registration to CANCELLED, deletes its
// uploads and returns one seat per seat-holding upload in one transaction. It
// returns false when the registration was not DRAFT or PENDING.
func (r *RegistrationRepository) CancelWithSeatRelease(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	const query = `UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1 AND status IN ($4, $5)`
	res, err := tx.ExecContext(ctx, query, id, models.RegistrationStatusCancelled, time.Now().UTC(), models.RegistrationStatusDraft, models.RegistrationStatusPending)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("cancel registration result: %w", err)
	}
	if affected != 1 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	var held []string
	const heldQuery = `SELECT course_id FROM course_uploads WHERE registration_id = $1 AND status IN ($2, $3)`
	if err := tx.SelectContext(ctx, &held, heldQuery, id, models.UploadStatusPending, models.UploadStatusApproved); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("load held seats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_uploads WHERE registration_id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("delete registration uploads: %w", err)
	}
	for _, courseID := range held {
		if err := releaseSeatTx(ctx, tx, courseID); err != nil {
			tx.Rollback() //nolint:errcheck
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit registration cancel: %w", err)
	}
	return true, nil
}

// UploadCount returns the number of uploads referencing a registration.
func (r *RegistrationRepository) UploadCount(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_uploads WHERE registration_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count registration uploads: %w", err)
	}
	return count, nil
}
