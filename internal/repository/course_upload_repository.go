package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniportal/registrar-api/internal/models"
)

// ErrNoSeats is returned when a seat claim fails because the course is at
// capacity.
var ErrNoSeats = errors.New("course at capacity")

// CourseUploadRepository handles persistence of course uploads and the seat
// accounting paired with them.
type CourseUploadRepository struct {
	db *sqlx.DB
}

// NewCourseUploadRepository constructs the repository.
func NewCourseUploadRepository(db *sqlx.DB) *CourseUploadRepository {
	return &CourseUploadRepository{db: db}
}

const uploadColumns = `cu.id, cu.registration_id, cu.course_id, cu.semester_id, cu.student_id, cu.status,
        cu.approved_by_id, cu.approved_at, cu.rejected_by_id, cu.rejected_at, cu.rejection_reason, cu.created_at, cu.updated_at`

// List returns course uploads filtered by the provided criteria.
func (r *CourseUploadRepository) List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error) {
	base := `FROM course_uploads cu
LEFT JOIN courses c ON c.id = cu.course_id
LEFT JOIN users u ON u.id = cu.student_id`
	var conditions []string
	var args []interface{}

	if filter.RegistrationID != "" {
		conditions = append(conditions, fmt.Sprintf("cu.registration_id = $%d", len(args)+1))
		args = append(args, filter.RegistrationID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("cu.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cu.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("cu.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("cu.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "cu.created_at",
		"course_code":  "c.code",
		"student_name": "u.full_name",
		"status":       "cu.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "cu.created_at"
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

	query := fmt.Sprintf(`SELECT %s,
        c.code AS course_code, c.title AS course_title, c.credits,
        u.full_name AS student_name, u.email AS student_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, uploadColumns, base+clause, orderBy, order, size, offset)

	var uploads []models.CourseUploadDetail
	if err := r.db.SelectContext(ctx, &uploads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list course uploads: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count course uploads: %w", err)
	}
	return uploads, total, nil
}

// FindByID returns a course upload by its ID.
func (r *CourseUploadRepository) FindByID(ctx context.Context, id string) (*models.CourseUpload, error) {
	const query = `SELECT id, registration_id, course_id, semester_id, student_id, status, approved_by_id, approved_at, rejected_by_id, rejected_at, rejection_reason, created_at, updated_at
        FROM course_uploads WHERE id = $1`
	var upload models.CourseUpload
	if err := r.db.GetContext(ctx, &upload, query, id); err != nil {
		return nil, err
	}
	return &upload, nil
}

// FindDetailByID returns an upload with course and student info.
func (r *CourseUploadRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseUploadDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        c.code AS course_code, c.title AS course_title, c.credits,
        u.full_name AS student_name, u.email AS student_email
        FROM course_uploads cu
        LEFT JOIN courses c ON c.id = cu.course_id
        LEFT JOIN users u ON u.id = cu.student_id
        WHERE cu.id = $1`, uploadColumns)
	var detail models.CourseUploadDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether the student already holds a non-rejected upload
// for the course and semester. Rejected uploads do not block re-registration.
func (r *CourseUploadRepository) ExistsActive(ctx context.Context, studentID, courseID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM course_uploads WHERE student_id = $1 AND course_id = $2 AND semester_id = $3 AND status <> $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, semesterID, models.UploadStatusRejected); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate upload: %w", err)
	}
	return true, nil
}

// CountActiveForSemester returns how many non-rejected uploads the student has
// in a semester, for the per-semester course limit.
func (r *CourseUploadRepository) CountActiveForSemester(ctx context.Context, studentID, semesterID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_uploads WHERE student_id = $1 AND semester_id = $2 AND status <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, semesterID, models.UploadStatusRejected); err != nil {
		return 0, fmt.Errorf("count semester uploads: %w", err)
	}
	return count, nil
}

// CreateWithSeatClaim inserts the upload and claims one course seat as a
// single transaction. The conditional seat update and the insert commit or
// roll back together; a full course returns ErrNoSeats with no writes.
func (r *CourseUploadRepository) CreateWithSeatClaim(ctx context.Context, upload *models.CourseUpload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	upload.UpdatedAt = now
	if upload.Status == "" {
		upload.Status = models.UploadStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	claimed, err := claimSeatTx(ctx, tx, upload.CourseID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if !claimed {
		tx.Rollback() //nolint:errcheck
		return ErrNoSeats
	}
	const query = `INSERT INTO course_uploads (id, registration_id, course_id, semester_id, student_id, status, created_at, updated_at)
        VALUES (:id, :registration_id, :course_id, :semester_id, :student_id, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, upload); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create course upload: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course upload: %w", err)
	}
	return nil
}

// Approve finalizes a PENDING upload as APPROVED. The status guard makes the
// transition atomic; it returns false when the upload was not PENDING.
func (r *CourseUploadRepository) Approve(ctx context.Context, id, approverID string) (bool, error) {
	const query = `UPDATE course_uploads SET status = $2, approved_by_id = $3, approved_at = $4, updated_at = $4
        WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.UploadStatusApproved, approverID, time.Now().UTC(), models.UploadStatusPending)
	if err != nil {
		return false, fmt.Errorf("approve course upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve course upload result: %w", err)
	}
	return affected == 1, nil
}

// BulkDecision identifies one upload transitioned by a bulk approval, with
// the student and course info needed for post-commit notifications.
type BulkDecision struct {
	StudentID   string `db:"student_id"`
	SemesterID  string `db:"semester_id"`
	CourseCode  string `db:"course_code"`
	CourseTitle string `db:"course_title"`
}

// BulkApprove approves every PENDING upload among ids, silently skipping the
// rest, and returns one row per upload actually transitioned.
func (r *CourseUploadRepository) BulkApprove(ctx context.Context, ids []string, approverID string) ([]BulkDecision, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := []interface{}{models.UploadStatusApproved, approverID, time.Now().UTC(), models.UploadStatusPending}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE course_uploads cu SET status = $1, approved_by_id = $2, approved_at = $3, updated_at = $3
        FROM courses c
        WHERE c.id = cu.course_id AND cu.status = $4 AND cu.id IN (%s)
        RETURNING cu.student_id, cu.semester_id, c.code AS course_code, c.title AS course_title`, strings.Join(placeholders, ","))
	var decisions []BulkDecision
	if err := r.db.SelectContext(ctx, &decisions, query, args...); err != nil {
		return nil, fmt.Errorf("bulk approve uploads: %w", err)
	}
	return decisions, nil
}

// RejectWithSeatRelease finalizes a PENDING upload as REJECTED and releases
// its seat in the same transaction. It returns false when the upload was not
// PENDING.
func (r *CourseUploadRepository) RejectWithSeatRelease(ctx context.Context, id, approverID, reason, courseID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	const query = `UPDATE course_uploads SET status = $2, rejected_by_id = $3, rejected_at = $4, rejection_reason = $5, updated_at = $4
        WHERE id = $1 AND status = $6`
	res, err := tx.ExecContext(ctx, query, id, models.UploadStatusRejected, approverID, time.Now().UTC(), reason, models.UploadStatusPending)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("reject course upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("reject course upload result: %w", err)
	}
	if affected != 1 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}
	if err := releaseSeatTx(ctx, tx, courseID); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rejection: %w", err)
	}
	return true, nil
}

// DeleteWithSeatRelease removes an upload and, when it held a counted seat,
// releases that seat in the same transaction.
func (r *CourseUploadRepository) DeleteWithSeatRelease(ctx context.Context, id, courseID string, releaseSeat bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_uploads WHERE id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete course upload: %w", err)
	}
	if releaseSeat {
		if err := releaseSeatTx(ctx, tx, courseID); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upload deletion: %w", err)
	}
	return nil
}
