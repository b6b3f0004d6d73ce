package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniportal/registrar-api/internal/models"
)

// CourseRepository handles persistence of courses, departments and programs.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
LEFT JOIN departments d ON d.id = c.department_id`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.code) LIKE $%d OR LOWER(c.title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.HasSeats {
		conditions = append(conditions, "c.current_students < c.max_students")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":       "c.code",
		"title":      "c.title",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT c.id, c.code, c.title, c.description, c.credits, c.department_id, c.max_students, c.current_students, c.is_active, c.created_at, c.updated_at,
        d.name AS department_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, title, description, credits, department_id, max_students, current_students, is_active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Prerequisites returns the prerequisite course codes declared by a course.
func (r *CourseRepository) Prerequisites(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT prerequisite_code FROM course_prerequisites WHERE course_id = $1 ORDER BY prerequisite_code`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, courseID); err != nil {
		return nil, fmt.Errorf("load prerequisites: %w", err)
	}
	return codes, nil
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, title, description, credits, department_id, max_students, current_students, is_active, created_at, updated_at)
        VALUES (:id, :code, :title, :description, :credits, :department_id, :max_students, :current_students, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update updates mutable course fields. The seat counter is excluded: it only
// moves through claim and release.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, credits = :credits, department_id = :department_id, max_students = :max_students, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetPrerequisites replaces the prerequisite list for a course.
func (r *CourseRepository) SetPrerequisites(ctx context.Context, courseID string, codes []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, courseID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear prerequisites: %w", err)
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO course_prerequisites (course_id, prerequisite_code) VALUES ($1, $2)`, courseID, code); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert prerequisite: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prerequisites: %w", err)
	}
	return nil
}

// claimSeatTx atomically claims one seat inside an existing transaction. The
// conditional update keeps current_students from ever exceeding max_students
// under concurrent registrations.
func claimSeatTx(ctx context.Context, tx *sqlx.Tx, courseID string) (bool, error) {
	const query = `UPDATE courses SET current_students = current_students + 1, updated_at = $2 WHERE id = $1 AND current_students < max_students`
	res, err := tx.ExecContext(ctx, query, courseID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim seat result: %w", err)
	}
	return affected == 1, nil
}

// releaseSeatTx returns one seat inside an existing transaction. The floor
// guard keeps the counter from going negative if accounting ever drifts.
func releaseSeatTx(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	const query = `UPDATE courses SET current_students = current_students - 1, updated_at = $2 WHERE id = $1 AND current_students > 0`
	if _, err := tx.ExecContext(ctx, query, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// ListDepartments returns all departments ordered by code.
func (r *CourseRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM departments ORDER BY code`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindDepartment returns a department by ID.
func (r *CourseRepository) FindDepartment(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// CreateDepartment persists a department.
func (r *CourseRepository) CreateDepartment(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if department.CreatedAt.IsZero() {
		department.CreatedAt = now
	}
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, code, name, created_at, updated_at) VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// FindProgram returns a program with its member course IDs.
func (r *CourseRepository) FindProgram(ctx context.Context, id string) (*models.ProgramDetail, error) {
	const query = `SELECT id, code, name, department_id, degree_level, created_at, updated_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	detail := &models.ProgramDetail{Program: program}
	const coursesQuery = `SELECT course_id FROM program_courses WHERE program_id = $1`
	if err := r.db.SelectContext(ctx, &detail.CourseIDs, coursesQuery, id); err != nil {
		return nil, fmt.Errorf("load program courses: %w", err)
	}
	return detail, nil
}

// ProgramIncludesCourse reports whether a course belongs to a program.
func (r *CourseRepository) ProgramIncludesCourse(ctx context.Context, programID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM program_courses WHERE program_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, programID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program membership: %w", err)
	}
	return true, nil
}

// ListPrograms returns all programs ordered by code.
func (r *CourseRepository) ListPrograms(ctx context.Context) ([]models.Program, error) {
	const query = `SELECT id, code, name, department_id, degree_level, created_at, updated_at FROM programs ORDER BY code`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// CreateProgram persists a program and its course list.
func (r *CourseRepository) CreateProgram(ctx context.Context, program *models.Program, courseIDs []string) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO programs (id, code, name, department_id, degree_level, created_at, updated_at) VALUES (:id, :code, :name, :department_id, :degree_level, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, program); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create program: %w", err)
	}
	for _, courseID := range courseIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO program_courses (program_id, course_id) VALUES ($1, $2)`, program.ID, courseID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert program course: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit program: %w", err)
	}
	return nil
}
