package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/uniportal/registrar-api/internal/models"
)

// StatsRepository aggregates reporting queries for the registrar dashboard.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// UploadCountsByStatus returns course upload counts grouped by status for a semester.
func (r *StatsRepository) UploadCountsByStatus(ctx context.Context, semesterID string) ([]models.UploadStatusCount, error) {
	const query = `SELECT cu.status, COUNT(*) AS count
        FROM course_uploads cu
        JOIN registrations reg ON reg.id = cu.registration_id
        WHERE reg.semester_id = $1
        GROUP BY cu.status
        ORDER BY cu.status`
	var counts []models.UploadStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, semesterID); err != nil {
		return nil, fmt.Errorf("count uploads by status: %w", err)
	}
	return counts, nil
}

// UploadCountsByDepartment returns per-department upload counts for a semester.
func (r *StatsRepository) UploadCountsByDepartment(ctx context.Context, semesterID string) ([]models.DepartmentUploadCount, error) {
	const query = `SELECT d.id AS department_id, d.name AS department_name,
            COUNT(*) FILTER (WHERE cu.status = 'PENDING')  AS pending,
            COUNT(*) FILTER (WHERE cu.status = 'APPROVED') AS approved,
            COUNT(*) FILTER (WHERE cu.status = 'REJECTED') AS rejected
        FROM course_uploads cu
        JOIN registrations reg ON reg.id = cu.registration_id
        JOIN courses c ON c.id = cu.course_id
        JOIN departments d ON d.id = c.department_id
        WHERE reg.semester_id = $1
        GROUP BY d.id, d.name
        ORDER BY d.name`
	var counts []models.DepartmentUploadCount
	if err := r.db.SelectContext(ctx, &counts, query, semesterID); err != nil {
		return nil, fmt.Errorf("count uploads by department: %w", err)
	}
	return counts, nil
}

// RegistrationCount returns the number of registrations created for a semester.
func (r *StatsRepository) RegistrationCount(ctx context.Context, semesterID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM registrations WHERE semester_id = $1`, semesterID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}
