package models

import "time"

// SystemMetrics is an aggregated runtime snapshot for the admin dashboard.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// UploadStatusCount aggregates course uploads by status for a semester.
type UploadStatusCount struct {
	Status UploadStatus `db:"status" json:"status"`
	Count  int          `db:"count" json:"count"`
}

// DepartmentUploadCount aggregates course uploads per department.
type DepartmentUploadCount struct {
	DepartmentID   string `db:"department_id" json:"department_id"`
	DepartmentName string `db:"department_name" json:"department_name"`
	Pending        int    `db:"pending" json:"pending"`
	Approved       int    `db:"approved" json:"approved"`
	Rejected       int    `db:"rejected" json:"rejected"`
}

// RegistrationOverview is the dashboard summary for a semester.
type RegistrationOverview struct {
	SemesterID    string                  `json:"semester_id"`
	TotalUploads  int                     `json:"total_uploads"`
	ByStatus      []UploadStatusCount     `json:"by_status"`
	ByDepartment  []DepartmentUploadCount `json:"by_department"`
	Registrations int                     `json:"registrations"`
}
