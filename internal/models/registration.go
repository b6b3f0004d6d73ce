package models

import "time"

// RegistrationStatus represents the lifecycle of a registration.
type RegistrationStatus string

// Registration statuses. DRAFT may move to PENDING or CANCELLED; PENDING may
// move to APPROVED, REJECTED or CANCELLED. APPROVED, REJECTED and CANCELLED
// are terminal.
const (
	RegistrationStatusDraft     RegistrationStatus = "DRAFT"
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusApproved  RegistrationStatus = "APPROVED"
	RegistrationStatusRejected  RegistrationStatus = "REJECTED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions.
func (s RegistrationStatus) Terminal() bool {
	switch s {
	case RegistrationStatusApproved, RegistrationStatusRejected, RegistrationStatusCancelled:
		return true
	}
	return false
}

// Registration captures a student's enrollment intent for a semester. It is
// the aggregate root for its course uploads.
type Registration struct {
	ID           string             `db:"id" json:"id"`
	StudentID    string             `db:"student_id" json:"student_id"`
	SemesterID   string             `db:"semester_id" json:"semester_id"`
	Status       RegistrationStatus `db:"status" json:"status"`
	ApprovedByID *string            `db:"approved_by_id" json:"approved_by_id,omitempty"`
	ApprovedAt   *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail enriches a registration with student and semester info.
type RegistrationDetail struct {
	Registration
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	SemesterName string `db:"semester_name" json:"semester_name"`
	AcademicYear string `db:"academic_year" json:"academic_year"`
}

// RegistrationFilter provides filters for listing registrations.
type RegistrationFilter struct {
	StudentID  string
	SemesterID string
	Status     RegistrationStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// UploadStatus represents the lifecycle of a course upload.
type UploadStatus string

// Course upload statuses. PENDING moves to APPROVED or REJECTED, both
// terminal.
const (
	UploadStatusPending  UploadStatus = "PENDING"
	UploadStatusApproved UploadStatus = "APPROVED"
	UploadStatusRejected UploadStatus = "REJECTED"
)

// Terminal reports whether the upload status is final.
func (s UploadStatus) Terminal() bool {
	return s == UploadStatusApproved || s == UploadStatusRejected
}

// HoldsSeat reports whether an upload in this status counts against course
// capacity. Rejected uploads have released their seat.
func (s UploadStatus) HoldsSeat() bool {
	return s == UploadStatusPending || s == UploadStatusApproved
}

// CourseUpload is a single requested course within a registration,
// individually approvable and rejectable. StudentID duplicates the owning
// registration's student for query convenience.
type CourseUpload struct {
	ID              string       `db:"id" json:"id"`
	RegistrationID  string       `db:"registration_id" json:"registration_id"`
	CourseID        string       `db:"course_id" json:"course_id"`
	SemesterID      string       `db:"semester_id" json:"semester_id"`
	StudentID       string       `db:"student_id" json:"student_id"`
	Status          UploadStatus `db:"status" json:"status"`
	ApprovedByID    *string      `db:"approved_by_id" json:"approved_by_id,omitempty"`
	ApprovedAt      *time.Time   `db:"approved_at" json:"approved_at,omitempty"`
	RejectedByID    *string      `db:"rejected_by_id" json:"rejected_by_id,omitempty"`
	RejectedAt      *time.Time   `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseUploadDetail enriches an upload with course and student info.
type CourseUploadDetail struct {
	CourseUpload
	CourseCode   string `db:"course_code" json:"course_code"`
	CourseTitle  string `db:"course_title" json:"course_title"`
	Credits      int    `db:"credits" json:"credits"`
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// CourseUploadFilter provides filters for listing course uploads.
type CourseUploadFilter struct {
	RegistrationID string
	StudentID      string
	CourseID       string
	SemesterID     string
	DepartmentID   string
	Status         UploadStatus
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
