package models

import "time"

// SemesterTerm identifies which half of the academic year a semester covers.
type SemesterTerm string

const (
	SemesterTermFall   SemesterTerm = "FALL"
	SemesterTermSpring SemesterTerm = "SPRING"
	SemesterTermSummer SemesterTerm = "SUMMER"
)

// Semester models an academic term within the institution calendar.
type Semester struct {
	ID                string       `db:"id" json:"id"`
	Name              string       `db:"name" json:"name"`
	Term              SemesterTerm `db:"term" json:"term"`
	AcademicYear      string       `db:"academic_year" json:"academic_year"`
	StartDate         time.Time    `db:"start_date" json:"start_date"`
	EndDate           time.Time    `db:"end_date" json:"end_date"`
	RegistrationOpen  time.Time    `db:"registration_open" json:"registration_open"`
	RegistrationClose time.Time    `db:"registration_close" json:"registration_close"`
	IsActive          bool         `db:"is_active" json:"is_active"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// SemesterFilter defines filters supported by list endpoints.
type SemesterFilter struct {
	AcademicYear string
	Term         SemesterTerm
	IsActive     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
