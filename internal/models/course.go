package models

import "time"

// Course is an offerable course with bounded capacity. CurrentStudents counts
// seats held by PENDING and APPROVED course uploads; it only moves through the
// seat-claim and seat-release repository operations.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Code            string    `db:"code" json:"code"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Credits         int       `db:"credits" json:"credits"`
	DepartmentID    string    `db:"department_id" json:"department_id"`
	MaxStudents     int       `db:"max_students" json:"max_students"`
	CurrentStudents int       `db:"current_students" json:"current_students"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches a course with department and prerequisite info.
type CourseDetail struct {
	Course
	DepartmentName string   `db:"department_name" json:"department_name"`
	Prerequisites  []string `json:"prerequisites,omitempty"`
}

// CoursePrerequisite links a course to a required prior course code.
type CoursePrerequisite struct {
	CourseID          string `db:"course_id" json:"course_id"`
	PrerequisiteCode  string `db:"prerequisite_code" json:"prerequisite_code"`
	PrerequisiteTitle string `db:"prerequisite_title" json:"prerequisite_title"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	DepartmentID string
	Search       string
	IsActive     *bool
	HasSeats     bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// Department groups courses and faculty members.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Program is a degree program with a fixed course list. Students declaring a
// program may only register for its member courses.
type Program struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	DegreeLevel  string    `db:"degree_level" json:"degree_level"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramDetail enriches a program with its member course IDs.
type ProgramDetail struct {
	Program
	CourseIDs []string `json:"course_ids,omitempty"`
}
