package models

import "time"

// StudentProfile extends a STUDENT user with academic context. The declared
// program is optional; students without one are exempt from the program
// membership check during registration.
type StudentProfile struct {
	UserID       string    `db:"user_id" json:"user_id"`
	StudentNo    string    `db:"student_no" json:"student_no"`
	ProgramID    *string   `db:"program_id" json:"program_id,omitempty"`
	EnrolledYear int       `db:"enrolled_year" json:"enrolled_year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail bundles the user row with profile and history for eligibility
// decisions.
type StudentDetail struct {
	User
	Profile *StudentProfile `json:"profile,omitempty"`
	// History holds course codes the student has completed.
	History []string `json:"history,omitempty"`
}

// AcademicRecord is one completed course in a student's history.
type AcademicRecord struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	CourseCode  string    `db:"course_code" json:"course_code"`
	Grade       string    `db:"grade" json:"grade"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}
