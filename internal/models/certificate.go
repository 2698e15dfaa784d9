package models

import "time"

// Certificate is an award record for a student's performance in one course.
// Certificates form an append-only history: rows are never mutated, and a new
// row is only inserted when it improves on the best prior grade. The "best"
// certificate is always derived by comparison, never stored.
type Certificate struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Grade     float64   `db:"grade" json:"grade"`
	IssueDate time.Time `db:"issue_date" json:"issue_date"`
}

// CertificateDetail enriches Certificate with course and student info.
type CertificateDetail struct {
	Certificate
	CourseName  string `db:"course_name" json:"course_name"`
	StudentName string `db:"student_name" json:"student_name"`
}
