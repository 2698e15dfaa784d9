package models

import "time"

// Enrollment binds one student to one course. Existence is binary: the pair
// (student_id, course_id) is the composite primary key, and that uniqueness
// constraint is the authoritative guard against duplicate enrollments.
type Enrollment struct {
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with course info for listings.
type EnrollmentDetail struct {
	Enrollment
	CourseName  string    `db:"course_name" json:"course_name"`
	CourseStart time.Time `db:"course_start" json:"course_start"`
	CourseEnd   time.Time `db:"course_end" json:"course_end"`
}
