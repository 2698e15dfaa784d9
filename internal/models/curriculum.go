package models

import "time"

// Curriculum is a named set of required courses.
type Curriculum struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CurriculumDetail bundles a curriculum with its required course ids.
type CurriculumDetail struct {
	Curriculum
	CourseIDs []string `json:"course_ids"`
}

// Diploma certifies that a student completed every course required by a
// curriculum. The (student_id, curriculum_id) uniqueness constraint in the
// diplomas table is the authoritative duplicate guard; the service-level
// existence check is an optimization only.
type Diploma struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	CurriculumID string    `db:"curriculum_id" json:"curriculum_id"`
	IssueDate    time.Time `db:"issue_date" json:"issue_date"`
}

// DiplomaDetail joins a diploma with its curriculum name for listings and
// document rendering.
type DiplomaDetail struct {
	Diploma
	CurriculumName string `db:"curriculum_name" json:"curriculum_name"`
}
