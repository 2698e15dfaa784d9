package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-market-api/internal/models"
)

// DiplomaRepository handles persistence of diplomas. The unique constraint on
// (student_id, curriculum_id) is the authoritative guard against a student
// receiving the same diploma twice.
type DiplomaRepository struct {
	db *sqlx.DB
}

// NewDiplomaRepository constructs the repository.
func NewDiplomaRepository(db *sqlx.DB) *DiplomaRepository {
	return &DiplomaRepository{db: db}
}

// Create persists a new diploma. ErrDuplicate is returned when the pair
// already holds a diploma.
func (r *DiplomaRepository) Create(ctx context.Context, diploma *models.Diploma) error {
	if diploma.ID == "" {
		diploma.ID = uuid.NewString()
	}
	if diploma.IssueDate.IsZero() {
		diploma.IssueDate = time.Now().UTC()
	}
	const query = `INSERT INTO diplomas (id, student_id, curriculum_id, issue_date)
        VALUES (:id, :student_id, :curriculum_id, :issue_date)`
	if _, err := r.db.NamedExecContext(ctx, query, diploma); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create diploma: %w", ErrDuplicate)
		}
		return fmt.Errorf("create diploma: %w", err)
	}
	return nil
}

// FindByID returns a diploma by its ID.
func (r *DiplomaRepository) FindByID(ctx context.Context, id string) (*models.Diploma, error) {
	const query = `SELECT id, student_id, curriculum_id, issue_date FROM diplomas WHERE id = $1`
	var diploma models.Diploma
	if err := r.db.GetContext(ctx, &diploma, query, id); err != nil {
		return nil, err
	}
	return &diploma, nil
}

// FindByStudentAndCurriculum returns the diploma for the pair if any.
func (r *DiplomaRepository) FindByStudentAndCurriculum(ctx context.Context, studentID, curriculumID string) (*models.Diploma, error) {
	const query = `SELECT id, student_id, curriculum_id, issue_date FROM diplomas WHERE student_id = $1 AND curriculum_id = $2`
	var diploma models.Diploma
	if err := r.db.GetContext(ctx, &diploma, query, studentID, curriculumID); err != nil {
		return nil, err
	}
	return &diploma, nil
}

// ListByStudent returns all diplomas of a student.
func (r *DiplomaRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Diploma, error) {
	const query = `SELECT id, student_id, curriculum_id, issue_date FROM diplomas WHERE student_id = $1 ORDER BY issue_date DESC`
	var diplomas []models.Diploma
	if err := r.db.SelectContext(ctx, &diplomas, query, studentID); err != nil {
		return nil, fmt.Errorf("list student diplomas: %w", err)
	}
	return diplomas, nil
}

// ListByStudentDetailed returns a student's diplomas joined with the
// curriculum name.
func (r *DiplomaRepository) ListByStudentDetailed(ctx context.Context, studentID string) ([]models.DiplomaDetail, error) {
	const query = `SELECT d.id, d.student_id, d.curriculum_id, d.issue_date, c.name AS curriculum_name
        FROM diplomas d
        JOIN curriculums c ON c.id = d.curriculum_id
        WHERE d.student_id = $1
        ORDER BY d.issue_date DESC`
	var diplomas []models.DiplomaDetail
	if err := r.db.SelectContext(ctx, &diplomas, query, studentID); err != nil {
		return nil, fmt.Errorf("list student diplomas: %w", err)
	}
	return diplomas, nil
}

// Delete removes a diploma row, reporting whether it existed.
func (r *DiplomaRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM diplomas WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete diploma: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete diploma result: %w", err)
	}
	return affected > 0, nil
}
