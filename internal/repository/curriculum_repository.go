package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-market-api/internal/models"
)

// CurriculumRepository handles persistence of curriculums and their required
// course sets.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// FindByID returns a curriculum by its ID.
func (r *CurriculumRepository) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	const query = `SELECT id, name, created_at FROM curriculums WHERE id = $1`
	var curriculum models.Curriculum
	if err := r.db.GetContext(ctx, &curriculum, query, id); err != nil {
		return nil, err
	}
	return &curriculum, nil
}

// CourseIDs returns the required course ids of a curriculum.
func (r *CurriculumRepository) CourseIDs(ctx context.Context, curriculumID string) ([]string, error) {
	const query = `SELECT course_id FROM curriculum_courses WHERE curriculum_id = $1 ORDER BY course_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, curriculumID); err != nil {
		return nil, fmt.Errorf("list curriculum courses: %w", err)
	}
	return ids, nil
}

// List returns all curriculums.
func (r *CurriculumRepository) List(ctx context.Context) ([]models.Curriculum, error) {
	var curriculums []models.Curriculum
	if err := r.db.SelectContext(ctx, &curriculums, `SELECT id, name, created_at FROM curriculums ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list curriculums: %w", err)
	}
	return curriculums, nil
}

// Create persists a curriculum together with its required course set.
func (r *CurriculumRepository) Create(ctx context.Context, curriculum *models.Curriculum, courseIDs []string) error {
	if curriculum.ID == "" {
		curriculum.ID = uuid.NewString()
	}
	if curriculum.CreatedAt.IsZero() {
		curriculum.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin curriculum tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO curriculums (id, name, created_at) VALUES (:id, :name, :created_at)`, curriculum); err != nil {
		return fmt.Errorf("create curriculum: %w", err)
	}
	for _, courseID := range courseIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO curriculum_courses (curriculum_id, course_id) VALUES ($1, $2)`, curriculum.ID, courseID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("attach curriculum course: %w", ErrDuplicate)
			}
			return fmt.Errorf("attach curriculum course: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit curriculum tx: %w", err)
	}
	return nil
}
