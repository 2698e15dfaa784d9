package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-market-api/internal/models"
)

// CertificateRepository handles the append-only certificate history. Rows are
// inserted, never updated or deleted; the certificates table carries no
// uniqueness constraint on (student_id, course_id) on purpose.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create appends a certificate row.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssueDate.IsZero() {
		cert.IssueDate = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, student_id, course_id, grade, issue_date)
        VALUES (:id, :student_id, :course_id, :grade, :issue_date)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// ListByStudentAndCourse returns the full grade history for one pair, oldest
// first.
func (r *CertificateRepository) ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.Certificate, error) {
	const query = `SELECT id, student_id, course_id, grade, issue_date FROM certificates
        WHERE student_id = $1 AND course_id = $2 ORDER BY issue_date`
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list pair certificates: %w", err)
	}
	return certs, nil
}

// ListByStudent returns the student's certificates with course context.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	const query = `SELECT ct.id, ct.student_id, ct.course_id, ct.grade, ct.issue_date,
        c.name AS course_name, u.full_name AS student_name
        FROM certificates ct
        JOIN courses c ON c.id = ct.course_id
        JOIN users u ON u.id = ct.student_id
        WHERE ct.student_id = $1
        ORDER BY ct.issue_date DESC`
	var certs []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student certificates: %w", err)
	}
	return certs, nil
}

// CertifiedCourseIDs returns the distinct course ids out of the given set for
// which the student holds at least one certificate.
func (r *CertificateRepository) CertifiedCourseIDs(ctx context.Context, studentID string, courseIDs []string) ([]string, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(courseIDs))
	args := make([]interface{}, 0, len(courseIDs)+1)
	args = append(args, studentID)
	for i, id := range courseIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT DISTINCT course_id FROM certificates WHERE student_id = $1 AND course_id IN (%s)`,
		strings.Join(placeholders, ","))
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list certified courses: %w", err)
	}
	return ids, nil
}
