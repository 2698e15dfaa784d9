package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/pkg/config"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

type certificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.Certificate, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error)
}

// GradeComparator orders two grades. It returns a negative value when a ranks
// below b, zero when equal, positive when a ranks above b.
type GradeComparator func(a, b float64) int

// HigherIsBetter is the default grade ordering.
func HigherIsBetter(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IssueCertificateRequest is the trainer's grading submission.
type IssueCertificateRequest struct {
	CourseID  string  `json:"course_id" validate:"required"`
	StudentID string  `json:"student_id" validate:"required"`
	Grade     float64 `json:"grade"`
}

// CertificateService issues graded certificates. The history per student and
// course is append-only; a new certificate must strictly beat the current best
// grade.
type CertificateService struct {
	repo        certificateRepository
	courses     courseReader
	enrollments enrollmentChecker
	cfg         config.CertificateConfig
	compare     GradeComparator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCertificateService constructs CertificateService. A nil comparator falls
// back to HigherIsBetter.
func NewCertificateService(repo certificateRepository, courses courseReader, enrollments enrollmentChecker, cfg config.CertificateConfig, compare GradeComparator, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if compare == nil {
		compare = HigherIsBetter
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{repo: repo, courses: courses, enrollments: enrollments, cfg: cfg, compare: compare, validator: validate, logger: logger}
}

// IsEligibleGrade reports whether the grade sits inside the passing range,
// under the configured ordering.
func (s *CertificateService) IsEligibleGrade(grade float64) bool {
	return s.compare(grade, s.cfg.PassingGrade) >= 0 && s.compare(grade, s.cfg.MaxGrade) <= 0
}

// Issue records a new certificate. The caller must be the trainer who owns
// the course, the student must be enrolled, the course must be inside its
// grading window, and the grade must beat the student's current best.
func (s *CertificateService) Issue(ctx context.Context, trainerID string, req *IssueCertificateRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TrainerID != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course trainer can issue certificates")
	}

	now := time.Now().UTC()
	if !course.HasEnded(now) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course has not ended yet")
	}
	if now.After(course.EndAt.Add(s.cfg.GradingGrace)) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "grading window has closed")
	}

	enrolled, err := s.enrollments.Exists(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not enrolled in the course")
	}

	if !s.IsEligibleGrade(req.Grade) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("grade %.2f is outside the passing range", req.Grade))
	}

	best, err := s.best(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if best != nil && s.compare(req.Grade, best.Grade) <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "grade does not beat the student's best certificate")
	}

	cert := &models.Certificate{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Grade:     req.Grade,
		IssueDate: now,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}

	s.logger.Info("certificate issued",
		zap.String("course_id", req.CourseID),
		zap.String("student_id", req.StudentID),
		zap.Float64("grade", req.Grade))
	return cert, nil
}

// BestCertificateFor returns the student's best certificate for a course.
func (s *CertificateService) BestCertificateFor(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	best, err := s.best(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no certificate for course")
	}
	return best, nil
}

// History returns every certificate the student earned for a course, oldest
// first.
func (s *CertificateService) History(ctx context.Context, studentID, courseID string) ([]models.Certificate, error) {
	certs, err := s.repo.ListByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// ListForStudent returns the student's certificates across all courses.
func (s *CertificateService) ListForStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	certs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

func (s *CertificateService) best(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	certs, err := s.repo.ListByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	var best *models.Certificate
	for i := range certs {
		if best == nil || s.compare(certs[i].Grade, best.Grade) > 0 {
			best = &certs[i]
		}
	}
	return best, nil
}
