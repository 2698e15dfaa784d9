package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/internal/repository"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

type diplomaRepository interface {
	Create(ctx context.Context, diploma *models.Diploma) error
	FindByID(ctx context.Context, id string) (*models.Diploma, error)
	FindByStudentAndCurriculum(ctx context.Context, studentID, curriculumID string) (*models.Diploma, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Diploma, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type curriculumReader interface {
	FindByID(ctx context.Context, id string) (*models.Curriculum, error)
	CourseIDs(ctx context.Context, curriculumID string) ([]string, error)
	List(ctx context.Context) ([]models.Curriculum, error)
}

type certifiedCourseReader interface {
	CertifiedCourseIDs(ctx context.Context, studentID string, courseIDs []string) ([]string, error)
}

// DiplomaService awards curriculum diplomas. A diploma requires at least one
// certificate for every course the curriculum names, and the student-curriculum
// pair is unique.
type DiplomaService struct {
	repo        diplomaRepository
	curriculums curriculumReader
	certs       certifiedCourseReader
	users       userExistenceChecker
	logger      *zap.Logger
}

// NewDiplomaService constructs DiplomaService.
func NewDiplomaService(repo diplomaRepository, curriculums curriculumReader, certs certifiedCourseReader, users userExistenceChecker, logger *zap.Logger) *DiplomaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiplomaService{repo: repo, curriculums: curriculums, certs: certs, users: users, logger: logger}
}

// HasPassedAllCourses reports whether the student holds a certificate for
// every course in the curriculum. Unknown curriculums, unknown students and
// curriculums without courses all report false.
func (s *DiplomaService) HasPassedAllCourses(ctx context.Context, curriculumID, studentID string) (bool, error) {
	if _, err := s.curriculums.FindByID(ctx, curriculumID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	exists, err := s.users.ExistsActive(ctx, studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !exists {
		return false, nil
	}
	required, err := s.curriculums.CourseIDs(ctx, curriculumID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum courses")
	}
	if len(required) == 0 {
		return false, nil
	}
	certified, err := s.certs.CertifiedCourseIDs(ctx, studentID, required)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificates")
	}
	return len(certified) == len(required), nil
}

// IssueDiploma awards the diploma once per student and curriculum.
func (s *DiplomaService) IssueDiploma(ctx context.Context, curriculumID, studentID string) (*models.Diploma, error) {
	if _, err := s.repo.FindByStudentAndCurriculum(ctx, studentID, curriculumID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "diploma already issued for curriculum")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load diploma")
	}

	passed, err := s.HasPassedAllCourses(ctx, curriculumID, studentID)
	if err != nil {
		return nil, err
	}
	if !passed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has not certified every curriculum course")
	}

	diploma := &models.Diploma{
		StudentID:    studentID,
		CurriculumID: curriculumID,
		IssueDate:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, diploma); err != nil {
		// The pre-check above races with concurrent awards; the unique
		// pair constraint settles it.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "diploma already issued for curriculum")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create diploma")
	}

	s.logger.Info("diploma issued",
		zap.String("curriculum_id", curriculumID),
		zap.String("student_id", studentID))
	return diploma, nil
}

// Get returns a diploma by id.
func (s *DiplomaService) Get(ctx context.Context, id string) (*models.Diploma, error) {
	diploma, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "diploma not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load diploma")
	}
	return diploma, nil
}

// ListForStudent returns the student's diplomas.
func (s *DiplomaService) ListForStudent(ctx context.Context, studentID string) ([]models.Diploma, error) {
	diplomas, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list diplomas")
	}
	return diplomas, nil
}

// Remove revokes a diploma.
func (s *DiplomaService) Remove(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete diploma")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "diploma not found")
	}
	return nil
}

// Curriculums lists every curriculum with its course ids.
func (s *DiplomaService) Curriculums(ctx context.Context) ([]models.CurriculumDetail, error) {
	curriculums, err := s.curriculums.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculums")
	}
	details := make([]models.CurriculumDetail, 0, len(curriculums))
	for _, c := range curriculums {
		ids, err := s.curriculums.CourseIDs(ctx, c.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum courses")
		}
		details = append(details, models.CurriculumDetail{Curriculum: c, CourseIDs: ids})
	}
	return details, nil
}
