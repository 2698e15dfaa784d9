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
	"github.com/noah-isme/course-market-api/internal/repository"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

type enrollmentRepository interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, studentID, courseID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
}

type userExistenceChecker interface {
	ExistsActive(ctx context.Context, id string) (bool, error)
}

type orderItemReader interface {
	FindByIDForUser(ctx context.Context, id, userID string) (*models.Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

// OrderEnrollmentResult summarises a bulk enroll or release across one
// order's items.
type OrderEnrollmentResult struct {
	Eligible  int `json:"eligible"`
	Processed int `json:"processed"`
}

// EnrollmentService guards course membership: joins and leaves are only
// allowed while the course has not started, and the storage-level pair
// constraint is the final word on duplicates.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	users     userExistenceChecker
	orders    orderItemReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, users userExistenceChecker, orders orderItemReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, users: users, orders: orders, validator: validate, logger: logger}
}

// CanEnroll reports whether the course exists and has not started yet.
func (s *EnrollmentService) CanEnroll(ctx context.Context, courseID string) (bool, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return !course.HasStarted(time.Now().UTC()), nil
}

// Enroll registers a student to an upcoming course.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.users.ExistsActive(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if course.HasStarted(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course already started")
	}
	enrolled, err := s.repo.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	}

	enrollment := &models.Enrollment{StudentID: studentID, CourseID: courseID, CreatedAt: time.Now().UTC()}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		// The existence check above is only an optimization; the pair
		// constraint decides races.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Unenroll removes a student from a course that has not started.
func (s *EnrollmentService) Unenroll(ctx context.Context, courseID, studentID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.HasStarted(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course already started")
	}
	deleted, err := s.repo.Delete(ctx, studentID, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return nil
}

// ListForStudent returns the student's enrollments with course context.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// EnrollFromOrder enrolls the buyer into every order course that is still
// upcoming and not yet joined. Writes are best-effort, but the success signal
// is strict: a non-nil error means not every eligible course was enrolled.
func (s *EnrollmentService) EnrollFromOrder(ctx context.Context, orderID, userID string) (*OrderEnrollmentResult, error) {
	items, courses, err := s.orderCourses(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &OrderEnrollmentResult{}
	for _, item := range items {
		course, ok := courses[item.CourseID]
		if !ok || course.HasStarted(now) {
			continue
		}
		enrolled, err := s.repo.Exists(ctx, userID, item.CourseID)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
		}
		if enrolled {
			continue
		}
		result.Eligible++
		err = s.repo.Create(ctx, &models.Enrollment{StudentID: userID, CourseID: item.CourseID, CreatedAt: now})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			s.logger.Warn("order enrollment failed", zap.String("order_id", orderID), zap.String("course_id", item.CourseID), zap.Error(err))
			continue
		}
		result.Processed++
	}

	if result.Processed != result.Eligible {
		return result, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("enrolled %d of %d eligible order courses", result.Processed, result.Eligible))
	}
	return result, nil
}

// CancelOrderEnrollments removes the buyer's enrollments for every order
// course that has not started. It fails when any such enrollment could not be
// removed.
func (s *EnrollmentService) CancelOrderEnrollments(ctx context.Context, orderID, userID string) (*OrderEnrollmentResult, error) {
	items, courses, err := s.orderCourses(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &OrderEnrollmentResult{}
	for _, item := range items {
		course, ok := courses[item.CourseID]
		if !ok || course.HasStarted(now) {
			continue
		}
		enrolled, err := s.repo.Exists(ctx, userID, item.CourseID)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
		}
		if !enrolled {
			continue
		}
		result.Eligible++
		deleted, err := s.repo.Delete(ctx, userID, item.CourseID)
		if err != nil {
			s.logger.Warn("order unenrollment failed", zap.String("order_id", orderID), zap.String("course_id", item.CourseID), zap.Error(err))
			continue
		}
		if deleted {
			result.Processed++
		}
	}

	if result.Processed != result.Eligible {
		return result, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("released %d of %d order enrollments", result.Processed, result.Eligible))
	}
	return result, nil
}

func (s *EnrollmentService) orderCourses(ctx context.Context, orderID, userID string) ([]models.OrderItem, map[string]models.Course, error) {
	if _, err := s.orders.FindByIDForUser(ctx, orderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	items, err := s.orders.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order items")
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.CourseID)
	}
	courses, err := s.courses.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order courses")
	}
	return items, courses, nil
}
