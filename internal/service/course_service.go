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

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type catalogCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// CourseRequest carries the trainer's course submission. Dates are local
// calendar dates in YYYY-MM-DD form.
type CourseRequest struct {
	Name      string `json:"name" validate:"required,min=3,max=200"`
	Price     int64  `json:"price" validate:"gte=0"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// CourseList is a paginated catalog page.
type CourseList struct {
	Courses    []models.Course   `json:"courses"`
	Pagination models.Pagination `json:"pagination"`
}

// CourseService manages the catalog. Course windows are normalized from local
// calendar dates: start becomes 00:00:00 and end 23:59:59 in the configured
// timezone, both stored as UTC.
type CourseService struct {
	repo      courseRepository
	cache     catalogCache
	location  *time.Location
	cacheTTL  time.Duration
	useCache  bool
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService. The cache may be nil, which
// disables catalog caching.
func NewCourseService(repo courseRepository, cache catalogCache, cfg config.CatalogConfig, location *time.Location, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if location == nil {
		location = time.UTC
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:      repo,
		cache:     cache,
		location:  location,
		cacheTTL:  cfg.CacheTTL,
		useCache:  cfg.CacheEnabled && cache != nil && cache.Enabled(),
		validator: validate,
		logger:    logger,
	}
}

// List returns a catalog page, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) (*CourseList, error) {
	key := fmt.Sprintf("catalog:courses:%s:%s:%t:%d:%d:%s:%s",
		filter.TrainerID, filter.Search, filter.Upcoming, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	if s.useCache {
		var cached CourseList
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	list := &CourseList{
		Courses: courses,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   size,
			TotalCount: total,
		},
	}

	if s.useCache {
		if err := s.cache.Set(ctx, key, list, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return list, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course owned by the trainer.
func (s *CourseService) Create(ctx context.Context, trainerID string, req *CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	startAt, endAt, err := s.normalizeWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	course := &models.Course{
		Name:      req.Name,
		Price:     req.Price,
		StartAt:   startAt,
		EndAt:     endAt,
		TrainerID: trainerID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("trainer_id", trainerID))
	return course, nil
}

// Update rewrites a course. Only the owning trainer may update, and only
// before the course starts.
func (s *CourseService) Update(ctx context.Context, trainerID, courseID string, req *CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.TrainerID != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course trainer can update the course")
	}
	if course.HasStarted(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course already started")
	}
	startAt, endAt, err := s.normalizeWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	course.Name = req.Name
	course.Price = req.Price
	course.StartAt = startAt
	course.EndAt = endAt
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course before it starts.
func (s *CourseService) Delete(ctx context.Context, trainerID, courseID string) error {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return err
	}
	if course.TrainerID != trainerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the course trainer can delete the course")
	}
	if course.HasStarted(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course already started")
	}
	if err := s.repo.Delete(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// normalizeWindow turns local calendar dates into the UTC instants bounding
// the local days: start of the start day, last second of the end day.
func (s *CourseService) normalizeWindow(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", startDate, s.location)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, s.location)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end date before start date")
	}
	startAt := start.UTC()
	endAt := end.Add(24*time.Hour - time.Second).UTC()
	return startAt, endAt, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if !s.useCache {
		return
	}
	if err := s.cache.Invalidate(ctx, "catalog:courses:*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
