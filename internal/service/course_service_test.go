package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/pkg/config"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

type mockCourseRepo struct {
	mockCourseReader
	created *models.Course
	updated *models.Course
	removed []string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var list []models.Course
	for _, c := range m.courses {
		list = append(list, c)
	}
	return list, len(list), nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "course-new"
	}
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	m.courses[course.ID] = *course
	m.created = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	m.courses[course.ID] = *course
	m.updated = course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.removed = append(m.removed, id)
	return nil
}

func newCourseService(repo *mockCourseRepo, loc *time.Location) *CourseService {
	return NewCourseService(repo, nil, config.CatalogConfig{}, loc, nil, nil)
}

func TestCreateNormalizesLocalDayWindow(t *testing.T) {
	// UTC+7, the default deployment timezone.
	wib := time.FixedZone("WIB", 7*3600)
	repo := &mockCourseRepo{}
	svc := newCourseService(repo, wib)

	course, err := svc.Create(context.Background(), "trainer-1", &CourseRequest{
		Name:      "Intro to Go",
		Price:     250,
		StartDate: "2026-09-01",
		EndDate:   "2026-09-10",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 17, 0, 0, 0, time.UTC), course.StartAt)
	assert.Equal(t, time.Date(2026, 9, 10, 16, 59, 59, 0, time.UTC), course.EndAt)
}

func TestCreateRejectsInvertedWindow(t *testing.T) {
	svc := newCourseService(&mockCourseRepo{}, time.UTC)

	_, err := svc.Create(context.Background(), "trainer-1", &CourseRequest{
		Name:      "Intro to Go",
		Price:     250,
		StartDate: "2026-09-10",
		EndDate:   "2026-09-01",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateRequiresOwningTrainer(t *testing.T) {
	repo := &mockCourseRepo{mockCourseReader: mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}}
	svc := newCourseService(repo, time.UTC)

	_, err := svc.Update(context.Background(), "trainer-2", "course-1", &CourseRequest{
		Name:      "Renamed",
		Price:     120,
		StartDate: "2026-09-01",
		EndDate:   "2026-09-10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDeleteBlocksStartedCourse(t *testing.T) {
	repo := &mockCourseRepo{mockCourseReader: mockCourseReader{courses: map[string]models.Course{
		"course-1": startedCourse("course-1", "trainer-1", 100),
	}}}
	svc := newCourseService(repo, time.UTC)

	err := svc.Delete(context.Background(), "trainer-1", "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.removed)
}
