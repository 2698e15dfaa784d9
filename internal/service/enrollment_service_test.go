package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/models"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

func TestCanEnrollMissingCourse(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockCourseReader{}, &mockUserChecker{}, &mockOrderRepo{}, nil, nil)

	ok, err := svc.CanEnroll(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanEnrollUpcomingCourse(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, courses, &mockUserChecker{}, &mockOrderRepo{}, nil, nil)

	ok, err := svc.CanEnroll(context.Background(), "course-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnrollBlocksStartedCourse(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": startedCourse("course-1", "trainer-1", 100),
	}}
	users := &mockUserChecker{active: map[string]bool{"stu-1": true}}
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, courses, users, &mockOrderRepo{}, nil, nil)

	_, err := svc.Enroll(context.Background(), "course-1", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollDuplicateIsConflict(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	users := &mockUserChecker{active: map[string]bool{"stu-1": true}}
	repo := &mockEnrollmentRepo{pairs: map[string]bool{pairKey("stu-1", "course-1"): true}}
	svc := NewEnrollmentService(repo, courses, users, &mockOrderRepo{}, nil, nil)

	_, err := svc.Enroll(context.Background(), "course-1", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollCreatesMembership(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	users := &mockUserChecker{active: map[string]bool{"stu-1": true}}
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, courses, users, &mockOrderRepo{}, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", enrollment.StudentID)
	assert.Equal(t, []string{"course-1"}, repo.created)
}

func TestUnenrollMissingEnrollment(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, courses, &mockUserChecker{}, &mockOrderRepo{}, nil, nil)

	err := svc.Unenroll(context.Background(), "course-1", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollFromOrderSkipsStartedAndEnrolled(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
		"course-2": startedCourse("course-2", "trainer-1", 150),
		"course-3": upcomingCourse("course-3", "trainer-1", 200),
	}}
	orders := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "stu-1", OrderDate: time.Now().UTC()}},
		items: map[string][]models.OrderItem{"ord-1": {
			{OrderID: "ord-1", CourseID: "course-1"},
			{OrderID: "ord-1", CourseID: "course-2"},
			{OrderID: "ord-1", CourseID: "course-3"},
		}},
	}
	repo := &mockEnrollmentRepo{pairs: map[string]bool{pairKey("stu-1", "course-3"): true}}
	svc := NewEnrollmentService(repo, courses, &mockUserChecker{}, orders, nil, nil)

	result, err := svc.EnrollFromOrder(context.Background(), "ord-1", "stu-1")
	require.NoError(t, err)
	// course-2 started, course-3 already joined: only course-1 is eligible.
	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []string{"course-1"}, repo.created)
}

func TestEnrollFromOrderPartialFailureIsError(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	orders := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "stu-1"}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
	}
	repo := &mockEnrollmentRepo{createErr: context.DeadlineExceeded}
	svc := NewEnrollmentService(repo, courses, &mockUserChecker{}, orders, nil, nil)

	result, err := svc.EnrollFromOrder(context.Background(), "ord-1", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 0, result.Processed)
}

func TestCancelOrderEnrollmentsReleasesUpcomingOnly(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
		"course-2": startedCourse("course-2", "trainer-1", 150),
	}}
	orders := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "stu-1"}},
		items: map[string][]models.OrderItem{"ord-1": {
			{OrderID: "ord-1", CourseID: "course-1"},
			{OrderID: "ord-1", CourseID: "course-2"},
		}},
	}
	repo := &mockEnrollmentRepo{pairs: map[string]bool{
		pairKey("stu-1", "course-1"): true,
		pairKey("stu-1", "course-2"): true,
	}}
	svc := NewEnrollmentService(repo, courses, &mockUserChecker{}, orders, nil, nil)

	result, err := svc.CancelOrderEnrollments(context.Background(), "ord-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []string{"course-1"}, repo.deleted)
	// The started course keeps its enrollment.
	assert.True(t, repo.pairs[pairKey("stu-1", "course-2")])
}

func TestCancelOrderEnrollmentsFailureIsStrict(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	orders := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "stu-1"}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
	}
	repo := &mockEnrollmentRepo{
		pairs:     map[string]bool{pairKey("stu-1", "course-1"): true},
		deleteErr: context.DeadlineExceeded,
	}
	svc := NewEnrollmentService(repo, courses, &mockUserChecker{}, orders, nil, nil)

	_, err := svc.CancelOrderEnrollments(context.Background(), "ord-1", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
