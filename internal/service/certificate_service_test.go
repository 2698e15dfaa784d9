package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/pkg/config"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

func defaultGrading() config.CertificateConfig {
	return config.CertificateConfig{
		PassingGrade: 60,
		MaxGrade:     100,
		GradingGrace: 14 * 24 * time.Hour,
	}
}

func newCertService(repo *mockCertificateRepo, courses *mockCourseReader, enrollments *mockEnrollmentRepo, compare GradeComparator) *CertificateService {
	return NewCertificateService(repo, courses, enrollments, defaultGrading(), compare, nil, nil)
}

func TestIsEligibleGradeBounds(t *testing.T) {
	svc := newCertService(&mockCertificateRepo{}, &mockCourseReader{}, &mockEnrollmentRepo{}, nil)

	assert.True(t, svc.IsEligibleGrade(60))
	assert.True(t, svc.IsEligibleGrade(100))
	assert.False(t, svc.IsEligibleGrade(59.9))
	assert.False(t, svc.IsEligibleGrade(100.1))
}

func TestIssueRequiresOwningTrainer(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": endedCourse("course-1", "trainer-1", time.Hour),
	}}
	svc := newCertService(&mockCertificateRepo{}, courses, &mockEnrollmentRepo{}, nil)

	_, err := svc.Issue(context.Background(), "trainer-2", &IssueCertificateRequest{
		CourseID: "course-1", StudentID: "stu-1", Grade: 80,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestIssueBeforeCourseEndFails(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": startedCourse("course-1", "trainer-1", 100),
	}}
	svc := newCertService(&mockCertificateRepo{}, courses, &mockEnrollmentRepo{}, nil)

	_, err := svc.Issue(context.Background(), "trainer-1", &IssueCertificateRequest{
		CourseID: "course-1", StudentID: "stu-1", Grade: 80,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestIssueAfterGradingGraceFails(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": endedCourse("course-1", "trainer-1", 15*24*time.Hour),
	}}
	enrollments := &mockEnrollmentRepo{pairs: map[string]bool{pairKey("stu-1", "course-1"): true}}
	svc := newCertService(&mockCertificateRepo{}, courses, enrollments, nil)

	_, err := svc.Issue(context.Background(), "trainer-1", &IssueCertificateRequest{
		CourseID: "course-1", StudentID: "stu-1", Grade: 80,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestIssueRequiresEnrollment(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": endedCourse("course-1", "trainer-1", time.Hour),
	}}
	svc := newCertService(&mockCertificateRepo{}, courses, &mockEnrollmentRepo{}, nil)

	_, err := svc.Issue(context.Background(), "trainer-1", &IssueCertificateRequest{
		CourseID: "course-1", StudentID: "stu-1", Grade: 80,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestIssueRejectsNonImprovingGrade(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": endedCourse("course-1", "trainer-1", time.Hour),
	}}
	enrollments := &mockEnrollmentRepo{pairs: map[string]bool{pairKey("stu-1", "course-1"): true}}
	repo := &mockCertificateRepo{certs: []models.Certificate{
		{ID: "cert-1", StudentID: "stu-1", CourseID: "course-1", Grade: 85},
	}}
	svc := newCertService(repo, courses, enrollments, nil)

	_, err := svc.Issue(context.Background(), "trainer-1", &IssueCertificateRequest{
		CourseID: "course-1", StudentID: "stu-1", Grade: 85,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestIssueAppendsImprovedGrade(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": endedCourse("course-1", "trainer-1", time.Hour),
	}}
	enrollments := &mockEnrollmentRepo{pairs: map[string]bool{pairKey("stu-1", "course-1"): true}}
	repo := &mockCertificateRepo{certs: []models.Certificate{
		{ID: "cert-1", StudentID: "stu-1", CourseID: "course-1", Grade: 70},
	}}
	svc := newCertService(repo, courses, enrollments, nil)

	cert, err := svc.Issue(context.Background(), "trainer-1", &IssueCertificateRequest{
		CourseID: "course-1", StudentID: "stu-1", Grade: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, cert.Grade)
	// History is append-only: the old certificate survives.
	assert.Len(t, repo.certs, 2)
}

func TestBestCertificateDerivedByComparator(t *testing.T) {
	repo := &mockCertificateRepo{certs: []models.Certificate{
		{ID: "cert-1", StudentID: "stu-1", CourseID: "course-1", Grade: 70},
		{ID: "cert-2", StudentID: "stu-1", CourseID: "course-1", Grade: 95},
		{ID: "cert-3", StudentID: "stu-1", CourseID: "course-1", Grade: 80},
	}}
	svc := newCertService(repo, &mockCourseReader{}, &mockEnrollmentRepo{}, nil)

	best, err := svc.BestCertificateFor(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, "cert-2", best.ID)
}

func TestBestCertificateHonoursCustomOrdering(t *testing.T) {
	// Lower-is-better ordering, as used for rank-style grading scales.
	lowerIsBetter := func(a, b float64) int { return HigherIsBetter(b, a) }
	repo := &mockCertificateRepo{certs: []models.Certificate{
		{ID: "cert-1", StudentID: "stu-1", CourseID: "course-1", Grade: 3},
		{ID: "cert-2", StudentID: "stu-1", CourseID: "course-1", Grade: 1},
	}}
	svc := newCertService(repo, &mockCourseReader{}, &mockEnrollmentRepo{}, lowerIsBetter)

	best, err := svc.BestCertificateFor(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, "cert-2", best.ID)
}

func TestBestCertificateMissingIsNotFound(t *testing.T) {
	svc := newCertService(&mockCertificateRepo{}, &mockCourseReader{}, &mockEnrollmentRepo{}, nil)

	_, err := svc.BestCertificateFor(context.Background(), "stu-1", "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
