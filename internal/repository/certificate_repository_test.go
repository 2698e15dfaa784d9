package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/models"
)

func TestCertificateRepositoryListByStudentAndCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "grade", "issue_date"}).
		AddRow("cert-1", "stu-1", "course-1", 70.0, now.Add(-48*time.Hour)).
		AddRow("cert-2", "stu-1", "course-1", 85.0, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, grade, issue_date FROM certificates")).
		WithArgs("stu-1", "course-1").
		WillReturnRows(rows)

	certs, err := repo.ListByStudentAndCourse(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.Len(t, certs, 2)
	require.Equal(t, 70.0, certs[0].Grade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cert := &models.Certificate{StudentID: "stu-1", CourseID: "course-1", Grade: 85}
	require.NoError(t, repo.Create(context.Background(), cert))
	require.NotEmpty(t, cert.ID)
	require.False(t, cert.IssueDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCertifiedCourseIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	rows := sqlmock.NewRows([]string{"course_id"}).AddRow("course-1").AddRow("course-3")
	mock.ExpectQuery("SELECT DISTINCT course_id FROM certificates").
		WithArgs("stu-1", "course-1", "course-2", "course-3").
		WillReturnRows(rows)

	ids, err := repo.CertifiedCourseIDs(context.Background(), "stu-1", []string{"course-1", "course-2", "course-3"})
	require.NoError(t, err)
	require.Equal(t, []string{"course-1", "course-3"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCertifiedCourseIDsEmptySet(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	ids, err := repo.CertifiedCourseIDs(context.Background(), "stu-1", nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}
