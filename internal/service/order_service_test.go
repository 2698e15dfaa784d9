package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/models"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

type mockEnrollmentGate struct {
	releaseErr    error
	reEnrollErr   error
	releaseCalls  int
	reEnrollCalls int
}

func (m *mockEnrollmentGate) EnrollFromOrder(ctx context.Context, orderID, userID string) (*OrderEnrollmentResult, error) {
	m.reEnrollCalls++
	return &OrderEnrollmentResult{}, m.reEnrollErr
}

func (m *mockEnrollmentGate) CancelOrderEnrollments(ctx context.Context, orderID, userID string) (*OrderEnrollmentResult, error) {
	m.releaseCalls++
	return &OrderEnrollmentResult{}, m.releaseErr
}

func newOrderService(repo *mockOrderRepo, courses *mockCourseReader, enrollments *mockEnrollmentRepo, gate orderEnrollmentGate) *OrderService {
	users := &mockUserChecker{active: map[string]bool{"user-1": true}}
	svc := NewOrderService(repo, courses, enrollments, users, nil, nil)
	svc.SetEnrollmentGate(gate)
	return svc
}

func TestCheckoutFreezesItemsAndTotal(t *testing.T) {
	repo := &mockOrderRepo{}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
		"course-2": upcomingCourse("course-2", "trainer-1", 150),
	}}
	svc := newOrderService(repo, courses, &mockEnrollmentRepo{}, &mockEnrollmentGate{})

	detail, err := svc.Checkout(context.Background(), "user-1", &CheckoutRequest{
		CourseIDs:     []string{"course-1", "course-2"},
		ClaimedTotal:  250,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), detail.TotalPrice)
	assert.Equal(t, models.OrderStatusPaid, detail.Status)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, "Course course-1", detail.Items[0].CourseName)
	assert.NotEmpty(t, detail.InvoiceID)
	require.NotNil(t, repo.created)
}

func TestCheckoutRejectsStaleTotal(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	svc := newOrderService(&mockOrderRepo{}, courses, &mockEnrollmentRepo{}, &mockEnrollmentGate{})

	_, err := svc.Checkout(context.Background(), "user-1", &CheckoutRequest{
		CourseIDs:     []string{"course-1"},
		ClaimedTotal:  90,
		PaymentMethod: "bank_transfer",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStaleTotal.Code, appErrors.FromError(err).Code)
}

func TestCheckoutRejectsStartedCourse(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": startedCourse("course-1", "trainer-1", 100),
	}}
	svc := newOrderService(&mockOrderRepo{}, courses, &mockEnrollmentRepo{}, &mockEnrollmentGate{})

	_, err := svc.Checkout(context.Background(), "user-1", &CheckoutRequest{
		CourseIDs:     []string{"course-1"},
		ClaimedTotal:  100,
		PaymentMethod: "bank_transfer",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCheckoutRejectsAlreadyEnrolledCourse(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	enrollments := &mockEnrollmentRepo{pairs: map[string]bool{pairKey("user-1", "course-1"): true}}
	svc := newOrderService(&mockOrderRepo{}, courses, enrollments, &mockEnrollmentGate{})

	_, err := svc.Checkout(context.Background(), "user-1", &CheckoutRequest{
		CourseIDs:     []string{"course-1"},
		ClaimedTotal:  100,
		PaymentMethod: "bank_transfer",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCanBeDeletedFalseWhenCourseStarted(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": startedCourse("course-1", "trainer-1", 100),
	}}
	repo := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "user-1"}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
	}
	svc := newOrderService(repo, courses, &mockEnrollmentRepo{}, &mockEnrollmentGate{})

	ok, err := svc.CanBeDeleted(context.Background(), "ord-1", "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelRemovesOrderAfterRelease(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	repo := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "user-1"}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
	}
	gate := &mockEnrollmentGate{}
	svc := newOrderService(repo, courses, &mockEnrollmentRepo{}, gate)

	require.NoError(t, svc.Cancel(context.Background(), "ord-1", "user-1"))
	assert.Equal(t, 1, gate.releaseCalls)
	assert.Equal(t, 0, gate.reEnrollCalls)
	assert.True(t, repo.deleted)
}

func TestCancelWithoutGateFailsFast(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	repo := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "user-1"}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
	}
	users := &mockUserChecker{active: map[string]bool{"user-1": true}}
	svc := NewOrderService(repo, courses, &mockEnrollmentRepo{}, users, nil, nil)

	err := svc.Cancel(context.Background(), "ord-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.deleted)
}

func TestCancelReleasePhaseFailureKeepsOrder(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	repo := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "user-1"}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
	}
	gate := &mockEnrollmentGate{releaseErr: appErrors.Clone(appErrors.ErrConflict, "release failed")}
	svc := newOrderService(repo, courses, &mockEnrollmentRepo{}, gate)

	err := svc.Cancel(context.Background(), "ord-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentRelease.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.deleted)
	assert.Equal(t, 0, gate.reEnrollCalls)
}

func TestCancelDeletePhaseFailureCompensates(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": upcomingCourse("course-1", "trainer-1", 100),
	}}
	repo := &mockOrderRepo{
		orders:    map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "user-1"}},
		items:     map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1"}}},
		deleteErr: context.DeadlineExceeded,
	}
	gate := &mockEnrollmentGate{}
	svc := newOrderService(repo, courses, &mockEnrollmentRepo{}, gate)

	err := svc.Cancel(context.Background(), "ord-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOrderRemove.Code, appErrors.FromError(err).Code)
	// Enrollments were released, so the saga must put them back.
	assert.Equal(t, 1, gate.reEnrollCalls)
}

func TestGetInvoiceResolvesAnonymously(t *testing.T) {
	repo := &mockOrderRepo{
		orders: map[string]models.Order{"ord-1": {ID: "ord-1", UserID: "user-1", InvoiceID: "inv-1", TotalPrice: 100}},
		items:  map[string][]models.OrderItem{"ord-1": {{OrderID: "ord-1", CourseID: "course-1", Price: 100}}},
	}
	svc := newOrderService(repo, &mockCourseReader{}, &mockEnrollmentRepo{}, &mockEnrollmentGate{})

	detail, err := svc.GetInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", detail.ID)
	require.Len(t, detail.Items, 1)
}
