package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-market-api/internal/models"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

type orderRepository interface {
	Create(ctx context.Context, order *models.Order, items []models.OrderItem) error
	FindByIDForUser(ctx context.Context, id, userID string) (*models.Order, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type enrollmentChecker interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
}

// orderEnrollmentGate is the slice of EnrollmentService the cancellation saga
// needs.
type orderEnrollmentGate interface {
	EnrollFromOrder(ctx context.Context, orderID, userID string) (*OrderEnrollmentResult, error)
	CancelOrderEnrollments(ctx context.Context, orderID, userID string) (*OrderEnrollmentResult, error)
}

// CheckoutRequest carries the client's view of the purchase. ClaimedTotal is
// the total the client last displayed; checkout refuses when it no longer
// matches the server-side prices.
type CheckoutRequest struct {
	CourseIDs     []string `json:"course_ids" validate:"required,min=1,dive,required"`
	ClaimedTotal  int64    `json:"claimed_total" validate:"gte=0"`
	PaymentMethod string   `json:"payment_method" validate:"required"`
}

// OrderService owns the purchase ledger: checkout freezes course names and
// prices into order items, and cancellation runs a two-phase saga against the
// enrollment gate.
type OrderService struct {
	repo        orderRepository
	courses     courseReader
	enrollments enrollmentChecker
	users       userExistenceChecker
	gate        orderEnrollmentGate
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewOrderService constructs OrderService. The enrollment gate may be nil
// until wired; Cancel and sync then fail fast.
func NewOrderService(repo orderRepository, courses courseReader, enrollments enrollmentChecker, users userExistenceChecker, validate *validator.Validate, logger *zap.Logger) *OrderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{repo: repo, courses: courses, enrollments: enrollments, users: users, validator: validate, logger: logger}
}

// SetEnrollmentGate wires the enrollment side of the saga. Done post-construction
// because the two services reference each other.
func (s *OrderService) SetEnrollmentGate(gate orderEnrollmentGate) {
	s.gate = gate
}

// Checkout re-prices the requested courses, rejects carts that drifted from
// the catalog, and persists the order with its frozen items in one
// transaction.
func (s *OrderService) Checkout(ctx context.Context, userID string, req *CheckoutRequest) (*models.OrderDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	exists, err := s.users.ExistsActive(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	courses, err := s.courses.FindByIDs(ctx, req.CourseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()
	items := make([]models.OrderItem, 0, len(req.CourseIDs))
	var total int64
	for _, courseID := range req.CourseIDs {
		course, ok := courses[courseID]
		if !ok || course.HasStarted(now) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cart contains missing or already started courses")
		}
		enrolled, err := s.enrollments.Exists(ctx, userID, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
		}
		if enrolled {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cart contains courses the user already joined")
		}
		items = append(items, models.OrderItem{
			OrderID:    orderID,
			CourseID:   course.ID,
			CourseName: course.Name,
			Price:      course.Price,
		})
		total += course.Price
	}

	if total != req.ClaimedTotal {
		return nil, appErrors.Clone(appErrors.ErrStaleTotal, "course prices changed since the cart was priced")
	}

	order := &models.Order{
		ID:         orderID,
		UserID:     userID,
		TotalPrice: total,
		InvoiceID:  uuid.NewString(),
		Status:     models.OrderStatusPaid,
		OrderDate:  now,
	}
	if err := s.repo.Create(ctx, order, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create order")
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("total_price", total),
		zap.Int("items", len(items)))
	return &models.OrderDetail{Order: *order, Items: items}, nil
}

// GetByIDForUser returns the order with its items, scoped to the owner.
func (s *OrderService) GetByIDForUser(ctx context.Context, orderID, userID string) (*models.OrderDetail, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	items, err := s.repo.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order items")
	}
	return &models.OrderDetail{Order: *order, Items: items}, nil
}

// GetInvoice resolves an order by invoice id. Invoice lookups are not scoped
// to a user so payment callbacks can resolve them.
func (s *OrderService) GetInvoice(ctx context.Context, invoiceID string) (*models.OrderDetail, error) {
	order, err := s.repo.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	items, err := s.repo.ItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order items")
	}
	return &models.OrderDetail{Order: *order, Items: items}, nil
}

// ListForUser returns the user's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	return orders, nil
}

// CanBeDeleted reports whether every course on the order still exists and has
// not started.
func (s *OrderService) CanBeDeleted(ctx context.Context, orderID, userID string) (bool, error) {
	if _, err := s.repo.FindByIDForUser(ctx, orderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	items, err := s.repo.ItemsByOrder(ctx, orderID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order items")
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.CourseID)
	}
	courses, err := s.courses.FindByIDs(ctx, ids)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order courses")
	}
	now := time.Now().UTC()
	for _, item := range items {
		course, ok := courses[item.CourseID]
		if !ok || course.HasStarted(now) {
			return false, nil
		}
	}
	return true, nil
}

// Cancel removes an order in two phases: release the enrollments the order
// granted, then delete the order rows. Each phase fails with its own code so
// callers can tell a half-cancelled order apart. If the delete phase fails the
// released enrollments are re-created.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID string) error {
	deletable, err := s.CanBeDeleted(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if !deletable {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "order contains started or removed courses")
	}
	if s.gate == nil {
		return appErrors.Clone(appErrors.ErrInternal, "enrollment gate not configured")
	}

	if _, err := s.gate.CancelOrderEnrollments(ctx, orderID, userID); err != nil {
		s.logger.Warn("order cancel: enrollment release failed",
			zap.String("order_id", orderID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrEnrollmentRelease.Code, appErrors.ErrEnrollmentRelease.Status, appErrors.ErrEnrollmentRelease.Message)
	}

	deleted, err := s.repo.Delete(ctx, orderID, userID)
	if err != nil || !deleted {
		// Compensate: the enrollments were already released but the
		// ledger row survives, so put the enrollments back.
		if _, compErr := s.gate.EnrollFromOrder(ctx, orderID, userID); compErr != nil {
			s.logger.Error("order cancel: compensation re-enroll failed",
				zap.String("order_id", orderID), zap.Error(compErr))
		}
		if err != nil {
			s.logger.Warn("order cancel: delete failed", zap.String("order_id", orderID), zap.Error(err))
			return appErrors.Wrap(err, appErrors.ErrOrderRemove.Code, appErrors.ErrOrderRemove.Status, appErrors.ErrOrderRemove.Message)
		}
		return appErrors.Clone(appErrors.ErrOrderRemove, appErrors.ErrOrderRemove.Message)
	}

	s.logger.Info("order cancelled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return nil
}
