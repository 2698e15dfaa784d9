package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/course-market-api/internal/cart"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
)

// CartLine is one cart entry priced against the current catalog.
type CartLine struct {
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	Price      int64  `json:"price"`
	Available  bool   `json:"available"`
}

// CartSummary prices a cart against the catalog. Total only counts available
// lines, and is the figure checkout expects back as the claimed total.
type CartSummary struct {
	Items []CartLine `json:"items"`
	Total int64      `json:"total"`
}

// CartService fronts the in-process cart registry. Carts are keyed by user id
// and live only for the process lifetime.
type CartService struct {
	store   *cart.Store
	courses courseReader
	logger  *zap.Logger
}

// NewCartService constructs CartService.
func NewCartService(store *cart.Store, courses courseReader, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{store: store, courses: courses, logger: logger}
}

// Add puts a course into the user's cart. Adding twice is a no-op.
func (s *CartService) Add(ctx context.Context, userID, courseID string) error {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	s.store.GetOrCreate(userID).Add(courseID)
	return nil
}

// Remove takes a course out of the user's cart. Removing an absent course is
// a no-op.
func (s *CartService) Remove(userID, courseID string) {
	if c, ok := s.store.Get(userID); ok {
		c.Remove(courseID)
	}
}

// Items returns the course ids in the cart, sorted.
func (s *CartService) Items(userID string) []string {
	c, ok := s.store.Get(userID)
	if !ok {
		return nil
	}
	return c.Items()
}

// Summary prices the cart against the current catalog. Courses that were
// removed from the catalog since they were added show up as unavailable and
// do not count toward the total.
func (s *CartService) Summary(ctx context.Context, userID string) (*CartSummary, error) {
	summary := &CartSummary{Items: []CartLine{}}
	c, ok := s.store.Get(userID)
	if !ok {
		return summary, nil
	}
	ids := c.Items()
	if len(ids) == 0 {
		return summary, nil
	}
	courses, err := s.courses.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart courses")
	}
	for _, id := range ids {
		course, ok := courses[id]
		if !ok {
			summary.Items = append(summary.Items, CartLine{CourseID: id})
			continue
		}
		summary.Items = append(summary.Items, CartLine{
			CourseID:   course.ID,
			CourseName: course.Name,
			Price:      course.Price,
			Available:  true,
		})
		summary.Total += course.Price
	}
	return summary, nil
}

// Clear empties the cart but keeps it registered.
func (s *CartService) Clear(userID string) {
	if c, ok := s.store.Get(userID); ok {
		c.Clear()
	}
}

// Drop forgets the cart entirely. Called after a successful checkout.
func (s *CartService) Drop(userID string) {
	s.store.Drop(userID)
}
