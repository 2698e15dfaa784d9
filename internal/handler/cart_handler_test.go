package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/cart"
	"github.com/noah-isme/course-market-api/internal/middleware"
	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/internal/service"
	"github.com/noah-isme/course-market-api/pkg/response"
)

type catalogStub struct {
	courses map[string]models.Course
}

func (s *catalogStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *catalogStub) FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	result := make(map[string]models.Course)
	for _, id := range ids {
		if c, ok := s.courses[id]; ok {
			result[id] = c
		}
	}
	return result, nil
}

func newCartHandlerFixture() (*CartHandler, *catalogStub) {
	catalog := &catalogStub{courses: map[string]models.Course{
		"course-1": {
			ID:      "course-1",
			Name:    "Intro to Go",
			Price:   100,
			StartAt: time.Now().UTC().Add(48 * time.Hour),
			EndAt:   time.Now().UTC().Add(14 * 24 * time.Hour),
		},
	}}
	carts := service.NewCartService(cart.NewStore(4), catalog, nil)
	return NewCartHandler(carts), catalog
}

func authedContext(t *testing.T, w *httptest.ResponseRecorder, method, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})
	return c
}

func TestCartHandlerGetRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCartHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/cart", nil)
	c.Request = req

	handler.Get(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartHandlerAddUnknownCourse(t *testing.T) {
	handler, _ := newCartHandlerFixture()
	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPut, "/cart/items/missing")
	c.Params = gin.Params{{Key: "courseId", Value: "missing"}}

	handler.Add(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartHandlerAddAndSummary(t *testing.T) {
	handler, _ := newCartHandlerFixture()

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPut, "/cart/items/course-1")
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}
	handler.Add(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	c = authedContext(t, w, http.MethodGet, "/cart")
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var summary service.CartSummary
	require.NoError(t, json.Unmarshal(payload, &summary))
	assert.Equal(t, int64(100), summary.Total)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, "Intro to Go", summary.Items[0].CourseName)
}
