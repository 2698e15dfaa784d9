package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-market-api/internal/service"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
	"github.com/noah-isme/course-market-api/pkg/response"
)

// CartHandler exposes the per-user course cart.
type CartHandler struct {
	carts *service.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// Get godoc
// @Summary Get the current cart priced against the catalog
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.carts.Summary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Add godoc
// @Summary Add a course to the cart
// @Tags Cart
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 204
// @Security BearerAuth
// @Router /cart/items/{courseId} [put]
func (h *CartHandler) Add(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.carts.Add(c.Request.Context(), claims.UserID, c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Remove godoc
// @Summary Remove a course from the cart
// @Tags Cart
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 204
// @Security BearerAuth
// @Router /cart/items/{courseId} [delete]
func (h *CartHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.carts.Remove(claims.UserID, c.Param("courseId"))
	response.NoContent(c)
}

// Clear godoc
// @Summary Empty the cart
// @Tags Cart
// @Produce json
// @Success 204
// @Security BearerAuth
// @Router /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.carts.Clear(claims.UserID)
	response.NoContent(c)
}
