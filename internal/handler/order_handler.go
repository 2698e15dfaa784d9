package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-market-api/internal/service"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
	"github.com/noah-isme/course-market-api/pkg/response"
)

// OrderHandler exposes the purchase ledger endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	carts   *service.CartService
	gate    *service.EnrollmentService
	metrics *service.MetricsService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *service.OrderService, carts *service.CartService, gate *service.EnrollmentService, metrics *service.MetricsService) *OrderHandler {
	return &OrderHandler{orders: orders, carts: carts, gate: gate, metrics: metrics}
}

// Checkout godoc
// @Summary Create an order from the priced cart
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body service.CheckoutRequest true "Checkout payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /orders [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.orders.Checkout(c.Request.Context(), claims.UserID, &req)
	h.metrics.RecordOrderOperation("checkout", err == nil)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Enrollments follow the order; failures surface in the meta block so
	// the client can retry the sync without repaying.
	meta := map[string]interface{}{}
	if result, err := h.gate.EnrollFromOrder(c.Request.Context(), detail.ID, claims.UserID); err != nil {
		meta["enrollment_sync"] = appErrors.FromError(err).Message
	} else {
		meta["enrolled_courses"] = result.Processed
	}
	h.carts.Drop(claims.UserID)

	response.JSON(c, http.StatusCreated, detail, nil, meta)
}

// List godoc
// @Summary List the user's orders
// @Tags Orders
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	orders, err := h.orders.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, nil)
}

// Get godoc
// @Summary Get an order with its frozen items
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.orders.GetByIDForUser(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Cancel godoc
// @Summary Cancel an order before any of its courses start
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 204
// @Security BearerAuth
// @Router /orders/{id} [delete]
func (h *OrderHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	err := h.orders.Cancel(c.Request.Context(), c.Param("id"), claims.UserID)
	h.metrics.RecordOrderOperation("cancel", err == nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Invoice godoc
// @Summary Resolve an order by invoice id
// @Tags Orders
// @Produce json
// @Param invoiceId path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{invoiceId} [get]
func (h *OrderHandler) Invoice(c *gin.Context) {
	detail, err := h.orders.GetInvoice(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
