package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-market-api/internal/service"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
	"github.com/noah-isme/course-market-api/pkg/response"
)

// DiplomaHandler exposes curriculum completion endpoints.
type DiplomaHandler struct {
	diplomas *service.DiplomaService
}

// NewDiplomaHandler constructs DiplomaHandler.
func NewDiplomaHandler(diplomas *service.DiplomaService) *DiplomaHandler {
	return &DiplomaHandler{diplomas: diplomas}
}

// Curriculums godoc
// @Summary List curriculums with their required courses
// @Tags Diplomas
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /curriculums [get]
func (h *DiplomaHandler) Curriculums(c *gin.Context) {
	curriculums, err := h.diplomas.Curriculums(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, curriculums, nil)
}

// Progress godoc
// @Summary Check whether the user completed a curriculum
// @Tags Diplomas
// @Produce json
// @Param id path string true "Curriculum ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /curriculums/{id}/progress [get]
func (h *DiplomaHandler) Progress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	passed, err := h.diplomas.HasPassedAllCourses(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"completed": passed}, nil)
}

// Issue godoc
// @Summary Award a diploma for a completed curriculum
// @Tags Diplomas
// @Produce json
// @Param id path string true "Curriculum ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /curriculums/{id}/diplomas [post]
func (h *DiplomaHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	diploma, err := h.diplomas.IssueDiploma(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, diploma)
}

// List godoc
// @Summary List the user's diplomas
// @Tags Diplomas
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /diplomas [get]
func (h *DiplomaHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	diplomas, err := h.diplomas.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diplomas, nil)
}

// Remove godoc
// @Summary Revoke a diploma
// @Tags Diplomas
// @Produce json
// @Param id path string true "Diploma ID"
// @Success 204
// @Security BearerAuth
// @Router /diplomas/{id} [delete]
func (h *DiplomaHandler) Remove(c *gin.Context) {
	if err := h.diplomas.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
