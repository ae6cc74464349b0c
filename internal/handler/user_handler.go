package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	"github.com/bimbingan-kampus/konsultasi-api/internal/service"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/response"
)

// UserHandler serves the advisor directory.
type UserHandler struct {
	directory *service.DirectoryService
}

// NewUserHandler creates a new handler.
func NewUserHandler(directory *service.DirectoryService) *UserHandler {
	return &UserHandler{directory: directory}
}

// ListAdvisors godoc
// @Summary List advisors
// @Description Paginated directory of dosen available for booking
// @Tags Directory
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Filter by name or username"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /advisors [get]
func (h *UserHandler) ListAdvisors(c *gin.Context) {
	filter := models.UserFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
		Search:   c.Query("search"),
	}

	advisors, pagination, err := h.directory.ListAdvisors(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, advisors, pagination)
}

// GetAdvisor godoc
// @Summary Get advisor
// @Description Public info for a single advisor
// @Tags Directory
// @Produce json
// @Param id path int true "Advisor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /advisors/{id} [get]
func (h *UserHandler) GetAdvisor(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrIncompleteInput, "advisor id must be a positive integer"))
		return
	}

	info, err := h.directory.GetUser(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if info.Role != models.RoleDosen {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "advisor not found"))
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}
