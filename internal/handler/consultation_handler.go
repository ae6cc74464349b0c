package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	"github.com/bimbingan-kampus/konsultasi-api/internal/service"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/response"
)

type consultationService interface {
	Book(ctx context.Context, actorID int64, req service.BookConsultationRequest) (*models.Consultation, error)
	Get(ctx context.Context, actorID int64, id int64) (*models.Consultation, error)
	List(ctx context.Context, actorID int64, actorRole models.UserRole, filter models.ConsultationFilter) ([]models.Consultation, *models.Pagination, error)
	Amend(ctx context.Context, actorID int64, id int64, req service.AmendConsultationRequest) (*models.Consultation, error)
	Decide(ctx context.Context, actorID int64, id int64, req service.DecideConsultationRequest) (*models.Consultation, error)
	Withdraw(ctx context.Context, actorID int64, id int64) error
}

type agendaService interface {
	Agenda(ctx context.Context, advisorID int64, date string) ([]service.AgendaEntry, error)
	Export(ctx context.Context, advisorID int64, date, format string) (*service.AgendaExport, error)
}

// ConsultationHandler exposes the booking lifecycle over HTTP.
type ConsultationHandler struct {
	consultations consultationService
	agenda        agendaService
}

// NewConsultationHandler creates a new handler.
func NewConsultationHandler(consultations consultationService, agenda agendaService) *ConsultationHandler {
	return &ConsultationHandler{consultations: consultations, agenda: agenda}
}

// Book godoc
// @Summary Book consultation
// @Description Create a pending consultation booking for the authenticated mahasiswa
// @Tags Consultations
// @Accept json
// @Produce json
// @Param payload body service.BookConsultationRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /consultations [post]
func (h *ConsultationHandler) Book(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BookConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrIncompleteInput.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	consultation, err := h.consultations.Book(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, consultation)
}

// List godoc
// @Summary List consultations
// @Description List the authenticated user's consultations
// @Tags Consultations
// @Produce json
// @Param date query string false "Filter by session date (YYYY-MM-DD)"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /consultations [get]
func (h *ConsultationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ConsultationFilter{
		SessionDate: c.Query("date"),
		Status:      models.ConsultationStatus(c.Query("status")),
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "page_size", 20),
		SortOrder:   c.Query("sort_order"),
	}

	list, pagination, err := h.consultations.List(c.Request.Context(), claims.UserID, claims.Role, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, list, pagination)
}

// Get godoc
// @Summary Get consultation
// @Description Load a single consultation visible to the authenticated user
// @Tags Consultations
// @Produce json
// @Param id path int true "Consultation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /consultations/{id} [get]
func (h *ConsultationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrIncompleteInput, "consultation id must be a positive integer"))
		return
	}

	consultation, err := h.consultations.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, consultation, nil)
}

// Amend godoc
// @Summary Amend consultation
// @Description Patch a pending booking owned by the authenticated mahasiswa
// @Tags Consultations
// @Accept json
// @Produce json
// @Param id path int true "Consultation ID"
// @Param payload body service.AmendConsultationRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /consultations/{id} [patch]
func (h *ConsultationHandler) Amend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrIncompleteInput, "consultation id must be a positive integer"))
		return
	}

	var req service.AmendConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrIncompleteInput.Code, http.StatusBadRequest, "invalid amend payload"))
		return
	}

	consultation, err := h.consultations.Amend(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, consultation, nil)
}

// Decide godoc
// @Summary Decide consultation
// @Description Approve or reject a pending booking assigned to the authenticated dosen
// @Tags Consultations
// @Accept json
// @Produce json
// @Param id path int true "Consultation ID"
// @Param payload body service.DecideConsultationRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /consultations/{id}/decision [post]
func (h *ConsultationHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrIncompleteInput, "consultation id must be a positive integer"))
		return
	}

	var req service.DecideConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	consultation, err := h.consultations.Decide(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, consultation, nil)
}

// Withdraw godoc
// @Summary Withdraw consultation
// @Description Delete a pending booking owned by the authenticated mahasiswa
// @Tags Consultations
// @Produce json
// @Param id path int true "Consultation ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /consultations/{id} [delete]
func (h *ConsultationHandler) Withdraw(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrIncompleteInput, "consultation id must be a positive integer"))
		return
	}

	if err := h.consultations.Withdraw(c.Request.Context(), claims.UserID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Agenda godoc
// @Summary Advisor daily agenda
// @Description The authenticated dosen's consultations for one date
// @Tags Consultations
// @Produce json
// @Param date query string true "Session date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /consultations/agenda [get]
func (h *ConsultationHandler) Agenda(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.agenda.Agenda(c.Request.Context(), claims.UserID, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportAgenda godoc
// @Summary Export advisor agenda
// @Description Download the dosen's daily agenda as CSV or PDF
// @Tags Consultations
// @Produce octet-stream
// @Param date query string true "Session date (YYYY-MM-DD)"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /consultations/agenda/export [get]
func (h *ConsultationHandler) ExportAgenda(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	result, err := h.agenda.Export(c.Request.Context(), claims.UserID, c.Query("date"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
