package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-coverage-api/internal/middleware"
	"github.com/noah-isme/sma-coverage-api/internal/models"
	"github.com/noah-isme/sma-coverage-api/internal/service"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
	"github.com/noah-isme/sma-coverage-api/pkg/response"
)

type absenceService interface {
	Report(ctx context.Context, req service.ReportAbsenceRequest) (*models.Absence, error)
	ListByDate(ctx context.Context, date string) ([]models.Absence, error)
}

type substituteService interface {
	ListActive(ctx context.Context) ([]models.Substitute, error)
	Get(ctx context.Context, id string) (*models.Substitute, error)
	Create(ctx context.Context, req service.CreateSubstituteRequest) (*models.Substitute, error)
}

// RosterHandler exposes absence reporting and the substitute roster.
type RosterHandler struct {
	absences    absenceService
	substitutes substituteService
}

// NewRosterHandler constructs a RosterHandler.
func NewRosterHandler(absences absenceService, substitutes substituteService) *RosterHandler {
	return &RosterHandler{absences: absences, substitutes: substitutes}
}

// ReportAbsence godoc
// @Summary Report a teacher absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body service.ReportAbsenceRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Router /absences [post]
func (h *RosterHandler) ReportAbsence(c *gin.Context) {
	var req service.ReportAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence payload"))
		return
	}
	absence, err := h.absences.Report(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, absence.ID)
	response.Created(c, absence)
}

// ListAbsences godoc
// @Summary List absences for a date
// @Tags Absences
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *RosterHandler) ListAbsences(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	absences, err := h.absences.ListByDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, absences, len(absences))
}

// ListSubstitutes godoc
// @Summary List active substitutes
// @Tags Substitutes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutes [get]
func (h *RosterHandler) ListSubstitutes(c *gin.Context) {
	subs, err := h.substitutes.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, subs, len(subs))
}

// GetSubstitute godoc
// @Summary Get substitute detail
// @Tags Substitutes
// @Produce json
// @Param id path string true "Substitute ID"
// @Success 200 {object} response.Envelope
// @Router /substitutes/{id} [get]
func (h *RosterHandler) GetSubstitute(c *gin.Context) {
	sub, err := h.substitutes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// CreateSubstitute godoc
// @Summary Register a substitute
// @Tags Substitutes
// @Accept json
// @Produce json
// @Param payload body service.CreateSubstituteRequest true "Substitute payload"
// @Success 201 {object} response.Envelope
// @Router /substitutes [post]
func (h *RosterHandler) CreateSubstitute(c *gin.Context) {
	var req service.CreateSubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitute payload"))
		return
	}
	sub, err := h.substitutes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceKey, sub.ID)
	response.Created(c, sub)
}
