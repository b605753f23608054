package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-coverage-api/internal/dto"
	"github.com/noah-isme/sma-coverage-api/internal/middleware"
	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
	"github.com/noah-isme/sma-coverage-api/pkg/response"
)

type coverageService interface {
	Preview(ctx context.Context, req dto.CoverageRunRequest) (*dto.CoveragePlanResponse, error)
	Commit(ctx context.Context, req dto.CoverageRunRequest, actorID string) (*dto.CoveragePlanResponse, error)
	ListAssignments(ctx context.Context, date string) ([]models.CoverageAssignment, error)
	LatestRun(ctx context.Context, date string) (*models.CoverageRun, error)
	Export(ctx context.Context, req dto.CoverageExportRequest) (*dto.CoverageExportResponse, error)
	ResolveExport(ctx context.Context, token string) (*os.File, string, error)
}

// CoverageHandler exposes the daily substitute coverage endpoints.
type CoverageHandler struct {
	service coverageService
}

// NewCoverageHandler constructs a CoverageHandler.
func NewCoverageHandler(service coverageService) *CoverageHandler {
	return &CoverageHandler{service: service}
}

// Preview godoc
// @Summary Preview the coverage plan for a school day
// @Description Computes cover for every absence on the date without saving anything.
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.CoverageRunRequest true "Date and day type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coverage/preview [post]
func (h *CoverageHandler) Preview(c *gin.Context) {
	var req dto.CoverageRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Commit godoc
// @Summary Commit the coverage plan for a school day
// @Description Recomputes the plan and replaces the stored assignments for the date.
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.CoverageRunRequest true "Date and day type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coverage/commit [post]
func (h *CoverageHandler) Commit(c *gin.Context) {
	var req dto.CoverageRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	c.Set(middleware.AuditResourceKey, req.Date)
	result, err := h.service.Commit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Assignments godoc
// @Summary List committed assignments for a date
// @Tags Coverage
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /coverage/assignments [get]
func (h *CoverageHandler) Assignments(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	assignments, err := h.service.ListAssignments(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, assignments, len(assignments))
}

// LatestRun godoc
// @Summary Latest committed run for a date
// @Tags Coverage
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /coverage/runs/latest [get]
func (h *CoverageHandler) LatestRun(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	run, err := h.service.LatestRun(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// Export godoc
// @Summary Render the coverage sheet for a date
// @Tags Coverage
// @Accept json
// @Produce json
// @Param payload body dto.CoverageExportRequest true "Date and format"
// @Success 201 {object} response.Envelope
// @Router /coverage/exports [post]
func (h *CoverageHandler) Export(c *gin.Context) {
	var req dto.CoverageExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	c.Set(middleware.AuditResourceKey, req.Date)
	result, err := h.service.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a rendered coverage sheet via signed token
// @Tags Coverage
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /coverage/exports/{token} [get]
func (h *CoverageHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.service.ResolveExport(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), exportMimeType(filename), file, nil)
}

func exportMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
