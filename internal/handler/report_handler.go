package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type reportService interface {
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitReportRequest) (*models.CurriculumReport, error)
	List(ctx context.Context, status models.ReportStatus) ([]models.CurriculumReport, error)
	Resolve(ctx context.Context, actor models.Actor, reportID string) error
}

// ReportHandler exposes teacher reports on curriculum records.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Submit godoc
// @Summary Report a curriculum record
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitReportRequest true "Report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /curriculum/reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}
	report, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List godoc
// @Summary List curriculum reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, REVIEWED or RESOLVED"
// @Success 200 {object} response.Envelope
// @Router /curriculum/reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	status := models.ReportStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	reports, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// Resolve godoc
// @Summary Resolve a curriculum report
// @Tags Reports
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /curriculum/reports/{id}/resolve [post]
func (h *ReportHandler) Resolve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Resolve(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
