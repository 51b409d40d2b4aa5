package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

const maxPageSize = 200

type curriculumService interface {
	List(ctx context.Context, filter models.CurriculumFilter) ([]models.CurriculumStandard, error)
	Get(ctx context.Context, viewer models.Actor, id string) (*dto.CurriculumDetail, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateCurriculumRequest) (*models.CurriculumStandard, error)
	Update(ctx context.Context, actor models.Actor, id string, patch models.CurriculumPatch) (*models.CurriculumStandard, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

type exportService interface {
	Export(ctx context.Context, filter models.CurriculumFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// CurriculumHandler serves curriculum browsing and administration.
type CurriculumHandler struct {
	service  curriculumService
	exporter exportService
}

// NewCurriculumHandler constructs the handler.
func NewCurriculumHandler(svc curriculumService, exporter exportService) *CurriculumHandler {
	return &CurriculumHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List curriculum records
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param cycle query string false "middle or secondary"
// @Param subject query string false "Subject"
// @Param level query string false "Level"
// @Param stream query string false "Stream"
// @Param domain query string false "Domain"
// @Param search query string false "Matches code, domain, unit or lesson title"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /curriculum [get]
func (h *CurriculumHandler) List(c *gin.Context) {
	var query dto.CurriculumQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}

	page, size := parsePaging(c)
	if size == 0 {
		response.JSON(c, http.StatusOK, items, nil)
		return
	}
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	response.JSON(c, http.StatusOK, items[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)})
}

// Get godoc
// @Summary Get a curriculum record
// @Description Includes whether the caller already has a pending report on it
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param id path string true "Curriculum ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /curriculum/{id} [get]
func (h *CurriculumHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create a curriculum record
// @Tags Curriculum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateCurriculumRequest true "Curriculum record"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /curriculum [post]
func (h *CurriculumHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateCurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid curriculum payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a curriculum record
// @Description Shallow merge: omitted fields keep their values
// @Tags Curriculum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Curriculum ID"
// @Param payload body models.CurriculumPatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /curriculum/{id} [patch]
func (h *CurriculumHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var patch models.CurriculumPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid curriculum patch"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a curriculum record
// @Tags Curriculum
// @Security BearerAuth
// @Param id path string true "Curriculum ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /curriculum/{id} [delete]
func (h *CurriculumHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the curriculum
// @Tags Curriculum
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /curriculum/export [get]
func (h *CurriculumHandler) Export(c *gin.Context) {
	var query dto.CurriculumQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportCSV))))
	res, err := h.exporter.Export(c.Request.Context(), query.Filter(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

func parsePaging(c *gin.Context) (int, int) {
	size, err := strconv.Atoi(c.Query("pageSize"))
	if err != nil || size <= 0 {
		return 1, 0
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return page, size
}
