package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type extractionService interface {
	Submit(ctx context.Context, actor models.Actor, req service.ExtractionRequest) (*dto.ExtractionJobResponse, error)
	Get(ctx context.Context, id string) (*dto.ExtractionJobResponse, error)
}

// ExtractionHandler accepts curriculum table photos for asynchronous extraction.
type ExtractionHandler struct {
	service   extractionService
	maxUpload int64
}

// NewExtractionHandler constructs the handler; maxUpload bounds how much of an upload is read.
func NewExtractionHandler(svc extractionService, maxUpload int64) *ExtractionHandler {
	if maxUpload <= 0 {
		maxUpload = 8 << 20
	}
	return &ExtractionHandler{service: svc, maxUpload: maxUpload}
}

// Submit godoc
// @Summary Start an image extraction
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Curriculum table photo"
// @Param subject formData string true "Subject"
// @Param level formData string true "Level"
// @Param stream formData string false "Stream"
// @Param cycle formData string false "middle or secondary"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /curriculum/extractions [post]
func (h *ExtractionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open image"))
		return
	}
	defer file.Close()

	// limit+1 so oversized uploads are rejected rather than truncated.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read image"))
		return
	}

	job, err := h.service.Submit(c.Request.Context(), actor, service.ExtractionRequest{
		Subject: c.PostForm("subject"),
		Level:   c.PostForm("level"),
		Stream:  c.PostForm("stream"),
		Cycle:   models.Cycle(c.PostForm("cycle")),
		Image:   data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Extraction job status
// @Description Once COMPLETED the response carries the candidates and their import plan
// @Tags Import
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /curriculum/extractions/{id} [get]
func (h *ExtractionHandler) Status(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
