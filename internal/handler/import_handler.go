package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

const maxImportBody = 10 << 20

type importService interface {
	PlanImport(ctx context.Context, payload []byte) curriculum.ImportPlan
	CommitImport(ctx context.Context, actor models.Actor, req dto.ImportCommitRequest) (*dto.ImportCommitResult, error)
}

// ImportHandler exposes the two-step import: plan, then commit.
type ImportHandler struct {
	service importService
}

// NewImportHandler constructs the handler.
func NewImportHandler(svc importService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Plan godoc
// @Summary Preview an import
// @Description Classifies a raw JSON array of candidates into new and updated records without changing anything. Format and row problems are reported in errors.
// @Tags Import
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body []object true "Candidate records"
// @Success 200 {object} response.Envelope
// @Router /curriculum/import/plan [post]
func (h *ImportHandler) Plan(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "import payload too large"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read payload"))
		return
	}
	plan := h.service.PlanImport(c.Request.Context(), body)
	response.JSON(c, http.StatusOK, plan, nil)
}

// Commit godoc
// @Summary Commit an import
// @Description Merges a previewed plan, or re-plans raw items, and replaces the collection as one audited IMPORT
// @Tags Import
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ImportCommitRequest true "Preview or raw items"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /curriculum/import/commit [post]
func (h *ImportHandler) Commit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ImportCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid commit payload"))
		return
	}
	res, err := h.service.CommitImport(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
