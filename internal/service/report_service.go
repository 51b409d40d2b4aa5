package service

import (
	"context"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

// ReportService handles teacher reports on curriculum records and their resolution.
type ReportService struct {
	data      dataContext
	gate      *curriculum.Gate
	metrics   *MetricsService
	validator *validator.Validate
	policy    *bluemonday.Policy
	logger    *zap.Logger
}

// NewReportService constructs a ReportService. A nil gate uses the default one.
func NewReportService(data dataContext, gate *curriculum.Gate, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if gate == nil {
		gate = curriculum.NewGate()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		data:      data,
		gate:      gate,
		metrics:   metrics,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Submit records a PENDING report from any authenticated user.
func (s *ReportService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitReportRequest) (*models.CurriculumReport, error) {
	req.Description = s.sanitize(req.Description)
	req.CurriculumID = strings.TrimSpace(req.CurriculumID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	var report models.CurriculumReport
	_, err := runGated(ctx, s.data, s.metrics, s.logger, opSubmit, actor, func(state curriculum.State) (curriculum.State, error) {
		if _, ok := curriculum.FindItem(state.Items, req.CurriculumID); !ok {
			return state, appErrors.Clone(appErrors.ErrCurriculumNotFound, "")
		}
		next, created, err := s.gate.SubmitReport(state, actor, curriculum.ReportSubmission{
			CurriculumID: req.CurriculumID,
			Type:         req.Type,
			Description:  req.Description,
		})
		report = created
		return next, err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("curriculum report submitted",
		zap.String("report_id", report.ID),
		zap.String("curriculum_id", report.CurriculumID),
		zap.String("type", string(report.Type)),
	)
	return &report, nil
}

// List returns reports in status, or all reports when status is empty.
func (s *ReportService) List(ctx context.Context, status models.ReportStatus) ([]models.CurriculumReport, error) {
	switch status {
	case "", models.ReportStatusPending, models.ReportStatusReviewed, models.ReportStatusResolved:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PENDING, REVIEWED or RESOLVED")
	}
	return curriculum.FilterReports(s.data.Snapshot().Reports, status), nil
}

// Resolve marks a report RESOLVED. Unknown ids succeed and are still audited.
func (s *ReportService) Resolve(ctx context.Context, actor models.Actor, reportID string) error {
	_, err := runGated(ctx, s.data, s.metrics, s.logger, opResolve, actor, func(state curriculum.State) (curriculum.State, error) {
		return s.gate.ResolveReport(state, actor, reportID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("curriculum report resolved", zap.String("report_id", reportID), zap.String("actor_id", actor.ID))
	return nil
}

// sanitize strips markup from free text; entities produced by the policy are decoded back
// since descriptions are stored as plain text.
func (s *ReportService) sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
