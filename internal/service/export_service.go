package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/export"
)

// ExportFormat is a supported printable rendition of the curriculum.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult is a rendered file ready to stream to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders the (optionally filtered) curriculum as CSV or PDF.
type ExportService struct {
	data   dataContext
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(data dataContext, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{data: data, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

var curriculumHeaders = []string{"Code", "Cycle", "Subject", "Level", "Stream", "Domain", "Unit", "Lesson", "Competencies", "Indicators", "Duration"}

// Export renders the records matching filter in format.
func (s *ExportService) Export(ctx context.Context, filter models.CurriculumFilter, format ExportFormat) (*ExportResult, error) {
	items := curriculum.FilterItems(s.data.Snapshot().Items, filter)
	dataset := buildCurriculumDataset(items)
	stamp := s.now().UTC().Format("20060102-150405")

	var (
		out         []byte
		err         error
		contentType string
	)
	switch format {
	case ExportCSV, "":
		format = ExportCSV
		contentType = "text/csv; charset=utf-8"
		out, err = s.csv.Render(dataset)
	case ExportPDF:
		contentType = "application/pdf"
		out, err = s.pdf.Render(dataset, exportTitle(filter))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		s.logger.Error("curriculum export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("curriculum exported", zap.String("format", string(format)), zap.Int("rows", len(items)))
	return &ExportResult{
		Filename:    fmt.Sprintf("curriculum-%s.%s", stamp, format),
		ContentType: contentType,
		Data:        out,
	}, nil
}

func buildCurriculumDataset(items []models.CurriculumStandard) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Code":         item.Code,
			"Cycle":        string(item.Cycle),
			"Subject":      item.Subject,
			"Level":        item.Level,
			"Stream":       item.Stream,
			"Domain":       item.Domain,
			"Unit":         item.Unit,
			"Lesson":       item.LessonTitle,
			"Competencies": strings.Join(item.TargetCompetencies, "; "),
			"Indicators":   strings.Join(item.PerformanceIndicators, "; "),
			"Duration":     strconv.Itoa(item.SuggestedDuration),
		})
	}
	return export.Dataset{
		Headers: curriculumHeaders,
		Rows:    rows,
		Widths:  []float64{1.4, 0.9, 1.2, 0.7, 1, 1.4, 1.4, 2, 2.2, 2.2, 0.7},
	}
}

func exportTitle(filter models.CurriculumFilter) string {
	parts := []string{"Curriculum"}
	for _, p := range []string{string(filter.Cycle), filter.Subject, filter.Level, filter.Stream} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}
