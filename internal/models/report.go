package models

import "time"

// ReportType classifies what a teacher is flagging on a curriculum item.
type ReportType string

const (
	ReportTypeError       ReportType = "ERROR"
	ReportTypeMissingInfo ReportType = "MISSING_INFO"
	ReportTypeSuggestion  ReportType = "SUGGESTION"
)

// ReportStatus tracks the resolution state of a curriculum report.
// REVIEWED is reserved; nothing transitions into it yet.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "PENDING"
	ReportStatusReviewed ReportStatus = "REVIEWED"
	ReportStatusResolved ReportStatus = "RESOLVED"
)

// CurriculumReport is a teacher's flag that a curriculum item may be wrong or incomplete.
type CurriculumReport struct {
	ID           string       `json:"id"`
	ReporterID   string       `json:"reporterId"`
	ReporterName string       `json:"reporterName"`
	CurriculumID string       `json:"curriculumId"`
	Type         ReportType   `json:"type"`
	Description  string       `json:"description"`
	Date         time.Time    `json:"date"`
	Status       ReportStatus `json:"status"`
}
