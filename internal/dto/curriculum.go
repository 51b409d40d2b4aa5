package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/models"
)

// CreateCurriculumRequest is the payload for adding one curriculum record by hand.
type CreateCurriculumRequest struct {
	Code                  string       `json:"code" validate:"omitempty,max=64"`
	Cycle                 models.Cycle `json:"cycle" validate:"omitempty,oneof=middle secondary"`
	Subject               string       `json:"subject" validate:"required,max=120"`
	Level                 string       `json:"level" validate:"required,max=40"`
	Stream                string       `json:"stream" validate:"omitempty,max=120"`
	Domain                string       `json:"domain" validate:"required,max=200"`
	Unit                  string       `json:"unit" validate:"required,max=200"`
	LessonTitle           string       `json:"lessonTitle" validate:"required,max=300"`
	TargetCompetencies    []string     `json:"targetCompetencies" validate:"omitempty,dive,max=500"`
	PerformanceIndicators []string     `json:"performanceIndicators" validate:"omitempty,dive,max=500"`
	SuggestedDuration     int          `json:"suggestedDuration" validate:"omitempty,min=1,max=100"`
}

// CurriculumQuery mirrors the supported listing filters.
type CurriculumQuery struct {
	Cycle   string `form:"cycle"`
	Subject string `form:"subject"`
	Level   string `form:"level"`
	Stream  string `form:"stream"`
	Domain  string `form:"domain"`
	Search  string `form:"search"`
}

// Filter converts query parameters into a model filter.
func (q CurriculumQuery) Filter() models.CurriculumFilter {
	return models.CurriculumFilter{
		Cycle:   models.Cycle(q.Cycle),
		Subject: q.Subject,
		Level:   q.Level,
		Stream:  q.Stream,
		Domain:  q.Domain,
		Search:  q.Search,
	}
}

// CurriculumDetail is one record plus the viewer's reporting state.
type CurriculumDetail struct {
	Item             models.CurriculumStandard `json:"item"`
	HasPendingReport bool                      `json:"hasPendingReport"`
	OpenReports      int                       `json:"openReports"`
}

// ImportCommitRequest commits either a previewed plan or raw candidate items.
// When Items is present it is re-planned against the collection at commit time.
type ImportCommitRequest struct {
	Preview *curriculum.ImportPreview `json:"preview,omitempty"`
	Items   json.RawMessage           `json:"items,omitempty"`
}

// ImportCommitResult summarises a committed import.
type ImportCommitResult struct {
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Total      int      `json:"total"`
	Errors     []string `json:"errors"`
	Collection int      `json:"collectionSize"`
}

// SubmitReportRequest is a teacher's flag on a curriculum item.
type SubmitReportRequest struct {
	CurriculumID string            `json:"curriculumId" validate:"required"`
	Type         models.ReportType `json:"type" validate:"required,oneof=ERROR MISSING_INFO SUGGESTION"`
	Description  string            `json:"description" validate:"required,max=2000"`
}

// AuditQuery mirrors audit log listing filters.
type AuditQuery struct {
	Action   string `form:"action"`
	EntityID string `form:"entityId"`
	UserID   string `form:"userId"`
	Limit    int    `form:"limit"`
}

// ExtractionStatus is the lifecycle of an image extraction job.
type ExtractionStatus string

const (
	ExtractionQueued     ExtractionStatus = "QUEUED"
	ExtractionProcessing ExtractionStatus = "PROCESSING"
	ExtractionCompleted  ExtractionStatus = "COMPLETED"
	ExtractionFailed     ExtractionStatus = "FAILED"
)

// ExtractionJobResponse reports the state of an extraction and, once done, its import plan.
type ExtractionJobResponse struct {
	ID         string                 `json:"id"`
	Status     ExtractionStatus       `json:"status"`
	Subject    string                 `json:"subject"`
	Level      string                 `json:"level"`
	CreatedBy  string                 `json:"createdBy"`
	CreatedAt  time.Time              `json:"createdAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Candidates []any                  `json:"candidates,omitempty"`
	Plan       *curriculum.ImportPlan `json:"plan,omitempty"`
}
