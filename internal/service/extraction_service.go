package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/ai"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/jobs"
)

const (
	extractionJobType = "curriculum.extract"
	uploadsDir        = "uploads"
	extractionSchema  = "curriculum_table"
)

const extractionSystemPrompt = `You transcribe official Algerian curriculum tables from photos.
Return one entry per lesson row. Copy text exactly as printed, in the original language.
Never invent rows. Leave a field empty when the image does not show it.
suggestedDuration is the number of hours; use 1 when absent.`

type imageExtractor interface {
	GenerateJSONWithImages(ctx context.Context, system, user string, images []ai.ImageInput, schemaName string, schema map[string]any) (map[string]any, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type uploadStorage interface {
	Save(filename string, data []byte) error
	Read(filename string) ([]byte, error)
	Delete(filename string) error
	CleanupOlderThan(dir string, ttl time.Duration) ([]string, error)
}

type candidatePlanner interface {
	PlanCandidates(ctx context.Context, candidates []any) curriculum.ImportPlan
}

// ExtractionConfig governs image limits and job retention.
type ExtractionConfig struct {
	MaxImageSize    int64
	JobTTL          time.Duration
	CleanupInterval time.Duration
}

// ExtractionRequest is one uploaded curriculum table image plus its target subject and level.
type ExtractionRequest struct {
	Subject string
	Level   string
	Stream  string
	Cycle   models.Cycle
	MIME    string
	Image   []byte
}

type extractionJob struct {
	resp   dto.ExtractionJobResponse
	stream string
	cycle  models.Cycle
	mime   string
}

// ExtractionService turns curriculum table photos into import plans asynchronously.
type ExtractionService struct {
	extractor imageExtractor
	queue     jobDispatcher
	storage   uploadStorage
	planner   candidatePlanner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExtractionConfig
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*extractionJob
}

// NewExtractionService constructs the service. The queue handler must call Process and its
// give-up hook must call Fail.
func NewExtractionService(extractor imageExtractor, queue jobDispatcher, storage uploadStorage, planner candidatePlanner, metrics *MetricsService, logger *zap.Logger, cfg ExtractionConfig) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 8 << 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &ExtractionService{
		extractor: extractor,
		queue:     queue,
		storage:   storage,
		planner:   planner,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		jobs:      make(map[string]*extractionJob),
	}
}

// Submit stores the image and queues an extraction. Only administrators may start one.
func (s *ExtractionService) Submit(ctx context.Context, actor models.Actor, req ExtractionRequest) (*dto.ExtractionJobResponse, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "")
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.storage.Save(uploadName(id), req.Image); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	job := &extractionJob{
		resp: dto.ExtractionJobResponse{
			ID:        id,
			Status:    dto.ExtractionQueued,
			Subject:   req.Subject,
			Level:     req.Level,
			CreatedBy: actor.ID,
			CreatedAt: s.now(),
		},
		stream: req.Stream,
		cycle:  req.Cycle,
		mime:   req.MIME,
	}
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: id, Type: extractionJobType, Payload: id}); err != nil {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		_ = s.storage.Delete(uploadName(id))
		s.metrics.RecordExtractionJob("rejected")
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "extraction queue is full, try again later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue extraction")
	}

	s.metrics.RecordExtractionJob(string(dto.ExtractionQueued))
	s.logger.Info("extraction queued", zap.String("job_id", id), zap.String("subject", req.Subject), zap.String("level", req.Level))
	resp := job.resp
	return &resp, nil
}

// Get returns the job state and, once completed, its candidates and import plan.
func (s *ExtractionService) Get(ctx context.Context, id string) (*dto.ExtractionJobResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "extraction job not found")
	}
	resp := job.resp
	return &resp, nil
}

// Process is the queue handler. Returned errors are retried by the queue.
func (s *ExtractionService) Process(ctx context.Context, j jobs.Job) error {
	id, _ := j.Payload.(string)
	job, ok := s.transition(id, dto.ExtractionProcessing, "")
	if !ok {
		return nil
	}

	image, err := s.storage.Read(uploadName(id))
	if err != nil {
		s.finish(id, nil, nil, fmt.Errorf("read upload: %w", err))
		return nil
	}

	out, err := s.extractor.GenerateJSONWithImages(ctx, extractionSystemPrompt, userPrompt(job),
		[]ai.ImageInput{{MIME: job.mime, Data: image, Detail: "high"}}, extractionSchema, candidateSchema())
	if err != nil {
		return err
	}

	rows, ok := out["items"].([]any)
	if !ok {
		s.finish(id, nil, nil, errors.New("extraction returned no items array"))
		return nil
	}
	candidates := fillTargets(rows, job)
	plan := s.planner.PlanCandidates(ctx, candidates)
	s.finish(id, candidates, &plan, nil)
	return nil
}

// Fail marks a job FAILED once the queue gives up on it.
func (s *ExtractionService) Fail(j jobs.Job, err error) {
	id, _ := j.Payload.(string)
	s.finish(id, nil, nil, err)
}

// StartCleanup purges expired jobs and their uploads periodically.
func (s *ExtractionService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *ExtractionService) cleanupExpired() {
	cutoff := s.now().Add(-s.cfg.JobTTL)
	s.mu.Lock()
	for id, job := range s.jobs {
		if job.resp.FinishedAt != nil && job.resp.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	removed, err := s.storage.CleanupOlderThan(uploadsDir, s.cfg.JobTTL)
	if err != nil {
		s.logger.Warn("upload cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired uploads removed", zap.Int("count", len(removed)))
	}
}

func (s *ExtractionService) validate(req *ExtractionRequest) error {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Level = strings.TrimSpace(req.Level)
	req.Stream = strings.TrimSpace(req.Stream)
	if req.Subject == "" || req.Level == "" {
		return appErrors.Clone(appErrors.ErrValidation, "subject and level are required")
	}
	if req.Cycle != "" && !req.Cycle.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "cycle must be middle or secondary")
	}
	if len(req.Image) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "image is required")
	}
	if int64(len(req.Image)) > s.cfg.MaxImageSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxImageSize))
	}
	detected := http.DetectContentType(req.Image)
	if !strings.HasPrefix(detected, "image/") {
		return appErrors.Clone(appErrors.ErrValidation, "file is not an image")
	}
	req.MIME = detected
	return nil
}

func (s *ExtractionService) transition(id string, status dto.ExtractionStatus, errMsg string) (extractionJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.resp.Status == dto.ExtractionCompleted || job.resp.Status == dto.ExtractionFailed {
		return extractionJob{}, false
	}
	job.resp.Status = status
	job.resp.Error = errMsg
	return *job, true
}

func (s *ExtractionService) finish(id string, candidates []any, plan *curriculum.ImportPlan, cause error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.resp.Status == dto.ExtractionCompleted || job.resp.Status == dto.ExtractionFailed {
		s.mu.Unlock()
		return
	}
	finished := s.now()
	job.resp.FinishedAt = &finished
	if cause != nil {
		job.resp.Status = dto.ExtractionFailed
		job.resp.Error = cause.Error()
	} else {
		job.resp.Status = dto.ExtractionCompleted
		job.resp.Candidates = candidates
		job.resp.Plan = plan
	}
	status := job.resp.Status
	s.mu.Unlock()

	if err := s.storage.Delete(uploadName(id)); err != nil {
		s.logger.Warn("failed to delete upload", zap.String("job_id", id), zap.Error(err))
	}
	s.metrics.RecordExtractionJob(string(status))
	if cause != nil {
		s.logger.Warn("extraction failed", zap.String("job_id", id), zap.Error(cause))
		return
	}
	s.logger.Info("extraction completed", zap.String("job_id", id), zap.Int("candidates", len(candidates)),
		zap.Int("added", plan.Added), zap.Int("updated", plan.Updated), zap.Int("rejected", len(plan.Errors)))
}

// fillTargets stamps the requested subject, level, stream and cycle onto rows that omit them.
func fillTargets(rows []any, job extractionJob) []any {
	targets := map[string]string{
		"subject": job.resp.Subject,
		"level":   job.resp.Level,
		"stream":  job.stream,
		"cycle":   string(job.cycle),
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		fields, ok := row.(map[string]any)
		if !ok {
			out = append(out, row)
			continue
		}
		for key, value := range targets {
			if value == "" {
				continue
			}
			if current, _ := fields[key].(string); strings.TrimSpace(current) == "" {
				fields[key] = value
			}
		}
		out = append(out, fields)
	}
	return out
}

func userPrompt(job extractionJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\nLevel: %s\n", job.resp.Subject, job.resp.Level)
	if job.stream != "" {
		fmt.Fprintf(&b, "Stream: %s\n", job.stream)
	}
	b.WriteString("Extract every lesson row of the curriculum table in the image.")
	return b.String()
}

func candidateSchema() map[string]any {
	str := map[string]any{"type": "string"}
	list := map[string]any{"type": "array", "items": str}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"items"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required": []string{"code", "subject", "level", "stream", "domain", "unit", "lessonTitle",
						"targetCompetencies", "performanceIndicators", "suggestedDuration"},
					"properties": map[string]any{
						"code":                  str,
						"subject":               str,
						"level":                 str,
						"stream":                str,
						"domain":                str,
						"unit":                  str,
						"lessonTitle":           str,
						"targetCompetencies":    list,
						"performanceIndicators": list,
						"suggestedDuration":     map[string]any{"type": "integer"},
					},
				},
			},
		},
	}
}

func uploadName(id string) string {
	return path.Join(uploadsDir, id)
}
