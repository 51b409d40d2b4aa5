package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/cache"
)

const (
	outcomeOK       = "ok"
	outcomeDenied   = "denied"
	outcomeNotFound = "not_found"
	outcomeConflict = "conflict"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"

	opCreate  = "create"
	opUpdate  = "update"
	opDelete  = "delete"
	opImport  = "import"
	opResolve = "resolve_report"
	opSubmit  = "submit_report"
)

// dataContext is the serialized, persisted view of the governed collections.
type dataContext interface {
	Snapshot() curriculum.State
	Apply(ctx context.Context, fn func(curriculum.State) (curriculum.State, error)) (curriculum.State, error)
}

// CurriculumService runs curriculum reads and gated mutations against the data context.
type CurriculumService struct {
	data      dataContext
	gate      *curriculum.Gate
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheKey  string
	cacheTTL  time.Duration
	planOpts  []curriculum.PlanOption
}

// CurriculumServiceOption customises the service.
type CurriculumServiceOption func(*CurriculumService)

// WithCurriculumGate overrides the gate, typically to pin clocks and ids in tests.
func WithCurriculumGate(g *curriculum.Gate) CurriculumServiceOption {
	return func(s *CurriculumService) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithCurriculumCache enables list caching under prefix.
func WithCurriculumCache(c *CacheService, prefix string, ttl time.Duration) CurriculumServiceOption {
	return func(s *CurriculumService) {
		s.cache = c
		s.cacheKey = cache.Key(prefix, "curriculum", "list")
		s.cacheTTL = ttl
	}
}

// WithCurriculumMetrics wires metrics collection.
func WithCurriculumMetrics(m *MetricsService) CurriculumServiceOption {
	return func(s *CurriculumService) {
		s.metrics = m
	}
}

// WithPlanOptions forwards options to import planning.
func WithPlanOptions(opts ...curriculum.PlanOption) CurriculumServiceOption {
	return func(s *CurriculumService) {
		s.planOpts = append(s.planOpts, opts...)
	}
}

// NewCurriculumService constructs the service.
func NewCurriculumService(data dataContext, validate *validator.Validate, logger *zap.Logger, opts ...CurriculumServiceOption) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &CurriculumService{
		data:      data,
		gate:      curriculum.NewGate(),
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// List returns the records matching filter.
func (s *CurriculumService) List(ctx context.Context, filter models.CurriculumFilter) ([]models.CurriculumStandard, error) {
	if filter.Cycle != "" && !filter.Cycle.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cycle must be middle or secondary")
	}
	key := s.listKey(filter)
	var cached []models.CurriculumStandard
	if key != "" && s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	items := curriculum.FilterItems(s.data.Snapshot().Items, filter)
	if key != "" {
		s.cache.Set(ctx, key, items, s.cacheTTL)
	}
	return items, nil
}

// Get returns one record with the viewer's report state.
func (s *CurriculumService) Get(ctx context.Context, viewer models.Actor, id string) (*dto.CurriculumDetail, error) {
	state := s.data.Snapshot()
	item, ok := curriculum.FindItem(state.Items, id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCurriculumNotFound, "")
	}
	open := 0
	for _, r := range curriculum.FilterReports(state.Reports, models.ReportStatusPending) {
		if r.CurriculumID == id {
			open++
		}
	}
	return &dto.CurriculumDetail{
		Item:             item,
		HasPendingReport: curriculum.HasPendingReport(state.Reports, viewer.ID, id),
		OpenReports:      open,
	}, nil
}

// Create adds a record through the gate.
func (s *CurriculumService) Create(ctx context.Context, actor models.Actor, req dto.CreateCurriculumRequest) (*models.CurriculumStandard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid curriculum payload")
	}
	item := itemFromRequest(req)

	var created models.CurriculumStandard
	err := s.mutate(ctx, opCreate, actor, func(state curriculum.State) (curriculum.State, error) {
		next, out, err := s.gate.CreateItem(state, actor, item)
		created = out
		return next, err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("curriculum item created", zap.String("id", created.ID), zap.String("actor_id", actor.ID))
	return &created, nil
}

// Update shallow-merges patch onto the record.
func (s *CurriculumService) Update(ctx context.Context, actor models.Actor, id string, patch models.CurriculumPatch) (*models.CurriculumStandard, error) {
	if patch.Cycle != nil && !patch.Cycle.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cycle must be middle or secondary")
	}
	if patch.SuggestedDuration != nil && (*patch.SuggestedDuration < 1 || *patch.SuggestedDuration > 100) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "suggestedDuration must be between 1 and 100")
	}
	patch, err := trimPatch(patch)
	if err != nil {
		return nil, err
	}

	var updated models.CurriculumStandard
	err = s.mutate(ctx, opUpdate, actor, func(state curriculum.State) (curriculum.State, error) {
		next, out, err := s.gate.UpdateItem(state, actor, id, patch)
		updated = out
		return next, err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("curriculum item updated", zap.String("id", id), zap.String("actor_id", actor.ID))
	return &updated, nil
}

// Delete removes the record. Unknown ids still succeed and are written to the audit log.
func (s *CurriculumService) Delete(ctx context.Context, actor models.Actor, id string) error {
	err := s.mutate(ctx, opDelete, actor, func(state curriculum.State) (curriculum.State, error) {
		return s.gate.DeleteItem(state, actor, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("curriculum item deleted", zap.String("id", id), zap.String("actor_id", actor.ID))
	return nil
}

// PlanImport reconciles a raw JSON payload with the current collection without mutating it.
func (s *CurriculumService) PlanImport(ctx context.Context, payload []byte) curriculum.ImportPlan {
	plan := curriculum.PlanImportJSON(payload, s.data.Snapshot().Items, s.planOpts...)
	s.metrics.RecordImportRows("plan", plan.Added, plan.Updated, len(plan.Errors))
	return plan
}

// PlanCandidates plans already-decoded candidate rows, as produced by extraction.
func (s *CurriculumService) PlanCandidates(ctx context.Context, candidates []any) curriculum.ImportPlan {
	plan := curriculum.PlanImport(candidates, s.data.Snapshot().Items, s.planOpts...)
	s.metrics.RecordImportRows("plan", plan.Added, plan.Updated, len(plan.Errors))
	return plan
}

// CommitImport merges a previewed plan, or freshly planned raw items, into the collection
// as one IMPORT. Merging happens against the collection at commit time.
func (s *CurriculumService) CommitImport(ctx context.Context, actor models.Actor, req dto.ImportCommitRequest) (*dto.ImportCommitResult, error) {
	hasItems := len(strings.TrimSpace(string(req.Items))) > 0 && string(req.Items) != "null"
	if req.Preview == nil && !hasItems {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either preview or items is required")
	}

	result := &dto.ImportCommitResult{Errors: []string{}}
	err := s.mutate(ctx, opImport, actor, func(state curriculum.State) (curriculum.State, error) {
		if !actor.IsAdmin() {
			return state, appErrors.Clone(appErrors.ErrPermissionDenied, "")
		}
		var plan curriculum.ImportPlan
		if hasItems {
			plan = curriculum.PlanImportJSON(req.Items, state.Items, s.planOpts...)
			if len(plan.Errors) == 1 && plan.Errors[0] == curriculum.FormatError {
				return state, appErrors.Clone(appErrors.ErrImportFormat, "")
			}
		} else {
			replanned, err := replanPreview(*req.Preview, state.Items, s.planOpts...)
			if err != nil {
				return state, err
			}
			plan = replanned
		}
		if plan.Added+plan.Updated == 0 {
			return state, appErrors.Clone(appErrors.ErrValidation, "import contains no valid items")
		}

		merged := curriculum.MergePlan(state.Items, plan)
		next, err := s.gate.ImportBatch(state, actor, merged)
		if err != nil {
			return state, err
		}
		result.Added = plan.Added
		result.Updated = plan.Updated
		result.Total = plan.Added + plan.Updated
		result.Errors = append(result.Errors, plan.Errors...)
		result.Collection = len(next.Items)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordImportRows("commit", result.Added, result.Updated, len(result.Errors))
	s.logger.Info("curriculum import committed",
		zap.String("actor_id", actor.ID),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", len(result.Errors)),
	)
	return result, nil
}

// replanPreview runs a client-held preview through planning again against the collection
// at commit time, so stale or hand-built previews cannot duplicate ids or store blank rows.
func replanPreview(preview curriculum.ImportPreview, existing []models.CurriculumStandard, opts ...curriculum.PlanOption) (curriculum.ImportPlan, error) {
	rows := make([]models.CurriculumStandard, 0, len(preview.UpdatedItems)+len(preview.NewItems))
	rows = append(rows, preview.UpdatedItems...)
	rows = append(rows, preview.NewItems...)
	raw, err := json.Marshal(rows)
	if err != nil {
		return curriculum.ImportPlan{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import preview")
	}
	return curriculum.PlanImportJSON(raw, existing, opts...), nil
}

// trimPatch trims the text fields of a patch and rejects blanks for required fields.
func trimPatch(patch models.CurriculumPatch) (models.CurriculumPatch, error) {
	required := []struct {
		name  string
		value **string
	}{
		{"subject", &patch.Subject},
		{"level", &patch.Level},
		{"domain", &patch.Domain},
		{"unit", &patch.Unit},
		{"lessonTitle", &patch.LessonTitle},
	}
	for _, field := range required {
		if *field.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(**field.value)
		if trimmed == "" {
			return patch, appErrors.Clone(appErrors.ErrValidation, field.name+" is required")
		}
		*field.value = &trimmed
	}
	for _, optional := range []**string{&patch.Code, &patch.Stream} {
		if *optional != nil {
			trimmed := strings.TrimSpace(**optional)
			*optional = &trimmed
		}
	}
	return patch, nil
}

// mutate applies fn through the data context and records metrics, cache invalidation and logs.
func (s *CurriculumService) mutate(ctx context.Context, op string, actor models.Actor, fn func(curriculum.State) (curriculum.State, error)) error {
	if _, err := runGated(ctx, s.data, s.metrics, s.logger, op, actor, fn); err != nil {
		return err
	}
	if s.cacheKey != "" {
		s.cache.Invalidate(ctx, s.cacheKey+":*")
	}
	return nil
}

// runGated is the shared commit path for every gated mutation.
func runGated(ctx context.Context, data dataContext, metrics *MetricsService, logger *zap.Logger, op string, actor models.Actor, fn func(curriculum.State) (curriculum.State, error)) (curriculum.State, error) {
	start := time.Now()
	next, err := data.Apply(ctx, fn)
	outcome := outcomeFor(err)
	metrics.ObserveGateOperation(op, outcome, time.Since(start))
	if err != nil {
		switch outcome {
		case outcomeDenied:
			logger.Warn("curriculum mutation denied", zap.String("operation", op), zap.String("actor_id", actor.ID), zap.String("role", string(actor.Role)))
		case outcomeError:
			logger.Error("curriculum mutation failed", zap.String("operation", op), zap.String("actor_id", actor.ID), zap.Error(err))
		}
		return next, asAppError(err, "failed to persist curriculum change")
	}
	metrics.SetCollectionSizes(len(next.Items), len(curriculum.FilterReports(next.Reports, models.ReportStatusPending)))
	return next, nil
}

func (s *CurriculumService) listKey(filter models.CurriculumFilter) string {
	if s.cacheKey == "" || !s.cache.Enabled() {
		return ""
	}
	raw, _ := json.Marshal(filter)
	sum := sha1.Sum(raw)
	return s.cacheKey + ":" + hex.EncodeToString(sum[:])
}

func itemFromRequest(req dto.CreateCurriculumRequest) models.CurriculumStandard {
	cycle := req.Cycle
	if cycle == "" {
		cycle = models.CycleSecondary
	}
	duration := req.SuggestedDuration
	if duration < 1 {
		duration = 1
	}
	item := models.CurriculumStandard{
		Code:                  strings.TrimSpace(req.Code),
		Cycle:                 cycle,
		Subject:               strings.TrimSpace(req.Subject),
		Level:                 strings.TrimSpace(req.Level),
		Stream:                strings.TrimSpace(req.Stream),
		Domain:                strings.TrimSpace(req.Domain),
		Unit:                  strings.TrimSpace(req.Unit),
		LessonTitle:           strings.TrimSpace(req.LessonTitle),
		TargetCompetencies:    nonEmpty(req.TargetCompetencies),
		PerformanceIndicators: nonEmpty(req.PerformanceIndicators),
		SuggestedDuration:     duration,
	}
	if item.Code == "" {
		item.Code = curriculum.GenerateCode(item)
	}
	return item
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, appErrors.ErrPermissionDenied):
		return outcomeDenied
	case errors.Is(err, appErrors.ErrCurriculumNotFound), errors.Is(err, appErrors.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, appErrors.ErrConflict):
		return outcomeConflict
	case errors.Is(err, appErrors.ErrValidation), errors.Is(err, appErrors.ErrImportFormat):
		return outcomeInvalid
	default:
		return outcomeError
	}
}

// asAppError keeps typed errors and wraps anything else as an internal failure.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
