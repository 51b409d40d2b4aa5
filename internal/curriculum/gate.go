package curriculum

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

const batchEntityID = "batch"

// State is one consistent view of the three governed collections.
type State struct {
	Items    []models.CurriculumStandard
	AuditLog []models.AuditLogEntry
	Reports  []models.CurriculumReport
}

// Clone deep-copies the curriculum and report collections; audit entries are immutable
// and only ever prepended, so the slice header is copied.
func (s State) Clone() State {
	out := State{Items: models.CloneCurriculum(s.Items)}
	if s.AuditLog != nil {
		out.AuditLog = append([]models.AuditLogEntry(nil), s.AuditLog...)
	}
	if s.Reports != nil {
		out.Reports = append([]models.CurriculumReport(nil), s.Reports...)
	}
	return out
}

// Gate couples every curriculum mutation to a permission check and an audit entry.
// It holds no collections; every call takes the current State and returns the next one.
type Gate struct {
	now   func() time.Time
	newID func() string
}

// GateOption configures the gate.
type GateOption func(*Gate)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithGateIDs overrides id generation for items, audit entries and reports.
func WithGateIDs(gen func() string) GateOption {
	return func(g *Gate) {
		if gen != nil {
			g.newID = gen
		}
	}
}

// NewGate constructs a gate with UTC timestamps and UUID ids.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "")
	}
	return nil
}

// CreateItem appends a new curriculum record, assigning an id when absent.
func (g *Gate) CreateItem(state State, actor models.Actor, item models.CurriculumStandard) (State, models.CurriculumStandard, error) {
	if err := requireAdmin(actor); err != nil {
		return state, models.CurriculumStandard{}, err
	}
	created := item.Clone()
	if created.ID == "" {
		created.ID = g.newID()
	} else if indexOf(state.Items, created.ID) >= 0 {
		return state, models.CurriculumStandard{}, appErrors.Clone(appErrors.ErrConflict, "curriculum item id already exists")
	}

	next := state.Clone()
	next.Items = append(next.Items, created)
	next.AuditLog = g.prepend(next.AuditLog, actor, models.AuditActionCreate, created.ID,
		fmt.Sprintf("Created lesson: %s", created.LessonTitle),
		&models.AuditSnapshot{After: created.Clone()})
	return next, created.Clone(), nil
}

// UpdateItem shallow-merges patch onto the record with id, keeping its position.
func (g *Gate) UpdateItem(state State, actor models.Actor, id string, patch models.CurriculumPatch) (State, models.CurriculumStandard, error) {
	if err := requireAdmin(actor); err != nil {
		return state, models.CurriculumStandard{}, err
	}
	idx := indexOf(state.Items, id)
	if idx < 0 {
		return state, models.CurriculumStandard{}, appErrors.Clone(appErrors.ErrCurriculumNotFound, "")
	}

	next := state.Clone()
	before := next.Items[idx].Clone()
	updated := patch.Apply(before)
	updated.ID = before.ID
	next.Items[idx] = updated
	next.AuditLog = g.prepend(next.AuditLog, actor, models.AuditActionUpdate, id,
		fmt.Sprintf("Updated lesson: %s", updated.LessonTitle),
		&models.AuditSnapshot{Before: before, After: updated.Clone()})
	return next, updated.Clone(), nil
}

// DeleteItem hard-deletes the record with id. A missing id still produces a DELETE entry
// with no before-snapshot; the ledger records attempted deletions.
func (g *Gate) DeleteItem(state State, actor models.Actor, id string) (State, error) {
	if err := requireAdmin(actor); err != nil {
		return state, err
	}

	next := state.Clone()
	snapshot := &models.AuditSnapshot{}
	details := fmt.Sprintf("Deleted lesson: %s", id)
	if idx := indexOf(next.Items, id); idx >= 0 {
		removed := next.Items[idx]
		snapshot.Before = removed.Clone()
		details = fmt.Sprintf("Deleted lesson: %s", removed.LessonTitle)
		next.Items = append(next.Items[:idx:idx], next.Items[idx+1:]...)
	}
	next.AuditLog = g.prepend(next.AuditLog, actor, models.AuditActionDelete, id, details, snapshot)
	return next, nil
}

// ImportBatch replaces the entire collection with items, logged as one IMPORT entry.
// Callers merge new, updated and untouched records beforehand (see MergePlan).
func (g *Gate) ImportBatch(state State, actor models.Actor, items []models.CurriculumStandard) (State, error) {
	if err := requireAdmin(actor); err != nil {
		return state, err
	}

	next := state.Clone()
	next.Items = models.CloneCurriculum(items)
	if next.Items == nil {
		next.Items = []models.CurriculumStandard{}
	}
	next.AuditLog = g.prepend(next.AuditLog, actor, models.AuditActionImport, batchEntityID,
		fmt.Sprintf("Imported batch of %d items", len(items)), nil)
	return next, nil
}

// ResolveReport moves a report to RESOLVED. Unknown report ids leave reports untouched
// but the attempt is still written to the ledger.
func (g *Gate) ResolveReport(state State, actor models.Actor, reportID string) (State, error) {
	if err := requireAdmin(actor); err != nil {
		return state, err
	}

	next := state.Clone()
	details := fmt.Sprintf("Resolved report %s", reportID)
	found := false
	for i := range next.Reports {
		if next.Reports[i].ID == reportID {
			next.Reports[i].Status = models.ReportStatusResolved
			details = fmt.Sprintf("Resolved report %s on curriculum %s", reportID, next.Reports[i].CurriculumID)
			found = true
			break
		}
	}
	if !found {
		details = fmt.Sprintf("Resolve requested for unknown report %s", reportID)
	}
	next.AuditLog = g.prepend(next.AuditLog, actor, models.AuditActionResolveReport, reportID, details, nil)
	return next, nil
}

// ReportSubmission carries what a teacher supplies when flagging a curriculum item.
type ReportSubmission struct {
	CurriculumID string
	Type         models.ReportType
	Description  string
}

// SubmitReport records a PENDING report from any authenticated actor. Duplicate pending
// reports from the same reporter are accepted; see HasPendingReport for display-side checks.
func (g *Gate) SubmitReport(state State, actor models.Actor, sub ReportSubmission) (State, models.CurriculumReport, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return state, models.CurriculumReport{}, appErrors.ErrUnauthorized
	}
	report := models.CurriculumReport{
		ID:           g.newID(),
		ReporterID:   actor.ID,
		ReporterName: actor.Name,
		CurriculumID: sub.CurriculumID,
		Type:         sub.Type,
		Description:  sub.Description,
		Date:         g.now(),
		Status:       models.ReportStatusPending,
	}
	next := state.Clone()
	next.Reports = append(next.Reports, report)
	return next, report, nil
}

func (g *Gate) prepend(log []models.AuditLogEntry, actor models.Actor, action models.AuditAction, entityID, details string, snapshot *models.AuditSnapshot) []models.AuditLogEntry {
	entry := models.AuditLogEntry{
		ID:         g.newID(),
		UserID:     actor.ID,
		UserName:   actor.Name,
		Action:     action,
		EntityType: models.AuditEntityCurriculum,
		EntityID:   entityID,
		Details:    details,
		Timestamp:  g.now(),
		Snapshot:   snapshot,
	}
	out := make([]models.AuditLogEntry, 0, len(log)+1)
	out = append(out, entry)
	return append(out, log...)
}

func indexOf(items []models.CurriculumStandard, id string) int {
	if id == "" {
		return -1
	}
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
