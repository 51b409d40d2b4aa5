package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/models"
)

// DataContext owns the in-memory curriculum, audit and report collections and serializes
// every mutation: permission check, change, audit append and persistence run under one lock.
type DataContext struct {
	mu     sync.Mutex
	store  CollectionStore
	logger *zap.Logger
	state  curriculum.State
	loaded bool
}

// NewDataContext constructs an unloaded data context over store.
func NewDataContext(store CollectionStore, logger *zap.Logger) *DataContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataContext{
		store:  store,
		logger: logger,
		state: curriculum.State{
			Items:    []models.CurriculumStandard{},
			AuditLog: []models.AuditLogEntry{},
			Reports:  []models.CurriculumReport{},
		},
	}
}

// Load reads all three collections wholesale. Missing collections start empty.
func (d *DataContext) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var state curriculum.State
	if err := d.loadSlot(ctx, CollectionCurriculum, &state.Items); err != nil {
		return err
	}
	if err := d.loadSlot(ctx, CollectionAuditLog, &state.AuditLog); err != nil {
		return err
	}
	if err := d.loadSlot(ctx, CollectionReports, &state.Reports); err != nil {
		return err
	}
	if state.Items == nil {
		state.Items = []models.CurriculumStandard{}
	}
	if state.AuditLog == nil {
		state.AuditLog = []models.AuditLogEntry{}
	}
	if state.Reports == nil {
		state.Reports = []models.CurriculumReport{}
	}

	d.state = state
	d.loaded = true
	d.logger.Info("collections loaded",
		zap.Int("curriculum", len(state.Items)),
		zap.Int("audit_log", len(state.AuditLog)),
		zap.Int("reports", len(state.Reports)),
	)
	return nil
}

func (d *DataContext) loadSlot(ctx context.Context, collection string, dest interface{}) error {
	raw, err := d.store.Load(ctx, collection)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode collection %s: %w", collection, err)
	}
	return nil
}

// Loaded reports whether Load has completed successfully.
func (d *DataContext) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Snapshot returns a copy of the current collections.
func (d *DataContext) Snapshot() curriculum.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Apply runs fn against the current state under the lock. When fn succeeds the changed
// collections are persisted and, only once persistence succeeds, become the current state.
func (d *DataContext) Apply(ctx context.Context, fn func(curriculum.State) (curriculum.State, error)) (curriculum.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := fn(d.state.Clone())
	if err != nil {
		return d.state.Clone(), err
	}

	changed, err := changedSlots(d.state, next)
	if err != nil {
		return d.state.Clone(), err
	}
	if err := d.persist(ctx, changed); err != nil {
		d.logger.Error("persist collections", zap.Strings("collections", slotNames(changed)), zap.Error(err))
		return d.state.Clone(), err
	}

	d.state = next
	return next.Clone(), nil
}

func (d *DataContext) persist(ctx context.Context, changed map[string]json.RawMessage) error {
	if len(changed) == 0 {
		return nil
	}
	if batch, ok := d.store.(BatchStore); ok && len(changed) > 1 {
		return batch.ReplaceBatch(ctx, changed)
	}
	for _, name := range sortedNames(changed) {
		if err := d.store.ReplaceAll(ctx, name, changed[name]); err != nil {
			return err
		}
	}
	return nil
}

func changedSlots(prev, next curriculum.State) (map[string]json.RawMessage, error) {
	slots := []struct {
		name       string
		prev, next interface{}
	}{
		{CollectionCurriculum, nonNilItems(prev.Items), nonNilItems(next.Items)},
		{CollectionAuditLog, nonNilAudit(prev.AuditLog), nonNilAudit(next.AuditLog)},
		{CollectionReports, nonNilReports(prev.Reports), nonNilReports(next.Reports)},
	}
	changed := make(map[string]json.RawMessage)
	for _, slot := range slots {
		before, err := json.Marshal(slot.prev)
		if err != nil {
			return nil, fmt.Errorf("encode collection %s: %w", slot.name, err)
		}
		after, err := json.Marshal(slot.next)
		if err != nil {
			return nil, fmt.Errorf("encode collection %s: %w", slot.name, err)
		}
		if !bytes.Equal(before, after) {
			changed[slot.name] = after
		}
	}
	return changed, nil
}

func slotNames(changed map[string]json.RawMessage) []string {
	return sortedNames(changed)
}

func nonNilItems(items []models.CurriculumStandard) []models.CurriculumStandard {
	if items == nil {
		return []models.CurriculumStandard{}
	}
	return items
}

func nonNilAudit(entries []models.AuditLogEntry) []models.AuditLogEntry {
	if entries == nil {
		return []models.AuditLogEntry{}
	}
	return entries
}

func nonNilReports(reports []models.CurriculumReport) []models.CurriculumReport {
	if reports == nil {
		return []models.CurriculumReport{}
	}
	return reports
}
