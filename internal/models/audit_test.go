package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditSnapshotJSON(t *testing.T) {
	entry := AuditLogEntry{
		ID:       "log-1",
		Action:   AuditActionUpdate,
		Snapshot: &AuditSnapshot{Before: CurriculumStandard{ID: "c1", LessonTitle: "Old"}, After: CurriculumStandard{ID: "c1", LessonTitle: "New"}},
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"entityType":"CURRICULUM"`)

	var decoded AuditLogEntry
	require.NoError(t, json.Unmarshal(raw, &decoded))
	before, ok := decoded.Snapshot.CurriculumBefore()
	require.True(t, ok)
	assert.Equal(t, "Old", before.LessonTitle)
	after, ok := decoded.Snapshot.CurriculumAfter()
	require.True(t, ok)
	assert.Equal(t, "New", after.LessonTitle)
}

func TestAuditSnapshotRejectsUnknownEntity(t *testing.T) {
	var snap AuditSnapshot
	err := json.Unmarshal([]byte(`{"entityType":"TIMETABLE","after":{}}`), &snap)
	require.Error(t, err)
}

func TestAuditSnapshotMissingSides(t *testing.T) {
	var snap AuditSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"entityType":"CURRICULUM","after":{"id":"x"}}`), &snap))
	_, ok := snap.CurriculumBefore()
	assert.False(t, ok)
	assert.Equal(t, AuditEntityCurriculum, snap.EntityType())
}

func TestCurriculumPatchApplyIsShallow(t *testing.T) {
	item := CurriculumStandard{ID: "c1", LessonTitle: "Old", SuggestedDuration: 2, TargetCompetencies: []string{"a"}}
	duration := 10
	out := CurriculumPatch{SuggestedDuration: &duration}.Apply(item)

	assert.Equal(t, 10, out.SuggestedDuration)
	assert.Equal(t, "Old", out.LessonTitle)
	out.TargetCompetencies[0] = "changed"
	assert.Equal(t, "a", item.TargetCompetencies[0])
}
