package curriculum

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

var (
	admin   = models.Actor{ID: "u-admin", Name: "Admin", Role: models.RoleAdmin}
	teacher = models.Actor{ID: "u-teacher", Name: "Teacher", Role: models.RoleTeacher}
	fixedAt = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
)

func newTestGate() *Gate {
	return NewGate(WithClock(func() time.Time { return fixedAt }), WithGateIDs(sequentialIDs("g")))
}

func mathLesson() models.CurriculumStandard {
	return models.CurriculumStandard{
		Cycle: models.CycleSecondary, Subject: "Math", Level: "1AS", Domain: "Algebra",
		Unit: "Equations", LessonTitle: "Linear Equations", SuggestedDuration: 2,
		TargetCompetencies: []string{"solve"},
	}
}

func isCode(err error, target *appErrors.Error) bool {
	var appErr *appErrors.Error
	return errors.As(err, &appErr) && appErr.Code == target.Code
}

func TestGateDeniesTeacherMutations(t *testing.T) {
	g := newTestGate()
	state := State{
		Items:   []models.CurriculumStandard{{ID: "c1", LessonTitle: "Sets"}},
		Reports: []models.CurriculumReport{{ID: "r1", Status: models.ReportStatusPending}},
	}
	lesson := mathLesson()
	duration := 10

	_, _, err := g.CreateItem(state, teacher, lesson)
	assert.True(t, isCode(err, appErrors.ErrPermissionDenied))
	_, _, err = g.UpdateItem(state, teacher, "c1", models.CurriculumPatch{SuggestedDuration: &duration})
	assert.True(t, isCode(err, appErrors.ErrPermissionDenied))
	_, err = g.DeleteItem(state, teacher, "c1")
	assert.True(t, isCode(err, appErrors.ErrPermissionDenied))
	_, err = g.ImportBatch(state, teacher, nil)
	assert.True(t, isCode(err, appErrors.ErrPermissionDenied))
	_, err = g.ResolveReport(state, teacher, "r1")
	assert.True(t, isCode(err, appErrors.ErrPermissionDenied))

	assert.Len(t, state.Items, 1)
	assert.Empty(t, state.AuditLog)
	assert.Equal(t, models.ReportStatusPending, state.Reports[0].Status)
}

func TestGateAdminRoundTrip(t *testing.T) {
	g := newTestGate()
	state := State{Items: []models.CurriculumStandard{}}

	state, created, err := g.CreateItem(state, admin, mathLesson())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Len(t, state.Items, 1)

	duration := 10
	state, updated, err := g.UpdateItem(state, admin, created.ID, models.CurriculumPatch{SuggestedDuration: &duration})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.SuggestedDuration)
	assert.Equal(t, "Linear Equations", updated.LessonTitle)

	state, err = g.DeleteItem(state, admin, created.ID)
	require.NoError(t, err)
	assert.Empty(t, state.Items)

	require.Len(t, state.AuditLog, 3)
	assert.Equal(t, models.AuditActionDelete, state.AuditLog[0].Action)
	assert.Equal(t, models.AuditActionUpdate, state.AuditLog[1].Action)
	assert.Equal(t, models.AuditActionCreate, state.AuditLog[2].Action)
	for _, entry := range state.AuditLog {
		assert.Equal(t, created.ID, entry.EntityID)
		assert.Equal(t, admin.ID, entry.UserID)
		assert.Equal(t, admin.Name, entry.UserName)
		assert.Equal(t, models.AuditEntityCurriculum, entry.EntityType)
		assert.Equal(t, fixedAt, entry.Timestamp)
	}
}

func TestGateSnapshotsMatchState(t *testing.T) {
	g := newTestGate()
	state := State{}

	state, created, err := g.CreateItem(state, admin, mathLesson())
	require.NoError(t, err)
	after, ok := state.AuditLog[0].Snapshot.CurriculumAfter()
	require.True(t, ok)
	assert.Equal(t, created, *after)
	_, hasBefore := state.AuditLog[0].Snapshot.CurriculumBefore()
	assert.False(t, hasBefore)

	title := "Linear Systems"
	state, updated, err := g.UpdateItem(state, admin, created.ID, models.CurriculumPatch{LessonTitle: &title})
	require.NoError(t, err)
	before, ok := state.AuditLog[0].Snapshot.CurriculumBefore()
	require.True(t, ok)
	assert.Equal(t, created, *before)
	after, ok = state.AuditLog[0].Snapshot.CurriculumAfter()
	require.True(t, ok)
	assert.Equal(t, updated, *after)

	state.Items[0].TargetCompetencies[0] = "mutated"
	after, _ = state.AuditLog[0].Snapshot.CurriculumAfter()
	assert.Equal(t, "solve", after.TargetCompetencies[0])

	state, err = g.DeleteItem(state, admin, created.ID)
	require.NoError(t, err)
	before, ok = state.AuditLog[0].Snapshot.CurriculumBefore()
	require.True(t, ok)
	assert.Equal(t, "Linear Systems", before.LessonTitle)
}

func TestGateCreateKeepsSuppliedIDAndRejectsClash(t *testing.T) {
	g := newTestGate()
	lesson := mathLesson()
	lesson.ID = "fixed"

	state, created, err := g.CreateItem(State{}, admin, lesson)
	require.NoError(t, err)
	assert.Equal(t, "fixed", created.ID)

	_, _, err = g.CreateItem(state, admin, lesson)
	assert.True(t, isCode(err, appErrors.ErrConflict))
	assert.Len(t, state.Items, 1)
}

func TestGateUpdateUnknownID(t *testing.T) {
	g := newTestGate()
	duration := 3

	state, _, err := g.UpdateItem(State{}, admin, "missing", models.CurriculumPatch{SuggestedDuration: &duration})

	assert.True(t, isCode(err, appErrors.ErrCurriculumNotFound))
	assert.Empty(t, state.AuditLog)
}

func TestGateUpdateKeepsPosition(t *testing.T) {
	g := newTestGate()
	state := State{Items: []models.CurriculumStandard{{ID: "a"}, {ID: "b", Unit: "U1"}, {ID: "c"}}}
	unit := "U2"

	next, _, err := g.UpdateItem(state, admin, "b", models.CurriculumPatch{Unit: &unit})

	require.NoError(t, err)
	assert.Equal(t, "b", next.Items[1].ID)
	assert.Equal(t, "U2", next.Items[1].Unit)
	assert.Equal(t, "U1", state.Items[1].Unit)
}

func TestGateDeleteUnknownIDStillAudited(t *testing.T) {
	g := newTestGate()
	state := State{Items: []models.CurriculumStandard{{ID: "a"}}}

	next, err := g.DeleteItem(state, admin, "ghost")

	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	require.Len(t, next.AuditLog, 1)
	assert.Equal(t, "ghost", next.AuditLog[0].EntityID)
	_, hasBefore := next.AuditLog[0].Snapshot.CurriculumBefore()
	assert.False(t, hasBefore)
}

func TestGateImportBatch(t *testing.T) {
	g := newTestGate()
	state := State{Items: []models.CurriculumStandard{{ID: "old"}}}
	batch := []models.CurriculumStandard{{ID: "n1"}, {ID: "n2"}}

	next, err := g.ImportBatch(state, admin, batch)

	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, []string{next.Items[0].ID, next.Items[1].ID})
	require.Len(t, next.AuditLog, 1)
	entry := next.AuditLog[0]
	assert.Equal(t, models.AuditActionImport, entry.Action)
	assert.Equal(t, "batch", entry.EntityID)
	assert.Equal(t, "Imported batch of 2 items", entry.Details)
	assert.Nil(t, entry.Snapshot)
}

func TestGateImportThenReimportFromPlan(t *testing.T) {
	g := newTestGate()
	raw := []any{candidate("Math", "1AS", "Sets"), candidate("Math", "1AS", "Logic")}

	plan := PlanImport(raw, nil)
	state, err := g.ImportBatch(State{}, admin, MergePlan(nil, plan))
	require.NoError(t, err)

	again := PlanImport(raw, state.Items)
	next, err := g.ImportBatch(state, admin, MergePlan(state.Items, again))
	require.NoError(t, err)

	assert.Len(t, next.Items, 2)
	assert.Equal(t, state.Items[0].ID, next.Items[0].ID)
	assert.Len(t, next.AuditLog, 2)
}

func TestReportLifecycle(t *testing.T) {
	g := newTestGate()
	state := State{Items: []models.CurriculumStandard{{ID: "c1"}}}

	state, report, err := g.SubmitReport(state, teacher, ReportSubmission{
		CurriculumID: "c1", Type: models.ReportTypeError, Description: "wrong duration",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, report.Status)
	assert.Equal(t, teacher.ID, report.ReporterID)
	assert.Equal(t, fixedAt, report.Date)
	assert.Empty(t, state.AuditLog)
	assert.True(t, HasPendingReport(state.Reports, teacher.ID, "c1"))

	_, err = g.ResolveReport(state, teacher, report.ID)
	assert.True(t, isCode(err, appErrors.ErrPermissionDenied))

	state, err = g.ResolveReport(state, admin, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, state.Reports[0].Status)
	require.Len(t, state.AuditLog, 1)
	assert.Equal(t, models.AuditActionResolveReport, state.AuditLog[0].Action)
	assert.Equal(t, report.ID, state.AuditLog[0].EntityID)
	assert.False(t, HasPendingReport(state.Reports, teacher.ID, "c1"))
}

func TestSubmitReportAllowsDuplicates(t *testing.T) {
	g := newTestGate()
	sub := ReportSubmission{CurriculumID: "c1", Type: models.ReportTypeSuggestion, Description: "add examples"}

	state, first, err := g.SubmitReport(State{}, teacher, sub)
	require.NoError(t, err)
	state, second, err := g.SubmitReport(state, teacher, sub)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, FilterReports(state.Reports, models.ReportStatusPending), 2)
}

func TestSubmitReportRequiresIdentity(t *testing.T) {
	g := newTestGate()

	_, _, err := g.SubmitReport(State{}, models.Actor{Role: models.RoleTeacher}, ReportSubmission{CurriculumID: "c1"})

	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestResolveUnknownReportIsAudited(t *testing.T) {
	g := newTestGate()
	state := State{Reports: []models.CurriculumReport{{ID: "r1", Status: models.ReportStatusPending}}}

	next, err := g.ResolveReport(state, admin, "nope")

	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, next.Reports[0].Status)
	require.Len(t, next.AuditLog, 1)
	assert.Equal(t, "nope", next.AuditLog[0].EntityID)
}
