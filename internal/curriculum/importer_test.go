package curriculum

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func candidate(subject, level, title string) map[string]any {
	return map[string]any{
		"subject":     subject,
		"level":       level,
		"domain":      "Algebra",
		"unit":        "Equations",
		"lessonTitle": title,
	}
}

func TestPlanImportRejectsNonArray(t *testing.T) {
	for _, raw := range []any{nil, "x", map[string]any{"subject": "Math"}, 12.0} {
		plan := PlanImport(raw, nil)
		assert.Equal(t, []string{FormatError}, plan.Errors)
		assert.Zero(t, plan.Added)
		assert.Zero(t, plan.Updated)
		assert.Zero(t, plan.TotalProcessed)
		assert.Empty(t, plan.Preview.NewItems)
		assert.Empty(t, plan.Preview.UpdatedItems)
	}
}

func TestPlanImportJSONDecodeFailure(t *testing.T) {
	plan := PlanImportJSON([]byte(`[{"subject":`), nil)
	assert.Equal(t, []string{FormatError}, plan.Errors)
}

func TestPlanImportValidationPartiality(t *testing.T) {
	noLevel := candidate("Math", "", "Limits")
	noUnit := candidate("Math", "2AS", "Vectors")
	delete(noUnit, "unit")
	raw := []any{
		candidate("Math", "1AS", "Linear Equations"),
		noLevel,
		candidate("Math", "1AS", "Functions"),
		noUnit,
		"not an object",
	}

	plan := PlanImport(raw, nil)

	require.Equal(t, []string{
		"Item at index 1: Missing 'level'",
		"Item at index 3: Missing 'unit'",
		"Item at index 4: Missing 'subject'",
	}, plan.Errors)
	assert.Equal(t, 2, plan.TotalProcessed)
	assert.Equal(t, len(raw), plan.TotalProcessed+len(plan.Errors))
	for _, item := range plan.Preview.NewItems {
		assert.NotEqual(t, "Limits", item.LessonTitle)
		assert.NotEqual(t, "Vectors", item.LessonTitle)
	}
}

func TestPlanImportNormalizesDefaults(t *testing.T) {
	raw := []any{
		map[string]any{
			"subject": " Physics ", "level": "3AS", "domain": "Mechanics", "unit": "Motion",
			"lessonTitle": "Newton", "cycle": "MIDDLE", "suggestedDuration": "3",
			"targetCompetencies": []any{"apply laws", "", 4.0},
		},
		map[string]any{
			"subject": "Physics", "level": "3AS", "domain": "Mechanics", "unit": "Motion",
			"lessonTitle": "Energy", "cycle": "primary", "suggestedDuration": -4.0,
		},
		map[string]any{
			"subject": "Physics", "level": "3AS", "domain": "Mechanics", "unit": "Motion",
			"lessonTitle": "Work", "suggestedDuration": "abc",
		},
	}

	plan := PlanImport(raw, nil, WithIDGenerator(sequentialIDs("id")))
	require.Empty(t, plan.Errors)
	require.Len(t, plan.Preview.NewItems, 3)

	first := plan.Preview.NewItems[0]
	assert.Equal(t, "id-1", first.ID)
	assert.Equal(t, "Physics", first.Subject)
	assert.Equal(t, models.CycleMiddle, first.Cycle)
	assert.Equal(t, 3, first.SuggestedDuration)
	assert.Equal(t, []string{"apply laws", "4"}, first.TargetCompetencies)
	assert.Equal(t, []string{}, first.PerformanceIndicators)

	assert.Equal(t, models.CycleSecondary, plan.Preview.NewItems[1].Cycle)
	assert.Equal(t, 1, plan.Preview.NewItems[1].SuggestedDuration)
	assert.Equal(t, 1, plan.Preview.NewItems[2].SuggestedDuration)
}

func TestPlanImportMatchesByCode(t *testing.T) {
	existing := []models.CurriculumStandard{
		{ID: "store-1", Code: "MATH-1", Subject: "Math", Level: "1AS", LessonTitle: "Old title"},
	}
	raw := []any{map[string]any{
		"code": "MATH-1", "subject": "Math", "level": "1AS", "domain": "Algebra", "unit": "Equations",
		"lessonTitle": "Renamed",
	}}

	plan := PlanImport(raw, existing)

	require.Equal(t, 1, plan.Updated)
	assert.Equal(t, 0, plan.Added)
	assert.Equal(t, "store-1", plan.Preview.UpdatedItems[0].ID)
	assert.Equal(t, "Renamed", plan.Preview.UpdatedItems[0].LessonTitle)
	assert.Equal(t, "Old title", existing[0].LessonTitle)
}

func TestPlanImportUnmatchedCodeIsNew(t *testing.T) {
	existing := []models.CurriculumStandard{
		{ID: "store-1", Code: "MATH-1", Subject: "Math", Level: "1AS", LessonTitle: "Linear Equations"},
	}
	raw := []any{map[string]any{
		"code": "MATH-9", "subject": "Math", "level": "1AS", "domain": "Algebra", "unit": "Equations",
		"lessonTitle": "Linear Equations",
	}}

	plan := PlanImport(raw, existing)

	assert.Equal(t, 1, plan.Added)
	assert.Equal(t, "MATH-9", plan.Preview.NewItems[0].Code)
}

func TestPlanImportSignatureInheritsCode(t *testing.T) {
	existing := []models.CurriculumStandard{
		{ID: "store-7", Code: "KEEP_ME", Subject: "Math", Level: "1AS", Stream: "", LessonTitle: "Linear Equations", SuggestedDuration: 2},
	}
	raw := []any{candidate("Math", "1AS", "Linear Equations ")}

	plan := PlanImport(raw, existing)

	require.Equal(t, 1, plan.Updated)
	updated := plan.Preview.UpdatedItems[0]
	assert.Equal(t, "store-7", updated.ID)
	assert.Equal(t, "KEEP_ME", updated.Code)
}

func TestPlanImportIdentityConvergence(t *testing.T) {
	raw := []any{candidate("Math", "1AS", "Linear Equations"), candidate("Math", "1AS", "Quadratics")}

	first := PlanImport(raw, nil)
	require.Equal(t, 2, first.Added)
	afterFirst := MergePlan(nil, first)

	second := PlanImport(raw, afterFirst)
	require.Equal(t, 0, second.Added)
	require.Equal(t, 2, second.Updated)
	afterSecond := MergePlan(afterFirst, second)

	assert.Len(t, afterSecond, len(afterFirst))
	for i := range afterFirst {
		assert.Equal(t, afterFirst[i].ID, afterSecond[i].ID)
		assert.Equal(t, afterFirst[i].Code, afterSecond[i].Code)
	}
}

func TestPlanImportIsIdempotent(t *testing.T) {
	existing := []models.CurriculumStandard{
		{ID: "store-1", Code: "C1", Subject: "Math", Level: "1AS", LessonTitle: "Sets"},
	}
	raw := []any{
		candidate("Math", "1AS", "Sets"),
		candidate("Math", "1AS", "Logic"),
		candidate("Math", "", "Broken"),
	}

	a := PlanImport(raw, existing)
	b := PlanImport(raw, existing)

	assert.Equal(t, a.Added, b.Added)
	assert.Equal(t, a.Updated, b.Updated)
	assert.Equal(t, a.Errors, b.Errors)
	require.Len(t, b.Preview.UpdatedItems, len(a.Preview.UpdatedItems))
	for i := range a.Preview.UpdatedItems {
		assert.Equal(t, a.Preview.UpdatedItems[i].ID, b.Preview.UpdatedItems[i].ID)
	}
	require.Len(t, b.Preview.NewItems, len(a.Preview.NewItems))
	for i := range a.Preview.NewItems {
		assert.Equal(t, a.Preview.NewItems[i].Code, b.Preview.NewItems[i].Code)
	}
}

func TestPlanImportFlagsDuplicatesWithinBatch(t *testing.T) {
	existing := []models.CurriculumStandard{{ID: "store-1", Code: "C1", Subject: "Math", Level: "1AS", LessonTitle: "Sets"}}
	raw := []any{
		candidate("Math", "1AS", "Logic"),
		candidate("Math", "1AS", "Logic"),
		map[string]any{"code": "C1", "subject": "Math", "level": "1AS", "domain": "A", "unit": "U", "lessonTitle": "Sets v2"},
		candidate("Math", "1AS", "Sets"),
	}

	plan := PlanImport(raw, existing)

	assert.Equal(t, []string{
		"Item at index 1: Duplicate of item at index 0",
		"Item at index 3: Duplicate of item at index 2",
	}, plan.Errors)
	assert.Equal(t, 1, plan.Added)
	assert.Equal(t, 1, plan.Updated)
}

func TestGenerateCodeStripsNonLatin(t *testing.T) {
	plan := PlanImport([]any{map[string]any{
		"subject": "معلوماتية", "level": "1AS", "domain": "أنظمة", "unit": "الوحدة 1",
		"lessonTitle": "مفاهيم أساسية", "suggestedDuration": 2.0,
	}}, nil)

	require.Len(t, plan.Preview.NewItems, 1)
	assert.Equal(t, "_1AS_GEN__2", plan.Preview.NewItems[0].Code)
}

func TestGenerateCodeFragments(t *testing.T) {
	code := GenerateCode(models.CurriculumStandard{
		Subject: "Mathématiques", Level: "2 AS", Stream: "Sciences expérimentales",
		LessonTitle: "Linear Equations & Systems", SuggestedDuration: 3,
	})
	assert.Equal(t, "Mathmatiqu_2AS_Sciencesex_LinearEqua_3", code)
}

func TestMergePlanKeepsPositions(t *testing.T) {
	existing := []models.CurriculumStandard{{ID: "a", LessonTitle: "A"}, {ID: "b", LessonTitle: "B"}, {ID: "c", LessonTitle: "C"}}
	plan := ImportPlan{Preview: ImportPreview{
		UpdatedItems: []models.CurriculumStandard{{ID: "b", LessonTitle: "B2"}},
		NewItems:     []models.CurriculumStandard{{ID: "d", LessonTitle: "D"}},
	}}

	merged := MergePlan(existing, plan)

	require.Len(t, merged, 4)
	assert.Equal(t, []string{"A", "B2", "C", "D"}, []string{merged[0].LessonTitle, merged[1].LessonTitle, merged[2].LessonTitle, merged[3].LessonTitle})
	assert.Equal(t, "B", existing[1].LessonTitle)
}

func TestPlanImportSignatureMatchKeepsMissingCode(t *testing.T) {
	existing := []models.CurriculumStandard{
		{ID: "legacy-1", Subject: "Math", Level: "1AS", LessonTitle: "Linear Equations", SuggestedDuration: 2},
	}

	plan := PlanImport([]any{candidate("Math", "1AS", "Linear Equations")}, existing)

	require.Equal(t, 1, plan.Updated)
	updated := plan.Preview.UpdatedItems[0]
	assert.Equal(t, "legacy-1", updated.ID)
	assert.Empty(t, updated.Code)

	merged := MergePlan(existing, plan)
	require.Len(t, merged, 1)
	assert.Empty(t, merged[0].Code)
}

func TestMergePlanSkipsNewItemsWithoutFreshID(t *testing.T) {
	existing := []models.CurriculumStandard{{ID: "a", LessonTitle: "A"}}
	plan := ImportPlan{Preview: ImportPreview{
		NewItems: []models.CurriculumStandard{
			{ID: "a", LessonTitle: "A again"},
			{ID: "", LessonTitle: ""},
			{ID: "b", LessonTitle: "B"},
			{ID: "b", LessonTitle: "B twice"},
		},
	}}

	merged := MergePlan(existing, plan)

	require.Len(t, merged, 2)
	assert.Equal(t, "A", merged[0].LessonTitle)
	assert.Equal(t, "B", merged[1].LessonTitle)
}
