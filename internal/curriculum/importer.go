package curriculum

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// FormatError is reported when the import payload is not an array.
const FormatError = "Invalid format: data must be an array of curriculum items"

var requiredFields = []string{"subject", "level", "domain", "unit", "lessonTitle"}

// ImportPreview lists the records a commit would write, ready to be used verbatim.
type ImportPreview struct {
	NewItems     []models.CurriculumStandard `json:"newItems"`
	UpdatedItems []models.CurriculumStandard `json:"updatedItems"`
}

// ImportPlan is the outcome of reconciling a candidate batch with the current collection.
type ImportPlan struct {
	Added          int           `json:"added"`
	Updated        int           `json:"updated"`
	Errors         []string      `json:"errors"`
	TotalProcessed int           `json:"totalProcessed"`
	Preview        ImportPreview `json:"preview"`
}

// PlanOption configures import planning.
type PlanOption func(*planner)

// WithIDGenerator overrides how ids are synthesized for candidates.
func WithIDGenerator(gen func() string) PlanOption {
	return func(p *planner) {
		if gen != nil {
			p.newID = gen
		}
	}
}

type planner struct {
	newID func() string
}

// PlanImportJSON decodes a raw payload and plans it. Undecodable input is a format error.
func PlanImportJSON(payload []byte, existing []models.CurriculumStandard, opts ...PlanOption) ImportPlan {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return emptyPlan(FormatError)
	}
	return PlanImport(raw, existing, opts...)
}

// PlanImport classifies each candidate as a new insertion or an update of an existing record.
// It never mutates existing and never fails: format and row problems land in ImportPlan.Errors.
func PlanImport(raw any, existing []models.CurriculumStandard, opts ...PlanOption) ImportPlan {
	p := &planner{newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	candidates, ok := asArray(raw)
	if !ok {
		return emptyPlan(FormatError)
	}

	byCode := make(map[string]models.CurriculumStandard, len(existing))
	bySignature := make(map[string]models.CurriculumStandard, len(existing))
	for _, item := range existing {
		if item.Code != "" {
			if _, dup := byCode[item.Code]; !dup {
				byCode[item.Code] = item
			}
		}
		sig := item.Signature()
		if _, dup := bySignature[sig]; !dup {
			bySignature[sig] = item
		}
	}

	plan := emptyPlan()
	claimedIDs := make(map[string]int)
	batchCodes := make(map[string]int)
	batchSignatures := make(map[string]int)

	for idx, rawItem := range candidates {
		fields, _ := rawItem.(map[string]any)
		if missing := firstMissing(fields); missing != "" {
			plan.Errors = append(plan.Errors, fmt.Sprintf("Item at index %d: Missing '%s'", idx, missing))
			continue
		}

		candidate := normalize(fields)
		candidate.ID = p.newID()
		suppliedCode := candidate.Code
		sig := candidate.Signature()

		if prev, dup := batchDuplicate(batchCodes, batchSignatures, suppliedCode, sig); dup {
			plan.Errors = append(plan.Errors, duplicateError(idx, prev))
			continue
		}

		var match *models.CurriculumStandard
		if suppliedCode != "" {
			if found, ok := byCode[suppliedCode]; ok {
				match = &found
			}
		} else if found, ok := bySignature[sig]; ok {
			match = &found
			candidate.Code = found.Code
		}

		if match != nil {
			if prev, dup := claimedIDs[match.ID]; dup {
				plan.Errors = append(plan.Errors, duplicateError(idx, prev))
				continue
			}
			claimedIDs[match.ID] = idx
			candidate.ID = match.ID
			plan.Preview.UpdatedItems = append(plan.Preview.UpdatedItems, candidate)
			plan.Updated++
		} else {
			if candidate.Code == "" {
				candidate.Code = GenerateCode(candidate)
			}
			plan.Preview.NewItems = append(plan.Preview.NewItems, candidate)
			plan.Added++
		}

		batchSignatures[sig] = idx
		if suppliedCode != "" {
			batchCodes[suppliedCode] = idx
		}
	}

	plan.TotalProcessed = plan.Added + plan.Updated
	return plan
}

// MergePlan builds the full replacement collection for a plan: updated records are replaced
// in place, new records appended, untouched records kept. New records without an id, or whose
// id is already taken, are skipped so the collection never holds two records with one id.
func MergePlan(existing []models.CurriculumStandard, plan ImportPlan) []models.CurriculumStandard {
	updates := make(map[string]models.CurriculumStandard, len(plan.Preview.UpdatedItems))
	for _, item := range plan.Preview.UpdatedItems {
		updates[item.ID] = item
	}
	out := make([]models.CurriculumStandard, 0, len(existing)+len(plan.Preview.NewItems))
	taken := make(map[string]struct{}, len(existing)+len(plan.Preview.NewItems))
	for _, item := range existing {
		taken[item.ID] = struct{}{}
		if updated, ok := updates[item.ID]; ok {
			out = append(out, updated.Clone())
			continue
		}
		out = append(out, item.Clone())
	}
	for _, item := range plan.Preview.NewItems {
		if item.ID == "" {
			continue
		}
		if _, dup := taken[item.ID]; dup {
			continue
		}
		taken[item.ID] = struct{}{}
		out = append(out, item.Clone())
	}
	return out
}

func emptyPlan(errs ...string) ImportPlan {
	return ImportPlan{
		Errors: append([]string{}, errs...),
		Preview: ImportPreview{
			NewItems:     []models.CurriculumStandard{},
			UpdatedItems: []models.CurriculumStandard{},
		},
	}
}

// batchDuplicate finds an earlier accepted row describing the same lesson: by code when
// the row supplies one, by signature otherwise.
func batchDuplicate(codes, signatures map[string]int, code, sig string) (int, bool) {
	if code != "" {
		prev, ok := codes[code]
		return prev, ok
	}
	prev, ok := signatures[sig]
	return prev, ok
}

func duplicateError(idx, prev int) string {
	return fmt.Sprintf("Item at index %d: Duplicate of item at index %d", idx, prev)
}

func asArray(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func firstMissing(fields map[string]any) string {
	for _, name := range requiredFields {
		if stringValue(fields[name]) == "" {
			return name
		}
	}
	return ""
}

func normalize(fields map[string]any) models.CurriculumStandard {
	cycle := models.Cycle(strings.ToLower(stringValue(fields["cycle"])))
	if !cycle.Valid() {
		cycle = models.CycleSecondary
	}
	return models.CurriculumStandard{
		Code:                  stringValue(fields["code"]),
		Cycle:                 cycle,
		Subject:               stringValue(fields["subject"]),
		Level:                 stringValue(fields["level"]),
		Stream:                stringValue(fields["stream"]),
		Domain:                stringValue(fields["domain"]),
		Unit:                  stringValue(fields["unit"]),
		LessonTitle:           stringValue(fields["lessonTitle"]),
		TargetCompetencies:    stringList(fields["targetCompetencies"]),
		PerformanceIndicators: stringList(fields["performanceIndicators"]),
		SuggestedDuration:     duration(fields["suggestedDuration"]),
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, el := range t {
			if s := stringValue(el); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, el := range t {
			if s := strings.TrimSpace(el); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func duration(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 1
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 1
		}
		f = parsed
	default:
		return 1
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	n := int(math.Round(f))
	if n < 1 {
		return 1
	}
	return n
}
