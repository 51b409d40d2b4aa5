package models

import "strings"

// Cycle is the school cycle a curriculum standard belongs to.
type Cycle string

const (
	CycleMiddle    Cycle = "middle"
	CycleSecondary Cycle = "secondary"
)

// Valid reports whether the cycle is one of the known values.
func (c Cycle) Valid() bool {
	return c == CycleMiddle || c == CycleSecondary
}

// CurriculumStandard is one teachable unit of the official program.
type CurriculumStandard struct {
	ID                    string   `json:"id"`
	Code                  string   `json:"code,omitempty"`
	Cycle                 Cycle    `json:"cycle"`
	Subject               string   `json:"subject"`
	Level                 string   `json:"level"`
	Stream                string   `json:"stream,omitempty"`
	Domain                string   `json:"domain"`
	Unit                  string   `json:"unit"`
	LessonTitle           string   `json:"lessonTitle"`
	TargetCompetencies    []string `json:"targetCompetencies"`
	PerformanceIndicators []string `json:"performanceIndicators"`
	SuggestedDuration     int      `json:"suggestedDuration"`
}

// Clone returns a deep copy so snapshots never alias live collections.
func (c CurriculumStandard) Clone() CurriculumStandard {
	out := c
	out.TargetCompetencies = cloneStrings(c.TargetCompetencies)
	out.PerformanceIndicators = cloneStrings(c.PerformanceIndicators)
	return out
}

// Signature is the fallback identity used when a record carries no code.
func (c CurriculumStandard) Signature() string {
	return strings.Join([]string{
		strings.TrimSpace(c.Subject),
		strings.TrimSpace(c.Level),
		strings.TrimSpace(c.Stream),
		strings.TrimSpace(c.LessonTitle),
	}, "|")
}

// CurriculumPatch is a shallow partial update: nil fields are retained.
type CurriculumPatch struct {
	Code                  *string   `json:"code,omitempty"`
	Cycle                 *Cycle    `json:"cycle,omitempty"`
	Subject               *string   `json:"subject,omitempty"`
	Level                 *string   `json:"level,omitempty"`
	Stream                *string   `json:"stream,omitempty"`
	Domain                *string   `json:"domain,omitempty"`
	Unit                  *string   `json:"unit,omitempty"`
	LessonTitle           *string   `json:"lessonTitle,omitempty"`
	TargetCompetencies    *[]string `json:"targetCompetencies,omitempty"`
	PerformanceIndicators *[]string `json:"performanceIndicators,omitempty"`
	SuggestedDuration     *int      `json:"suggestedDuration,omitempty"`
}

// Apply overwrites the explicit fields of the patch onto a copy of item.
func (p CurriculumPatch) Apply(item CurriculumStandard) CurriculumStandard {
	out := item.Clone()
	if p.Code != nil {
		out.Code = *p.Code
	}
	if p.Cycle != nil {
		out.Cycle = *p.Cycle
	}
	if p.Subject != nil {
		out.Subject = *p.Subject
	}
	if p.Level != nil {
		out.Level = *p.Level
	}
	if p.Stream != nil {
		out.Stream = *p.Stream
	}
	if p.Domain != nil {
		out.Domain = *p.Domain
	}
	if p.Unit != nil {
		out.Unit = *p.Unit
	}
	if p.LessonTitle != nil {
		out.LessonTitle = *p.LessonTitle
	}
	if p.TargetCompetencies != nil {
		out.TargetCompetencies = cloneStrings(*p.TargetCompetencies)
	}
	if p.PerformanceIndicators != nil {
		out.PerformanceIndicators = cloneStrings(*p.PerformanceIndicators)
	}
	if p.SuggestedDuration != nil {
		out.SuggestedDuration = *p.SuggestedDuration
	}
	return out
}

// CurriculumFilter narrows curriculum listings.
type CurriculumFilter struct {
	Cycle   Cycle
	Subject string
	Level   string
	Stream  string
	Domain  string
	Search  string
}

// CloneCurriculum deep-copies a whole collection.
func CloneCurriculum(items []CurriculumStandard) []CurriculumStandard {
	if items == nil {
		return nil
	}
	out := make([]CurriculumStandard, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
