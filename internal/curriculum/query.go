package curriculum

import (
	"strings"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// FilterItems returns copies of the records matching filter, in collection order.
// Field filters compare case-insensitively; Search matches code, domain, unit or lesson title.
func FilterItems(items []models.CurriculumStandard, filter models.CurriculumFilter) []models.CurriculumStandard {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.CurriculumStandard, 0, len(items))
	for _, item := range items {
		if filter.Cycle != "" && item.Cycle != filter.Cycle {
			continue
		}
		if !sameFold(filter.Subject, item.Subject) || !sameFold(filter.Level, item.Level) ||
			!sameFold(filter.Stream, item.Stream) || !sameFold(filter.Domain, item.Domain) {
			continue
		}
		if search != "" && !containsAny(search, item.Code, item.Domain, item.Unit, item.LessonTitle) {
			continue
		}
		out = append(out, item.Clone())
	}
	return out
}

func sameFold(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, strings.TrimSpace(got))
}

func containsAny(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
