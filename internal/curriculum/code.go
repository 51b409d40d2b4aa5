package curriculum

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const (
	codeFragmentMax = 10
	noStreamMarker  = "GEN"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]+`)

// GenerateCode derives the import-stable code for a record that arrived without one.
// Fragments keep ASCII letters and digits only, so non-Latin text collapses to empty fragments.
func GenerateCode(item models.CurriculumStandard) string {
	stream := noStreamMarker
	if strings.TrimSpace(item.Stream) != "" {
		stream = sanitizeFragment(item.Stream)
	}
	return strings.Join([]string{
		sanitizeFragment(item.Subject),
		sanitizeFragment(item.Level),
		stream,
		sanitizeFragment(item.LessonTitle),
		strconv.Itoa(item.SuggestedDuration),
	}, "_")
}

func sanitizeFragment(s string) string {
	out := nonAlphanumeric.ReplaceAllString(s, "")
	if len(out) > codeFragmentMax {
		out = out[:codeFragmentMax]
	}
	return out
}
