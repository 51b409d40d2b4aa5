// Package i18n resolves user-facing message keys into Arabic, French or English text.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.Arabic,
	language.French,
	language.English,
}

var catalog = map[string]map[language.Tag]string{
	"permission.admin_only": {
		language.Arabic:  "صلاحية القراءة فقط: التعديل على المنهاج مسموح للمسؤول فقط",
		language.French:  "Accès en lecture seule : seul l'administrateur peut modifier le programme",
		language.English: "Read-only access: only administrators can modify the curriculum",
	},
	"curriculum.not_found": {
		language.Arabic:  "عنصر المنهاج غير موجود",
		language.French:  "Élément du programme introuvable",
		language.English: "Curriculum item not found",
	},
	"import.format": {
		language.Arabic:  "صيغة غير صالحة: يجب أن تكون البيانات مصفوفة JSON",
		language.French:  "Format invalide : les données doivent être un tableau JSON",
		language.English: "Invalid format: data must be a JSON array",
	},
}

// Translator picks catalog entries for a negotiated language.
type Translator struct {
	matcher  language.Matcher
	fallback language.Tag
}

// New builds a translator whose fallback is the given BCP 47 tag (Arabic when unparsable).
func New(defaultLocale string) *Translator {
	fallback := language.Arabic
	if tag, err := language.Parse(strings.TrimSpace(defaultLocale)); err == nil {
		fallback = baseTag(tag)
	}
	return &Translator{matcher: language.NewMatcher(supported), fallback: fallback}
}

// Negotiate maps an Accept-Language header onto a supported tag.
func (t *Translator) Negotiate(acceptLanguage string) language.Tag {
	if t == nil {
		return language.English
	}
	if strings.TrimSpace(acceptLanguage) == "" {
		return t.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}
	_, idx, confidence := t.matcher.Match(tags...)
	if confidence == language.No {
		return t.fallback
	}
	return supported[idx]
}

// Message returns the translation for key, or fallback when the key is unknown.
func (t *Translator) Message(tag language.Tag, key, fallback string) string {
	entries, ok := catalog[key]
	if !ok {
		return fallback
	}
	if msg, ok := entries[baseTag(tag)]; ok {
		return msg
	}
	if t != nil {
		if msg, ok := entries[t.fallback]; ok {
			return msg
		}
	}
	return fallback
}

func baseTag(tag language.Tag) language.Tag {
	base, _ := tag.Base()
	switch base.String() {
	case "ar":
		return language.Arabic
	case "fr":
		return language.French
	default:
		return language.English
	}
}
