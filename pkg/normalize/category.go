package normalize

import (
	"strings"

	"github.com/citypulse/ingest/pkg/models"
)

// CategoryRule maps one provider keyword to a canonical category.
type CategoryRule struct {
	Keyword  string
	Category models.Category
}

// CategoryTable resolves free-text provider categories against an ordered
// keyword table. Lookup is case-insensitive: an exact pass runs first,
// then a substring pass; the first matching rule wins. Unmatched input
// maps to the table's fallback, so resolution never fails.
type CategoryTable struct {
	rules    []CategoryRule
	fallback models.Category
}

func NewCategoryTable(fallback models.Category, rules ...CategoryRule) *CategoryTable {
	t := &CategoryTable{fallback: fallback, rules: make([]CategoryRule, len(rules))}
	for i, r := range rules {
		t.rules[i] = CategoryRule{Keyword: strings.ToLower(r.Keyword), Category: r.Category}
	}
	return t
}

func (t *CategoryTable) Map(raw string) models.Category {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return t.fallback
	}
	for _, r := range t.rules {
		if raw == r.Keyword {
			return r.Category
		}
	}
	for _, r := range t.rules {
		if strings.Contains(raw, r.Keyword) {
			return r.Category
		}
	}
	return t.fallback
}

// MapAny resolves the first input that matches a rule; the fallback is
// used only when none of them do.
func (t *CategoryTable) MapAny(raws ...string) models.Category {
	for _, raw := range raws {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		for _, r := range t.rules {
			if raw == r.Keyword || strings.Contains(raw, r.Keyword) {
				return r.Category
			}
		}
	}
	return t.fallback
}

func (t *CategoryTable) Fallback() models.Category {
	return t.fallback
}
