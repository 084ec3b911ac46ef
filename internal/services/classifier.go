package services

import (
	"sort"
	"strings"

	"github.com/aawaaz/grievance-engine/internal/config"
)

// OtherCategory is suggested when no keyword matches
const OtherCategory = "other"

// CategoryRouter maps categories to departments and suggests a category from
// free text by keyword hits. It is a convenience for intake forms, not ML.
type CategoryRouter struct {
	departments       map[string]string
	defaultDepartment string
	keywords          map[string][]string
	categories        []string
}

// NewCategoryRouter builds a router from the configured rules
func NewCategoryRouter(rules *config.Rules) *CategoryRouter {
	r := &CategoryRouter{
		departments:       make(map[string]string, len(rules.Departments)),
		defaultDepartment: rules.DefaultDepartment,
		keywords:          make(map[string][]string, len(rules.Keywords)),
	}
	for cat, dept := range rules.Departments {
		r.departments[strings.ToLower(cat)] = dept
	}
	for cat, words := range rules.Keywords {
		lowered := make([]string, len(words))
		for i, w := range words {
			lowered[i] = strings.ToLower(w)
		}
		r.keywords[strings.ToLower(cat)] = lowered
		r.categories = append(r.categories, strings.ToLower(cat))
	}
	sort.Strings(r.categories)
	return r
}

// Department returns the department responsible for a category
func (r *CategoryRouter) Department(category string) string {
	if dept, ok := r.departments[strings.ToLower(category)]; ok {
		return dept
	}
	return r.defaultDepartment
}

// Suggest returns the category with the most keyword hits in text.
// Ties go to the alphabetically first category.
func (r *CategoryRouter) Suggest(text string) string {
	text = strings.ToLower(text)
	best, bestHits := OtherCategory, 0
	for _, cat := range r.categories {
		hits := 0
		for _, w := range r.keywords[cat] {
			if strings.Contains(text, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = cat, hits
		}
	}
	return best
}
