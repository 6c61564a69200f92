package scheduler

import "strings"

// PriorityMatcher decides whether a teacher belongs to a priority category
// by case-insensitive substring match on the teacher's display name.
type PriorityMatcher struct {
	categories []string
}

// NewPriorityMatcher normalises the configured categories; blanks are dropped.
func NewPriorityMatcher(categories []string) PriorityMatcher {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return PriorityMatcher{categories: out}
}

func (m PriorityMatcher) Matches(teacherName string) bool {
	name := strings.ToLower(teacherName)
	for _, c := range m.categories {
		if strings.Contains(name, c) {
			return true
		}
	}
	return false
}

// Categories returns the normalised category list.
func (m PriorityMatcher) Categories() []string {
	return append([]string(nil), m.categories...)
}
