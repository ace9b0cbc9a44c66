package app

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
)

// Filters decide which posts are never mirrored, by title.
type Filters struct {
	titles   []string
	patterns []*regexp.Regexp
}

// NewFilters compiles exact (case-insensitive) titles and regular expressions.
func NewFilters(titles, patterns []string) (*Filters, error) {
	f := &Filters{}
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			f.titles = append(f.titles, t)
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Match reports whether title is excluded.
func (f *Filters) Match(title string) bool {
	if f == nil {
		return false
	}
	t := strings.TrimSpace(title)
	for _, x := range f.titles {
		if strings.EqualFold(t, x) {
			return true
		}
	}
	for _, re := range f.patterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// FilterSet holds the active filters. It is swapped by the config watcher
// while the poll loop reads it.
type FilterSet struct {
	v atomic.Pointer[Filters]
}

// NewFilterSet returns a set holding f.
func NewFilterSet(f *Filters) *FilterSet {
	s := &FilterSet{}
	s.Store(f)
	return s
}

// Load returns the current filters (possibly nil, which matches nothing).
func (s *FilterSet) Load() *Filters {
	if s == nil {
		return nil
	}
	return s.v.Load()
}

// Store replaces the current filters.
func (s *FilterSet) Store(f *Filters) {
	s.v.Store(f)
}
