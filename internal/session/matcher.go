package session

import "strings"

// PathMatcher decides which request paths the guard intercepts. Patterns are
// static configuration: a pattern ending in "/*" matches the whole subtree,
// anything else matches exactly.
type PathMatcher struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewPathMatcher compiles the pattern list.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		if rest, ok := strings.CutSuffix(p, "/*"); ok {
			m.prefixes = append(m.prefixes, rest+"/")
			continue
		}
		m.exact[p] = struct{}{}
	}
	return m
}

// Match reports whether the guard should run for the given path.
func (m *PathMatcher) Match(path string) bool {
	if _, ok := m.exact[path]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
