package walker

import "strings"

// DefaultExcludePatterns lists the directory and file names excluded when the
// user supplies no replacement set: build output, dependency trees, VCS and
// IDE metadata, caches, and environment files.
var DefaultExcludePatterns = []string{
	"node_modules",
	"venv",
	"myenv",
	".venv",
	"__pycache__",
	".git",
	".idea",
	".vs",
	".vscode",
	"dist",
	"build",
	"target",
	"vendor",
	".pytest_cache",
	".mypy_cache",
	".next",
	"coverage",
	"env",
	".env",
	".env.local",
	".gitignore",
}

// ExclusionMatcher decides whether a relative path is excluded by matching
// individual path components against a pattern set. Matching is
// component-exact: the pattern "env" excludes a component named exactly
// "env", never "environment".
type ExclusionMatcher struct {
	patternSet   map[string]struct{}
	patternOrder []string
}

// NewExclusionMatcher constructs a matcher over the provided replace-all
// pattern set. An empty slice disables exclusion entirely.
func NewExclusionMatcher(patterns []string) *ExclusionMatcher {
	matcher := &ExclusionMatcher{patternSet: make(map[string]struct{}, len(patterns))}
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if _, exists := matcher.patternSet[trimmedPattern]; exists {
			continue
		}
		matcher.patternSet[trimmedPattern] = struct{}{}
		matcher.patternOrder = append(matcher.patternOrder, trimmedPattern)
	}
	return matcher
}

// NewDefaultExclusionMatcher constructs a matcher over DefaultExcludePatterns.
func NewDefaultExclusionMatcher() *ExclusionMatcher {
	return NewExclusionMatcher(DefaultExcludePatterns)
}

// ShouldExclude reports whether any component of relativePath exactly equals
// a configured pattern. Both forward and backward slashes separate components.
func (matcher *ExclusionMatcher) ShouldExclude(relativePath string) bool {
	if len(matcher.patternSet) == 0 {
		return false
	}
	normalizedPath := strings.ReplaceAll(relativePath, "\\", "/")
	for _, component := range strings.Split(normalizedPath, "/") {
		if _, excluded := matcher.patternSet[component]; excluded {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns in insertion order.
func (matcher *ExclusionMatcher) Patterns() []string {
	patterns := make([]string, len(matcher.patternOrder))
	copy(patterns, matcher.patternOrder)
	return patterns
}
