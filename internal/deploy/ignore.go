package deploy

import (
	"path"
	"strings"

	"skylift/internal/manifest"
)

// defaultIgnorePatterns are always excluded from a deploy, regardless of
// manifest or CLI overrides. Source files for CSS preprocessors and server-side
// scripts have no business on a static host.
var defaultIgnorePatterns = []string{
	"node_modules/**",
	"*.tar.gz",
	"**/README.*",
	"LICENSE",
	"**/*.less",
	"**/*.scss",
	"**/*.php",
	"**/*.asp",
	"package.json",
	"*.log",
	BundleFileName,
	manifest.FileName,
	"**/.git/**",
}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// IgnoreRuleSet checks deploy-relative file paths against the union of the
// built-in default patterns and user-supplied extras. A path is excluded if it
// matches ANY pattern; pattern order never affects the outcome.
//
// Patterns without '/' match against the file's basename only. Patterns with
// '/' match against the full relative path; a '**' segment spans any number of
// path segments, and '**' at the end of a "suffix" pattern like 'a/**/*.css'
// behaves the way minimatch-style globs do.
type IgnoreRuleSet struct {
	patterns []ignorePattern
}

// NewIgnoreRuleSet creates an IgnoreRuleSet from the built-in defaults plus
// any extra pattern groups (manifest patterns, CLI flag patterns).
// Blank and '#'-prefixed entries are skipped.
func NewIgnoreRuleSet(extras ...[]string) *IgnoreRuleSet {
	raw := append([]string{}, defaultIgnorePatterns...)
	for _, group := range extras {
		raw = append(raw, group...)
	}

	var patterns []ignorePattern
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" || strings.HasPrefix(r, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   r,
			matchPath: strings.Contains(r, "/"),
		})
	}
	return &IgnoreRuleSet{patterns: patterns}
}

// Match reports whether the given relative path matches an ignore pattern.
// relPath must use forward slashes and be relative to the deploy root.
func (rs *IgnoreRuleSet) Match(relPath string) bool {
	basename := path.Base(relPath)

	for _, p := range rs.patterns {
		var matched bool
		if p.matchPath {
			matched = globMatch(p.pattern, relPath)
		} else {
			matched = globMatch(p.pattern, basename)
		}
		if matched {
			return true
		}
	}
	return false
}

// Excluded reports whether a path should be left out of the deploy entirely:
// dotfiles (any component starting with '.') are skipped unconditionally to
// keep VCS and editor metadata out of bundles, then the ignore patterns apply.
// Both the asset enumerator and the bundle builder go through this so the two
// never diverge.
func (rs *IgnoreRuleSet) Excluded(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return rs.Match(relPath)
}

// globMatch matches a slash-separated glob pattern against a slash-separated
// path. Single segments use path.Match semantics; a '**' segment matches zero
// or more whole segments.
func globMatch(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0] == "**" {
		// '**' swallows zero or more leading segments.
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pat[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], parts[0])
	if err != nil || !ok {
		// Bad pattern: treat as non-matching rather than crash.
		return false
	}
	return matchSegments(pat[1:], parts[1:])
}
