package deploy

import (
	"testing"

	"skylift/internal/manifest"
)

func TestNewIgnoreRuleSet(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		base := NewIgnoreRuleSet()
		rs := NewIgnoreRuleSet([]string{"", "  ", "# comment", "*.bak"})
		if got, want := len(rs.patterns), len(base.patterns)+1; got != want {
			t.Fatalf("expected %d patterns, got %d", want, got)
		}
	})

	t.Run("merges multiple extra groups", func(t *testing.T) {
		t.Parallel()
		rs := NewIgnoreRuleSet([]string{"*.bak"}, []string{"drafts/**"})
		if !rs.Match("notes.bak") {
			t.Error("expected *.bak from first group to match")
		}
		if !rs.Match("drafts/post.md") {
			t.Error("expected drafts/** from second group to match")
		}
	})
}

func TestIgnoreRuleSet_Match(t *testing.T) {
	tests := []struct {
		name    string
		extras  []string
		relPath string
		want    bool
	}{
		{
			name:    "node_modules anywhere",
			relPath: "node_modules/lodash/index.js",
			want:    true,
		},
		{
			name:    "readme in subdirectory",
			relPath: "docs/README.md",
			want:    true,
		},
		{
			name:    "scss source files",
			relPath: "styles/main.scss",
			want:    true,
		},
		{
			name:    "php files",
			relPath: "api/index.php",
			want:    true,
		},
		{
			name:    "manifest file",
			relPath: manifest.FileName,
			want:    true,
		},
		{
			name:    "bundle archive",
			relPath: BundleFileName,
			want:    true,
		},
		{
			name:    "package.json basename match in subdirectory",
			relPath: "tools/package.json",
			want:    true,
		},
		{
			name:    "plain html file survives",
			relPath: "blog/index.html",
			want:    false,
		},
		{
			name:    "css output survives",
			relPath: "css/styles.css",
			want:    false,
		},
		{
			name:    "extra basename pattern",
			extras:  []string{"*.tmp"},
			relPath: "cache/data.tmp",
			want:    true,
		},
		{
			name:    "extra path pattern with doublestar",
			extras:  []string{"private/**/*.pdf"},
			relPath: "private/reports/2024/q1.pdf",
			want:    true,
		},
		{
			name:    "doublestar pattern does not leak outside its root",
			extras:  []string{"private/**/*.pdf"},
			relPath: "public/report.pdf",
			want:    false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rs := NewIgnoreRuleSet(tc.extras)
			if got := rs.Match(tc.relPath); got != tc.want {
				t.Errorf("Match(%q) = %v, want %v", tc.relPath, got, tc.want)
			}
		})
	}
}

func TestIgnoreRuleSet_Excluded(t *testing.T) {
	rs := NewIgnoreRuleSet()

	tests := []struct {
		relPath string
		want    bool
	}{
		{".gitignore", true},
		{"src/.DS_Store", true},
		{".well-known/keybase.txt", true}, // dotdir components excluded too
		{"index.html", false},
		{"images/logo.png", false},
		{"node_modules/x/y.js", true},
	}
	for _, tc := range tests {
		if got := rs.Excluded(tc.relPath); got != tc.want {
			t.Errorf("Excluded(%q) = %v, want %v", tc.relPath, got, tc.want)
		}
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.log", "app.log", true},
		{"*.log", "sub/app.log", false},
		{"**/*.log", "sub/app.log", true},
		{"**/*.log", "app.log", true},
		{"a/**", "a/b/c", true},
		{"a/**", "b/c", false},
		{"a/*/c", "a/b/c", true},
		{"a/*/c", "a/b/d/c", false},
		{"**/.git/**", "sub/.git/config", true},
	}
	for _, tc := range tests {
		if got := globMatch(tc.pattern, tc.name); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.name, got, tc.want)
		}
	}
}
