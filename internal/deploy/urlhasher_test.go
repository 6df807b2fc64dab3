package deploy

import (
	"strings"
	"testing"
)

func TestURLHasher_RewriteHTML(t *testing.T) {
	files := AssetRecord{
		"images/logo.png":    "aaa111",
		"images/my logo.png": "bbb222",
		"css/styles.css":     "ccc333",
		"js/main.js":         "ddd444",
		"favicon.ico":        "eee555",
	}

	tests := []struct {
		name     string
		filePath string
		in       string
		want     string
	}{
		{
			name:     "src attribute with double quotes",
			filePath: "index.html",
			in:       `<img src="images/logo.png">`,
			want:     `<img src="images/logo--md5--aaa111.png">`,
		},
		{
			name:     "src attribute with single quotes",
			filePath: "index.html",
			in:       `<img src='images/logo.png'>`,
			want:     `<img src='images/logo--md5--aaa111.png'>`,
		},
		{
			name:     "href attribute to stylesheet",
			filePath: "index.html",
			in:       `<link rel="stylesheet" href="css/styles.css">`,
			want:     `<link rel="stylesheet" href="css/styles--md5--ccc333.css">`,
		},
		{
			name:     "html page links are never rewritten",
			filePath: "index.html",
			in:       `<a href="about.html">About</a>`,
			want:     `<a href="about.html">About</a>`,
		},
		{
			name:     "extension-less paths are never rewritten",
			filePath: "index.html",
			in:       `<a href="/pricing">Pricing</a>`,
			want:     `<a href="/pricing">Pricing</a>`,
		},
		{
			name:     "absolute external urls pass through",
			filePath: "index.html",
			in:       `<img src="https://cdn.example.com/images/logo.png">`,
			want:     `<img src="https://cdn.example.com/images/logo.png">`,
		},
		{
			name:     "protocol-relative urls pass through",
			filePath: "index.html",
			in:       `<script src="//cdn.example.com/js/lib.js"></script>`,
			want:     `<script src="//cdn.example.com/js/lib.js"></script>`,
		},
		{
			name:     "asset missing from the record passes through",
			filePath: "index.html",
			in:       `<img src="images/missing.png">`,
			want:     `<img src="images/missing.png">`,
		},
		{
			name:     "site-rooted path from a nested page",
			filePath: "blog/post/index.html",
			in:       `<link href="/css/styles.css">`,
			want:     `<link href="/css/styles--md5--ccc333.css">`,
		},
		{
			name:     "relative path resolved against the page directory",
			filePath: "blog/index.html",
			in:       `<img src="../images/logo.png">`,
			want:     `<img src="../images/logo--md5--aaa111.png">`,
		},
		{
			name:     "dot-slash relative path",
			filePath: "index.html",
			in:       `<script src="./js/main.js"></script>`,
			want:     `<script src="./js/main--md5--ddd444.js"></script>`,
		},
		{
			name:     "base url token is preserved",
			filePath: "index.html",
			in:       `<img src="https://__baseurl__/images/logo.png">`,
			want:     `<img src="https://__baseurl__/images/logo--md5--aaa111.png">`,
		},
		{
			name:     "querystring survives the rewrite",
			filePath: "index.html",
			in:       `<link href="css/styles.css?v=4">`,
			want:     `<link href="css/styles--md5--ccc333.css?v=4">`,
		},
		{
			name:     "filename with a space",
			filePath: "index.html",
			in:       `<img src="images/my logo.png">`,
			want:     `<img src="images/my logo--md5--bbb222.png">`,
		},
		{
			name:     "style attribute url",
			filePath: "index.html",
			in:       `<div style="background: url('/images/logo.png')"></div>`,
			want:     `<div style="background: url('/images/logo--md5--aaa111.png')"></div>`,
		},
		{
			name:     "inline style tag",
			filePath: "index.html",
			in:       `<style>body { background: url(images/logo.png); }</style>`,
			want:     `<style>body { background: url(images/logo--md5--aaa111.png); }</style>`,
		},
		{
			name:     "multiple references in one document",
			filePath: "index.html",
			in:       `<img src="images/logo.png"><link href="css/styles.css"><img src="favicon.ico">`,
			want:     `<img src="images/logo--md5--aaa111.png"><link href="css/styles--md5--ccc333.css"><img src="favicon--md5--eee555.ico">`,
		},
	}

	hasher := NewURLHasher(files)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := hasher.Rewrite(tc.filePath, tc.in)
			if got != tc.want {
				t.Errorf("Rewrite(%q)\n got: %s\nwant: %s", tc.filePath, got, tc.want)
			}
		})
	}
}

func TestURLHasher_RewriteSrcSet(t *testing.T) {
	files := AssetRecord{
		"images/photo.jpg":    "aaa111",
		"images/photo@2x.jpg": "bbb222",
	}
	hasher := NewURLHasher(files)

	t.Run("each source rewritten with descriptor preserved", func(t *testing.T) {
		t.Parallel()
		in := `<img srcset="images/photo.jpg 1x, images/photo@2x.jpg 2x">`
		want := `<img srcset="images/photo--md5--aaa111.jpg 1x, images/photo@2x--md5--bbb222.jpg 2x">`
		if got := hasher.Rewrite("index.html", in); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("querystring stays attached to its source", func(t *testing.T) {
		t.Parallel()
		in := `<img srcset="images/photo.jpg?v=1 1x, https://cdn.example.com/p.jpg 2x">`
		want := `<img srcset="images/photo--md5--aaa111.jpg?v=1 1x, https://cdn.example.com/p.jpg 2x">`
		if got := hasher.Rewrite("index.html", in); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestURLHasher_RewriteCSS(t *testing.T) {
	files := AssetRecord{
		"images/bg.jpg":    "aaa111",
		"fonts/font.woff":  "bbb222",
		"fonts/font.woff2": "ccc333",
	}
	hasher := NewURLHasher(files)

	tests := []struct {
		name     string
		filePath string
		in       string
		want     string
	}{
		{
			name:     "unquoted url relative to the stylesheet directory",
			filePath: "css/styles.css",
			in:       `body { background: url(../images/bg.jpg); }`,
			want:     `body { background: url(../images/bg--md5--aaa111.jpg); }`,
		},
		{
			name:     "quoted url",
			filePath: "css/styles.css",
			in:       `body { background: url("/images/bg.jpg"); }`,
			want:     `body { background: url("/images/bg--md5--aaa111.jpg"); }`,
		},
		{
			name:     "font url with iefix fragment",
			filePath: "css/fonts.css",
			in:       `@font-face { src: url(../fonts/font.woff?#iefix) format("woff"); }`,
			want:     `@font-face { src: url(../fonts/font--md5--bbb222.woff?#iefix) format("woff"); }`,
		},
		{
			name:     "data uri passes through",
			filePath: "css/styles.css",
			in:       `body { background: url(data:image/png;base64,iVBOR); }`,
			want:     `body { background: url(data:image/png;base64,iVBOR); }`,
		},
		{
			name:     "non-css non-html file untouched",
			filePath: "js/main.js",
			in:       `var x = "url(../images/bg.jpg)";`,
			want:     `var x = "url(../images/bg.jpg)";`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := hasher.Rewrite(tc.filePath, tc.in)
			if got != tc.want {
				t.Errorf("Rewrite(%q)\n got: %s\nwant: %s", tc.filePath, got, tc.want)
			}
		})
	}
}

// Two pages referencing the same asset through different path spellings must
// produce the same hashed filename.
func TestURLHasher_CrossFileConsistency(t *testing.T) {
	files := AssetRecord{"images/logo.png": "aaa111"}
	hasher := NewURLHasher(files)

	fromRoot := hasher.Rewrite("index.html", `<img src="images/logo.png">`)
	fromNested := hasher.Rewrite("blog/index.html", `<img src="../images/logo.png">`)
	fromAbsolute := hasher.Rewrite("blog/post/index.html", `<img src="/images/logo.png">`)

	const wantName = "logo--md5--aaa111.png"
	for _, got := range []string{fromRoot, fromNested, fromAbsolute} {
		if !strings.Contains(got, wantName) {
			t.Errorf("expected %q in %s", wantName, got)
		}
	}
}

func TestHashAssetPath(t *testing.T) {
	tests := []struct {
		path string
		hash string
		want string
	}{
		{"images/logo.png", "abc", "images/logo--md5--abc.png"},
		{"/css/styles.css", "abc", "/css/styles--md5--abc.css"},
		{"favicon.ico", "abc", "favicon--md5--abc.ico"},
		{"fonts/font.woff", "abc", "fonts/font--md5--abc.woff"},
	}
	for _, tc := range tests {
		if got := hashAssetPath(tc.path, tc.hash); got != tc.want {
			t.Errorf("hashAssetPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestShouldHashAssetPath(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"images/logo.png", true},
		{"/images/logo.png", true},
		{"https://__baseurl__/images/logo.png", true},
		{"css/styles.css?v=4", true},
		{"//cdn.example.com/logo.png", false},
		{"https://cdn.example.com/logo.png", false},
		{"ftp://host/logo.png", false},
		{"/pricing", false},
		{"about.html", false},
	}
	for _, tc := range tests {
		if got := shouldHashAssetPath(tc.url); got != tc.want {
			t.Errorf("shouldHashAssetPath(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
