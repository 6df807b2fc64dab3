package deploy

import (
	"path"
	"regexp"
	"strings"
)

// BaseURLToken is the placeholder origin the hosting service substitutes at
// serve time. References prefixed with it are treated as site-rooted.
const BaseURLToken = "https://__baseurl__"

// HashDelimiter separates an asset's name from its content hash in a
// rewritten filename: image.jpg -> image--md5--<hash>.jpg.
const HashDelimiter = "--md5--"

var (
	attrRegex     = regexp.MustCompile(`(?i)(src|href|srcset|style)=["'](.*?)["']`)
	cssURLRegex   = regexp.MustCompile(`(?i)url\(['"]?(.*?)['"]?\)`)
	styleTagRegex = regexp.MustCompile(`(?i)<style.*?>(.*?)</style>`)
	schemeRegex   = regexp.MustCompile(`(?i)^[a-z]+://`)
)

// URLHasher rewrites asset references in HTML and CSS content so each
// referenced asset's content hash is embedded in its filename, enabling
// far-future cache headers. The rewrite is a pure function of the completed
// AssetRecord: the same logical asset path always yields the same hashed
// filename no matter which file references it.
type URLHasher struct {
	files AssetRecord
}

// NewURLHasher creates a URLHasher over a completed asset record.
// The record must not be mutated afterwards.
func NewURLHasher(files AssetRecord) *URLHasher {
	return &URLHasher{files: files}
}

// Rewrite transforms the content of the file at the given site-relative path.
// Files that are neither .html nor .css are returned unchanged.
func (h *URLHasher) Rewrite(filePath, content string) string {
	r := newReplacer(filePath, h.files)
	switch path.Ext(filePath) {
	case ".html":
		return r.rewriteHTML(content)
	case ".css":
		return r.rewriteCSS(content)
	default:
		return content
	}
}

// replacer carries the per-file state: asset references without a leading
// slash resolve relative to the referencing file's own directory.
type replacer struct {
	files     AssetRecord
	parentDir string
}

func newReplacer(filePath string, files AssetRecord) *replacer {
	parent := path.Dir(filePath)
	if parent == "." {
		parent = ""
	}
	return &replacer{files: files, parentDir: "/" + parent}
}

// rewriteHTML runs the attribute pass followed by the <style> block pass,
// mirroring the order the content streams through on upload.
func (r *replacer) rewriteHTML(content string) string {
	content = attrRegex.ReplaceAllStringFunc(content, func(match string) string {
		groups := attrRegex.FindStringSubmatch(match)
		attrName, attrValue := strings.ToLower(groups[1]), groups[2]
		switch attrName {
		case "src", "href":
			return r.replaceURL(match, attrValue)
		case "srcset":
			return r.replaceSrcSet(match, attrValue)
		case "style":
			return strings.Replace(match, attrValue, r.rewriteCSS(attrValue), 1)
		}
		return match
	})

	return styleTagRegex.ReplaceAllStringFunc(content, func(match string) string {
		css := styleTagRegex.FindStringSubmatch(match)[1]
		return strings.Replace(match, css, r.rewriteCSS(css), 1)
	})
}

// rewriteCSS rewrites url(...) references in a stylesheet or inline style.
func (r *replacer) rewriteCSS(content string) string {
	return cssURLRegex.ReplaceAllStringFunc(content, func(match string) string {
		assetURL := cssURLRegex.FindStringSubmatch(match)[1]
		return r.replaceURL(match, assetURL)
	})
}

// replaceURL rewrites a single asset reference inside match, preserving any
// querystring verbatim. References whose normalized path has no entry in the
// asset record pass through untouched; the asset was excluded from the
// deploy, which is not an error.
func (r *replacer) replaceURL(match, assetURL string) string {
	if !shouldHashAssetPath(assetURL) {
		return match
	}

	assetPath := assetURL
	if i := strings.Index(assetPath, "?"); i != -1 {
		assetPath = assetPath[:i]
	}

	hash, ok := r.files[r.normalizeAssetPath(assetPath)]
	if !ok {
		return match
	}

	return strings.Replace(match, assetPath, hashAssetPath(assetPath, hash), 1)
}

// replaceSrcSet rewrites each URL in a srcset attribute value independently.
// Descriptors like "300w" are preserved verbatim.
func (r *replacer) replaceSrcSet(match, attrValue string) string {
	sources := parseSrcSet(attrValue)

	rewritten := make([]string, len(sources))
	for i, src := range sources {
		if shouldHashAssetPath(src.url) {
			if hash, ok := r.files[r.normalizeAssetPath(src.url)]; ok {
				src.url = hashAssetPath(src.url, hash)
			}
		}
		rewritten[i] = src.String()
	}

	return strings.Replace(match, attrValue, strings.Join(rewritten, ", "), 1)
}

// normalizeAssetPath maps an asset reference to its site-rooted relative
// path: the base-URL token and a single leading slash are stripped; anything
// else resolves against the referencing file's directory, so "../images/x.jpg"
// referenced from "folder/index.html" becomes "images/x.jpg".
func (r *replacer) normalizeAssetPath(assetPath string) string {
	if strings.HasPrefix(assetPath, BaseURLToken) {
		assetPath = assetPath[len(BaseURLToken):]
	}
	if strings.HasPrefix(assetPath, "/") {
		return strings.TrimLeft(assetPath, "/")
	}
	return strings.TrimPrefix(path.Join(r.parentDir, assetPath), "/")
}

// hashAssetPath injects the content hash into the filename just before the
// extension, leaving the rest of the path intact.
func hashAssetPath(assetPath, hash string) string {
	base := path.Base(assetPath)
	ext := path.Ext(base)
	name := base[:len(base)-len(ext)]
	return strings.Replace(assetPath, base, name+HashDelimiter+hash+ext, 1)
}

// shouldHashAssetPath reports whether an asset reference is a candidate for
// hashing. Protocol-relative URLs, URLs with a foreign scheme, extension-less
// paths and .html page links are never rewritten.
func shouldHashAssetPath(assetURL string) bool {
	if strings.HasPrefix(assetURL, "//") {
		return false
	}
	if !strings.HasPrefix(assetURL, BaseURLToken) && schemeRegex.MatchString(assetURL) {
		return false
	}
	ext := path.Ext(assetURL)
	return ext != "" && ext != ".html"
}

// srcSetSource is one entry of a srcset attribute.
type srcSetSource struct {
	url        string
	query      string
	descriptor string
}

func (s srcSetSource) String() string {
	str := s.url + s.query
	if s.descriptor != "" {
		str += " " + s.descriptor
	}
	return str
}

// parseSrcSet splits a srcset value into url/descriptor pairs, separating any
// querystring from the url so lookups key on the bare path.
func parseSrcSet(srcset string) []srcSetSource {
	pairs := strings.Split(srcset, ",")
	sources := make([]srcSetSource, len(pairs))
	for i, pair := range pairs {
		pair = strings.TrimSpace(pair)

		var src srcSetSource
		if space := strings.Index(pair, " "); space == -1 {
			src.url = pair
		} else {
			src.url = pair[:space]
			src.descriptor = strings.TrimSpace(pair[space:])
		}

		if q := strings.Index(src.url, "?"); q != -1 {
			src.query = src.url[q:]
			src.url = src.url[:q]
		}
		sources[i] = src
	}
	return sources
}
