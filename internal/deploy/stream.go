package deploy

import (
	"bytes"
	"io"
	"path"
	"unicode/utf8"
)

const (
	// readChunkSize is how much input is pulled per fill.
	readChunkSize = 32 * 1024

	// maxCarry bounds how much unprocessed input the transformer may hold
	// while waiting for a reference to terminate. A pathological input (an
	// unclosed quote or style block larger than this) is flushed through
	// unrewritten past this point rather than buffered without bound.
	maxCarry = 4 * 1024 * 1024
)

// htmlStarters are the byte sequences that can begin a rewritable reference
// in HTML content. A chunk is never split inside one of these constructs.
var htmlStarters = [][]byte{
	[]byte("src="),
	[]byte("href="),
	[]byte("srcset="),
	[]byte("style="),
	[]byte("url("),
	[]byte("<style"),
}

var cssStarters = [][]byte{
	[]byte("url("),
}

// Transform wraps r so that the content of the file at filePath streams
// through the URL rewriter. Files that are neither .html nor .css are
// returned as-is. The whole file is never materialized at once: chunks are
// rewritten incrementally, holding back only as much of the tail as could
// still be part of an unterminated reference or a split multi-byte sequence.
func (h *URLHasher) Transform(filePath string, r io.Reader) io.Reader {
	ext := path.Ext(filePath)
	if ext != ".html" && ext != ".css" {
		return r
	}
	rep := newReplacer(filePath, h.files)
	var rewrite func(string) string
	var starters [][]byte
	if ext == ".html" {
		rewrite = rep.rewriteHTML
		starters = htmlStarters
	} else {
		rewrite = rep.rewriteCSS
		starters = cssStarters
	}
	return &transformReader{src: r, rewrite: rewrite, starters: starters}
}

// transformReader applies a text rewrite to a byte stream. It accumulates
// input in carry, emits the rewritten prefix that is provably free of
// unterminated references, and keeps the rest until more input (or EOF)
// resolves it.
type transformReader struct {
	src      io.Reader
	rewrite  func(string) string
	starters [][]byte

	carry []byte
	out   bytes.Buffer
	err   error
	eof   bool
}

func (t *transformReader) Read(p []byte) (int, error) {
	for t.out.Len() == 0 {
		if t.err != nil {
			return 0, t.err
		}
		if t.eof {
			return 0, io.EOF
		}
		t.fill()
	}
	return t.out.Read(p)
}

// fill reads one chunk from the source and moves whatever part of the carry
// is safe to rewrite into the output buffer.
func (t *transformReader) fill() {
	chunk := make([]byte, readChunkSize)
	n, err := t.src.Read(chunk)
	if n > 0 {
		t.carry = append(t.carry, chunk[:n]...)
	}

	if err == io.EOF {
		// Terminal: everything left is rewritten in one final pass.
		t.out.WriteString(t.rewrite(string(t.carry)))
		t.carry = nil
		t.eof = true
		return
	}
	if err != nil {
		t.err = err
		return
	}

	cut := t.safeCut()
	if cut > 0 {
		t.out.WriteString(t.rewrite(string(t.carry[:cut])))
		t.carry = append([]byte(nil), t.carry[cut:]...)
	}
}

// safeCut returns the largest prefix length of the carry that can be
// rewritten independently of future input.
func (t *transformReader) safeCut() int {
	lower := bytes.ToLower(t.carry)
	cut := len(lower)

	// Hold back an unclosed <style> block: its body is rewritten as CSS and
	// that pass needs the closing tag.
	if i := bytes.LastIndex(lower, []byte("<style")); i >= 0 && i < cut {
		if !bytes.Contains(lower[i:], []byte("</style>")) {
			cut = i
		}
	}

	// Hold back attribute matches whose closing quote has not arrived.
	for _, tok := range t.starters {
		i := bytes.LastIndex(lower, tok)
		if i < 0 || i >= cut {
			continue
		}
		rest := lower[i+len(tok):]
		switch {
		case bytes.Equal(tok, []byte("url(")):
			if !bytes.ContainsRune(rest, ')') {
				cut = i
			}
		case bytes.Equal(tok, []byte("<style")):
			// handled above
		default:
			if attrValueOpenEnded(rest) {
				cut = i
			}
		}
	}

	// Hold back a trailing fragment that could grow into a starter token.
	if i := partialStarterIndex(lower, t.starters); i < cut {
		cut = i
	}

	// Never split a multi-byte sequence across the boundary.
	cut = runeSafeCut(t.carry, cut)

	// Memory bound: flush a runaway carry through unrewritten.
	if len(t.carry)-cut > maxCarry {
		return len(t.carry)
	}
	return cut
}

// attrValueOpenEnded reports whether the bytes following an attribute's '='
// could still be an unterminated quoted value. An empty rest is open ended
// because the opening quote may arrive with the next chunk.
func attrValueOpenEnded(rest []byte) bool {
	if len(rest) == 0 {
		return true
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return false
	}
	return bytes.IndexByte(rest[1:], quote) < 0
}

// partialStarterIndex finds the earliest tail position from which the
// remaining bytes are a strict prefix of some starter token (e.g. the carry
// ends in "sr" and "src=" may complete next chunk).
func partialStarterIndex(lower []byte, starters [][]byte) int {
	n := len(lower)
	longest := 0
	for _, s := range starters {
		if len(s) > longest {
			longest = len(s)
		}
	}
	for i := max(0, n-longest+1); i < n; i++ {
		tail := lower[i:]
		for _, s := range starters {
			if len(tail) < len(s) && bytes.HasPrefix(s, tail) {
				return i
			}
		}
	}
	return n
}

// runeSafeCut moves cut backwards until the prefix ends on a complete UTF-8
// sequence, so a multi-byte character is never split between two rewrites.
func runeSafeCut(buf []byte, cut int) int {
	if cut > len(buf) {
		cut = len(buf)
	}
	start := cut - 1
	for start >= 0 && !utf8.RuneStart(buf[start]) {
		start--
	}
	if start < 0 {
		return cut
	}
	if !utf8.FullRune(buf[start:cut]) {
		return start
	}
	return cut
}
