package deploy

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// chunkedReader returns at most n bytes per Read, forcing the transformer to
// see references split across arbitrary boundaries.
type chunkedReader struct {
	data []byte
	n    int
	pos  int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	end := c.pos + c.n
	if end > len(c.data) {
		end = len(c.data)
	}
	if end-c.pos > len(p) {
		end = c.pos + len(p)
	}
	n := copy(p, c.data[c.pos:end])
	c.pos += n
	return n, nil
}

func TestTransform(t *testing.T) {
	files := AssetRecord{
		"images/logo.png": "aaa111",
		"css/styles.css":  "ccc333",
	}
	hasher := NewURLHasher(files)

	t.Run("non-rewritable files pass through untouched", func(t *testing.T) {
		t.Parallel()
		src := strings.NewReader(`<img src="images/logo.png">`)
		r := hasher.Transform("data.json", src)
		if r != src {
			t.Error("expected the source reader back for non-html content")
		}
	})

	t.Run("streamed output matches the whole-file rewrite", func(t *testing.T) {
		t.Parallel()
		doc := `<html><head><link href="css/styles.css"></head>` +
			`<body><img src="images/logo.png"><style>div { background: url(/images/logo.png); }</style></body></html>`
		want := hasher.Rewrite("index.html", doc)

		for _, chunkSize := range []int{1, 2, 3, 7, 16, 64, len(doc)} {
			r := hasher.Transform("index.html", &chunkedReader{data: []byte(doc), n: chunkSize})
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("chunk size %d: %v", chunkSize, err)
			}
			if string(got) != want {
				t.Errorf("chunk size %d:\n got: %s\nwant: %s", chunkSize, got, want)
			}
		}
	})

	t.Run("css streams match the whole-file rewrite", func(t *testing.T) {
		t.Parallel()
		css := `body { background: url(../images/logo.png); } h1 { background: url("/images/logo.png"); }`
		want := hasher.Rewrite("css/site.css", css)

		for _, chunkSize := range []int{1, 5, 13, len(css)} {
			r := hasher.Transform("css/site.css", &chunkedReader{data: []byte(css), n: chunkSize})
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("chunk size %d: %v", chunkSize, err)
			}
			if string(got) != want {
				t.Errorf("chunk size %d:\n got: %s\nwant: %s", chunkSize, got, want)
			}
		}
	})

	t.Run("multi-byte characters survive chunk boundaries", func(t *testing.T) {
		t.Parallel()
		doc := `<p>héllo wörld 日本語テキスト</p><img src="images/logo.png"><p>más 文字</p>`
		want := hasher.Rewrite("index.html", doc)

		for chunkSize := 1; chunkSize <= 8; chunkSize++ {
			r := hasher.Transform("index.html", &chunkedReader{data: []byte(doc), n: chunkSize})
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("chunk size %d: %v", chunkSize, err)
			}
			if string(got) != want {
				t.Errorf("chunk size %d:\n got: %q\nwant: %q", chunkSize, got, want)
			}
		}
	})

	t.Run("large content with references near boundaries", func(t *testing.T) {
		t.Parallel()
		var b strings.Builder
		filler := strings.Repeat("x", readChunkSize-10)
		b.WriteString(filler)
		b.WriteString(`<img src="images/logo.png">`)
		b.WriteString(filler)
		b.WriteString(`<link href="css/styles.css">`)
		doc := b.String()
		want := hasher.Rewrite("index.html", doc)

		r := hasher.Transform("index.html", bytes.NewReader([]byte(doc)))
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if string(got) != want {
			t.Error("streamed output differs from whole-file rewrite")
		}
	})

	t.Run("source errors propagate", func(t *testing.T) {
		t.Parallel()
		r := hasher.Transform("index.html", io.MultiReader(
			strings.NewReader("<html>"),
			&failingReader{},
		))
		if _, err := io.ReadAll(r); err == nil {
			t.Fatal("expected error from source reader")
		}
	})
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
