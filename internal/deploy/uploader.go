package deploy

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"sync"
)

// DefaultUploadConcurrency bounds how many per-file uploads are in flight at
// once. Enough to overlap I/O latency across many small files without
// exhausting sockets.
const DefaultUploadConcurrency = 10

// ObjectStore is the minimal object-storage surface the upload coordinator
// needs. Implementations stream the body; they must not buffer whole files.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, metadata map[string]string, body io.Reader) error
}

// Uploader transfers a deploy's files to object storage under the
// {appId}/{versionId}/ key prefix.
type Uploader struct {
	store       ObjectStore
	logger      Logger
	concurrency int
}

// NewUploader creates an Uploader with the default concurrency bound.
func NewUploader(store ObjectStore, logger Logger) *Uploader {
	return &Uploader{store: store, logger: logger, concurrency: DefaultUploadConcurrency}
}

// UploadFiles uploads every collected asset. HTML and CSS bodies stream
// through the URL rewriter; everything else uploads verbatim. Each object
// carries its content hash as metadata for downstream cache validation.
//
// Uploads run on a fixed pool of workers. The first failure cancels the
// remaining queue; an access-denied failure is surfaced as a terminal
// uploadAccessDenied error, anything else as a generic upload error.
func (u *Uploader) UploadFiles(ctx context.Context, desc *Descriptor) error {
	hasher := NewURLHasher(desc.Files)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for range u.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for relPath := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := u.uploadOne(ctx, desc, hasher, relPath); err != nil {
					fail(err)
				}
			}
		}()
	}

	for relPath := range desc.Files {
		jobs <- relPath
	}
	close(jobs)
	wg.Wait()

	return firstErr
}

func (u *Uploader) uploadOne(ctx context.Context, desc *Descriptor, hasher *URLHasher, relPath string) error {
	f, err := os.Open(path.Join(desc.DeployPath, relPath))
	if err != nil {
		return fmt.Errorf("opening %s: %w", relPath, err)
	}
	defer f.Close()

	key := desc.AppID + "/" + desc.VersionID + "/" + relPath
	metadata := map[string]string{"md5Hash": desc.Files[relPath]}
	body := hasher.Transform(relPath, f)

	u.logger.Debug("uploading file", "key", key)
	if err := u.store.Put(ctx, key, contentTypeFor(relPath), metadata, body); err != nil {
		if ErrorCode(err) == CodeUploadAccessDenied {
			return err
		}
		return fmt.Errorf("uploading %s: %w", relPath, err)
	}
	return nil
}

// UploadArchive uploads a single bundle archive as one stream.
func (u *Uploader) UploadArchive(ctx context.Context, bundlePath, key string, metadata map[string]string) error {
	f, err := os.Open(bundlePath)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	u.logger.Debug("uploading bundle", "key", key)
	if err := u.store.Put(ctx, key, "application/gzip", metadata, f); err != nil {
		if ErrorCode(err) == CodeUploadAccessDenied {
			return err
		}
		return fmt.Errorf("uploading bundle: %w", err)
	}
	return nil
}

// webContentTypes covers the types a static site serves constantly; anything
// else falls back to the platform mime table.
var webContentTypes = map[string]string{
	".html":  "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".json":  "application/json",
	".svg":   "image/svg+xml",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".txt":   "text/plain",
	".xml":   "application/xml",
	".pdf":   "application/pdf",
}

func contentTypeFor(relPath string) string {
	ext := path.Ext(relPath)
	if ct, ok := webContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
