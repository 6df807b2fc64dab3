package deploy

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Collect walks desc.DeployPath and fills in desc.Files, desc.TotalSize and
// desc.FileCount. Only regular files are recorded; directories never appear in
// the mapping. Dotfiles and ignore-pattern matches are skipped via desc.Rules.
//
// The hash is MD5 over the full file contents. It feeds the cache-busting
// scheme, not a security boundary. Any unreadable file aborts the whole
// collection; there is no partial-success mode.
func Collect(desc *Descriptor) error {
	desc.Files = AssetRecord{}
	desc.TotalSize = 0
	desc.FileCount = 0

	err := filepath.WalkDir(desc.DeployPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(desc.DeployPath, p)
		if relErr != nil {
			return fmt.Errorf("calculating relative path: %w", relErr)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if desc.Rules.Excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if desc.Rules.Excluded(rel) {
			return nil
		}

		hash, size, err := hashFile(p)
		if err != nil {
			return err
		}

		desc.Files[rel] = hash
		desc.TotalSize += size
		desc.FileCount++
		return nil
	})
	if err != nil {
		return fmt.Errorf("collecting deploy assets: %w", err)
	}
	return nil
}

// hashFile returns the MD5 hex digest and byte size of the file at path.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
