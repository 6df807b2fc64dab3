package deploy

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// BundleFileName is the well-known archive name written into the deploy
// working directory.
const BundleFileName = "skylift-deploy.tar.gz"

// BuildBundle archives the filtered file set rooted at deployPath into a
// single gzipped tarball at outDir/skylift-deploy.tar.gz and returns its path.
// Any pre-existing archive at that path is removed first, and a partial
// archive left behind by a failed build is deleted so it can never be
// uploaded.
//
// Entries are prefixed with the site name. Directory entries get mode 0777:
// some Windows archive tooling refuses to descend into directories without
// the execute bit.
func BuildBundle(deployPath, siteName, outDir string, rules *IgnoreRuleSet) (string, error) {
	bundlePath := filepath.Join(outDir, BundleFileName)
	if err := os.Remove(bundlePath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("removing stale bundle: %w", err)
	}

	f, err := os.Create(bundlePath)
	if err != nil {
		return "", fmt.Errorf("creating bundle: %w", err)
	}

	if err := writeBundle(f, deployPath, siteName, rules); err != nil {
		f.Close()
		os.Remove(bundlePath)
		return "", err
	}

	// The archive is only valid once both streams have flushed and the file
	// has hit the disk.
	if err := f.Close(); err != nil {
		os.Remove(bundlePath)
		return "", fmt.Errorf("closing bundle: %w", err)
	}
	return bundlePath, nil
}

func writeBundle(w io.Writer, deployPath, siteName string, rules *IgnoreRuleSet) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(deployPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(deployPath, p)
		if relErr != nil {
			return fmt.Errorf("calculating relative path: %w", relErr)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if rules.Excluded(rel) {
				return fs.SkipDir
			}
			return writeDirHeader(tw, path.Join(siteName, rel))
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rules.Excluded(rel) {
			return nil
		}
		return writeFileEntry(tw, p, path.Join(siteName, rel), d)
	})
	if err != nil {
		return fmt.Errorf("building bundle: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	return nil
}

func writeDirHeader(tw *tar.Writer, name string) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     0777,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing directory header %s: %w", name, err)
	}
	return nil
}

func writeFileEntry(tw *tar.Writer, srcPath, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", srcPath, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("building header for %s: %w", srcPath, err)
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header %s: %w", name, err)
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archiving %s: %w", srcPath, err)
	}
	return nil
}
