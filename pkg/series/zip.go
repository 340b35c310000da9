package series

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// IsArchive reports whether path is a readable zip file.
func IsArchive(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	r, err := openZip(path)
	if err != nil {
		return false
	}
	r.Close()
	return true
}

// LoadZip extracts the archive into tempDir and loads the largest series it
// contains. Extraction problems are logged; whatever was extracted is still
// scanned, so a failed extraction surfaces as ErrNotFound.
func (l *Locator) LoadZip(path, tempDir string) (*Selection, error) {
	l.logger().Infof("reading DICOM zip file %s", path)
	l.logger().Debugf("temp dir %s", tempDir)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}
	if err := extractAll(path, tempDir, func(name string, err error) {
		l.logger().WithError(err).Warnf("zip entry %s not extracted", name)
	}); err != nil {
		l.logger().WithError(err).Warn("zip extract failed")
	}
	return l.LoadLargest(tempDir)
}

// extractAll writes every entry below dest. Entries that would land outside
// dest are skipped and reported through onEntryError.
func extractAll(path, dest string, onEntryError func(string, error)) error {
	r, err := openZip(path)
	if err != nil {
		return err
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			onEntryError(f.Name, errors.New("entry escapes destination"))
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				onEntryError(f.Name, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			onEntryError(f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// openZip tolerates non-local entry names; extractAll filters them itself.
func openZip(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		return r, nil
	}
	return r, err
}
