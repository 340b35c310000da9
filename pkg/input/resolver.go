// Package input turns command line path arguments into a single volume.
//
// The first resolved path decides how the arguments are read: a zip archive
// is extracted and searched for series, a directory is searched for series,
// a single file is read as a volume, and several files are read as the
// slices of one series.
package input

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/imageio"
	"dicom2mesh/pkg/series"
)

// ErrNoInput means the path arguments matched no files.
var ErrNoInput = errors.New("no input files")

// Kind is how a set of path arguments was interpreted.
type Kind int

const (
	Archive Kind = iota
	Directory
	SingleFile
	SliceFiles
)

func (k Kind) String() string {
	switch k {
	case Archive:
		return "archive"
	case Directory:
		return "directory"
	case SingleFile:
		return "single file"
	case SliceFiles:
		return "slice files"
	}
	return "unknown"
}

// Resolver reads volumes from path arguments.
type Resolver struct {
	Locator *series.Locator
	Log     logrus.Ext1FieldLogger

	// Clean removes a caller supplied temp directory once the archive has
	// been read. Directories created by the resolver are always removed.
	Clean bool
}

// NewResolver returns a resolver using the locator's reader for slice files.
func NewResolver(locator *series.Locator) *Resolver {
	return &Resolver{Locator: locator, Log: logrus.StandardLogger()}
}

// Classify expands the arguments and reports how Resolve would read them.
func (r *Resolver) Classify(pathArgs []string) (Kind, []string, error) {
	paths := r.ExpandGlobs(pathArgs)
	if len(paths) == 0 {
		return 0, nil, errors.Wrapf(ErrNoInput, "arguments %q", pathArgs)
	}
	first := paths[0]
	switch {
	case series.IsArchive(first):
		return Archive, paths, nil
	case isDir(first):
		return Directory, paths, nil
	case len(paths) == 1:
		return SingleFile, paths, nil
	}
	return SliceFiles, SortNumeric(paths), nil
}

// Resolve reads the volume described by pathArgs and returns it with its
// modality. tempDir is used for archive extraction; when empty a fresh
// directory is created.
func (r *Resolver) Resolve(pathArgs []string, tempDir string) (*models.Volume, string, error) {
	kind, paths, err := r.Classify(pathArgs)
	if err != nil {
		return nil, "", err
	}
	r.logger().WithField("input", kind).Debugf("resolved %d paths", len(paths))

	switch kind {
	case Archive:
		var sel *series.Selection
		err := r.withTempDir(tempDir, func(dir string) error {
			var err error
			sel, err = r.Locator.LoadZip(paths[0], dir)
			return err
		})
		if err != nil {
			return nil, "", errors.Wrapf(err, "archive %s", paths[0])
		}
		return sel.Volume, sel.Modality, nil

	case Directory:
		r.logger().Infof("reading DICOM directory %s", paths[0])
		sel, err := r.Locator.LoadLargest(paths[0])
		if err != nil {
			return nil, "", err
		}
		return sel.Volume, sel.Modality, nil

	case SingleFile:
		r.logger().Infof("reading volume file %s", paths[0])
		vol, err := imageio.ReadImage(paths[0], r.Locator.Reader)
		if err != nil {
			return nil, "", err
		}
		return vol, series.GetModality(vol), nil
	}

	r.logFiles(paths)
	start := time.Now()
	vol, err := r.Locator.Reader.ReadSeries(paths)
	if err != nil {
		return nil, "", errors.Wrap(err, "read slice files")
	}
	r.logger().WithField("elapsed", time.Since(start)).Debug("slices read")

	modality := ""
	if first, err := r.Locator.Reader.ReadImage(paths[0]); err != nil {
		r.logger().WithError(err).Warnf("cannot read modality from %s", paths[0])
	} else {
		modality = series.GetModality(first)
	}
	return vol, modality, nil
}

// ExpandGlobs expands every argument as a glob and flattens the matches in
// argument order. Arguments that match nothing are logged and dropped.
func (r *Resolver) ExpandGlobs(pathArgs []string) []string {
	var paths []string
	for _, arg := range pathArgs {
		matches, err := filepath.Glob(arg)
		if err != nil {
			r.logger().WithError(err).Warnf("bad pattern %q", arg)
			continue
		}
		if len(matches) == 0 {
			r.logger().Warnf("%s matches no files", arg)
		}
		paths = append(paths, matches...)
	}
	return paths
}

func (r *Resolver) withTempDir(tempDir string, fn func(dir string) error) error {
	remove := r.Clean
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "dicom2mesh-")
		if err != nil {
			return errors.Wrap(err, "create temp dir")
		}
		tempDir, remove = dir, true
	}
	if remove {
		defer func() {
			if err := os.RemoveAll(tempDir); err != nil {
				r.logger().WithError(err).Warnf("cannot remove %s", tempDir)
			}
		}()
	}
	return fn(tempDir)
}

func (r *Resolver) logFiles(paths []string) {
	log := r.logger()
	log.Infof("reading %d slice files", len(paths))
	switch n := len(paths); {
	case n > 2:
		log.Infof("  %s, %s, ..., %s", filepath.Base(paths[0]), filepath.Base(paths[1]), filepath.Base(paths[n-1]))
	default:
		log.Infof("  %s", strings.Join(paths, ", "))
	}
	for _, p := range paths {
		log.Debugf("  %s", p)
	}
}

func (r *Resolver) logger() logrus.Ext1FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
