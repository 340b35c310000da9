// Package series discovers DICOM series on disk and loads the largest one.
package series

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dicom2mesh/internal/models"
)

// ErrNotFound means no loadable series was found.
var ErrNotFound = errors.New("no DICOM series found")

// DefaultPattern matches the conventional DICOM file suffix.
const DefaultPattern = "*.dcm"

// Locator scans directory trees for DICOM series and selects the one with
// the most slices.
type Locator struct {
	Reader Reader

	// Pattern is matched against base file names during the scan
	Pattern string

	// Search, when set, restricts selection to series whose description
	// or ID contains it
	Search string

	Log logrus.Ext1FieldLogger
}

// Selection is the outcome of SelectLargest.
type Selection struct {
	Candidate models.SeriesCandidate
	Volume    *models.Volume
	Modality  string
}

// NewLocator creates a locator using the given reader and the default pattern.
func NewLocator(reader Reader) *Locator {
	return &Locator{
		Reader:  reader,
		Pattern: DefaultPattern,
		Log:     logrus.StandardLogger(),
	}
}

// ScanDir walks root and returns the matching files and the unique
// directories containing them, both in walk order. Walk errors on a
// sub-path are logged and that branch is skipped.
func (l *Locator) ScanDir(root string) (files, dirs []string) {
	pattern := l.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	seen := map[string]bool{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger().WithError(err).Warnf("scan error under %s", root)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		files = append(files, path)
		dir := filepath.Dir(path)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
		return nil
	})
	if err != nil {
		l.logger().WithError(err).Warnf("scan of %s aborted", root)
	}
	return files, dirs
}

// Scan returns every series found under root. A directory may contribute
// zero or more candidates.
func (l *Locator) Scan(root string) []models.SeriesCandidate {
	files, dirs := l.ScanDir(root)
	if len(files) == 0 || len(dirs) == 0 {
		l.logger().Warnf("no files matching %q under %s", l.Pattern, root)
		return nil
	}
	var candidates []models.SeriesCandidate
	for _, dir := range dirs {
		ids, err := l.Reader.SeriesIDs(dir)
		if err != nil {
			l.logger().WithError(err).Warnf("cannot enumerate series in %s", dir)
			continue
		}
		for _, id := range ids {
			members, err := l.Reader.SeriesFileNames(dir, id)
			if err != nil || len(members) == 0 {
				l.logger().WithError(err).Warnf("series %s in %s has no readable files", id, dir)
				continue
			}
			c := models.SeriesCandidate{ID: id, Dir: dir, Files: members}
			if d, ok := l.Reader.(Describer); ok {
				c.Description = d.SeriesDescription(dir, id)
			}
			l.logger().WithField("files", len(members)).Infof("found series %s in %s", id, dir)
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// Filter applies the search string. When nothing matches, the full list is
// returned and a warning is logged.
func (l *Locator) Filter(candidates []models.SeriesCandidate) []models.SeriesCandidate {
	if l.Search == "" {
		return candidates
	}
	var matched []models.SeriesCandidate
	for _, c := range candidates {
		if strings.Contains(c.Description, l.Search) || strings.Contains(c.ID, l.Search) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		l.logger().Warnf("no series matches %q, considering all %d series", l.Search, len(candidates))
		return candidates
	}
	return matched
}

// Largest returns the index of the candidate with the most files; the first
// one wins ties. It returns -1 for an empty list.
func Largest(candidates []models.SeriesCandidate) int {
	best, bestSize := -1, 0
	for i, c := range candidates {
		if c.Size() > bestSize {
			best, bestSize = i, c.Size()
		}
	}
	return best
}

// SelectLargest loads the largest candidate. The modality is taken from a
// separate read of the first member, not from the stacked volume.
func (l *Locator) SelectLargest(candidates []models.SeriesCandidate) (*Selection, error) {
	i := Largest(candidates)
	if i < 0 {
		return nil, ErrNotFound
	}
	c := candidates[i]
	l.logger().WithField("files", c.Size()).Infof("loading series %s in directory %s", c.ID, c.Dir)
	start := time.Now()
	vol, err := l.Reader.ReadSeries(c.Files)
	if err != nil {
		return nil, errors.Wrapf(err, "read series %s", c.ID)
	}
	l.logger().WithField("elapsed", time.Since(start)).Debugf("series loaded: %v", vol)

	modality := ""
	first, err := l.Reader.ReadImage(c.Files[0])
	if err != nil {
		l.logger().WithError(err).Warnf("cannot read modality from %s", c.Files[0])
	} else {
		modality = GetModality(first)
	}
	return &Selection{Candidate: c, Volume: vol, Modality: modality}, nil
}

// LoadLargest scans dir and loads its largest series.
func (l *Locator) LoadLargest(dir string) (*Selection, error) {
	candidates := l.Filter(l.Scan(dir))
	sel, err := l.SelectLargest(candidates)
	if err != nil {
		return nil, errors.Wrapf(err, "directory %s", dir)
	}
	return sel, nil
}

// GetModality returns the volume's modality tag, or "" when absent.
func GetModality(v *models.Volume) string {
	if v == nil || v.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(v.Metadata[models.ModalityTag])
}

func (l *Locator) logger() logrus.Ext1FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}
