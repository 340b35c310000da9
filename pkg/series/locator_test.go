package series

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/phantom"
)

func writeSeries(t *testing.T, dir, uid, modality string, slices int) []string {
	t.Helper()
	vol := phantom.Sphere(8, 3, 300, -100, models.Int16)
	vol.Dims[2] = slices
	vol.Data = vol.Data[:8*8*slices]
	vol.Spacing = [3]float64{0.7, 0.7, 1.5}
	paths, err := phantom.WriteDicomSeries(vol, dir, phantom.SeriesOptions{
		SeriesUID:   uid,
		Modality:    modality,
		Description: "series " + uid,
		NameFormat:  uid + "_%d.dcm",
	})
	require.NoError(t, err)
	return paths
}

func quietLocator() (*Locator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	reader := NewDicomReader()
	reader.Log = logger
	l := NewLocator(reader)
	l.Log = logger
	return l, hook
}

func TestLoadLargestSingleSeries(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, dir, "1.2.3.4", "CT", 6)

	l, _ := quietLocator()
	sel, err := l.LoadLargest(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, sel.Candidate.Size())
	assert.Equal(t, "CT", sel.Modality)
	assert.Equal(t, [3]int{8, 8, 6}, sel.Volume.Dims)
	assert.InDelta(t, 1.5, sel.Volume.Spacing[2], 1e-6)
	assert.InDelta(t, 0.7, sel.Volume.Spacing[0], 1e-6)
	assert.Equal(t, 300.0, sel.Volume.At(4, 4, 3))
	assert.Equal(t, -100.0, sel.Volume.At(0, 0, 0))
}

func TestLoadLargestPicksMostFiles(t *testing.T) {
	root := t.TempDir()
	writeSeries(t, filepath.Join(root, "a"), "1.2.3.1", "MR", 3)
	writeSeries(t, filepath.Join(root, "b", "deep"), "1.2.3.2", "CT", 5)
	// a second series sharing a directory
	writeSeries(t, filepath.Join(root, "a"), "1.2.3.3", "CT", 4)

	l, _ := quietLocator()
	candidates := l.Scan(root)
	require.Len(t, candidates, 3)

	sel, err := l.SelectLargest(candidates)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.2", sel.Candidate.ID)
	assert.Equal(t, 5, sel.Volume.Dims[2])
}

func TestSearchFilter(t *testing.T) {
	root := t.TempDir()
	writeSeries(t, filepath.Join(root, "a"), "1.2.3.1", "CT", 3)
	writeSeries(t, filepath.Join(root, "b"), "1.2.3.2", "CT", 5)

	l, hook := quietLocator()
	l.Search = "1.2.3.1"
	sel, err := l.LoadLargest(root)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.1", sel.Candidate.ID)

	hook.Reset()
	l.Search = "no such series"
	sel, err = l.LoadLargest(root)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.2", sel.Candidate.ID)
	var warned bool
	for _, e := range hook.AllEntries() {
		warned = warned || e.Level == logrus.WarnLevel
	}
	assert.True(t, warned)
}

func TestLargestTies(t *testing.T) {
	cs := []models.SeriesCandidate{
		{ID: "a", Files: []string{"1", "2"}},
		{ID: "b", Files: []string{"1", "2", "3"}},
		{ID: "c", Files: []string{"1", "2", "3"}},
	}
	assert.Equal(t, 1, Largest(cs))
	assert.Equal(t, -1, Largest(nil))
}

func TestLoadLargestEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.dcm"), []byte("not dicom"), 0644))

	l, _ := quietLocator()
	_, err := l.LoadLargest(dir)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestScanDirPattern(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.dcm", "b.DCM", "c.ima"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	l, _ := quietLocator()
	files, dirs := l.ScanDir(dir)
	assert.Equal(t, []string{filepath.Join(dir, "a.dcm")}, files)
	assert.Equal(t, []string{dir}, dirs)

	l.Pattern = "*"
	files, _ = l.ScanDir(dir)
	assert.Len(t, files, 3)
}

func TestGetModality(t *testing.T) {
	vol := models.NewVolume(1, 1, 1, models.UInt8)
	assert.Equal(t, "", GetModality(vol))
	assert.Equal(t, "", GetModality(nil))
	vol.Metadata[models.ModalityTag] = "CT "
	assert.Equal(t, "CT", GetModality(vol))
}

func zipDir(t *testing.T, src, dest string, extra map[string]string) {
	t.Helper()
	out, err := os.Create(dest)
	require.NoError(t, err)
	defer out.Close()
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		w, err := zw.Create("scan/" + e.Name())
		require.NoError(t, err)
		f, err := os.Open(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		_, err = io.Copy(w, f)
		f.Close()
		require.NoError(t, err)
	}
	for name, content := range extra {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestLoadZip(t *testing.T) {
	src := t.TempDir()
	writeSeries(t, src, "1.2.9", "CT", 4)
	archive := filepath.Join(t.TempDir(), "scan.zip")
	zipDir(t, src, archive, map[string]string{"../escape.dcm": "nope"})
	require.True(t, IsArchive(archive))

	tmp := filepath.Join(t.TempDir(), "work")
	l, _ := quietLocator()
	sel, err := l.LoadZip(archive, tmp)
	require.NoError(t, err)
	assert.Equal(t, 4, sel.Candidate.Size())
	assert.Equal(t, "CT", sel.Modality)

	_, err = os.Stat(filepath.Join(filepath.Dir(tmp), "escape.dcm"))
	assert.True(t, os.IsNotExist(err))
}

func TestIsArchive(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.zip")
	require.NoError(t, os.WriteFile(plain, []byte("not a zip"), 0644))
	assert.False(t, IsArchive(plain))
	assert.False(t, IsArchive(dir))
	assert.False(t, IsArchive(filepath.Join(dir, "missing.zip")))
}
