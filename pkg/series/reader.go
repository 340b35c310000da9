package series

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicom2mesh/internal/models"
)

// Reader is the series enumeration and image loading capability the
// locator depends on.
type Reader interface {
	// SeriesIDs lists the series stored directly in dir.
	SeriesIDs(dir string) ([]string, error)

	// SeriesFileNames lists the members of one series in slice order.
	SeriesFileNames(dir, seriesID string) ([]string, error)

	// ReadSeries loads the files as one volume, one or more slices per file.
	ReadSeries(files []string) (*models.Volume, error)

	// ReadImage loads a single file.
	ReadImage(path string) (*models.Volume, error)
}

// Describer is implemented by readers that know series descriptions.
type Describer interface {
	SeriesDescription(dir, seriesID string) string
}

// metadataTags are copied into volume metadata.
var metadataTags = []tag.Tag{
	tag.Modality,
	tag.SeriesInstanceUID,
	tag.SeriesDescription,
	tag.PixelSpacing,
	tag.SliceThickness,
	tag.PatientPosition,
}

// header is the subset of a DICOM file used to group and order slices.
type header struct {
	path        string
	seriesUID   string
	description string
	instance    int
	position    []float64
	orientation []float64
}

// DicomReader reads uncompressed DICOM files with github.com/suyashkumar/dicom.
// Headers are cached per directory for the lifetime of the reader.
type DicomReader struct {
	Log logrus.Ext1FieldLogger

	cache map[string]*dirIndex
}

type dirIndex struct {
	groups map[string][]header
	order  []string
}

// NewDicomReader returns a reader logging to the standard logger.
func NewDicomReader() *DicomReader {
	return &DicomReader{Log: logrus.StandardLogger(), cache: map[string]*dirIndex{}}
}

// SeriesIDs returns the SeriesInstanceUIDs found in dir in first-seen order.
// Files that do not parse as DICOM are ignored.
func (r *DicomReader) SeriesIDs(dir string) ([]string, error) {
	idx, err := r.scan(dir)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), idx.order...), nil
}

// SeriesFileNames returns the member files of a series ordered by position
// along the slice normal, then instance number, then file name.
func (r *DicomReader) SeriesFileNames(dir, seriesID string) ([]string, error) {
	idx, err := r.scan(dir)
	if err != nil {
		return nil, err
	}
	members, ok := idx.groups[seriesID]
	if !ok {
		return nil, errors.Errorf("series %s not found in %s", seriesID, dir)
	}
	sorted := append([]header(nil), members...)
	sortHeaders(sorted)
	files := make([]string, len(sorted))
	for i, h := range sorted {
		files[i] = h.path
	}
	return files, nil
}

// SeriesDescription returns the SeriesDescription of the first member.
func (r *DicomReader) SeriesDescription(dir, seriesID string) string {
	idx, err := r.scan(dir)
	if err != nil || len(idx.groups[seriesID]) == 0 {
		return ""
	}
	return idx.groups[seriesID][0].description
}

func (r *DicomReader) scan(dir string) (*dirIndex, error) {
	if idx, ok := r.cache[dir]; ok {
		return idx, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}
	idx := &dirIndex{groups: map[string][]header{}}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		h, err := readHeader(path)
		if err != nil {
			r.logger().WithError(err).Tracef("skipping %s", path)
			continue
		}
		if _, ok := idx.groups[h.seriesUID]; !ok {
			idx.order = append(idx.order, h.seriesUID)
		}
		idx.groups[h.seriesUID] = append(idx.groups[h.seriesUID], h)
	}
	if r.cache == nil {
		r.cache = map[string]*dirIndex{}
	}
	r.cache[dir] = idx
	return idx, nil
}

func (r *DicomReader) logger() logrus.Ext1FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// ReadImage loads one file; multi-frame files become a 3D volume.
func (r *DicomReader) ReadImage(path string) (*models.Volume, error) {
	return r.ReadSeries([]string{path})
}

// ReadSeries stacks the frames of every file in order.
func (r *DicomReader) ReadSeries(files []string) (*models.Volume, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to read")
	}
	var (
		vol       *models.Volume
		positions [][]float64
		normal    []float64
		slices    int
	)
	for i, path := range files {
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		frames, cols, rows, err := framePixels(ds)
		if err != nil {
			return nil, errors.Wrapf(err, "pixel data of %s", path)
		}
		slope, intercept := rescale(ds)
		if i == 0 {
			vol = &models.Volume{
				Dims:      [3]int{cols, rows, 0},
				Spacing:   [3]float64{1, 1, 1},
				PixelType: pixelType(ds, slope, intercept),
				Metadata:  map[string]string{},
			}
			copyMetadata(ds, vol.Metadata)
			if ps := floatValues(ds, tag.PixelSpacing); len(ps) == 2 && ps[0] > 0 && ps[1] > 0 {
				vol.Spacing[0], vol.Spacing[1] = ps[1], ps[0]
			}
			if st := floatValues(ds, tag.SliceThickness); len(st) == 1 && st[0] > 0 {
				vol.Spacing[2] = st[0]
			}
			if pos := floatValues(ds, tag.ImagePositionPatient); len(pos) == 3 {
				copy(vol.Origin[:], pos)
			}
			normal = sliceNormal(floatValues(ds, tag.ImageOrientationPatient))
		} else if cols != vol.Dims[0] || rows != vol.Dims[1] {
			return nil, errors.Errorf("%s is %dx%d, expected %dx%d", path, cols, rows, vol.Dims[0], vol.Dims[1])
		}
		if pos := floatValues(ds, tag.ImagePositionPatient); len(pos) == 3 {
			positions = append(positions, pos)
		}
		for _, f := range frames {
			for _, p := range f {
				vol.Data = append(vol.Data, p*slope+intercept)
			}
			slices++
		}
	}
	vol.Dims[2] = slices
	if len(positions) >= 2 {
		d := math.Abs(dot(sub(positions[1], positions[0]), normal))
		if d > 1e-6 {
			vol.Spacing[2] = d
		}
	}
	return vol, vol.Validate()
}

func readHeader(path string) (header, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return header{}, err
	}
	h := header{
		path:        path,
		seriesUID:   stringValue(ds, tag.SeriesInstanceUID),
		description: stringValue(ds, tag.SeriesDescription),
		position:    floatValues(ds, tag.ImagePositionPatient),
		orientation: floatValues(ds, tag.ImageOrientationPatient),
	}
	if n, ok := intValue(ds, tag.InstanceNumber); ok {
		h.instance = n
	}
	return h, nil
}

func sortHeaders(hs []header) {
	normal := []float64{0, 0, 1}
	if len(hs) > 0 {
		normal = sliceNormal(hs[0].orientation)
	}
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i], hs[j]
		if len(a.position) == 3 && len(b.position) == 3 {
			da, db := dot(a.position, normal), dot(b.position, normal)
			if da != db {
				return da < db
			}
		}
		if a.instance != b.instance {
			return a.instance < b.instance
		}
		return a.path < b.path
	})
}

// framePixels returns every frame as x-fastest float rows.
func framePixels(ds dicom.Dataset) (frames [][]float64, cols, rows int, err error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, 0, err
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, 0, 0, errors.New("unexpected pixel data value")
	}
	for _, fr := range info.Frames {
		if fr.Encapsulated {
			return nil, 0, 0, errors.New("encapsulated (compressed) pixel data is not supported")
		}
		nf := fr.NativeData
		rows, cols = nf.Rows(), nf.Cols()
		buf := make([]float64, rows*cols)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				px, err := nf.GetPixel(x, y)
				if err != nil {
					return nil, 0, 0, err
				}
				buf[x+cols*y] = float64(px[0])
			}
		}
		frames = append(frames, buf)
	}
	if len(frames) == 0 {
		return nil, 0, 0, errors.New("no frames")
	}
	return frames, cols, rows, nil
}

func rescale(ds dicom.Dataset) (slope, intercept float64) {
	slope = 1
	if v := floatValues(ds, tag.RescaleSlope); len(v) == 1 && v[0] != 0 {
		slope = v[0]
	}
	if v := floatValues(ds, tag.RescaleIntercept); len(v) == 1 {
		intercept = v[0]
	}
	return slope, intercept
}

func pixelType(ds dicom.Dataset, slope, intercept float64) models.PixelType {
	if slope != math.Trunc(slope) || intercept != math.Trunc(intercept) {
		return models.Float32
	}
	bits, _ := intValue(ds, tag.BitsAllocated)
	signed, _ := intValue(ds, tag.PixelRepresentation)
	if slope != 1 || intercept != 0 {
		if bits <= 16 {
			return models.Int32
		}
		return models.Float64
	}
	switch {
	case bits == 8 && signed == 1:
		return models.Int8
	case bits == 8:
		return models.UInt8
	case bits == 16 && signed == 1:
		return models.Int16
	case bits == 16:
		return models.UInt16
	case bits == 32 && signed == 1:
		return models.Int32
	case bits == 32:
		return models.UInt32
	}
	return models.Float64
}

func copyMetadata(ds dicom.Dataset, md map[string]string) {
	for _, t := range metadataTags {
		el, err := ds.FindElementByTag(t)
		if err != nil {
			continue
		}
		var value string
		switch v := el.Value.GetValue().(type) {
		case []string:
			value = strings.Join(v, "\\")
		case []int:
			parts := make([]string, len(v))
			for i, n := range v {
				parts[i] = strconv.Itoa(n)
			}
			value = strings.Join(parts, "\\")
		default:
			continue
		}
		md[tagKey(t)] = strings.Trim(value, " \x00")
	}
}

func tagKey(t tag.Tag) string {
	return fmt.Sprintf("%04x|%04x", t.Group, t.Element)
}

func stringValue(ds dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	if s, ok := el.Value.GetValue().([]string); ok && len(s) > 0 {
		return strings.Trim(s[0], " \x00")
	}
	return ""
}

func floatValues(ds dicom.Dataset, t tag.Tag) []float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		var out []float64
		for _, s := range v {
			for _, part := range strings.Split(s, "\\") {
				f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					return nil
				}
				out = append(out, f)
			}
		}
		return out
	case []float64:
		return v
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out
	}
	return nil
}

func intValue(ds dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			return n, err == nil
		}
	}
	return 0, false
}

// sliceNormal is the cross product of the row and column direction cosines.
func sliceNormal(orientation []float64) []float64 {
	if len(orientation) != 6 {
		return []float64{0, 0, 1}
	}
	r, c := orientation[:3], orientation[3:]
	n := []float64{
		r[1]*c[2] - r[2]*c[1],
		r[2]*c[0] - r[0]*c[2],
		r[0]*c[1] - r[1]*c[0],
	}
	norm := math.Sqrt(dot(n, n))
	if norm == 0 {
		return []float64{0, 0, 1}
	}
	for i := range n {
		n[i] /= norm
	}
	return n
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
