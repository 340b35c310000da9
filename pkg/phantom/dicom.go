package phantom

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicom2mesh/internal/models"
)

// uidRoot is the organisation root used for generated UIDs.
const uidRoot = "1.2.826.0.1.3680043.2.1125"

var sopClasses = map[string]string{
	"CT": "1.2.840.10008.5.1.4.1.1.2",
	"MR": "1.2.840.10008.5.1.4.1.1.4",
}

// SeriesOptions controls how WriteDicomSeries names and tags the slices.
type SeriesOptions struct {
	// SeriesUID is generated when empty
	SeriesUID string

	// Modality defaults to CT
	Modality string

	Description string

	// NameFormat receives the 1-based slice number; default "IM%d.dcm"
	NameFormat string
}

// NewUID returns a unique identifier below the generator's root.
func NewUID() string {
	return fmt.Sprintf("%s.%d", uidRoot, time.Now().UnixNano())
}

// WriteDicomSeries writes one single-frame DICOM file per z slice of vol
// into dir and returns the paths in slice order. Values are stored as
// unsigned 16 bit with a rescale intercept so negative intensities survive.
func WriteDicomSeries(vol *models.Volume, dir string, opts SeriesOptions) ([]string, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if opts.SeriesUID == "" {
		opts.SeriesUID = NewUID()
	}
	if opts.Modality == "" {
		opts.Modality = "CT"
	}
	if opts.NameFormat == "" {
		opts.NameFormat = "IM%d.dcm"
	}
	sopClass, ok := sopClasses[opts.Modality]
	if !ok {
		sopClass = sopClasses["CT"]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create series directory")
	}

	intercept := math.Floor(minValue(vol.Data))
	if intercept > 0 {
		intercept = 0
	}
	studyUID := opts.SeriesUID + ".1"
	nx, ny := vol.Dims[0], vol.Dims[1]
	paths := make([]string, 0, vol.Dims[2])
	for z := 0; z < vol.Dims[2]; z++ {
		nf := frame.NewNativeFrame[uint16](16, ny, nx, nx*ny, 1)
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v := math.Round(vol.At(x, y, z) - intercept)
				nf.RawData[x+nx*y] = uint16(math.Max(0, math.Min(math.MaxUint16, v)))
			}
		}
		sopUID := fmt.Sprintf("%s.%d", opts.SeriesUID, z+1)
		zpos := vol.Origin[2] + float64(z)*vol.Spacing[2]
		b := &builder{}
		b.add(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"})
		b.add(tag.MediaStorageSOPClassUID, []string{sopClass})
		b.add(tag.MediaStorageSOPInstanceUID, []string{sopUID})
		b.add(tag.SOPClassUID, []string{sopClass})
		b.add(tag.SOPInstanceUID, []string{sopUID})
		b.add(tag.StudyInstanceUID, []string{studyUID})
		b.add(tag.SeriesInstanceUID, []string{opts.SeriesUID})
		b.add(tag.SeriesDescription, []string{opts.Description})
		b.add(tag.Modality, []string{opts.Modality})
		b.add(tag.InstanceNumber, []string{fmt.Sprintf("%d", z+1)})
		b.add(tag.ImagePositionPatient, []string{ds(vol.Origin[0]), ds(vol.Origin[1]), ds(zpos)})
		b.add(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"})
		b.add(tag.PixelSpacing, []string{ds(vol.Spacing[1]), ds(vol.Spacing[0])})
		b.add(tag.SliceThickness, []string{ds(vol.Spacing[2])})
		b.add(tag.Rows, []int{ny})
		b.add(tag.Columns, []int{nx})
		b.add(tag.BitsAllocated, []int{16})
		b.add(tag.BitsStored, []int{16})
		b.add(tag.HighBit, []int{15})
		b.add(tag.PixelRepresentation, []int{0})
		b.add(tag.SamplesPerPixel, []int{1})
		b.add(tag.PhotometricInterpretation, []string{"MONOCHROME2"})
		b.add(tag.RescaleIntercept, []string{ds(intercept)})
		b.add(tag.RescaleSlope, []string{"1"})
		b.add(tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: nf}},
		})
		if b.err != nil {
			return nil, errors.Wrapf(b.err, "slice %d", z)
		}

		path := filepath.Join(dir, fmt.Sprintf(opts.NameFormat, z+1))
		if err := writeDataset(path, dicom.Dataset{Elements: b.elements}); err != nil {
			return nil, errors.Wrapf(err, "write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type builder struct {
	elements []*dicom.Element
	err      error
}

func (b *builder) add(t tag.Tag, data any) {
	if b.err != nil {
		return
	}
	el, err := dicom.NewElement(t, data)
	if err != nil {
		b.err = errors.Wrapf(err, "element %v", t)
		return
	}
	b.elements = append(b.elements, el)
}

func writeDataset(path string, dataset dicom.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dicom.Write(f, dataset); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ds formats a decimal string value.
func ds(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

func minValue(data []float64) float64 {
	m := math.Inf(1)
	for _, v := range data {
		m = math.Min(m, v)
	}
	if math.IsInf(m, 1) {
		return 0
	}
	return m
}
