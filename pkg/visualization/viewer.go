// Package visualization writes preview images of filtered volumes.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"dicom2mesh/internal/models"
)

// Quality is the JPEG quality of saved slices.
const Quality = 90

// Viewer renders axis aligned slices of a volume as 8 bit grey images.
// Intensities are windowed to the volume's own range.
type Viewer struct {
	vol      *models.Volume
	min, max float64

	Log logrus.Ext1FieldLogger
}

// NewViewer creates a viewer for vol.
func NewViewer(vol *models.Volume) (*Viewer, error) {
	if err := vol.Validate(); err != nil {
		return nil, errors.Wrap(err, "viewer")
	}
	return &Viewer{
		vol: vol,
		min: floats.Min(vol.Data),
		max: floats.Max(vol.Data),
		Log: logrus.StandardLogger(),
	}, nil
}

func axisIndex(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

func (v *Viewer) grey(value float64) color.Gray {
	if v.max <= v.min {
		return color.Gray{}
	}
	return color.Gray{Y: uint8(255*(value-v.min)/(v.max-v.min) + 0.5)}
}

// ExtractSlice returns the plane at position along axis. An x slice is laid
// out as (z, y), a y slice as (x, z) and a z slice as (x, y).
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	a, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	d := v.vol.Dims
	if position < 0 || position >= d[a] {
		return nil, errors.Errorf("position %d outside [0, %d) on axis %s", position, d[a], axis)
	}

	var img *image.Gray
	switch a {
	case 0:
		img = image.NewGray(image.Rect(0, 0, d[2], d[1]))
		for y := 0; y < d[1]; y++ {
			for z := 0; z < d[2]; z++ {
				img.SetGray(z, y, v.grey(v.vol.At(position, y, z)))
			}
		}
	case 1:
		img = image.NewGray(image.Rect(0, 0, d[0], d[2]))
		for z := 0; z < d[2]; z++ {
			for x := 0; x < d[0]; x++ {
				img.SetGray(x, z, v.grey(v.vol.At(x, position, z)))
			}
		}
	default:
		img = image.NewGray(image.Rect(0, 0, d[0], d[1]))
		for y := 0; y < d[1]; y++ {
			for x := 0; x < d[0]; x++ {
				img.SetGray(x, y, v.grey(v.vol.At(x, y, position)))
			}
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: Quality}); err != nil {
		file.Close()
		return errors.Wrapf(err, "encode %s", filename)
	}
	return file.Close()
}

// SaveMidSlices writes the middle slice along each axis into dir and
// returns the file names.
func (v *Viewer) SaveMidSlices(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var files []string
	for a, axis := range []string{"x", "y", "z"} {
		pos := v.vol.Dims[a] / 2
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return files, err
		}
		name := filepath.Join(dir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, name); err != nil {
			return files, err
		}
		files = append(files, name)
	}
	v.Log.WithField("dir", dir).Debugf("saved %d preview slices", len(files))
	return files, nil
}
