// Package imageio reads and writes single volume files. MetaImage files are
// handled natively; anything else is read as a DICOM file.
package imageio

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/series"
)

// ReadImage loads a single pre-built volume file, choosing the decoder by
// extension. Unknown extensions are tried as DICOM.
func ReadImage(path string, dicomReader series.Reader) (*models.Volume, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mha", ".mhd":
		vol, err := ReadMetaImage(path)
		return vol, errors.Wrapf(err, "read %s", path)
	}
	if dicomReader == nil {
		dicomReader = series.NewDicomReader()
	}
	vol, err := dicomReader.ReadImage(path)
	return vol, errors.Wrapf(err, "read %s", path)
}

// WriteImage stores vol; only MetaImage output is supported.
func WriteImage(path string, vol *models.Volume) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mha":
		return WriteMetaImage(path, vol)
	}
	return errors.Errorf("unsupported volume format %q", filepath.Ext(path))
}
