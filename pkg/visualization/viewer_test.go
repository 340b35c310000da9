package visualization

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom2mesh/internal/models"
)

// layered returns a volume where every z slice holds its own index.
func layered(nx, ny, nz int) *models.Volume {
	vol := models.NewVolume(nx, ny, nz, models.UInt8)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				vol.Set(x, y, z, float64(z))
			}
		}
	}
	return vol
}

func TestExtractSlice(t *testing.T) {
	viewer, err := NewViewer(layered(10, 8, 5))
	require.NoError(t, err)

	for z := 0; z < 5; z++ {
		img, err := viewer.ExtractSlice("z", z)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 10, 8), img.Bounds())

		want := uint8(255*float64(z)/4 + 0.5)
		grey := img.(*image.Gray)
		assert.Equal(t, want, grey.GrayAt(3, 3).Y, "slice %d", z)
	}

	img, err := viewer.ExtractSlice("X", 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 8), img.Bounds())
	assert.Equal(t, uint8(255), img.(*image.Gray).GrayAt(4, 0).Y)

	img, err = viewer.ExtractSlice("y", 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 5), img.Bounds())
}

func TestExtractSliceErrors(t *testing.T) {
	viewer, err := NewViewer(layered(4, 4, 4))
	require.NoError(t, err)

	_, err = viewer.ExtractSlice("w", 0)
	assert.Error(t, err)
	_, err = viewer.ExtractSlice("z", 4)
	assert.Error(t, err)
	_, err = viewer.ExtractSlice("z", -1)
	assert.Error(t, err)
}

func TestUniformVolumeIsBlack(t *testing.T) {
	viewer, err := NewViewer(models.NewVolume(3, 3, 3, models.Int16))
	require.NoError(t, err)
	img, err := viewer.ExtractSlice("z", 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), img.(*image.Gray).GrayAt(1, 1).Y)
}

func TestSaveMidSlices(t *testing.T) {
	viewer, err := NewViewer(layered(6, 4, 3))
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	viewer.Log = logger

	dir := filepath.Join(t.TempDir(), "preview")
	files, err := viewer.SaveMidSlices(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "slice_x_003.jpg"), files[0])
	assert.Equal(t, filepath.Join(dir, "slice_z_001.jpg"), files[2])
	assert.Empty(t, hook.AllEntries())

	f, err := os.Open(files[2])
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())
}
