package phantom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom2mesh/internal/models"
)

func TestTetraPeaks(t *testing.T) {
	vol := Tetra(32, models.Float32)
	require.NoError(t, vol.Validate())

	// the top blob sits at (14.4, 14.4, 24); corners are far from every blob
	centre := vol.At(14, 14, 24)
	corner := vol.At(0, 0, 0)
	assert.Greater(t, centre, 150.0)
	assert.Less(t, corner, 50.0)
}

func TestCylinderIsConstantAlongZ(t *testing.T) {
	vol := Cylinder(16, models.UInt8)
	for z := 1; z < 16; z++ {
		assert.Equal(t, vol.At(8, 8, 0), vol.At(8, 8, z))
	}
	assert.Equal(t, 200.0, vol.At(8, 8, 3))
}

func TestSphere(t *testing.T) {
	vol := Sphere(11, 3, 100, 0, models.UInt8)
	assert.Equal(t, 100.0, vol.At(5, 5, 5))
	assert.Equal(t, 0.0, vol.At(0, 0, 0))
	assert.Equal(t, 100.0, vol.At(8, 5, 5))
	assert.Equal(t, 0.0, vol.At(9, 5, 5))
}
