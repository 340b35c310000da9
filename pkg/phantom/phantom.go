// Package phantom builds synthetic test volumes and writes them as DICOM
// series. The shapes are smooth Gaussian blobs so iso-surfaces are closed
// and well behaved at any threshold between background and peak.
package phantom

import (
	"math"

	"dicom2mesh/internal/models"
)

// tetraVertices are the blob centres of the tetra phantom in unit coordinates.
var tetraVertices = [4][3]float64{
	{0.732843, 0.45, 0.35},
	{0.308579, 0.694949, 0.35},
	{0.308579, 0.205051, 0.35},
	{0.45, 0.45, 0.75},
}

// Scale is the peak value of a single Gaussian blob.
const Scale = 200.0

// Tetra returns a dim^3 volume holding four overlapping Gaussian blobs at
// the corners of a tetrahedron.
func Tetra(dim int, pixelType models.PixelType) *models.Volume {
	vol := models.NewVolume(dim, dim, dim, pixelType)
	sigma := float64(dim) / 6
	for z := 0; z < dim; z++ {
		for y := 0; y < dim; y++ {
			for x := 0; x < dim; x++ {
				var v float64
				for _, c := range tetraVertices {
					v += gaussian(x, y, z, c[0]*float64(dim), c[1]*float64(dim), c[2]*float64(dim), sigma)
				}
				vol.Set(x, y, z, pixelType.Cast(v))
			}
		}
	}
	return vol
}

// Cylinder returns a dim^3 volume whose every slice is the same 2D
// Gaussian centred in the plane.
func Cylinder(dim int, pixelType models.PixelType) *models.Volume {
	vol := models.NewVolume(dim, dim, dim, pixelType)
	sigma := float64(dim) / 4
	c := float64(dim) / 2
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			v := pixelType.Cast(Scale * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
			for z := 0; z < dim; z++ {
				vol.Set(x, y, z, v)
			}
		}
	}
	return vol
}

// Sphere returns a binary ball of the given radius (in voxels) centred in a
// dim^3 grid.
func Sphere(dim int, radius, inside, outside float64, pixelType models.PixelType) *models.Volume {
	vol := models.NewVolume(dim, dim, dim, pixelType)
	c := float64(dim-1) / 2
	for z := 0; z < dim; z++ {
		for y := 0; y < dim; y++ {
			for x := 0; x < dim; x++ {
				dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
				v := outside
				if math.Sqrt(dx*dx+dy*dy+dz*dz) <= radius {
					v = inside
				}
				vol.Set(x, y, z, pixelType.Cast(v))
			}
		}
	}
	return vol
}

func gaussian(x, y, z int, mx, my, mz, sigma float64) float64 {
	dx, dy, dz := float64(x)-mx, float64(y)-my, float64(z)-mz
	return Scale * math.Exp(-(dx*dx+dy*dy+dz*dz)/(2*sigma*sigma))
}
