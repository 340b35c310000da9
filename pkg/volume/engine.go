// Package volume holds the volume filter chain that prepares a scan for
// iso-surface extraction, and the grid filters it runs on.
package volume

import (
	"fmt"

	"dicom2mesh/internal/models"
)

// Stats summarises voxel intensities.
type Stats struct {
	Min, Max    float64
	Mean, Sigma float64
	Sum         float64
}

func (s Stats) String() string {
	return fmt.Sprintf("min=%g max=%g mean=%g sigma=%g sum=%g", s.Min, s.Max, s.Mean, s.Sigma, s.Sum)
}

// DiffusionParams configures anisotropic diffusion.
type DiffusionParams struct {
	TimeStep    float64
	Iterations  int
	Conductance float64
}

// DefaultDiffusion is used by the filter chain.
var DefaultDiffusion = DiffusionParams{TimeStep: 0.03, Iterations: 5, Conductance: 3}

// Engine is the set of grid operations the filter chain needs. Every
// operation returns a new volume and leaves its input untouched.
type Engine interface {
	// Shrink averages factor-sized blocks.
	Shrink(vol *models.Volume, factors [3]int) (*models.Volume, error)

	// Cast rounds and clamps every voxel to pixelType.
	Cast(vol *models.Volume, pixelType models.PixelType) *models.Volume

	// AnisotropicDiffusion smooths while preserving strong edges.
	AnisotropicDiffusion(vol *models.Volume, params DiffusionParams) (*models.Volume, error)

	// DoubleThreshold segments with a four point threshold; inside voxels
	// become 255 and the result is uint8.
	DoubleThreshold(vol *models.Volume, t models.ThresholdSpec) (*models.Volume, error)

	// Median replaces each voxel by the median of its neighbourhood.
	Median(vol *models.Volume, radius [3]int) (*models.Volume, error)

	// ConstantPad grows the volume by pad voxels on both sides of each axis.
	ConstantPad(vol *models.Volume, pad [3]int, value float64) (*models.Volume, error)

	Statistics(vol *models.Volume) Stats
}
