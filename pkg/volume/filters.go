package volume

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicom2mesh/internal/models"
)

// Filters is the pure Go Engine.
type Filters struct{}

var _ Engine = Filters{}

// Shrink reduces every axis by its factor, averaging each block. Partial
// blocks at the high end of an axis are dropped.
func (Filters) Shrink(vol *models.Volume, factors [3]int) (*models.Volume, error) {
	var dims [3]int
	for i, f := range factors {
		if f < 1 {
			return nil, errors.Errorf("invalid shrink factor %d on axis %d", f, i)
		}
		dims[i] = vol.Dims[i] / f
		if dims[i] < 1 {
			dims[i] = 1
		}
	}
	out := models.NewVolume(dims[0], dims[1], dims[2], vol.PixelType)
	for k, v := range vol.Metadata {
		out.Metadata[k] = v
	}
	for i := range dims {
		out.Spacing[i] = vol.Spacing[i] * float64(factors[i])
		out.Origin[i] = vol.Origin[i] + vol.Spacing[i]*float64(factors[i]-1)/2
	}

	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				var sum float64
				var n int
				for bz := z * factors[2]; bz < (z+1)*factors[2] && bz < vol.Dims[2]; bz++ {
					for by := y * factors[1]; by < (y+1)*factors[1] && by < vol.Dims[1]; by++ {
						for bx := x * factors[0]; bx < (x+1)*factors[0] && bx < vol.Dims[0]; bx++ {
							sum += vol.At(bx, by, bz)
							n++
						}
					}
				}
				out.Set(x, y, z, vol.PixelType.Cast(sum/float64(n)))
			}
		}
	}
	return out, nil
}

// Cast converts every voxel to pixelType.
func (Filters) Cast(vol *models.Volume, pixelType models.PixelType) *models.Volume {
	out := vol.CloneGeometry()
	out.PixelType = pixelType
	for i, v := range vol.Data {
		out.Data[i] = pixelType.Cast(v)
	}
	return out
}

// AnisotropicDiffusion runs explicit gradient weighted diffusion. The
// conductance is relative to the mean gradient magnitude of the input, so
// the result does not depend on the intensity scale. The pixel type of vol
// is kept but values are not rounded; cast afterwards if needed.
func (Filters) AnisotropicDiffusion(vol *models.Volume, params DiffusionParams) (*models.Volume, error) {
	if params.TimeStep <= 0 || params.Iterations < 0 || params.Conductance <= 0 {
		return nil, errors.Errorf("invalid diffusion parameters %+v", params)
	}
	cur := vol.CloneGeometry()
	copy(cur.Data, vol.Data)
	axes := 3
	if !vol.Is3D() {
		axes = 2
	}

	// spacing relative to the finest axis keeps the explicit scheme stable
	minSpacing := floats.Min(vol.Spacing[:axes])
	var h [3]float64
	for a := 0; a < axes; a++ {
		h[a] = vol.Spacing[a] / minSpacing
	}
	k := params.Conductance * meanGradient(cur, h, axes)
	if k == 0 {
		return cur, nil
	}
	next := cur.CloneGeometry()
	for it := 0; it < params.Iterations; it++ {
		for z := 0; z < cur.Dims[2]; z++ {
			for y := 0; y < cur.Dims[1]; y++ {
				for x := 0; x < cur.Dims[0]; x++ {
					c := cur.At(x, y, z)
					var flux float64
					for a := 0; a < axes; a++ {
						for _, step := range [2]int{-1, 1} {
							p := [3]int{x, y, z}
							p[a] += step
							d := (cur.AtClamped(p[0], p[1], p[2]) - c) / h[a]
							flux += math.Exp(-(d/k)*(d/k)) * d / h[a]
						}
					}
					next.Set(x, y, z, c+params.TimeStep*flux)
				}
			}
		}
		cur, next = next, cur
	}
	return cur, nil
}

func meanGradient(vol *models.Volume, h [3]float64, axes int) float64 {
	var sum float64
	for z := 0; z < vol.Dims[2]; z++ {
		for y := 0; y < vol.Dims[1]; y++ {
			for x := 0; x < vol.Dims[0]; x++ {
				var g2 float64
				for a := 0; a < axes; a++ {
					lo, hi := [3]int{x, y, z}, [3]int{x, y, z}
					lo[a]--
					hi[a]++
					d := (vol.AtClamped(hi[0], hi[1], hi[2]) - vol.AtClamped(lo[0], lo[1], lo[2])) / (2 * h[a])
					g2 += d * d
				}
				sum += math.Sqrt(g2)
			}
		}
	}
	return sum / float64(vol.NumVoxels())
}

// DoubleThreshold keeps every voxel of the wide band [t0, t3] that is face
// connected to a voxel of the narrow band [t1, t2].
func (Filters) DoubleThreshold(vol *models.Volume, t models.ThresholdSpec) (*models.Volume, error) {
	if !t.Valid() {
		return nil, errors.Errorf("double threshold needs 4 values, got %d", len(t))
	}
	narrowLo, narrowHi := t.Narrow()
	wideLo, wideHi := t.Wide()

	out := vol.CloneGeometry()
	out.PixelType = models.UInt8
	var queue []int
	for i, v := range vol.Data {
		if v >= narrowLo && v <= narrowHi {
			out.Data[i] = 255
			queue = append(queue, i)
		}
	}

	nx, ny, nz := vol.Dims[0], vol.Dims[1], vol.Dims[2]
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		x, y, z := i%nx, (i/nx)%ny, i/(nx*ny)
		for _, n := range [6][3]int{{x - 1, y, z}, {x + 1, y, z}, {x, y - 1, z}, {x, y + 1, z}, {x, y, z - 1}, {x, y, z + 1}} {
			if n[0] < 0 || n[1] < 0 || n[2] < 0 || n[0] >= nx || n[1] >= ny || n[2] >= nz {
				continue
			}
			j := vol.Index(n[0], n[1], n[2])
			if out.Data[j] != 0 {
				continue
			}
			if v := vol.Data[j]; v >= wideLo && v <= wideHi {
				out.Data[j] = 255
				queue = append(queue, j)
			}
		}
	}
	return out, nil
}

// Median uses a (2r+1) box per axis with clamped borders.
func (Filters) Median(vol *models.Volume, radius [3]int) (*models.Volume, error) {
	for i, r := range radius {
		if r < 0 {
			return nil, errors.Errorf("invalid median radius %d on axis %d", r, i)
		}
	}
	out := vol.CloneGeometry()
	window := make([]float64, 0, (2*radius[0]+1)*(2*radius[1]+1)*(2*radius[2]+1))
	for z := 0; z < vol.Dims[2]; z++ {
		for y := 0; y < vol.Dims[1]; y++ {
			for x := 0; x < vol.Dims[0]; x++ {
				window = window[:0]
				for dz := -radius[2]; dz <= radius[2]; dz++ {
					for dy := -radius[1]; dy <= radius[1]; dy++ {
						for dx := -radius[0]; dx <= radius[0]; dx++ {
							window = append(window, vol.AtClamped(x+dx, y+dy, z+dz))
						}
					}
				}
				sort.Float64s(window)
				out.Set(x, y, z, window[len(window)/2])
			}
		}
	}
	return out, nil
}

// ConstantPad surrounds the volume with value. The origin moves so that
// the original voxels keep their physical positions.
func (Filters) ConstantPad(vol *models.Volume, pad [3]int, value float64) (*models.Volume, error) {
	var dims [3]int
	for i, p := range pad {
		if p < 0 {
			return nil, errors.Errorf("invalid pad %d on axis %d", p, i)
		}
		dims[i] = vol.Dims[i] + 2*p
	}
	out := models.NewVolume(dims[0], dims[1], dims[2], vol.PixelType)
	for k, v := range vol.Metadata {
		out.Metadata[k] = v
	}
	out.Spacing = vol.Spacing
	for i := range pad {
		out.Origin[i] = vol.Origin[i] - float64(pad[i])*vol.Spacing[i]
	}
	fill := vol.PixelType.Cast(value)
	for i := range out.Data {
		out.Data[i] = fill
	}
	for z := 0; z < vol.Dims[2]; z++ {
		for y := 0; y < vol.Dims[1]; y++ {
			src := vol.Index(0, y, z)
			dst := out.Index(pad[0], y+pad[1], z+pad[2])
			copy(out.Data[dst:dst+vol.Dims[0]], vol.Data[src:src+vol.Dims[0]])
		}
	}
	return out, nil
}

// Statistics computes intensity statistics over every voxel.
func (Filters) Statistics(vol *models.Volume) Stats {
	if len(vol.Data) == 0 {
		return Stats{}
	}
	mean, sigma := stat.MeanStdDev(vol.Data, nil)
	if len(vol.Data) == 1 {
		sigma = 0
	}
	return Stats{
		Min:   floats.Min(vol.Data),
		Max:   floats.Max(vol.Data),
		Mean:  mean,
		Sigma: sigma,
		Sum:   floats.Sum(vol.Data),
	}
}
