package mesh

import (
	"math"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"

	"dicom2mesh/internal/models"
)

// SearchIterations refines each marching cubes vertex by bisection.
const SearchIterations = 8

// volumeSolid exposes a volume as a model3d.Solid in physical coordinates.
// A point is inside when the trilinear interpolated intensity is above the
// iso-value. Samples outside the grid read as -Inf.
type volumeSolid struct {
	vol *models.Volume
	iso float64
	min model3d.Coord3D
	max model3d.Coord3D
}

func newVolumeSolid(vol *models.Volume, iso float64) *volumeSolid {
	o := model3d.Coord3D{X: vol.Origin[0], Y: vol.Origin[1], Z: vol.Origin[2]}
	extent := model3d.Coord3D{
		X: float64(vol.Dims[0]-1) * vol.Spacing[0],
		Y: float64(vol.Dims[1]-1) * vol.Spacing[1],
		Z: float64(vol.Dims[2]-1) * vol.Spacing[2],
	}
	return &volumeSolid{vol: vol, iso: iso, min: o, max: o.Add(extent)}
}

func (v *volumeSolid) Min() model3d.Coord3D {
	return v.min
}

func (v *volumeSolid) Max() model3d.Coord3D {
	return v.max
}

func (v *volumeSolid) Contains(c model3d.Coord3D) bool {
	return v.Interp(c) > v.iso
}

// Interp returns the trilinear interpolated intensity at c.
func (v *volumeSolid) Interp(c model3d.Coord3D) float64 {
	d := c.Sub(v.min)
	p := [3]float64{d.X, d.Y, d.Z}
	var (
		idx  [3][2]int
		frac [3][2]float64
	)
	for a := 0; a < 3; a++ {
		g := p[a] / v.vol.Spacing[a]
		lo := math.Floor(g)
		t := g - lo
		idx[a] = [2]int{int(lo), int(lo) + 1}
		frac[a] = [2]float64{1 - t, t}
	}
	var value float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				w := frac[0][i] * frac[1][j] * frac[2][k]
				if w == 0 {
					continue
				}
				value += w * v.get(idx[0][i], idx[1][j], idx[2][k])
			}
		}
	}
	return value
}

func (v *volumeSolid) get(x, y, z int) float64 {
	d := v.vol.Dims
	if x < 0 || y < 0 || z < 0 || x >= d[0] || y >= d[1] || z >= d[2] {
		return math.Inf(-1)
	}
	return v.vol.At(x, y, z)
}

// Extract runs marching cubes over vol at the given iso-value. The grid
// step is the finest voxel spacing.
func (g *Geometry) Extract(vol *models.Volume, iso float64) (*Mesh, error) {
	if err := vol.Validate(); err != nil {
		return nil, errors.Wrap(err, "extract")
	}
	if !vol.Is3D() {
		return nil, errors.New("extract: surface extraction needs a 3D volume")
	}
	solid := newVolumeSolid(vol, iso)
	step := math.Min(vol.Spacing[0], math.Min(vol.Spacing[1], vol.Spacing[2]))
	g.logger().Debugf("marching cubes at %g, step %g", iso, step)

	m := FromModel3D(model3d.MarchingCubesSearch(solid, step, SearchIterations))
	if m.NumPolys() == 0 {
		return nil, errors.Wrapf(ErrEmptyMesh, "no surface at iso-value %g", iso)
	}
	return m, nil
}
