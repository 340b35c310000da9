package mesh

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// ErrUnknownAxis is returned for axis labels other than X, Y and Z.
var ErrUnknownAxis = errors.New("unknown rotation axis")

// AxisIndex maps X, Y and Z (any case) to 0, 1 and 2.
func AxisIndex(label string) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "X":
		return 0, nil
	case "Y":
		return 1, nil
	case "Z":
		return 2, nil
	}
	return 0, errors.Wrapf(ErrUnknownAxis, "%q", label)
}

// rotation returns the right handed rotation about a coordinate axis.
func rotation(axis int, degrees float64) *model3d.Matrix3Transform {
	s, c := math.Sincos(degrees * math.Pi / 180)
	var x, y, z model3d.Coord3D
	switch axis {
	case 0:
		x = model3d.Coord3D{X: 1}
		y = model3d.Coord3D{Y: c, Z: s}
		z = model3d.Coord3D{Y: -s, Z: c}
	case 1:
		x = model3d.Coord3D{X: c, Z: -s}
		y = model3d.Coord3D{Y: 1}
		z = model3d.Coord3D{X: s, Z: c}
	default:
		x = model3d.Coord3D{X: c, Y: s}
		y = model3d.Coord3D{X: -s, Y: c}
		z = model3d.Coord3D{Z: 1}
	}
	return &model3d.Matrix3Transform{Matrix: model3d.NewMatrix3Columns(x, y, z)}
}

// Rotate turns the mesh about the origin around the labelled axis.
func (g *Geometry) Rotate(m *Mesh, axis string, degrees float64) (*Mesh, error) {
	index, err := AxisIndex(axis)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return nil, errors.Errorf("invalid rotation angle %g", degrees)
	}
	g.logger().Debugf("rotating about axis %d by %g degrees", index, degrees)
	t := rotation(index, degrees)
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = t.Apply(v)
	}
	return out, nil
}
