package mesh

import (
	"github.com/sirupsen/logrus"

	"dicom2mesh/internal/models"
)

// Engine is the set of geometry operations the mesh chain and the driver
// need. Operations return new meshes; inputs are left untouched except
// where noted.
type Engine interface {
	Extract(vol *models.Volume, iso float64) (*Mesh, error)
	Clean(m *Mesh) (*Mesh, error)
	LargestRegion(m *Mesh) (*Mesh, error)

	// RemoveSmallParts returns m itself when ratio is 0.
	RemoveSmallParts(m *Mesh, ratio float64) (*Mesh, error)
	Smooth(m *Mesh, iterations int) (*Mesh, error)
	Decimate(m *Mesh, reduction float64) (*Mesh, error)
	Rotate(m *Mesh, axis string, degrees float64) (*Mesh, error)

	Read(path string) (*Mesh, error)
	Write(path string, m *Mesh) error
}

// Geometry is the pure Go Engine built on model3d.
type Geometry struct {
	Log logrus.Ext1FieldLogger
}

var _ Engine = (*Geometry)(nil)

// NewGeometry returns an engine logging to the standard logger.
func NewGeometry() *Geometry {
	return &Geometry{Log: logrus.StandardLogger()}
}

func (g *Geometry) logger() logrus.Ext1FieldLogger {
	if g == nil || g.Log == nil {
		return logrus.StandardLogger()
	}
	return g.Log
}
