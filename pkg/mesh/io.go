package mesh

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// ErrUnknownFormat is returned for file extensions other than .stl, .ply
// and .vtk.
var ErrUnknownFormat = errors.New("unknown mesh format")

// Formats lists the supported file extensions.
var Formats = []string{".stl", ".ply", ".vtk"}

// Format returns the lower case extension of path if it is supported.
func Format(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		if ext == f {
			return ext, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", filepath.Ext(path))
}

// Write stores m in the binary format chosen by the extension of path.
// Nothing is written for an unknown extension.
func (g *Geometry) Write(path string, m *Mesh) error {
	format, err := Format(path)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create mesh file")
	}
	w := bufio.NewWriter(f)
	switch format {
	case ".stl":
		err = model3d.WriteSTL(w, m.Triangles())
	case ".ply":
		err = writePLY(w, m)
	case ".vtk":
		err = writeVTK(w, m)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	g.logger().WithField("polygons", m.NumPolys()).Debugf("wrote %s", path)
	return nil
}

// Read loads a mesh, choosing the decoder by extension.
func (g *Geometry) Read(path string) (*Mesh, error) {
	format, err := Format(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var m *Mesh
	switch format {
	case ".stl":
		var tris []*model3d.Triangle
		tris, err = model3d.ReadSTL(r)
		if err == nil {
			m = FromTriangles(tris)
		}
	case ".ply":
		m, err = readPLY(r)
	case ".vtk":
		m, err = readVTK(r)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	g.logger().WithField("polygons", m.NumPolys()).Debugf("read %s", path)
	return m, nil
}
