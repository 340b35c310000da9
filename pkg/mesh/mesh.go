// Package mesh extracts triangle surfaces from volumes and runs the mesh
// cleanup chain: clean, small part removal, smoothing, decimation and
// rotation.
package mesh

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// ErrEmptyMesh is returned when an operation produced no triangles.
var ErrEmptyMesh = errors.New("mesh has no polygons")

// Mesh is an indexed triangle surface.
type Mesh struct {
	Vertices []model3d.Coord3D
	Faces    [][3]int
}

// NumPolys is the number of triangles.
func (m *Mesh) NumPolys() int {
	if m == nil {
		return 0
	}
	return len(m.Faces)
}

// NumVertices is the number of vertices, used or not.
func (m *Mesh) NumVertices() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: append([]model3d.Coord3D(nil), m.Vertices...),
		Faces:    append([][3]int(nil), m.Faces...),
	}
}

// Validate checks that every face references existing vertices.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= len(m.Vertices) {
				return errors.Errorf("face %d references vertex %d of %d", i, v, len(m.Vertices))
			}
		}
	}
	return nil
}

// Triangle returns face i as a model3d triangle.
func (m *Mesh) Triangle(i int) *model3d.Triangle {
	f := m.Faces[i]
	return &model3d.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Triangles returns every face as a model3d triangle.
func (m *Mesh) Triangles() []*model3d.Triangle {
	tris := make([]*model3d.Triangle, len(m.Faces))
	for i := range m.Faces {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Model3D converts to a model3d mesh.
func (m *Mesh) Model3D() *model3d.Mesh {
	return model3d.NewMeshTriangles(m.Triangles())
}

// Bounds returns the corners of the vertex bounding box.
func (m *Mesh) Bounds() (min, max model3d.Coord3D) {
	if len(m.Vertices) == 0 {
		return
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min = min.Min(v)
		max = max.Max(v)
	}
	return min, max
}

// Area is the total triangle area.
func (m *Mesh) Area() float64 {
	var a float64
	for i := range m.Faces {
		a += m.Triangle(i).Area()
	}
	return a
}

func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh{vertices=%d polygons=%d}", len(m.Vertices), len(m.Faces))
}

// FromTriangles builds an indexed mesh, sharing vertices with identical
// coordinates.
func FromTriangles(tris []*model3d.Triangle) *Mesh {
	m := &Mesh{Faces: make([][3]int, 0, len(tris))}
	index := map[model3d.Coord3D]int{}
	for _, t := range tris {
		var f [3]int
		for j, c := range t {
			id, ok := index[c]
			if !ok {
				id = len(m.Vertices)
				index[c] = id
				m.Vertices = append(m.Vertices, c)
			}
			f[j] = id
		}
		m.Faces = append(m.Faces, f)
	}
	return m
}

// FromModel3D converts a model3d mesh.
func FromModel3D(mesh *model3d.Mesh) *Mesh {
	return FromTriangles(mesh.TriangleSlice())
}

// compact drops unreferenced vertices and renumbers faces.
func compact(vertices []model3d.Coord3D, faces [][3]int) *Mesh {
	remap := make([]int, len(vertices))
	for i := range remap {
		remap[i] = -1
	}
	out := &Mesh{Faces: make([][3]int, len(faces))}
	for i, f := range faces {
		for j, v := range f {
			if remap[v] < 0 {
				remap[v] = len(out.Vertices)
				out.Vertices = append(out.Vertices, vertices[v])
			}
			out.Faces[i][j] = remap[v]
		}
	}
	return out
}
