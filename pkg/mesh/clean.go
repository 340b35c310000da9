package mesh

import (
	"sort"

	"github.com/unixpickle/model3d/model3d"
)

// Clean merges coincident vertices, then drops degenerate faces, repeated
// faces and unused vertices.
func (g *Geometry) Clean(m *Mesh) (*Mesh, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	merged := make([]int, len(m.Vertices))
	index := make(map[model3d.Coord3D]int, len(m.Vertices))
	for i, v := range m.Vertices {
		if j, ok := index[v]; ok {
			merged[i] = j
			continue
		}
		index[v] = i
		merged[i] = i
	}

	seen := make(map[[3]int]bool, len(m.Faces))
	faces := make([][3]int, 0, len(m.Faces))
	for _, f := range m.Faces {
		f = [3]int{merged[f[0]], merged[f[1]], merged[f[2]]}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		t := model3d.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
		if t.Area() == 0 {
			continue
		}
		key := f
		sort.Ints(key[:])
		if seen[key] {
			continue
		}
		seen[key] = true
		faces = append(faces, f)
	}
	out := compact(m.Vertices, faces)
	g.logger().Tracef("clean: %d -> %d vertices, %d -> %d polygons",
		len(m.Vertices), len(out.Vertices), len(m.Faces), len(out.Faces))
	return out, nil
}
