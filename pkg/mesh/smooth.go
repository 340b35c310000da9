package mesh

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// Taubin smoothing factors. The negative pass undoes the shrinkage of the
// positive one, giving a low pass filter with pass band around 0.1.
const (
	taubinLambda = 0.5
	taubinMu     = -0.53
)

// Smooth applies the given number of Taubin iterations, each one a
// shrinking and an inflating Laplacian pass over the vertex neighbours.
func (g *Geometry) Smooth(m *Mesh, iterations int) (*Mesh, error) {
	if iterations < 0 {
		return nil, errors.Errorf("negative smoothing iterations %d", iterations)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := m.Clone()
	if iterations == 0 {
		return out, nil
	}
	neighbours := vertexNeighbours(m)
	next := make([]model3d.Coord3D, len(out.Vertices))
	for it := 0; it < iterations; it++ {
		for _, factor := range [2]float64{taubinLambda, taubinMu} {
			for i, v := range out.Vertices {
				ns := neighbours[i]
				if len(ns) == 0 {
					next[i] = v
					continue
				}
				var sum model3d.Coord3D
				for _, n := range ns {
					sum = sum.Add(out.Vertices[n])
				}
				delta := sum.Scale(1 / float64(len(ns))).Sub(v)
				next[i] = v.Add(delta.Scale(factor))
			}
			out.Vertices, next = next, out.Vertices
		}
	}
	return out, nil
}

// vertexNeighbours lists the distinct vertices sharing an edge with each
// vertex.
func vertexNeighbours(m *Mesh) [][]int {
	sets := make([]map[int]bool, len(m.Vertices))
	add := func(a, b int) {
		if sets[a] == nil {
			sets[a] = map[int]bool{}
		}
		sets[a][b] = true
	}
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			a, b := f[j], f[(j+1)%3]
			add(a, b)
			add(b, a)
		}
	}
	out := make([][]int, len(m.Vertices))
	for i, s := range sets {
		for n := range s {
			out[i] = append(out[i], n)
		}
		sort.Ints(out[i])
	}
	return out
}
