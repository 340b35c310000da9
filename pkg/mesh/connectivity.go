package mesh

import (
	"github.com/pkg/errors"
)

// disjointSet is a union-find forest over vertex ids.
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	d := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *disjointSet) find(i int) int {
	for d.parent[i] != i {
		d.parent[i] = d.parent[d.parent[i]]
		i = d.parent[i]
	}
	return i
}

func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
}

// Regions labels every face with its connected region. Faces sharing a
// vertex are connected. Region ids are dense and ordered by first face.
// sizes holds the face count of each region.
func Regions(m *Mesh) (labels []int, sizes []int) {
	ds := newDisjointSet(len(m.Vertices))
	for _, f := range m.Faces {
		ds.union(f[0], f[1])
		ds.union(f[1], f[2])
	}
	ids := map[int]int{}
	labels = make([]int, len(m.Faces))
	for i, f := range m.Faces {
		root := ds.find(f[0])
		id, ok := ids[root]
		if !ok {
			id = len(sizes)
			ids[root] = id
			sizes = append(sizes, 0)
		}
		labels[i] = id
		sizes[id]++
	}
	return labels, sizes
}

// LargestRegion keeps only the region with the most faces; the first one
// wins ties.
func (g *Geometry) LargestRegion(m *Mesh) (*Mesh, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	labels, sizes := Regions(m)
	best := -1
	for id, n := range sizes {
		if best < 0 || n > sizes[best] {
			best = id
		}
	}
	if best < 0 {
		return nil, ErrEmptyMesh
	}
	g.logger().Debugf("largest of %d regions has %d polygons", len(sizes), sizes[best])
	return keepRegions(m, labels, func(id int) bool { return id == best }), nil
}

// RemoveSmallParts drops every region whose face count is not above ratio
// times the largest region's. A ratio of 0 returns m itself.
func (g *Geometry) RemoveSmallParts(m *Mesh, ratio float64) (*Mesh, error) {
	if ratio < 0 || ratio > 1 {
		return nil, errors.Errorf("small part ratio %g outside [0, 1]", ratio)
	}
	if ratio == 0 {
		return m, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	labels, sizes := Regions(m)
	var largest int
	for _, n := range sizes {
		if n > largest {
			largest = n
		}
	}
	limit := ratio * float64(largest)
	out := keepRegions(m, labels, func(id int) bool { return float64(sizes[id]) > limit })
	g.logger().Debugf("kept regions above %g polygons: %d -> %d polygons", limit, m.NumPolys(), out.NumPolys())
	return out, nil
}

func keepRegions(m *Mesh, labels []int, keep func(int) bool) *Mesh {
	var faces [][3]int
	for i, f := range m.Faces {
		if keep(labels[i]) {
			faces = append(faces, f)
		}
	}
	return compact(m.Vertices, faces)
}
