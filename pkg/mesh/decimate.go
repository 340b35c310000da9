package mesh

import (
	"container/heap"
	"math"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/mat"
)

// quadric is a symmetric 4x4 error quadric stored as its upper triangle:
// aa ab ac ad bb bc bd cc cd dd.
type quadric [10]float64

func planeQuadric(n model3d.Coord3D, d, weight float64) quadric {
	a, b, c := n.X, n.Y, n.Z
	q := quadric{a * a, a * b, a * c, a * d, b * b, b * c, b * d, c * c, c * d, d * d}
	for i := range q {
		q[i] *= weight
	}
	return q
}

func (q quadric) plus(o quadric) quadric {
	for i := range q {
		q[i] += o[i]
	}
	return q
}

// eval returns the squared plane distance sum at p.
func (q quadric) eval(p model3d.Coord3D) float64 {
	x, y, z := p.X, p.Y, p.Z
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z + q[9]
}

// optimum returns the point minimising the quadric, if the system is well
// conditioned.
func (q quadric) optimum() (model3d.Coord3D, bool) {
	a := mat.NewSymDense(3, []float64{
		q[0], q[1], q[2],
		q[1], q[4], q[5],
		q[2], q[5], q[7],
	})
	b := mat.NewVecDense(3, []float64{-q[3], -q[6], -q[8]})
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return model3d.Coord3D{}, false
	}
	p := model3d.Coord3D{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return model3d.Coord3D{}, false
	}
	return p, true
}

type collapseCandidate struct {
	cost   float64
	u, v   int
	su, sv int
	pos    model3d.Coord3D
}

type candidateHeap []collapseCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(collapseCandidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// decimator performs quadric error edge collapses. Faces are never
// reindexed while it runs; dead faces and vertices are flagged.
type decimator struct {
	verts      []model3d.Coord3D
	vertAlive  []bool
	stamp      []int
	quadrics   []quadric
	faces      [][3]int
	faceAlive  []bool
	vertFaces  [][]int
	live       int
	candidates candidateHeap
}

func newDecimator(m *Mesh) *decimator {
	d := &decimator{
		verts:     append([]model3d.Coord3D(nil), m.Vertices...),
		vertAlive: make([]bool, len(m.Vertices)),
		stamp:     make([]int, len(m.Vertices)),
		quadrics:  make([]quadric, len(m.Vertices)),
		faces:     append([][3]int(nil), m.Faces...),
		faceAlive: make([]bool, len(m.Faces)),
		vertFaces: make([][]int, len(m.Vertices)),
		live:      len(m.Faces),
	}
	for i := range d.vertAlive {
		d.vertAlive[i] = true
	}
	for i, f := range d.faces {
		d.faceAlive[i] = true
		t := model3d.Triangle{d.verts[f[0]], d.verts[f[1]], d.verts[f[2]]}
		area := t.Area()
		var q quadric
		if area > 0 {
			n := t.Normal()
			q = planeQuadric(n, -n.Dot(t[0]), area)
		}
		for _, v := range f {
			d.quadrics[v] = d.quadrics[v].plus(q)
			d.vertFaces[v] = append(d.vertFaces[v], i)
		}
	}
	seen := map[[2]int]bool{}
	for _, f := range d.faces {
		for j := 0; j < 3; j++ {
			a, b := f[j], f[(j+1)%3]
			if a > b {
				a, b = b, a
			}
			if !seen[[2]int{a, b}] {
				seen[[2]int{a, b}] = true
				d.candidates = append(d.candidates, d.candidate(a, b))
			}
		}
	}
	heap.Init(&d.candidates)
	return d
}

func (d *decimator) candidate(u, v int) collapseCandidate {
	q := d.quadrics[u].plus(d.quadrics[v])
	pu, pv := d.verts[u], d.verts[v]
	mid := pu.Add(pv).Scale(0.5)

	pos, ok := q.optimum()
	if !ok || pos.Dist(mid) > pu.Dist(pv) {
		pos = mid
		best := q.eval(mid)
		for _, p := range [2]model3d.Coord3D{pu, pv} {
			if e := q.eval(p); e < best {
				pos, best = p, e
			}
		}
	}
	return collapseCandidate{
		cost: math.Max(0, q.eval(pos)),
		u:    u, v: v,
		su: d.stamp[u], sv: d.stamp[v],
		pos: pos,
	}
}

func (d *decimator) facesOf(v int) []int {
	var out []int
	for _, f := range d.vertFaces[v] {
		if d.faceAlive[f] {
			out = append(out, f)
		}
	}
	return out
}

func (d *decimator) neighbours(v int) map[int]bool {
	out := map[int]bool{}
	for _, f := range d.facesOf(v) {
		for _, w := range d.faces[f] {
			if w != v {
				out[w] = true
			}
		}
	}
	return out
}

func hasVertex(f [3]int, v int) bool {
	return f[0] == v || f[1] == v || f[2] == v
}

// canCollapse checks the link condition and rejects collapses that would
// flip or flatten a surviving face.
func (d *decimator) canCollapse(u, v int, pos model3d.Coord3D) bool {
	var shared int
	for _, f := range d.facesOf(u) {
		if hasVertex(d.faces[f], v) {
			shared++
		}
	}
	if shared == 0 || d.live-shared < 1 {
		return false
	}
	nu, nv := d.neighbours(u), d.neighbours(v)
	var common int
	for w := range nu {
		if nv[w] {
			common++
		}
	}
	if common != shared {
		return false
	}

	for _, moved := range [2]int{u, v} {
		for _, f := range d.facesOf(moved) {
			face := d.faces[f]
			if hasVertex(face, u) && hasVertex(face, v) {
				continue
			}
			var before, after [3]model3d.Coord3D
			for j, w := range face {
				before[j] = d.verts[w]
				after[j] = d.verts[w]
				if w == moved {
					after[j] = pos
				}
			}
			n0 := before[1].Sub(before[0]).Cross(before[2].Sub(before[0]))
			n1 := after[1].Sub(after[0]).Cross(after[2].Sub(after[0]))
			if n1.Norm() <= 1e-12*n0.Norm() || n0.Dot(n1) <= 0 {
				return false
			}
		}
	}
	return true
}

func (d *decimator) collapse(u, v int, pos model3d.Coord3D) {
	d.verts[u] = pos
	d.quadrics[u] = d.quadrics[u].plus(d.quadrics[v])
	d.vertAlive[v] = false
	for _, f := range d.facesOf(v) {
		face := &d.faces[f]
		if hasVertex(*face, u) {
			d.faceAlive[f] = false
			d.live--
			continue
		}
		for j := range face {
			if face[j] == v {
				face[j] = u
			}
		}
		d.vertFaces[u] = append(d.vertFaces[u], f)
	}
	d.vertFaces[v] = nil
	d.vertFaces[u] = d.facesOf(u)
	d.stamp[u]++
	d.stamp[v]++
	for w := range d.neighbours(u) {
		heap.Push(&d.candidates, d.candidate(u, w))
	}
}

func (d *decimator) run(target int) {
	for d.live > target && d.candidates.Len() > 0 {
		c := heap.Pop(&d.candidates).(collapseCandidate)
		if !d.vertAlive[c.u] || !d.vertAlive[c.v] || c.su != d.stamp[c.u] || c.sv != d.stamp[c.v] {
			continue
		}
		if !d.canCollapse(c.u, c.v, c.pos) {
			continue
		}
		d.collapse(c.u, c.v, c.pos)
	}
}

func (d *decimator) mesh() *Mesh {
	var faces [][3]int
	for i, f := range d.faces {
		if d.faceAlive[i] {
			faces = append(faces, f)
		}
	}
	return compact(d.verts, faces)
}

// Decimate removes about the given fraction of the faces by quadric error
// edge collapse. Collapses that break the local topology or flip a face are
// skipped, so the target may not be reached on very coarse meshes.
func (g *Geometry) Decimate(m *Mesh, reduction float64) (*Mesh, error) {
	if reduction < 0 || reduction > 1 {
		return nil, errors.Errorf("target reduction %g outside [0, 1]", reduction)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if reduction == 0 || m.NumPolys() == 0 {
		return m.Clone(), nil
	}
	target := int(math.Ceil((1 - reduction) * float64(m.NumPolys())))
	if target < 1 {
		target = 1
	}
	d := newDecimator(m)
	d.run(target)
	out := d.mesh()
	g.logger().Debugf("decimate: target %d, reached %d polygons", target, out.NumPolys())
	return out, nil
}
