package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/model3d/fileformats"
	"github.com/unixpickle/model3d/model3d"
)

func TestWriteReadRoundTrip(t *testing.T) {
	g := quietGeometry()
	m := tetrahedron(model3d.Coord3D{X: 1, Y: 2, Z: 3}, 2)
	dir := t.TempDir()

	for _, ext := range Formats {
		path := filepath.Join(dir, "out"+ext)
		require.NoError(t, g.Write(path, m), ext)

		back, err := g.Read(path)
		require.NoError(t, err, ext)
		assert.Equal(t, m.NumPolys(), back.NumPolys(), ext)
		assert.Equal(t, m.NumVertices(), back.NumVertices(), ext)
		assert.InDelta(t, m.Area(), back.Area(), 1e-5, ext)
	}
}

func TestWriteSTLSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.STL")
	m := &Mesh{
		Vertices: []model3d.Coord3D{{}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	require.NoError(t, quietGeometry().Write(path, m))

	info, err := os.Stat(path)
	require.NoError(t, err)
	// header, count and one 50 byte record
	assert.Equal(t, int64(80+4+50), info.Size())
}

func TestWriteUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.obj")
	err := quietGeometry().Write(path, tetrahedron(model3d.Coord3D{}, 1))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = quietGeometry().Read(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormat(t *testing.T) {
	f, err := Format("/tmp/a.PLY")
	require.NoError(t, err)
	assert.Equal(t, ".ply", f)
	_, err = Format("noext")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func writeText(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadASCIIPLY(t *testing.T) {
	path := writeText(t, "quad.ply", strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"comment a unit square",
		"element vertex 4",
		"property float x",
		"property float y",
		"property float z",
		"property uchar red",
		"element face 1",
		"property list uchar int vertex_indices",
		"end_header",
		"0 0 0 255",
		"1 0 0 255",
		"1 1 0 255",
		"0 1 0 255",
		"4 0 1 2 3",
		"",
	}, "\n"))

	m, err := quietGeometry().Read(path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumVertices())
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, m.Faces)
	assert.InDelta(t, 1.0, m.Area(), 1e-12)
}

func TestWritePLYHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tet.ply")
	require.NoError(t, quietGeometry().Write(path, tetrahedron(model3d.Coord3D{}, 1)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := fileformats.NewPLYReader(f)
	require.NoError(t, err)
	h := r.Header()
	assert.Equal(t, fileformats.PLYFormatBinaryLittle, h.Format)
	require.Len(t, h.Elements, 2)
	assert.Equal(t, int64(4), h.Elements[0].Count)
	assert.Equal(t, int64(4), h.Elements[1].Count)
	assert.True(t, h.Elements[1].IsStandardFace())
}

func TestReadBigEndianPLY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.ply")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := fileformats.NewPLYWriter(f, &fileformats.PLYHeader{
		Format: fileformats.PLYFormatBinaryBig,
		Elements: []*fileformats.PLYElement{
			{
				Name:  "vertex",
				Count: 3,
				Properties: []*fileformats.PLYProperty{
					{Name: "x", ElemType: fileformats.PLYPropertyTypeDouble},
					{Name: "y", ElemType: fileformats.PLYPropertyTypeDouble},
					{Name: "z", ElemType: fileformats.PLYPropertyTypeDouble},
				},
			},
			{
				Name:  "face",
				Count: 1,
				Properties: []*fileformats.PLYProperty{
					{Name: "vertex_indices", LenType: fileformats.PLYPropertyTypeUchar, ElemType: fileformats.PLYPropertyTypeUint},
				},
			},
		},
	})
	require.NoError(t, err)
	for _, c := range [][3]float64{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}} {
		require.NoError(t, w.Write([]fileformats.PLYValue{
			fileformats.PLYValueFloat64{Value: c[0]},
			fileformats.PLYValueFloat64{Value: c[1]},
			fileformats.PLYValueFloat64{Value: c[2]},
		}))
	}
	require.NoError(t, w.Write([]fileformats.PLYValue{
		fileformats.PLYValueList{
			Length: fileformats.PLYValueUint8{Value: 3},
			Values: []fileformats.PLYValue{
				fileformats.PLYValueUint32{Value: 0},
				fileformats.PLYValueUint32{Value: 1},
				fileformats.PLYValueUint32{Value: 2},
			},
		},
	}))
	require.NoError(t, f.Close())

	m, err := quietGeometry().Read(path)
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}}, m.Faces)
	assert.Equal(t, model3d.Coord3D{X: 2}, m.Vertices[1])
	assert.InDelta(t, 2.0, m.Area(), 1e-12)
}

func TestReadASCIIVTK(t *testing.T) {
	path := writeText(t, "tri.vtk", strings.Join([]string{
		"# vtk DataFile Version 2.0",
		"triangle",
		"ASCII",
		"DATASET POLYDATA",
		"POINTS 3 float",
		"0 0 0  2 0 0",
		"0 2 0",
		"POLYGONS 1 4",
		"3 0 1 2",
		"POINT_DATA 3",
		"SCALARS s float 1",
		"",
	}, "\n"))

	m, err := quietGeometry().Read(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumVertices())
	assert.Equal(t, [][3]int{{0, 1, 2}}, m.Faces)
	assert.InDelta(t, 2.0, m.Area(), 1e-12)
}

func TestReadRejectsBadFiles(t *testing.T) {
	g := quietGeometry()

	_, err := g.Read(writeText(t, "bad.ply", "not a ply\n"))
	assert.Error(t, err)

	_, err = g.Read(writeText(t, "grid.vtk", "# vtk DataFile Version 3.0\nx\nASCII\nDATASET STRUCTURED_POINTS\n"))
	assert.Error(t, err)

	// face pointing past the vertex list
	_, err = g.Read(writeText(t, "dangling.vtk",
		"# vtk DataFile Version 3.0\nx\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 0 0\nPOLYGONS 1 4\n3 0 1 2\n"))
	assert.Error(t, err)
}
