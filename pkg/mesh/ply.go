package mesh

import (
	"io"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/fileformats"
	"github.com/unixpickle/model3d/model3d"
)

func writePLY(w io.Writer, m *Mesh) error {
	header := &fileformats.PLYHeader{
		Format: fileformats.PLYFormatBinaryLittle,
		Elements: []*fileformats.PLYElement{
			{
				Name:  "vertex",
				Count: int64(len(m.Vertices)),
				Properties: []*fileformats.PLYProperty{
					{Name: "x", ElemType: fileformats.PLYPropertyTypeFloat},
					{Name: "y", ElemType: fileformats.PLYPropertyTypeFloat},
					{Name: "z", ElemType: fileformats.PLYPropertyTypeFloat},
				},
			},
			fileformats.NewPLYElementFace(int64(len(m.Faces))),
		},
	}
	pw, err := fileformats.NewPLYWriter(w, header)
	if err != nil {
		return err
	}
	for _, v := range m.Vertices {
		err := pw.Write([]fileformats.PLYValue{
			fileformats.PLYValueFloat32{Value: float32(v.X)},
			fileformats.PLYValueFloat32{Value: float32(v.Y)},
			fileformats.PLYValueFloat32{Value: float32(v.Z)},
		})
		if err != nil {
			return err
		}
	}
	for _, f := range m.Faces {
		err := pw.Write([]fileformats.PLYValue{
			fileformats.PLYValueList{
				Length: fileformats.PLYValueUint8{Value: 3},
				Values: []fileformats.PLYValue{
					fileformats.PLYValueInt32{Value: int32(f[0])},
					fileformats.PLYValueInt32{Value: int32(f[1])},
					fileformats.PLYValueInt32{Value: int32(f[2])},
				},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// plyNumber converts a scalar PLY value.
func plyNumber(v fileformats.PLYValue) (float64, error) {
	switch v := v.(type) {
	case fileformats.PLYValueFloat32:
		return float64(v.Value), nil
	case fileformats.PLYValueFloat64:
		return v.Value, nil
	case fileformats.PLYValueList:
		return 0, errors.New("expected a scalar PLY value, got a list")
	}
	n, err := v.LengthValue()
	return float64(n), err
}

// readPLY loads vertex x/y/z and face index lists; polygons are fan
// triangulated and every other element or property is ignored.
func readPLY(r io.Reader) (*Mesh, error) {
	pr, err := fileformats.NewPLYReader(r)
	if err != nil {
		return nil, err
	}
	m := &Mesh{}
	for {
		values, elem, err := pr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		switch elem.Name {
		case "vertex":
			var coord [3]float64
			for i, prop := range elem.Properties {
				switch prop.Name {
				case "x", "y", "z":
					c, err := plyNumber(values[i])
					if err != nil {
						return nil, errors.Wrapf(err, "vertex %d", len(m.Vertices))
					}
					coord[prop.Name[0]-'x'] = c
				}
			}
			m.Vertices = append(m.Vertices, model3d.Coord3D{X: coord[0], Y: coord[1], Z: coord[2]})
		case "face":
			for i, prop := range elem.Properties {
				if prop.Name != "vertex_indices" && prop.Name != "vertex_index" {
					continue
				}
				list, ok := values[i].(fileformats.PLYValueList)
				if !ok {
					return nil, errors.Errorf("face %d: %s is not a list", len(m.Faces), prop.Name)
				}
				idx := make([]int, len(list.Values))
				for j, v := range list.Values {
					n, err := v.LengthValue()
					if err != nil {
						return nil, errors.Wrapf(err, "face %d", len(m.Faces))
					}
					idx[j] = n
				}
				for j := 1; j+1 < len(idx); j++ {
					m.Faces = append(m.Faces, [3]int{idx[0], idx[j], idx[j+1]})
				}
			}
		}
	}
	return m, nil
}
