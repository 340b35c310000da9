package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// writeVTK writes a legacy binary POLYDATA file. Legacy VTK binary data is
// big endian.
func writeVTK(w io.Writer, m *Mesh) error {
	if _, err := fmt.Fprintf(w, "# vtk DataFile Version 3.0\ndicom2mesh\nBINARY\nDATASET POLYDATA\nPOINTS %d float\n", len(m.Vertices)); err != nil {
		return err
	}
	buf := make([]byte, 16)
	for _, v := range m.Vertices {
		binary.BigEndian.PutUint32(buf[0:], math.Float32bits(float32(v.X)))
		binary.BigEndian.PutUint32(buf[4:], math.Float32bits(float32(v.Y)))
		binary.BigEndian.PutUint32(buf[8:], math.Float32bits(float32(v.Z)))
		if _, err := w.Write(buf[:12]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\nPOLYGONS %d %d\n", len(m.Faces), 4*len(m.Faces)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf[0:], 3)
	for _, f := range m.Faces {
		for j, v := range f {
			binary.BigEndian.PutUint32(buf[4+4*j:], uint32(int32(v)))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// vtkSource yields numbers from either encoding.
type vtkSource interface {
	keyword() ([]string, error)
	number(typ string) (float64, error)
}

type vtkBinary struct {
	r *bufio.Reader
}

func (v *vtkBinary) keyword() ([]string, error) {
	for {
		line, err := v.r.ReadString('\n')
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (v *vtkBinary) number(typ string) (float64, error) {
	switch typ {
	case "float":
		var f float32
		err := binary.Read(v.r, binary.BigEndian, &f)
		return float64(f), err
	case "double":
		var f float64
		err := binary.Read(v.r, binary.BigEndian, &f)
		return f, err
	case "int":
		var i int32
		err := binary.Read(v.r, binary.BigEndian, &i)
		return float64(i), err
	}
	return 0, errors.Errorf("unsupported VTK data type %q", typ)
}

type vtkASCII struct {
	words *bufio.Scanner
}

func (v *vtkASCII) next() (string, error) {
	if !v.words.Scan() {
		if err := v.words.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return v.words.Text(), nil
}

func (v *vtkASCII) keyword() ([]string, error) {
	word, err := v.next()
	if err != nil {
		return nil, err
	}
	fields := []string{word}
	var args int
	switch word {
	case "POINTS", "POLYGONS", "VERTICES", "LINES", "TRIANGLE_STRIPS":
		args = 2
	}
	for i := 0; i < args; i++ {
		w, err := v.next()
		if err != nil {
			return nil, err
		}
		fields = append(fields, w)
	}
	return fields, nil
}

func (v *vtkASCII) number(typ string) (float64, error) {
	word, err := v.next()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(word, 64)
}

func readVTK(r *bufio.Reader) (*Mesh, error) {
	var header [4]string
	for i := range header {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "read VTK header")
		}
		header[i] = strings.TrimSpace(line)
	}
	if !strings.HasPrefix(header[0], "# vtk") {
		return nil, errors.New("not a legacy VTK file")
	}
	if header[3] != "DATASET POLYDATA" {
		return nil, errors.Errorf("unsupported VTK dataset %q", header[3])
	}
	var src vtkSource
	switch strings.ToUpper(header[2]) {
	case "BINARY":
		src = &vtkBinary{r: r}
	case "ASCII":
		words := bufio.NewScanner(r)
		words.Split(bufio.ScanWords)
		src = &vtkASCII{words: words}
	default:
		return nil, errors.Errorf("unknown VTK encoding %q", header[2])
	}

	m := &Mesh{}
	for {
		fields, err := src.keyword()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if len(fields) < 3 {
			// attribute sections end the geometry
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Errorf("bad VTK count in %v", fields)
		}
		switch fields[0] {
		case "POINTS":
			for i := 0; i < n; i++ {
				var c [3]float64
				for j := range c {
					if c[j], err = src.number(fields[2]); err != nil {
						return nil, errors.Wrap(err, "VTK points")
					}
				}
				m.Vertices = append(m.Vertices, model3d.Coord3D{X: c[0], Y: c[1], Z: c[2]})
			}
		case "POLYGONS", "VERTICES", "LINES":
			for i := 0; i < n; i++ {
				count, err := src.number("int")
				if err != nil {
					return nil, errors.Wrapf(err, "VTK %s", fields[0])
				}
				if count < 0 || count > math.MaxInt32 {
					return nil, errors.Errorf("VTK %s: bad cell size %g", fields[0], count)
				}
				idx := make([]int, int(count))
				for j := range idx {
					v, err := src.number("int")
					if err != nil {
						return nil, errors.Wrapf(err, "VTK %s", fields[0])
					}
					idx[j] = int(v)
				}
				if fields[0] != "POLYGONS" {
					continue
				}
				for j := 1; j+1 < len(idx); j++ {
					m.Faces = append(m.Faces, [3]int{idx[0], idx[j], idx[j+1]})
				}
			}
		default:
			return m, nil
		}
	}
	return m, nil
}
