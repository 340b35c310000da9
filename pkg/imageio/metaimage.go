package imageio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"dicom2mesh/internal/models"
)

var metTypes = map[string]models.PixelType{
	"MET_UCHAR":  models.UInt8,
	"MET_CHAR":   models.Int8,
	"MET_USHORT": models.UInt16,
	"MET_SHORT":  models.Int16,
	"MET_UINT":   models.UInt32,
	"MET_INT":    models.Int32,
	"MET_FLOAT":  models.Float32,
	"MET_DOUBLE": models.Float64,
}

// header keys understood by the reader; everything else becomes metadata
var metKnownKeys = map[string]bool{
	"ObjectType": true, "NDims": true, "BinaryData": true, "BinaryDataByteOrderMSB": true,
	"ElementByteOrderMSB": true, "CompressedData": true, "TransformMatrix": true, "Offset": true,
	"Position": true, "Origin": true, "CenterOfRotation": true, "AnatomicalOrientation": true,
	"ElementSpacing": true, "DimSize": true, "ElementType": true, "ElementDataFile": true,
	"ElementNumberOfChannels": true,
}

// ReadMetaImage reads an uncompressed MetaImage (.mha with LOCAL data, or
// .mhd with a detached raw file).
func ReadMetaImage(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	fields := map[string]string{}
	var keyOrder []string
	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, errors.Wrap(err, "read MetaImage header")
		}
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "=")
		if !ok {
			return nil, errors.Errorf("malformed MetaImage header line %q", line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		fields[key] = value
		keyOrder = append(keyOrder, key)
		if key == "ElementDataFile" {
			break
		}
		if err == io.EOF {
			return nil, errors.New("MetaImage header has no ElementDataFile")
		}
	}

	if strings.EqualFold(fields["CompressedData"], "True") {
		return nil, errors.New("compressed MetaImage data is not supported")
	}
	if ch := fields["ElementNumberOfChannels"]; ch != "" && ch != "1" {
		return nil, errors.Errorf("multi-channel MetaImage (%s channels) is not supported", ch)
	}
	ndims, err := strconv.Atoi(fields["NDims"])
	if err != nil || ndims < 2 || ndims > 3 {
		return nil, errors.Errorf("unsupported NDims %q", fields["NDims"])
	}
	pixelType, ok := metTypes[fields["ElementType"]]
	if !ok {
		return nil, errors.Errorf("unsupported ElementType %q", fields["ElementType"])
	}

	vol := &models.Volume{
		Dims:      [3]int{1, 1, 1},
		Spacing:   [3]float64{1, 1, 1},
		PixelType: pixelType,
		Metadata:  map[string]string{},
	}
	dims, err := parseFloats(fields["DimSize"], ndims)
	if err != nil {
		return nil, errors.Wrap(err, "DimSize")
	}
	for i := range dims {
		vol.Dims[i] = int(dims[i])
	}
	if s := fields["ElementSpacing"]; s != "" {
		sp, err := parseFloats(s, ndims)
		if err != nil {
			return nil, errors.Wrap(err, "ElementSpacing")
		}
		copy(vol.Spacing[:], sp)
	}
	for _, key := range []string{"Offset", "Origin", "Position"} {
		if s := fields[key]; s != "" {
			o, err := parseFloats(s, ndims)
			if err != nil {
				return nil, errors.Wrap(err, key)
			}
			copy(vol.Origin[:], o)
			break
		}
	}
	for _, key := range keyOrder {
		if !metKnownKeys[key] {
			vol.Metadata[key] = fields[key]
		}
	}

	var order binary.ByteOrder = binary.LittleEndian
	if strings.EqualFold(fields["BinaryDataByteOrderMSB"], "True") || strings.EqualFold(fields["ElementByteOrderMSB"], "True") {
		order = binary.BigEndian
	}

	var data io.Reader = r
	if df := fields["ElementDataFile"]; df != "LOCAL" {
		if !filepath.IsAbs(df) {
			df = filepath.Join(filepath.Dir(path), df)
		}
		raw, err := os.Open(df)
		if err != nil {
			return nil, errors.Wrap(err, "open MetaImage data file")
		}
		defer raw.Close()
		data = bufio.NewReader(raw)
	}

	vol.Data, err = readSamples(data, pixelType, vol.NumVoxels(), order)
	if err != nil {
		return nil, errors.Wrap(err, "read MetaImage voxels")
	}
	return vol, vol.Validate()
}

// WriteMetaImage writes vol as a single-file .mha. Metadata entries are
// written as extra header fields.
func WriteMetaImage(path string, vol *models.Volume) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	metType := ""
	for k, v := range metTypes {
		if v == vol.PixelType {
			metType = k
		}
	}
	if metType == "" {
		return errors.Errorf("unsupported pixel type %q", vol.PixelType)
	}
	ndims := 3
	if !vol.Is3D() {
		ndims = 2
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "ObjectType = Image")
	fmt.Fprintf(&buf, "NDims = %d\n", ndims)
	fmt.Fprintln(&buf, "BinaryData = True")
	fmt.Fprintln(&buf, "BinaryDataByteOrderMSB = False")
	fmt.Fprintln(&buf, "CompressedData = False")
	fmt.Fprintf(&buf, "Offset = %s\n", joinFloats(vol.Origin[:ndims]))
	fmt.Fprintf(&buf, "ElementSpacing = %s\n", joinFloats(vol.Spacing[:ndims]))
	dims := make([]float64, ndims)
	for i := range dims {
		dims[i] = float64(vol.Dims[i])
	}
	fmt.Fprintf(&buf, "DimSize = %s\n", joinFloats(dims))
	for _, k := range vol.MetadataKeys() {
		if !metKnownKeys[k] && !strings.ContainsAny(k, "=\n") {
			fmt.Fprintf(&buf, "%s = %s\n", k, vol.Metadata[k])
		}
	}
	fmt.Fprintf(&buf, "ElementType = %s\n", metType)
	fmt.Fprintln(&buf, "ElementDataFile = LOCAL")

	if err := writeSamples(&buf, vol); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func readSamples(r io.Reader, t models.PixelType, n int, order binary.ByteOrder) ([]float64, error) {
	out := make([]float64, n)
	var err error
	switch t {
	case models.UInt8:
		b := make([]uint8, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.Int8:
		b := make([]int8, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.UInt16:
		b := make([]uint16, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.Int16:
		b := make([]int16, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.UInt32:
		b := make([]uint32, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.Int32:
		b := make([]int32, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.Float32:
		b := make([]float32, n)
		err = binary.Read(r, order, b)
		for i, v := range b {
			out[i] = float64(v)
		}
	case models.Float64:
		err = binary.Read(r, order, out)
	default:
		err = errors.Errorf("unsupported pixel type %q", t)
	}
	return out, err
}

func writeSamples(w io.Writer, vol *models.Volume) error {
	le := binary.LittleEndian
	n := len(vol.Data)
	c := vol.PixelType.Cast
	switch vol.PixelType {
	case models.UInt8:
		b := make([]uint8, n)
		for i, v := range vol.Data {
			b[i] = uint8(c(v))
		}
		return binary.Write(w, le, b)
	case models.Int8:
		b := make([]int8, n)
		for i, v := range vol.Data {
			b[i] = int8(c(v))
		}
		return binary.Write(w, le, b)
	case models.UInt16:
		b := make([]uint16, n)
		for i, v := range vol.Data {
			b[i] = uint16(c(v))
		}
		return binary.Write(w, le, b)
	case models.Int16:
		b := make([]int16, n)
		for i, v := range vol.Data {
			b[i] = int16(c(v))
		}
		return binary.Write(w, le, b)
	case models.UInt32:
		b := make([]uint32, n)
		for i, v := range vol.Data {
			b[i] = uint32(c(v))
		}
		return binary.Write(w, le, b)
	case models.Int32:
		b := make([]int32, n)
		for i, v := range vol.Data {
			b[i] = int32(c(v))
		}
		return binary.Write(w, le, b)
	case models.Float32:
		b := make([]float32, n)
		for i, v := range vol.Data {
			b[i] = float32(v)
		}
		return binary.Write(w, le, b)
	}
	return binary.Write(w, le, vol.Data)
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) < n {
		return nil, errors.Errorf("want %d values, got %q", n, s)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil || math.IsNaN(v) {
			return nil, errors.Errorf("bad value %q", parts[i])
		}
		out[i] = v
	}
	return out, nil
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
