package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ModalityTag is the metadata key of the DICOM modality element (0008,0060).
const ModalityTag = "0008|0060"

// PixelType is the numeric type a volume's voxels are stored as on disk.
// Values are always held as float64 in memory; the pixel type controls
// rounding and clamping when a filter casts back.
type PixelType string

const (
	UInt8   PixelType = "uint8"
	Int8    PixelType = "int8"
	UInt16  PixelType = "uint16"
	Int16   PixelType = "int16"
	UInt32  PixelType = "uint32"
	Int32   PixelType = "int32"
	Float32 PixelType = "float32"
	Float64 PixelType = "float64"
)

// PixelTypes lists every supported pixel type.
var PixelTypes = []PixelType{UInt8, Int8, UInt16, Int16, UInt32, Int32, Float32, Float64}

// ParsePixelType accepts a pixel type name in any case.
func ParsePixelType(s string) (PixelType, error) {
	for _, p := range PixelTypes {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pixel type %q", s)
}

// IsInteger reports whether values of this type are rounded on cast.
func (p PixelType) IsInteger() bool {
	switch p {
	case Float32, Float64:
		return false
	}
	return true
}

// Range returns the representable range of the pixel type.
func (p PixelType) Range() (lo, hi float64) {
	switch p {
	case UInt8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case UInt16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return -math.MaxFloat64, math.MaxFloat64
}

// Cast converts v to the nearest value representable by the pixel type.
func (p PixelType) Cast(v float64) float64 {
	lo, hi := p.Range()
	if p.IsInteger() {
		v = math.Round(v)
	}
	return math.Max(lo, math.Min(hi, v))
}

// Volume is a regular 2D or 3D scalar grid. Data is stored in
// x-fastest order: index = x + Dims[0]*(y + Dims[1]*z).
// A 2D image has Dims[2] == 1.
type Volume struct {
	Data []float64

	Dims    [3]int
	Spacing [3]float64
	Origin  [3]float64

	PixelType PixelType

	// Metadata holds header fields keyed by DICOM "gggg|eeee" tags.
	Metadata map[string]string
}

// NewVolume allocates a zero-filled volume with unit spacing.
func NewVolume(nx, ny, nz int, pixelType PixelType) *Volume {
	return &Volume{
		Data:      make([]float64, nx*ny*nz),
		Dims:      [3]int{nx, ny, nz},
		Spacing:   [3]float64{1, 1, 1},
		PixelType: pixelType,
		Metadata:  map[string]string{},
	}
}

// NumVoxels returns the number of grid points.
func (v *Volume) NumVoxels() int {
	return v.Dims[0] * v.Dims[1] * v.Dims[2]
}

// Is3D reports whether the volume has more than one slice.
func (v *Volume) Is3D() bool {
	return v.Dims[2] > 1
}

// Index returns the flat offset of (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return x + v.Dims[0]*(y+v.Dims[1]*z)
}

// At returns the voxel at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value.
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// AtClamped returns the voxel nearest to (x, y, z) inside the grid.
func (v *Volume) AtClamped(x, y, z int) float64 {
	return v.At(clamp(x, v.Dims[0]), clamp(y, v.Dims[1]), clamp(z, v.Dims[2]))
}

// Validate checks the volume's internal consistency.
func (v *Volume) Validate() error {
	for i, d := range v.Dims {
		if d < 1 {
			return fmt.Errorf("invalid dimension %d on axis %d", d, i)
		}
		if v.Spacing[i] <= 0 {
			return fmt.Errorf("invalid spacing %g on axis %d", v.Spacing[i], i)
		}
	}
	if len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("data length %d does not match dimensions %v", len(v.Data), v.Dims)
	}
	return nil
}

// CloneGeometry returns an empty volume with the same grid, pixel type and
// metadata as v.
func (v *Volume) CloneGeometry() *Volume {
	out := &Volume{
		Data:      make([]float64, len(v.Data)),
		Dims:      v.Dims,
		Spacing:   v.Spacing,
		Origin:    v.Origin,
		PixelType: v.PixelType,
		Metadata:  make(map[string]string, len(v.Metadata)),
	}
	for k, val := range v.Metadata {
		out.Metadata[k] = val
	}
	return out
}

// MetadataKeys returns the metadata keys in sorted order.
func (v *Volume) MetadataKeys() []string {
	keys := make([]string, 0, len(v.Metadata))
	for k := range v.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v *Volume) String() string {
	return fmt.Sprintf("Volume{dims=%v spacing=%v origin=%v type=%s}", v.Dims, v.Spacing, v.Origin, v.PixelType)
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
