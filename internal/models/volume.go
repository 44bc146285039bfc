package models

import "fmt"

// Extent is an inclusive index range per axis: [x0, x1, y0, y1, z0, z1].
// It is used both for full-resolution voxel space and for block space.
type Extent [6]int

// Dims returns the number of indices covered along each axis.
// An axis whose upper bound is below its lower bound has zero length.
func (e Extent) Dims() [3]int {
	var d [3]int
	for i := 0; i < 3; i++ {
		d[i] = e[2*i+1] - e[2*i] + 1
		if d[i] < 0 {
			d[i] = 0
		}
	}
	return d
}

// NumVoxels returns the number of points inside the extent.
func (e Extent) NumVoxels() int {
	d := e.Dims()
	return d[0] * d[1] * d[2]
}

// Contains reports whether sub lies fully inside e.
func (e Extent) Contains(sub Extent) bool {
	for i := 0; i < 3; i++ {
		if sub[2*i] < e[2*i] || sub[2*i+1] > e[2*i+1] {
			return false
		}
	}
	return true
}

// Empty reports whether any axis has no indices.
func (e Extent) Empty() bool {
	for i := 0; i < 3; i++ {
		if e[2*i+1] < e[2*i] {
			return true
		}
	}
	return false
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d,%d %d,%d %d,%d]", e[0], e[1], e[2], e[3], e[4], e[5])
}

// ExtentFromDims returns the zero-based extent of a width x height x depth volume.
func ExtentFromDims(width, height, depth int) Extent {
	return Extent{0, width - 1, 0, height - 1, 0, depth - 1}
}

// ScalarType tags the element type of a raw scalar array
type ScalarType int

const (
	Unknown ScalarType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var scalarTypeNames = map[ScalarType]string{
	Unknown: "unknown",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

func (t ScalarType) String() string {
	if name, ok := scalarTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ScalarType(%d)", int(t))
}

// Size returns the number of bytes per element, or 0 for Unknown.
func (t ScalarType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// ParseScalarType maps a type name such as "uint16" to its tag.
func ParseScalarType(name string) (ScalarType, error) {
	for t, n := range scalarTypeNames {
		if t != Unknown && n == name {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("unknown scalar type %q", name)
}

// Initial values of a block record before any reduction
const (
	EmptyMin    uint16 = 0xffff
	EmptyMax    uint16 = 0
	EmptyPacked uint16 = 0
)

// RecordSize is the number of uint16 values stored per block and channel
const RecordSize = 3

// BlockRecord summarizes one channel of one block.
type BlockRecord struct {
	// Min is the smallest quantized scalar seen in the block
	Min uint16

	// Max is the largest quantized scalar seen in the block
	Max uint16

	// Packed holds the max gradient magnitude in the high byte and the
	// non-zero opacity flag in bit 0.
	Packed uint16
}

// GradientMax returns the maximum gradient magnitude of the block.
func (r BlockRecord) GradientMax() uint8 { return uint8(r.Packed >> 8) }

// Visible reports whether the block may produce non-zero opacity.
func (r BlockRecord) Visible() bool { return r.Packed&0x0001 != 0 }

// PackGradientFlag builds the packed field from a gradient magnitude and a flag.
func PackGradientFlag(gradient uint8, visible bool) uint16 {
	p := uint16(gradient) << 8
	if visible {
		p |= 0x0001
	}
	return p
}
