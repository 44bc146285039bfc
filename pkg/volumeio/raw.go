// Package volumeio reads raw scalar volumes and reads and writes block
// volumes.
package volumeio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"spaceleap/internal/models"
	"spaceleap/pkg/spaceleap"
)

// RawLayout describes the layout of a headerless interleaved volume file
type RawLayout struct {
	Type       models.ScalarType
	Components int
	Whole      models.Extent
	Order      binary.ByteOrder
}

// ParseByteOrder maps "little" or "big" to a byte order. Empty means little.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", name)
}

// Size returns the number of bytes a file with this layout holds
func (s RawLayout) Size() int64 {
	return int64(s.Whole.NumVoxels()) * int64(s.Components) * int64(s.Type.Size())
}

// ReadRawFile reads a raw volume from path
func ReadRawFile(path string, layout RawLayout) (spaceleap.ScalarArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening volume: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < layout.Size() {
		return nil, fmt.Errorf("volume %s has %d bytes, layout needs %d", path, info.Size(), layout.Size())
	}

	arr, err := ReadRaw(bufio.NewReader(f), layout)
	if err != nil {
		return nil, fmt.Errorf("error reading volume %s: %w", path, err)
	}
	return arr, nil
}

// ReadRaw decodes a raw volume into a typed array
func ReadRaw(r io.Reader, layout RawLayout) (spaceleap.ScalarArray, error) {
	if layout.Order == nil {
		layout.Order = binary.LittleEndian
	}
	switch layout.Type {
	case models.Int8:
		return readTyped[int8](r, layout)
	case models.Uint8:
		return readTyped[uint8](r, layout)
	case models.Int16:
		return readTyped[int16](r, layout)
	case models.Uint16:
		return readTyped[uint16](r, layout)
	case models.Int32:
		return readTyped[int32](r, layout)
	case models.Uint32:
		return readTyped[uint32](r, layout)
	case models.Int64:
		return readTyped[int64](r, layout)
	case models.Uint64:
		return readTyped[uint64](r, layout)
	case models.Float32:
		return readTyped[float32](r, layout)
	case models.Float64:
		return readTyped[float64](r, layout)
	}
	return nil, fmt.Errorf("%w: %v", spaceleap.ErrUnsupportedType, layout.Type)
}

func readTyped[T spaceleap.Number](r io.Reader, layout RawLayout) (*spaceleap.Array[T], error) {
	data := make([]T, layout.Whole.NumVoxels()*layout.Components)
	if err := binary.Read(r, layout.Order, data); err != nil {
		return nil, err
	}
	return spaceleap.NewArray(data, layout.Components, layout.Whole)
}

// WriteRaw encodes a typed array without a header
func WriteRaw[T spaceleap.Number](w io.Writer, a *spaceleap.Array[T], order binary.ByteOrder) error {
	if order == nil {
		order = binary.LittleEndian
	}
	n := a.Whole.NumVoxels() * a.Components
	return binary.Write(w, order, a.Data[:n])
}
