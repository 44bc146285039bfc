package volumeio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"spaceleap/internal/models"
	"spaceleap/pkg/spaceleap"
)

// blockMagic starts every block volume file
var blockMagic = [4]byte{'S', 'L', 'B', 'V'}

const blockVersion uint16 = 1

// ErrBadBlockFile is returned when a block volume header cannot be parsed
var ErrBadBlockFile = errors.New("not a block volume file")

// blockHeader is the fixed little-endian header of a block volume file
type blockHeader struct {
	Magic     [4]byte
	Version   uint16
	Channels  uint16
	BlockSize uint32
	Extent    [6]int32
}

// WriteBlockVolume writes v as a header followed by its little-endian uint16 records
func WriteBlockVolume(w io.Writer, v *spaceleap.BlockVolume) error {
	h := blockHeader{
		Magic:     blockMagic,
		Version:   blockVersion,
		Channels:  uint16(v.Channels),
		BlockSize: uint32(v.BlockSize),
	}
	for i, e := range v.Extent {
		h.Extent[i] = int32(e)
	}

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("error writing block header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, v.Data); err != nil {
		return fmt.Errorf("error writing block records: %w", err)
	}
	return nil
}

// ReadBlockVolume reads a volume written by WriteBlockVolume
func ReadBlockVolume(r io.Reader) (*spaceleap.BlockVolume, error) {
	var h blockHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("error reading block header: %w", err)
	}
	if h.Magic != blockMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadBlockFile, h.Magic[:])
	}
	if h.Version != blockVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadBlockFile, h.Version)
	}

	var ext models.Extent
	for i, e := range h.Extent {
		ext[i] = int(e)
	}
	if ext.Empty() || h.Channels == 0 || h.BlockSize == 0 {
		return nil, fmt.Errorf("%w: extent %v, %d channels, block size %d",
			ErrBadBlockFile, ext, h.Channels, h.BlockSize)
	}

	v := &spaceleap.BlockVolume{
		Extent:    ext,
		Channels:  int(h.Channels),
		BlockSize: int(h.BlockSize),
	}
	n, ok := recordCount(ext, v.Components())
	if !ok {
		return nil, fmt.Errorf("%w: extent %v with %d channels is too large", ErrBadBlockFile, ext, h.Channels)
	}

	// Data grows only as records arrive, at most readChunk values at a time.
	v.Data = make([]uint16, 0, min(n, readChunk))
	chunk := make([]uint16, min(n, readChunk))
	for len(v.Data) < n {
		m := min(readChunk, n-len(v.Data))
		if err := binary.Read(r, binary.LittleEndian, chunk[:m]); err != nil {
			return nil, fmt.Errorf("error reading block records: %w", err)
		}
		v.Data = append(v.Data, chunk[:m]...)
	}
	return v, nil
}

// readChunk is the number of uint16 values decoded per read
const readChunk = 1 << 16

// recordCount returns the number of uint16 values of a volume over ext with
// comps values per block, or false if it overflows an int.
func recordCount(ext models.Extent, comps int) (int, bool) {
	n := comps
	for _, d := range ext.Dims() {
		if d <= 0 || n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// SaveBlockVolume writes v to path, creating the directory if needed
func SaveBlockVolume(path string, v *spaceleap.BlockVolume) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating block file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WriteBlockVolume(bw, v); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("error writing block file: %w", err)
	}
	return f.Close()
}

// LoadBlockVolume reads a block volume from path
func LoadBlockVolume(path string) (*spaceleap.BlockVolume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening block file: %w", err)
	}
	defer f.Close()

	v, err := ReadBlockVolume(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}
	return v, nil
}
