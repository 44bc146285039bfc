package spaceleap

import (
	"spaceleap/internal/models"
	"spaceleap/pkg/grid"
)

// BlockVolume is the coarse acceleration structure consumed by the ray
// caster. Every block holds RecordSize uint16 values per channel,
// [min, max, gradMax<<8|flag], blocks row-major with x fastest.
type BlockVolume struct {
	// Extent is the zero-based block-space extent
	Extent models.Extent

	// Channels is the number of independently tracked channels
	Channels int

	// BlockSize is the number of cells per block along each axis
	BlockSize int

	// Data holds RecordSize*Channels values per block
	Data []uint16
}

// NewBlockVolume allocates a cleared block volume.
func NewBlockVolume(ext models.Extent, channels, blockSize int) *BlockVolume {
	v := &BlockVolume{
		Extent:    ext,
		Channels:  channels,
		BlockSize: blockSize,
		Data:      make([]uint16, ext.NumVoxels()*models.RecordSize*channels),
	}
	v.Clear(ext)
	return v
}

// Dims returns the number of blocks along each axis.
func (v *BlockVolume) Dims() [3]int {
	return v.Extent.Dims()
}

// Components is the number of uint16 values per block.
func (v *BlockVolume) Components() int {
	return models.RecordSize * v.Channels
}

// Offset returns the index in Data of the first value of block (x, y, z).
func (v *BlockVolume) Offset(x, y, z int) int {
	d := v.Dims()
	return ((z-v.Extent[4])*d[1]*d[0] + (y-v.Extent[2])*d[0] + (x - v.Extent[0])) * v.Components()
}

// Record returns the summary of channel c of block (x, y, z).
func (v *BlockVolume) Record(x, y, z, c int) models.BlockRecord {
	off := v.Offset(x, y, z) + models.RecordSize*c
	return models.BlockRecord{Min: v.Data[off], Max: v.Data[off+1], Packed: v.Data[off+2]}
}

// Coverage returns the full-resolution extent whose samples feed block
// (x, y, z) when built from an input spanning whole.
func (v *BlockVolume) Coverage(x, y, z int, whole models.Extent) models.Extent {
	var cov models.Extent
	for a, b := range [3]int{x, y, z} {
		cov[2*a] = b*v.BlockSize + whole[2*a]
		cov[2*a+1] = cov[2*a] + v.BlockSize
		if cov[2*a+1] > whole[2*a+1] {
			cov[2*a+1] = whole[2*a+1]
		}
	}
	return cov
}

// Clear resets every record inside piece to its empty state.
func (v *BlockVolume) Clear(piece models.Extent) {
	v.walk(piece, func(rec []uint16) {
		rec[0] = models.EmptyMin
		rec[1] = models.EmptyMax
		rec[2] = models.EmptyPacked
	})
}

// resetGradient zeroes the packed field inside piece and keeps min/max.
func (v *BlockVolume) resetGradient(piece models.Extent) {
	v.walk(piece, func(rec []uint16) {
		rec[2] = models.EmptyPacked
	})
}

// walk visits every record of piece linearly, skipping the gaps between
// rows and slices.
func (v *BlockVolume) walk(piece models.Extent, fn func(rec []uint16)) {
	comps := v.Components()
	_, inc1, inc2 := grid.ContinuousIncrements(piece, v.Extent, comps)
	d := piece.Dims()

	ptr := grid.ComputeOffset(piece, v.Extent, comps)
	for k := 0; k < d[2]; k++ {
		for j := 0; j < d[1]; j++ {
			for i := 0; i < d[0]; i++ {
				for c := 0; c < v.Channels; c++ {
					fn(v.Data[ptr : ptr+models.RecordSize])
					ptr += models.RecordSize
				}
			}
			ptr += inc1
		}
		ptr += inc2
	}
}

// blocksIn appends the Data offsets of every block in the window product.
func (v *BlockVolume) blocksIn(wx, wy, wz grid.Window, dst []int) []int {
	for z := wz.First; z <= wz.Last; z++ {
		for y := wy.First; y <= wy.Last; y++ {
			for x := wx.First; x <= wx.Last; x++ {
				dst = append(dst, v.Offset(x, y, z))
			}
		}
	}
	return dst
}

// SameShape reports whether o has the same extent and channel layout.
func (v *BlockVolume) SameShape(o *BlockVolume) bool {
	return o != nil && v.Extent == o.Extent && v.Channels == o.Channels && v.BlockSize == o.BlockSize
}

// Clone returns a deep copy.
func (v *BlockVolume) Clone() *BlockVolume {
	c := *v
	c.Data = make([]uint16, len(v.Data))
	copy(c.Data, v.Data)
	return &c
}
