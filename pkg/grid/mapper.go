// Package grid maps between full-resolution voxel extents and the coarse
// block grid built on top of them, and provides the strided views used to
// walk sub-extents of interleaved row-major arrays.
package grid

import (
	"spaceleap/internal/models"
)

// DefaultBlockSize is the number of cells grouped into one block along each
// axis. A block of four cells needs five samples.
const DefaultBlockSize = 4

// ToBlockExtent returns the block-space extent covering a full-resolution
// extent. The result is always zero based: the block volume has its own
// origin independent of the input's.
func ToBlockExtent(full models.Extent, blockSize int) models.Extent {
	var out models.Extent
	for i := 0; i < 3; i++ {
		dim := full[2*i+1] - full[2*i] + 1

		out[2*i] = 0
		if dim < 2 {
			out[2*i+1] = 0
		} else {
			out[2*i+1] = (dim - 2) / blockSize
		}
	}
	return out
}

// ComputeInputExtentsForOutput returns the part of the input that feeds the
// blocks in outBlock, clipped to wholeIn, together with its dimensions.
func ComputeInputExtentsForOutput(outBlock, wholeIn models.Extent, blockSize int) (models.Extent, [3]int) {
	var in models.Extent
	var dims [3]int
	for i := 0; i < 3; i++ {
		in[2*i] = outBlock[2*i]*blockSize + wholeIn[2*i]

		// One extra sample closes the last cell of the last block.
		in[2*i+1] = (outBlock[2*i+1]+1)*blockSize + wholeIn[2*i] + 1

		if in[2*i] < wholeIn[2*i] {
			in[2*i] = wholeIn[2*i]
		}
		if in[2*i+1] > wholeIn[2*i+1] {
			in[2*i+1] = wholeIn[2*i+1]
		}

		dims[i] = in[2*i+1] - in[2*i] + 1
		if dims[i] < 0 {
			dims[i] = 0
		}
	}
	return in, dims
}

// WindowFor returns the first and last block, relative to the start of the
// scanned range, that the sample at idx contributes to along one axis.
// Interior samples on a block boundary belong to two blocks. The last sample
// of the range never opens a new block.
func WindowFor(idx, dim, blockSize int) (first, last int) {
	if idx >= 1 {
		first = (idx - 1) / blockSize
	}
	last = idx / blockSize
	if idx == dim-1 {
		last = first
	}
	return first, last
}

// Window is an inclusive range of block indices along one axis.
type Window struct {
	First, Last int
}

// Empty reports whether the window selects no block.
func (w Window) Empty() bool { return w.Last < w.First }

// AxisWindows precomputes WindowFor for every sample of a scanned range of
// length dim, shifted by origin and clipped to [lo, hi]. Samples that only
// feed blocks outside [lo, hi] get an empty window.
func AxisWindows(dim, blockSize, origin, lo, hi int) []Window {
	windows := make([]Window, dim)
	for idx := 0; idx < dim; idx++ {
		first, last := WindowFor(idx, dim, blockSize)
		first += origin
		last += origin
		if first < lo {
			first = lo
		}
		if last > hi {
			last = hi
		}
		windows[idx] = Window{First: first, Last: last}
	}
	return windows
}

// SplitExtent divides ext into at most n contiguous, disjoint pieces along
// its longest axis. Ties prefer z, then y.
func SplitExtent(ext models.Extent, n int) []models.Extent {
	if n < 1 {
		n = 1
	}
	dims := ext.Dims()

	axis := 2
	for _, a := range []int{1, 0} {
		if dims[a] > dims[axis] {
			axis = a
		}
	}

	length := dims[axis]
	if length == 0 {
		return nil
	}
	if n > length {
		n = length
	}

	pieces := make([]models.Extent, 0, n)
	per := length / n
	extra := length % n
	start := ext[2*axis]
	for p := 0; p < n; p++ {
		size := per
		if p < extra {
			size++
		}
		piece := ext
		piece[2*axis] = start
		piece[2*axis+1] = start + size - 1
		pieces = append(pieces, piece)
		start += size
	}
	return pieces
}
