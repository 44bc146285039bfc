package spaceleap

import (
	"fmt"

	"spaceleap/internal/models"
	"spaceleap/pkg/grid"
	"spaceleap/pkg/transfer"
)

// params is the configuration captured for one build. Workers only read it.
type params struct {
	opts       Options
	tables     *transfer.Tables
	thresholds *transfer.Thresholds
}

// job is the share of a build handled by one worker: the block-space piece
// it owns and the inputs it reads.
type job struct {
	params     *params
	out        *BlockVolume
	piece      models.Extent
	inWhole    models.Extent
	components int
	channels   int
	gradient   [][]uint8
}

// sweep is the input sub-range scanned for a piece together with the
// clipped block window of every sample along each axis.
type sweep struct {
	in      models.Extent
	dims    [3]int
	windows [3][]grid.Window
}

func newSweep(w *job) sweep {
	bs := w.params.opts.BlockSize
	in, dims := grid.ComputeInputExtentsForOutput(w.piece, w.inWhole, bs)

	s := sweep{in: in, dims: dims}
	for a := 0; a < 3; a++ {
		lo, hi := w.piece[2*a], w.piece[2*a+1]
		s.windows[a] = grid.AxisWindows(dims[a], bs, lo, lo, hi)
	}
	return s
}

// gradientSlice returns the gradient plane for local slice k of the sweep,
// checked against the extent of the plane view.
func (s *sweep) gradientSlice(w *job, plane grid.View, k int) ([]uint8, error) {
	z := s.in[4] - w.inWhole[4] + k
	if z >= len(w.gradient) || len(w.gradient[z]) < plane.Span(w.channels) {
		return nil, fmt.Errorf("%w: slice %d", ErrMissingGradient, z)
	}
	return w.gradient[z], nil
}

// sample quantizes the scalar feeding channel c of the voxel starting at base.
// With dependent components every channel is driven by the last component.
func sample[T Number](w *job, data []T, base, c int) uint16 {
	if w.params.opts.IndependentComponents {
		return w.params.tables.Quantize(float64(data[base+c]), c)
	}
	last := w.components - 1
	return w.params.tables.Quantize(float64(data[base+last]), last)
}

// reduceMinMax updates the scalar range of every block the piece owns.
func reduceMinMax[T Number](w *job, a *Array[T]) error {
	s := newSweep(w)
	view := grid.NewView(s.in, a.Whole, a.Components)
	out := w.out.Data
	blocks := make([]int, 0, 8)

	for k := 0; k < s.dims[2]; k++ {
		wz := s.windows[2][k]
		if wz.Empty() {
			continue
		}
		for j := 0; j < s.dims[1]; j++ {
			wy := s.windows[1][j]
			if wy.Empty() {
				continue
			}
			for i := 0; i < s.dims[0]; i++ {
				wx := s.windows[0][i]
				if wx.Empty() {
					continue
				}
				blocks = w.out.blocksIn(wx, wy, wz, blocks[:0])
				base := view.Index(i, j, k)

				for c := 0; c < w.channels; c++ {
					val := sample(w, a.Data, base, c)
					for _, off := range blocks {
						rec := out[off+models.RecordSize*c:]
						if val < rec[0] {
							rec[0] = val
						}
						if val > rec[1] {
							rec[1] = val
						}
					}
				}
			}
		}
	}
	return nil
}

// reduceGradientMax updates the max gradient magnitude, kept in the high
// byte of the packed field. The flag byte is left alone.
func reduceGradientMax(w *job) error {
	s := newSweep(w)
	plane := grid.Plane(s.in, w.inWhole, w.channels)
	out := w.out.Data
	blocks := make([]int, 0, 8)

	for k := 0; k < s.dims[2]; k++ {
		wz := s.windows[2][k]
		if wz.Empty() {
			continue
		}
		gslice, err := s.gradientSlice(w, plane, k)
		if err != nil {
			return err
		}
		for j := 0; j < s.dims[1]; j++ {
			wy := s.windows[1][j]
			if wy.Empty() {
				continue
			}
			for i := 0; i < s.dims[0]; i++ {
				wx := s.windows[0][i]
				if wx.Empty() {
					continue
				}
				blocks = w.out.blocksIn(wx, wy, wz, blocks[:0])
				gbase := plane.Index(i, j, 0)

				for c := 0; c < w.channels; c++ {
					g := uint16(gslice[gbase+c])
					for _, off := range blocks {
						rec := out[off+models.RecordSize*c:]
						if g > rec[2]>>8 {
							rec[2] = g<<8 | rec[2]&0x00ff
						}
					}
				}
			}
		}
	}
	return nil
}

// reduceCombined does the work of reduceMinMax and reduceGradientMax in a
// single scan of the input.
func reduceCombined[T Number](w *job, a *Array[T]) error {
	s := newSweep(w)
	view := grid.NewView(s.in, a.Whole, a.Components)
	plane := grid.Plane(s.in, w.inWhole, w.channels)
	out := w.out.Data
	blocks := make([]int, 0, 8)

	for k := 0; k < s.dims[2]; k++ {
		wz := s.windows[2][k]
		if wz.Empty() {
			continue
		}
		gslice, err := s.gradientSlice(w, plane, k)
		if err != nil {
			return err
		}
		for j := 0; j < s.dims[1]; j++ {
			wy := s.windows[1][j]
			if wy.Empty() {
				continue
			}
			for i := 0; i < s.dims[0]; i++ {
				wx := s.windows[0][i]
				if wx.Empty() {
					continue
				}
				blocks = w.out.blocksIn(wx, wy, wz, blocks[:0])
				base := view.Index(i, j, k)
				gbase := plane.Index(i, j, 0)

				for c := 0; c < w.channels; c++ {
					val := sample(w, a.Data, base, c)
					g := uint16(gslice[gbase+c])
					for _, off := range blocks {
						rec := out[off+models.RecordSize*c:]
						if val < rec[0] {
							rec[0] = val
						}
						if val > rec[1] {
							rec[1] = val
						}
						if g > rec[2]>>8 {
							rec[2] = g<<8 | rec[2]&0x00ff
						}
					}
				}
			}
		}
	}
	return nil
}
