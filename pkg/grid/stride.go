package grid

import (
	"spaceleap/internal/models"
)

// ComputeOffset returns the element offset of the first voxel of ext inside
// a row-major array spanning whole, x fastest, with comps interleaved
// components per voxel.
func ComputeOffset(ext, whole models.Extent, comps int) int {
	wd := whole.Dims()
	return (wd[1]*wd[0]*(ext[4]-whole[4]) +
		wd[0]*(ext[2]-whole[2]) +
		(ext[0] - whole[0])) * comps
}

// ContinuousIncrements returns how many elements to skip after each row
// (inc1) and after each slice (inc2) when ext is walked linearly inside
// whole. inc0 is always zero for interleaved data.
func ContinuousIncrements(ext, whole models.Extent, comps int) (inc0, inc1, inc2 int) {
	wd := whole.Dims()
	d := ext.Dims()
	inc1 = (wd[0] - d[0]) * comps
	inc2 = (wd[1] - d[1]) * wd[0] * comps
	return 0, inc1, inc2
}

// View addresses a sub-extent of an interleaved row-major array.
// Index(0, 0, 0) is the first component of the sub-extent's first voxel.
type View struct {
	Offset int
	Stride [3]int
	Dims   [3]int
}

// NewView returns the view of ext carved from an array spanning whole.
func NewView(ext, whole models.Extent, comps int) View {
	wd := whole.Dims()
	return View{
		Offset: ComputeOffset(ext, whole, comps),
		Stride: [3]int{comps, comps * wd[0], comps * wd[0] * wd[1]},
		Dims:   ext.Dims(),
	}
}

// Index returns the element index of local voxel (i, j, k).
func (v View) Index(i, j, k int) int {
	return v.Offset + i*v.Stride[0] + j*v.Stride[1] + k*v.Stride[2]
}

// Len returns the number of voxels in the view.
func (v View) Len() int {
	return v.Dims[0] * v.Dims[1] * v.Dims[2]
}

// Span returns one past the largest element index the view can address for
// voxels of comps components. It is used to bounds-check backing slices.
func (v View) Span(comps int) int {
	if v.Len() == 0 {
		return v.Offset
	}
	return v.Index(v.Dims[0]-1, v.Dims[1]-1, v.Dims[2]-1) + comps
}

// Plane returns the view of the (x, y) plane of ext inside one z slice of
// whole. It is used for arrays stored slice by slice.
func Plane(ext, whole models.Extent, comps int) View {
	ext[4], ext[5] = 0, 0
	whole[4], whole[5] = 0, 0
	return NewView(ext, whole, comps)
}
