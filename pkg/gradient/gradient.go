// Package gradient computes the per-voxel gradient magnitudes a block build
// reads when gradient opacity is enabled.
package gradient

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"spaceleap/pkg/spaceleap"
)

// Compute returns one byte slice per z index of s, each holding one
// magnitude per channel per voxel with the scalar x/y layout. Magnitudes are
// central differences (one-sided on the border) scaled so the largest value
// of each channel maps to 255. In dependent mode the last component is used.
func Compute(s spaceleap.ScalarArray, independent bool, numCores int) ([][]uint8, error) {
	switch a := s.(type) {
	case *spaceleap.Array[int8]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[uint8]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[int16]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[uint16]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[int32]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[uint32]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[int64]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[uint64]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[float32]:
		return compute(a, independent, numCores), nil
	case *spaceleap.Array[float64]:
		return compute(a, independent, numCores), nil
	}
	return nil, fmt.Errorf("gradient: %w: %T", spaceleap.ErrUnsupportedType, s)
}

func compute[T spaceleap.Number](a *spaceleap.Array[T], independent bool, numCores int) [][]uint8 {
	if numCores < 1 {
		numCores = runtime.NumCPU()
	}
	d := a.Whole.Dims()
	nx, ny, nz := d[0], d[1], d[2]
	comps := a.Components

	channels := []int{comps - 1}
	if independent {
		channels = make([]int, comps)
		for c := range channels {
			channels[c] = c
		}
	}
	nch := len(channels)

	// Raw magnitudes, one plane of nx*ny*nch per z
	mags := make([][]float64, nch)
	for ch := range mags {
		mags[ch] = make([]float64, nx*ny*nz)
	}

	at := func(x, y, z, c int) float64 {
		return float64(a.Data[((z*ny+y)*nx+x)*comps+c])
	}
	diff := func(i, n int, get func(int) float64) float64 {
		switch {
		case n < 2:
			return 0
		case i == 0:
			return get(1) - get(0)
		case i == n-1:
			return get(n-1) - get(n-2)
		}
		return (get(i+1) - get(i-1)) / 2
	}

	var wg sync.WaitGroup
	slicesPerCore := (nz + numCores - 1) / numCores

	for core := 0; core < numCores; core++ {
		wg.Add(1)

		go func(coreID int) {
			defer wg.Done()

			startSlice := coreID * slicesPerCore
			endSlice := min((coreID+1)*slicesPerCore, nz)

			for z := startSlice; z < endSlice; z++ {
				for y := 0; y < ny; y++ {
					for x := 0; x < nx; x++ {
						for ch, c := range channels {
							gx := diff(x, nx, func(i int) float64 { return at(i, y, z, c) })
							gy := diff(y, ny, func(i int) float64 { return at(x, i, z, c) })
							gz := diff(z, nz, func(i int) float64 { return at(x, y, i, c) })
							m := math.Sqrt(gx*gx + gy*gy + gz*gz)
							if math.IsNaN(m) || math.IsInf(m, 0) {
								m = 0
							}
							mags[ch][(z*ny+y)*nx+x] = m
						}
					}
				}
			}
		}(core)
	}
	wg.Wait()

	for ch := range mags {
		if peak := floats.Max(mags[ch]); peak > 0 {
			floats.Scale(255/peak, mags[ch])
		}
	}

	out := make([][]uint8, nz)
	for z := range out {
		slice := make([]uint8, nx*ny*nch)
		for i := 0; i < nx*ny; i++ {
			for ch := 0; ch < nch; ch++ {
				slice[i*nch+ch] = uint8(math.Round(mags[ch][z*nx*ny+i]))
			}
		}
		out[z] = slice
	}
	return out
}
