package volumeio

import (
	"math"

	"spaceleap/internal/models"
	"spaceleap/pkg/spaceleap"
)

// SphereMax is the value at the center of a sphere phantom
const SphereMax = 4095

// Sphere returns a uint16 phantom of the given dims whose value falls off
// linearly from SphereMax at the center to 0 at the radius, half the
// smallest dimension. Component c is the base value shifted right by c bits.
func Sphere(dims [3]int, components int) *spaceleap.Array[uint16] {
	if components < 1 {
		components = 1
	}
	nx, ny, nz := dims[0], dims[1], dims[2]
	data := make([]uint16, nx*ny*nz*components)

	cx, cy, cz := float64(nx-1)/2, float64(ny-1)/2, float64(nz-1)/2
	radius := math.Min(float64(nx), math.Min(float64(ny), float64(nz))) / 2

	idx := 0
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				d := math.Sqrt((float64(x)-cx)*(float64(x)-cx) +
					(float64(y)-cy)*(float64(y)-cy) +
					(float64(z)-cz)*(float64(z)-cz))
				base := 0.0
				if d < radius {
					base = SphereMax * (1 - d/radius)
				}
				for c := 0; c < components; c++ {
					data[idx] = uint16(base) >> c
					idx++
				}
			}
		}
	}

	return &spaceleap.Array[uint16]{
		Data:       data,
		Components: components,
		Whole:      models.ExtentFromDims(nx, ny, nz),
	}
}
