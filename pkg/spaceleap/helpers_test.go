package spaceleap

import (
	"math/rand"
	"testing"

	"spaceleap/internal/models"
	"spaceleap/pkg/grid"
	"spaceleap/pkg/transfer"
)

// testVolume is a small synthetic input with known layout
type testVolume struct {
	nx, ny, nz int
	comps      int
	scalars    *Array[uint16]
	gradient   [][]uint8
}

// newTestVolume fills a volume using value(x, y, z, c) and gradient(x, y, z, c).
// The gradient has one byte per component, so it fits independent channels.
func newTestVolume(t *testing.T, nx, ny, nz, comps int,
	value func(x, y, z, c int) uint16, gradient func(x, y, z, c int) uint8) *testVolume {
	data := make([]uint16, nx*ny*nz*comps)
	grad := make([][]uint8, nz)
	for z := 0; z < nz; z++ {
		grad[z] = make([]uint8, nx*ny*comps)
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				for c := 0; c < comps; c++ {
					data[((z*ny+y)*nx+x)*comps+c] = value(x, y, z, c)
					if gradient != nil {
						grad[z][(y*nx+x)*comps+c] = gradient(x, y, z, c)
					}
				}
			}
		}
	}

	arr, err := NewArray(data, comps, models.ExtentFromDims(nx, ny, nz))
	if err != nil {
		t.Fatalf("Failed to create array: %v", err)
	}
	return &testVolume{nx: nx, ny: ny, nz: nz, comps: comps, scalars: arr, gradient: grad}
}

func (tv *testVolume) value(x, y, z, c int) uint16 {
	return tv.scalars.Data[((z*tv.ny+y)*tv.nx+x)*tv.comps+c]
}

func (tv *testVolume) grad(x, y, z, c int) uint8 {
	return tv.gradient[z][(y*tv.nx+x)*tv.comps+c]
}

func (tv *testVolume) input() *Input {
	return &Input{Scalars: tv.scalars, GradientMagnitude: tv.gradient}
}

// identityTables returns tables with shift 0 and scale 1 for every component
func identityTables(scalar [][]uint16, gradient [][]uint16) *transfer.Tables {
	n := len(scalar)
	if n < 4 {
		n = 4
	}
	tables := &transfer.Tables{
		ScalarOpacity:   scalar,
		GradientOpacity: gradient,
		Shift:           make([]float32, n),
		Scale:           make([]float32, n),
	}
	for i := range tables.Scale {
		tables.Scale[i] = 1
	}
	return tables
}

// newTestBuilder returns a builder with the tables already set
func newTestBuilder(t *testing.T, opts Options, tables *transfer.Tables) *Builder {
	b := NewBuilder(opts)
	if err := b.SetTransferFunctions(tables); err != nil {
		t.Fatalf("Failed to set transfer functions: %v", err)
	}
	return b
}

// structuredVolume is a 9x9x9 two-component volume whose blocks hit every
// flag rule for the tables returned by structuredTables.
func structuredVolume(t *testing.T, seed int64) *testVolume {
	r := rand.New(rand.NewSource(seed))
	noise := make([]int, 9*9*9*2)
	for i := range noise {
		noise[i] = r.Intn(10)
	}
	grads := make([]uint8, 9*9*9*2)
	for i := range grads {
		grads[i] = uint8(r.Intn(256))
	}

	return newTestVolume(t, 9, 9, 9, 2,
		func(x, y, z, c int) uint16 {
			n := noise[((z*9+y)*9+x)*2+c]
			if c == 0 {
				return uint16(x*25 + n)
			}
			return uint16(z*25 + n)
		},
		func(x, y, z, c int) uint8 {
			if y <= 4 && c == 1 {
				return 10
			}
			return grads[((z*9+y)*9+x)*2+c]
		})
}

func structuredTables() *transfer.Tables {
	return identityTables(
		[][]uint16{
			transfer.NewScalarTable(256, transfer.Range{Lo: 150, Hi: 160}),
			transfer.NewScalarTable(256, transfer.Range{Lo: 0, Hi: 5}, transfer.Range{Lo: 230, Hi: 255}),
		},
		[][]uint16{
			transfer.NewGradientTable(60),
			transfer.NewGradientTable(60),
		})
}

// runSingle runs one reducer over the whole output with a single worker.
func runSingle(tv *testVolume, tables *transfer.Tables, opts Options,
	reduce func(w *job) error) (*BlockVolume, *params, error) {
	channels := numChannels(tv.comps, opts.IndependentComponents)
	whole := tv.scalars.Whole
	outExt := grid.ToBlockExtent(whole, opts.BlockSize)
	out := NewBlockVolume(outExt, channels, opts.BlockSize)
	p := &params{opts: opts, tables: tables, thresholds: transfer.NewThresholds(tables, channels)}

	w := &job{
		params:     p,
		out:        out,
		piece:      outExt,
		inWhole:    whole,
		components: tv.comps,
		channels:   channels,
		gradient:   tv.gradient,
	}
	return out, p, reduce(w)
}
