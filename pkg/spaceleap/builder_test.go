package spaceleap

import (
	"errors"
	"math"
	"testing"

	"spaceleap/internal/models"
	"spaceleap/pkg/transfer"
)

// scenarioTables is a single channel covering 0..1000 that is opaque from 500 up
func scenarioTables() *transfer.Tables {
	return identityTables(
		[][]uint16{transfer.NewScalarTable(1001, transfer.Range{Lo: 500, Hi: 1000})},
		nil)
}

// TestEndToEndScenario builds an 8x8x8 volume with block size 4 and checks each block's flag
func TestEndToEndScenario(t *testing.T) {
	// One bright voxel in the far corner
	tv := newTestVolume(t, 8, 8, 8, 1, func(x, y, z, c int) uint16 {
		switch {
		case x == 7 && y == 7 && z == 7:
			return 1000
		case x == 0 && y == 0 && z == 0:
			return 0
		}
		return 100
	}, nil)

	b := newTestBuilder(t, Options{ComputeMinMax: true, IndependentComponents: true, BlockSize: 4, Workers: 4},
		scenarioTables())
	if err := b.Build(tv.input()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	out := b.Output()
	if out.Dims() != [3]int{2, 2, 2} {
		t.Fatalf("Expected 2x2x2 blocks, got %v", out.Dims())
	}
	th := b.Thresholds()
	table := scenarioTables().ScalarOpacity[0]

	for bz := 0; bz < 2; bz++ {
		for by := 0; by < 2; by++ {
			for bx := 0; bx < 2; bx++ {
				rec := out.Record(bx, by, bz, 0)
				fc := Classify(rec, table, th.MinNonZeroScalar[0], th.MinNonZeroGradient[0], false)

				if bx == 1 && by == 1 && bz == 1 {
					if !rec.Visible() {
						t.Errorf("Expected corner block to be visible")
					}
					if fc != StraddlesThreshold {
						t.Errorf("Expected corner block to straddle the threshold, got %v", fc)
					}
					continue
				}
				if rec.Visible() {
					t.Errorf("Block (%d,%d,%d): expected skippable, range [%d,%d]", bx, by, bz, rec.Min, rec.Max)
				}
				if fc != BelowScalarThreshold {
					t.Errorf("Block (%d,%d,%d): expected %v, got %v", bx, by, bz, BelowScalarThreshold, fc)
				}
			}
		}
	}

	if rec := out.Record(0, 0, 0, 0); rec.Min != 0 || rec.Max != 100 {
		t.Errorf("Expected origin block range [0,100], got [%d,%d]", rec.Min, rec.Max)
	}
}

// TestEndToEndScenarioTableScan fills the upper octant so that the corner block lies above the threshold
func TestEndToEndScenarioTableScan(t *testing.T) {
	tv := newTestVolume(t, 8, 8, 8, 1, func(x, y, z, c int) uint16 {
		if x >= 4 && y >= 4 && z >= 4 {
			return 800
		}
		return 100
	}, nil)

	b := newTestBuilder(t, Options{ComputeMinMax: true, IndependentComponents: true, BlockSize: 4, Workers: 2},
		scenarioTables())
	if err := b.Build(tv.input()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	out := b.Output()
	th := b.Thresholds()
	table := scenarioTables().ScalarOpacity[0]

	corner := out.Record(1, 1, 1, 0)
	if corner.Min != 800 || corner.Max != 800 {
		t.Errorf("Expected corner range [800,800], got [%d,%d]", corner.Min, corner.Max)
	}
	if fc := Classify(corner, table, th.MinNonZeroScalar[0], th.MinNonZeroGradient[0], false); fc != TableScanOpaque {
		t.Errorf("Expected corner block to be decided by table scan, got %v", fc)
	}
	if !corner.Visible() {
		t.Error("Expected corner block to be visible")
	}

	// Every other block shares the sample at (4,4,4)
	origin := out.Record(0, 0, 0, 0)
	if !origin.Visible() || origin.Min != 100 || origin.Max != 800 {
		t.Errorf("Expected origin block visible with range [100,800], got %+v", origin)
	}
}

// fakeArray claims a supported tag without being a typed Array
type fakeArray struct{}

func (fakeArray) ScalarType() models.ScalarType { return models.Uint16 }
func (fakeArray) NumComponents() int            { return 1 }
func (fakeArray) Extent() models.Extent         { return models.ExtentFromDims(4, 4, 4) }

// TestUnsupportedTypeKeepsPreviousOutput verifies that a failed build leaves the last volume alone
func TestUnsupportedTypeKeepsPreviousOutput(t *testing.T) {
	tv := structuredVolume(t, 2)
	b := newTestBuilder(t, Options{ComputeMinMax: true, IndependentComponents: true, BlockSize: 4, Workers: 2},
		structuredTables())
	if err := b.Build(tv.input()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	previous := b.Output()
	snapshot := previous.Clone()

	ints, err := NewArray(make([]int, 9*9*9*2), 2, models.ExtentFromDims(9, 9, 9))
	if err != nil {
		t.Fatalf("Failed to create array: %v", err)
	}
	if ints.ScalarType() != models.Unknown {
		t.Fatalf("Expected platform int to be untagged, got %v", ints.ScalarType())
	}

	for _, in := range []*Input{{Scalars: ints}, {Scalars: fakeArray{}}} {
		err = b.Build(in)
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Expected ErrUnsupportedType, got %v", err)
		}
	}

	if b.Output() != previous {
		t.Fatal("Expected output to be the previous volume")
	}
	for i := range snapshot.Data {
		if previous.Data[i] != snapshot.Data[i] {
			t.Fatalf("Previous output modified at value %d", i)
		}
	}
}

// TestBuildNoOps checks the silent cases
func TestBuildNoOps(t *testing.T) {
	b := newTestBuilder(t, DefaultOptions(), structuredTables())

	if err := b.Build(nil); err != nil {
		t.Errorf("Expected nil error for nil input, got %v", err)
	}
	if err := b.Build(&Input{}); err != nil {
		t.Errorf("Expected nil error without scalars, got %v", err)
	}
	if b.Output() != nil {
		t.Error("Expected no output after no-op builds")
	}
	if !b.LastFlagBuild().IsZero() {
		t.Error("Expected no flag build time after no-op builds")
	}

	// Nothing to compute
	b.SetOptions(Options{IndependentComponents: true})
	tv := structuredVolume(t, 1)
	if err := b.Build(tv.input()); err != nil {
		t.Errorf("Expected nil error with nothing to compute, got %v", err)
	}
	if b.Output() != nil {
		t.Error("Expected no output when nothing is computed")
	}
}

// TestBuildErrors checks the validation errors
func TestBuildErrors(t *testing.T) {
	tv := structuredVolume(t, 1)

	b := NewBuilder(DefaultOptions())
	if err := b.Build(tv.input()); !errors.Is(err, ErrNoTransferFunctions) {
		t.Errorf("Expected ErrNoTransferFunctions, got %v", err)
	}
	if err := b.SetTransferFunctions(nil); !errors.Is(err, ErrNoTransferFunctions) {
		t.Errorf("Expected ErrNoTransferFunctions for nil tables, got %v", err)
	}
	if err := b.RebuildThresholds(); !errors.Is(err, ErrNoTransferFunctions) {
		t.Errorf("Expected ErrNoTransferFunctions on rebuild, got %v", err)
	}

	b = newTestBuilder(t, Options{ComputeMinMax: true, ComputeGradientOpacity: true,
		IndependentComponents: true, Workers: 2}, structuredTables())
	in := tv.input()
	in.GradientMagnitude = in.GradientMagnitude[:3]
	if err := b.Build(in); !errors.Is(err, ErrMissingGradient) {
		t.Errorf("Expected ErrMissingGradient for missing slices, got %v", err)
	}

	in = tv.input()
	short := make([][]uint8, len(in.GradientMagnitude))
	for z := range short {
		short[z] = in.GradientMagnitude[z][:10]
	}
	in.GradientMagnitude = short
	if err := b.Build(in); !errors.Is(err, ErrMissingGradient) {
		t.Errorf("Expected ErrMissingGradient for short slices, got %v", err)
	}
	if b.Output() != nil {
		t.Error("Expected no output after failed builds")
	}

	// Three components but only two tables
	three := newTestVolume(t, 4, 4, 4, 3, func(x, y, z, c int) uint16 { return 1 }, nil)
	b.SetOptions(Options{ComputeMinMax: true, IndependentComponents: true})
	if err := b.Build(three.input()); err == nil {
		t.Error("Expected error for missing channel tables, got nil")
	}
}

// TestGradientOnlyRebuildKeepsRanges checks that a gradient-only build reuses the scalar ranges
func TestGradientOnlyRebuildKeepsRanges(t *testing.T) {
	tv := structuredVolume(t, 5)
	tables := structuredTables()

	combined := newTestBuilder(t, Options{ComputeMinMax: true, ComputeGradientOpacity: true,
		IndependentComponents: true, Workers: 3}, tables)
	if err := combined.Build(tv.input()); err != nil {
		t.Fatalf("Combined build failed: %v", err)
	}

	staged := newTestBuilder(t, Options{ComputeMinMax: true, IndependentComponents: true, Workers: 2}, tables)
	if err := staged.Build(tv.input()); err != nil {
		t.Fatalf("Min-max build failed: %v", err)
	}
	minMaxTime := staged.LastMinMaxBuild()

	staged.SetOptions(Options{ComputeGradientOpacity: true, IndependentComponents: true, Workers: 4})
	if err := staged.Build(tv.input()); err != nil {
		t.Fatalf("Gradient build failed: %v", err)
	}
	if staged.LastFlagBuild().Before(minMaxTime) {
		t.Error("Expected flag build time to advance")
	}
	if !staged.LastMinMaxBuild().Equal(minMaxTime) {
		t.Error("Expected min-max build time to stay put on a gradient-only build")
	}

	want, got := combined.Output().Data, staged.Output().Data
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("Value %d: expected %#04x, got %#04x", i, want[i], got[i])
		}
	}
}

// TestRebuildThresholds verifies that in-place table edits are picked up on request only
func TestRebuildThresholds(t *testing.T) {
	tables := scenarioTables()
	b := newTestBuilder(t, Options{ComputeMinMax: true, IndependentComponents: true}, tables)

	tv := newTestVolume(t, 6, 6, 6, 1, func(x, y, z, c int) uint16 { return 300 }, nil)
	if err := b.Build(tv.input()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if b.Output().Record(0, 0, 0, 0).Visible() {
		t.Fatal("Expected block to be skippable before the edit")
	}

	tables.ScalarOpacity[0][300] = 1
	if err := b.RebuildThresholds(); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if got := b.Thresholds().MinNonZeroScalar[0]; got != 300 {
		t.Errorf("Expected threshold 300, got %d", got)
	}
	if err := b.Build(tv.input()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !b.Output().Record(0, 0, 0, 0).Visible() {
		t.Error("Expected block to be visible after the edit")
	}
}

// TestScalarTypes runs a build for every supported element type
func TestScalarTypes(t *testing.T) {
	whole := models.ExtentFromDims(6, 6, 6)
	n := whole.NumVoxels()
	tables := identityTables([][]uint16{transfer.NewScalarTable(128, transfer.Range{Lo: 60, Hi: 127})}, nil)

	arrays := []ScalarArray{
		mustArray(t, fill[int8](n), whole),
		mustArray(t, fill[uint8](n), whole),
		mustArray(t, fill[int16](n), whole),
		mustArray(t, fill[uint16](n), whole),
		mustArray(t, fill[int32](n), whole),
		mustArray(t, fill[uint32](n), whole),
		mustArray(t, fill[int64](n), whole),
		mustArray(t, fill[uint64](n), whole),
		mustArray(t, fill[float32](n), whole),
		mustArray(t, fill[float64](n), whole),
	}

	for _, arr := range arrays {
		b := newTestBuilder(t, Options{ComputeMinMax: true, IndependentComponents: true, Workers: 2}, tables)
		if err := b.Build(&Input{Scalars: arr}); err != nil {
			t.Errorf("%v: build failed: %v", arr.ScalarType(), err)
			continue
		}
		out := b.Output()
		if rec := out.Record(0, 0, 0, 0); rec.Min != 0 || rec.Max != 84 {
			t.Errorf("%v: expected origin block range [0,84], got [%d,%d]", arr.ScalarType(), rec.Min, rec.Max)
		}
		if rec := out.Record(1, 1, 1, 0); rec.Max != 105 || !rec.Visible() {
			t.Errorf("%v: expected far block max 105 and visible, got %+v", arr.ScalarType(), rec)
		}
	}
}

// fill returns x + 10*y + 10*z on a 6x6x6 grid (max 105)
func fill[T Number](n int) []T {
	data := make([]T, n)
	for i := range data {
		x, y, z := i%6, (i/6)%6, i/36
		data[i] = T(x + 10*y + 10*z)
	}
	return data
}

func mustArray[T Number](t *testing.T, data []T, whole models.Extent) *Array[T] {
	arr, err := NewArray(data, 1, whole)
	if err != nil {
		t.Fatalf("Failed to create array: %v", err)
	}
	return arr
}

// TestNewArrayValidation checks the array constructor
func TestNewArrayValidation(t *testing.T) {
	whole := models.ExtentFromDims(2, 2, 2)
	if _, err := NewArray(make([]float32, 7), 1, whole); err == nil {
		t.Error("Expected error for short data, got nil")
	}
	if _, err := NewArray(make([]float32, 8), 0, whole); err == nil {
		t.Error("Expected error for zero components, got nil")
	}
	if _, err := NewArray(make([]float32, 8), 1, models.Extent{0, -1, 0, 0, 0, 0}); err == nil {
		t.Error("Expected error for empty extent, got nil")
	}
}

// TestComponentRanges checks the raw per-component scan
func TestComponentRanges(t *testing.T) {
	data := []float32{3, -1, 7, 2, float32(math.NaN()), 9, 5, 4}
	arr, err := NewArray(data, 2, models.ExtentFromDims(2, 2, 1))
	if err != nil {
		t.Fatalf("Failed to create array: %v", err)
	}

	ranges, err := ComponentRanges(arr)
	if err != nil {
		t.Fatalf("ComponentRanges failed: %v", err)
	}
	if ranges[0] != [2]float64{3, 7} {
		t.Errorf("Component 0: expected [3 7], got %v", ranges[0])
	}
	if ranges[1] != [2]float64{-1, 9} {
		t.Errorf("Component 1: expected [-1 9], got %v", ranges[1])
	}

	if _, err := ComponentRanges(fakeArray{}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType, got %v", err)
	}
}

// TestGradientOnlyFreshBuild verifies that a gradient-only build without a
// reusable volume still produces valid ranges and sound flags
func TestGradientOnlyFreshBuild(t *testing.T) {
	// Uniform opaque data with a high gradient
	tv := newTestVolume(t, 9, 9, 9, 1,
		func(x, y, z, c int) uint16 { return 100 },
		func(x, y, z, c int) uint8 { return 200 })
	tables := identityTables(
		[][]uint16{transfer.NewScalarTable(256, transfer.Range{Lo: 0, Hi: 255})},
		[][]uint16{transfer.NewGradientTable(10)})

	b := newTestBuilder(t, Options{ComputeGradientOpacity: true, IndependentComponents: true, Workers: 3}, tables)
	if err := b.Build(tv.input()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	out := b.Output()
	d := out.Dims()
	for bz := 0; bz < d[2]; bz++ {
		for by := 0; by < d[1]; by++ {
			for bx := 0; bx < d[0]; bx++ {
				rec := out.Record(bx, by, bz, 0)
				if rec.Min != 100 || rec.Max != 100 || rec.GradientMax() != 200 || !rec.Visible() {
					t.Errorf("Block (%d,%d,%d): expected [100,100] gradient 200 visible, got %+v",
						bx, by, bz, rec)
				}
			}
		}
	}
	if b.LastMinMaxBuild().IsZero() {
		t.Error("Expected min-max build time to be set when ranges were computed")
	}

	// Structured data must match a combined build, including after a shape change
	structured := structuredVolume(t, 11)
	combined := newTestBuilder(t, Options{ComputeMinMax: true, ComputeGradientOpacity: true,
		IndependentComponents: true, Workers: 2}, structuredTables())
	if err := combined.Build(structured.input()); err != nil {
		t.Fatalf("Combined build failed: %v", err)
	}

	b = newTestBuilder(t, Options{ComputeGradientOpacity: true, IndependentComponents: true, Workers: 4},
		structuredTables())
	small := newTestVolume(t, 5, 5, 5, 2,
		func(x, y, z, c int) uint16 { return 1 },
		func(x, y, z, c int) uint8 { return 1 })
	if err := b.Build(small.input()); err != nil {
		t.Fatalf("Small build failed: %v", err)
	}
	if err := b.Build(structured.input()); err != nil {
		t.Fatalf("Gradient-only build failed: %v", err)
	}

	want, got := combined.Output().Data, b.Output().Data
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("Value %d: expected %#04x, got %#04x", i, want[i], got[i])
		}
	}
	for i := 0; i < len(got); i += models.RecordSize {
		if got[i] > got[i+1] {
			t.Fatalf("Record %d: inverted range [%d,%d]", i/models.RecordSize, got[i], got[i+1])
		}
	}
}

// TestShiftedOriginMatchesZeroOrigin verifies that the whole extent's origin
// does not change the result
func TestShiftedOriginMatchesZeroOrigin(t *testing.T) {
	sizes := [][3]int{{9, 9, 9}, {13, 6, 11}, {5, 17, 3}}
	tables := identityTables(
		[][]uint16{transfer.NewScalarTable(256, transfer.Range{Lo: 120, Hi: 140})},
		[][]uint16{transfer.NewGradientTable(100)})

	for _, size := range sizes {
		tv := newTestVolume(t, size[0], size[1], size[2], 1,
			func(x, y, z, c int) uint16 { return uint16((x*37 + y*11 + z*53) % 256) },
			func(x, y, z, c int) uint8 { return uint8((x*7 + y*91 + z*13) % 256) })

		opts := Options{ComputeMinMax: true, ComputeGradientOpacity: true,
			IndependentComponents: true, BlockSize: 4, Workers: 3}
		zero := newTestBuilder(t, opts, tables)
		if err := zero.Build(tv.input()); err != nil {
			t.Fatalf("Size %v: zero-origin build failed: %v", size, err)
		}

		w := tv.scalars.Whole
		shifted, err := NewArray(tv.scalars.Data, 1,
			models.Extent{w[0] + 3, w[1] + 3, w[2] - 2, w[3] - 2, w[4] + 7, w[5] + 7})
		if err != nil {
			t.Fatalf("Failed to create array: %v", err)
		}
		moved := newTestBuilder(t, opts, tables)
		if err := moved.Build(&Input{Scalars: shifted, GradientMagnitude: tv.gradient}); err != nil {
			t.Fatalf("Size %v: shifted build failed: %v", size, err)
		}

		if moved.Output().Extent != zero.Output().Extent {
			t.Errorf("Size %v: expected block extent %v, got %v", size, zero.Output().Extent, moved.Output().Extent)
		}
		want, got := zero.Output().Data, moved.Output().Data
		for i := range want {
			if want[i] != got[i] {
				t.Fatalf("Size %v: value %d is %#04x, expected %#04x", size, i, got[i], want[i])
			}
		}
	}
}
