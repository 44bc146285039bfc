package spaceleap

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"spaceleap/internal/models"
)

var (
	// ErrUnsupportedType is returned when the scalar element type has no reducer.
	ErrUnsupportedType = errors.New("unsupported scalar type")

	// ErrNoTransferFunctions is returned when a build starts before any tables were set.
	ErrNoTransferFunctions = errors.New("no transfer functions set")

	// ErrMissingGradient is returned when gradient opacity is requested without
	// gradient magnitudes covering the input.
	ErrMissingGradient = errors.New("gradient magnitudes missing")
)

// Number is the set of raw element types a scalar array may hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// ScalarArray is a full-resolution scalar volume with interleaved components.
type ScalarArray interface {
	// ScalarType tags the element type used to pick a reducer.
	ScalarType() models.ScalarType

	// NumComponents is the number of interleaved values per voxel.
	NumComponents() int

	// Extent is the whole extent covered by the array.
	Extent() models.Extent
}

// Array is a typed, row-major, x-fastest scalar volume.
type Array[T Number] struct {
	Data       []T
	Components int
	Whole      models.Extent
}

// NewArray wraps data covering whole with the given number of components.
func NewArray[T Number](data []T, components int, whole models.Extent) (*Array[T], error) {
	if components < 1 {
		return nil, fmt.Errorf("components must be positive, got %d", components)
	}
	if whole.Empty() {
		return nil, fmt.Errorf("empty extent %v", whole)
	}
	if want := whole.NumVoxels() * components; len(data) < want {
		return nil, fmt.Errorf("extent %v with %d components needs %d values, got %d",
			whole, components, want, len(data))
	}
	return &Array[T]{Data: data, Components: components, Whole: whole}, nil
}

func (a *Array[T]) ScalarType() models.ScalarType { return scalarTypeOf[T]() }
func (a *Array[T]) NumComponents() int            { return a.Components }
func (a *Array[T]) Extent() models.Extent         { return a.Whole }

// scalarTypeOf maps T to its tag. Platform-sized integers and named types
// have no fixed layout and map to Unknown.
func scalarTypeOf[T Number]() models.ScalarType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return models.Int8
	case uint8:
		return models.Uint8
	case int16:
		return models.Int16
	case uint16:
		return models.Uint16
	case int32:
		return models.Int32
	case uint32:
		return models.Uint32
	case int64:
		return models.Int64
	case uint64:
		return models.Uint64
	case float32:
		return models.Float32
	case float64:
		return models.Float64
	}
	return models.Unknown
}

// kernel runs the scalar reducers for one concrete element type.
type kernel interface {
	minMax(w *job) error
	combined(w *job) error
	ranges() [][2]float64
}

type typedKernel[T Number] struct {
	a *Array[T]
}

func (k typedKernel[T]) minMax(w *job) error   { return reduceMinMax(w, k.a) }
func (k typedKernel[T]) combined(w *job) error { return reduceCombined(w, k.a) }
func (k typedKernel[T]) ranges() [][2]float64  { return componentRanges(k.a) }

func bind[T Number](a ScalarArray) (kernel, bool) {
	arr, ok := a.(*Array[T])
	if !ok || arr == nil {
		return nil, false
	}
	return typedKernel[T]{a: arr}, true
}

// kernels is the dispatch table from element type to reducer instantiation.
var kernels = map[models.ScalarType]func(ScalarArray) (kernel, bool){
	models.Int8:    bind[int8],
	models.Uint8:   bind[uint8],
	models.Int16:   bind[int16],
	models.Uint16:  bind[uint16],
	models.Int32:   bind[int32],
	models.Uint32:  bind[uint32],
	models.Int64:   bind[int64],
	models.Uint64:  bind[uint64],
	models.Float32: bind[float32],
	models.Float64: bind[float64],
}

func lookupKernel(a ScalarArray) (kernel, error) {
	t := a.ScalarType()
	bindFn, ok := kernels[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, t)
	}
	k, ok := bindFn(a)
	if !ok {
		return nil, fmt.Errorf("%w: %T tagged as %v", ErrUnsupportedType, a, t)
	}
	return k, nil
}

// ComponentRanges returns the raw [min, max] of every component of s.
// NaN samples are ignored; a component with no other samples reports [0, 0].
func ComponentRanges(s ScalarArray) ([][2]float64, error) {
	k, err := lookupKernel(s)
	if err != nil {
		return nil, err
	}
	return k.ranges(), nil
}

func componentRanges[T Number](a *Array[T]) [][2]float64 {
	out := make([][2]float64, a.Components)
	seen := make([]bool, a.Components)
	n := a.Whole.NumVoxels() * a.Components
	for i := 0; i < n; i++ {
		v := float64(a.Data[i])
		if math.IsNaN(v) {
			continue
		}
		c := i % a.Components
		switch {
		case !seen[c]:
			out[c] = [2]float64{v, v}
			seen[c] = true
		case v < out[c][0]:
			out[c][0] = v
		case v > out[c][1]:
			out[c][1] = v
		}
	}
	return out
}
