// Package transfer holds the opacity lookup tables and quantization
// parameters owned by the transfer-function subsystem, and the threshold
// cache derived from them.
package transfer

import (
	"fmt"
	"math"
)

// GradientTableSize is the fixed number of entries in a gradient opacity table
const GradientTableSize = 256

// Tables references the per-channel opacity tables and the per-component
// quantization parameters. The slices are owned by the caller and are never
// copied or written here.
type Tables struct {
	// ScalarOpacity is indexed by channel, then by quantized scalar value.
	// A non-zero entry means the value can produce opacity.
	ScalarOpacity [][]uint16

	// GradientOpacity is indexed by channel, then by gradient magnitude (0-255).
	// A nil table means gradient magnitude never gates that channel.
	GradientOpacity [][]uint16

	// Shift and Scale are indexed by raw component:
	// index = (raw + Shift[c]) * Scale[c]
	Shift []float32
	Scale []float32
}

// Validate checks that the tables cover the given channel and component counts.
func (t *Tables) Validate(channels, components int) error {
	if t == nil {
		return fmt.Errorf("no transfer tables")
	}
	if len(t.ScalarOpacity) < channels {
		return fmt.Errorf("need %d scalar opacity tables, have %d", channels, len(t.ScalarOpacity))
	}
	if len(t.Shift) < components || len(t.Scale) < components {
		return fmt.Errorf("need shift/scale for %d components, have %d/%d",
			components, len(t.Shift), len(t.Scale))
	}
	for c := 0; c < channels; c++ {
		if len(t.ScalarOpacity[c]) == 0 {
			return fmt.Errorf("scalar opacity table %d is empty", c)
		}
		if c < len(t.GradientOpacity) && t.GradientOpacity[c] != nil &&
			len(t.GradientOpacity[c]) != GradientTableSize {
			return fmt.Errorf("gradient opacity table %d has %d entries, want %d",
				c, len(t.GradientOpacity[c]), GradientTableSize)
		}
	}
	return nil
}

// CheckRange verifies that raw samples within ranges, one [min, max] per
// component, quantize to indices inside the scalar opacity table of the
// channel they feed. With dependent components the last component drives
// channel 0.
func (t *Tables) CheckRange(ranges [][2]float64, independent bool) error {
	if len(ranges) == 0 {
		return nil
	}
	check := func(ch, comp int) error {
		if ch >= len(t.ScalarOpacity) || comp >= len(t.Shift) || comp >= len(t.Scale) {
			return fmt.Errorf("no table or quantization for channel %d, component %d", ch, comp)
		}
		r := ranges[comp]
		hi := max(t.Quantize(r[0], comp), t.Quantize(r[1], comp))
		if size := len(t.ScalarOpacity[ch]); int(hi) >= size {
			return fmt.Errorf("component %d range [%g, %g] quantizes to %d, past scalar opacity table %d of %d entries",
				comp, r[0], r[1], hi, ch, size)
		}
		return nil
	}

	if !independent {
		return check(0, len(ranges)-1)
	}
	for c := range ranges {
		if err := check(c, c); err != nil {
			return err
		}
	}
	return nil
}

// Quantize maps a raw sample of component comp to a table index.
// The result is truncated toward zero and clamped to the uint16 range.
func (t *Tables) Quantize(raw float64, comp int) uint16 {
	return Quantize(raw, t.Shift[comp], t.Scale[comp])
}

// Quantize applies (raw + shift) * scale and clamps to [0, 65535].
func Quantize(raw float64, shift, scale float32) uint16 {
	v := (raw + float64(shift)) * float64(scale)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// Range is an inclusive span of table indices.
type Range struct {
	Lo, Hi int
}

// NewScalarTable returns a table of the given size with a non-zero entry for
// every index inside one of the ranges. Ranges are clipped to the table.
func NewScalarTable(size int, opaque ...Range) []uint16 {
	table := make([]uint16, size)
	for _, r := range opaque {
		lo, hi := r.Lo, r.Hi
		if lo < 0 {
			lo = 0
		}
		if hi >= size {
			hi = size - 1
		}
		for i := lo; i <= hi; i++ {
			table[i] = 1
		}
	}
	return table
}

// NewGradientTable returns a 256-entry table that is non-zero from index
// `from` upward. A negative value yields an all-opaque table, a value above
// 255 an all-zero one.
func NewGradientTable(from int) []uint16 {
	if from < 0 {
		from = 0
	}
	return NewScalarTable(GradientTableSize, Range{Lo: from, Hi: GradientTableSize - 1})
}
