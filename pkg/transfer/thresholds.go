package transfer

import "fmt"

// Thresholds caches, per channel, the first table index with non-zero
// opacity. It must be rebuilt whenever a table changes and must not be
// rebuilt while a build reads it.
type Thresholds struct {
	// MinNonZeroScalar is the first non-zero scalar opacity index, or the
	// table length when the table is all zero.
	MinNonZeroScalar []int

	// MinNonZeroGradient is the first non-zero gradient opacity index, or
	// GradientTableSize when the table is all zero.
	MinNonZeroGradient []int
}

// NewThresholds scans the tables for the given number of channels.
func NewThresholds(tables *Tables, channels int) *Thresholds {
	th := &Thresholds{}
	th.Rebuild(tables, channels)
	return th
}

// Rebuild rescans the tables. Runs in time linear in the table sizes.
func (th *Thresholds) Rebuild(tables *Tables, channels int) {
	th.MinNonZeroScalar = make([]int, channels)
	th.MinNonZeroGradient = make([]int, channels)

	for c := 0; c < channels; c++ {
		th.MinNonZeroScalar[c] = firstNonZero(tables.ScalarOpacity[c])

		if c < len(tables.GradientOpacity) && tables.GradientOpacity[c] != nil {
			th.MinNonZeroGradient[c] = firstNonZero(tables.GradientOpacity[c])
		}
	}
}

// Channels returns the number of channels the cache was built for.
func (th *Thresholds) Channels() int {
	return len(th.MinNonZeroScalar)
}

func (th *Thresholds) String() string {
	return fmt.Sprintf("scalar=%v gradient=%v", th.MinNonZeroScalar, th.MinNonZeroGradient)
}

func firstNonZero(table []uint16) int {
	i := 0
	for ; i < len(table); i++ {
		if table[i] != 0 {
			break
		}
	}
	return i
}
