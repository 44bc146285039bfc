package spaceleap

import (
	"fmt"

	"spaceleap/internal/models"
	"spaceleap/pkg/grid"
)

// FlagCase records which rule decided a block's opacity flag.
type FlagCase int

const (
	// BelowScalarThreshold: max scalar is below the first opaque scalar.
	BelowScalarThreshold FlagCase = iota + 1
	// BelowGradientThreshold: max gradient is below the first opaque gradient.
	BelowGradientThreshold
	// StraddlesThreshold: the scalar range crosses the first opaque scalar.
	StraddlesThreshold
	// TableScanOpaque: the range lies above the threshold and hits an opaque entry.
	TableScanOpaque
	// TableScanTransparent: the range lies above the threshold and is all zero.
	TableScanTransparent
)

var flagCaseNames = map[FlagCase]string{
	BelowScalarThreshold:   "below-scalar-threshold",
	BelowGradientThreshold: "below-gradient-threshold",
	StraddlesThreshold:     "straddles-threshold",
	TableScanOpaque:        "table-scan-opaque",
	TableScanTransparent:   "table-scan-transparent",
}

func (fc FlagCase) String() string {
	if name, ok := flagCaseNames[fc]; ok {
		return name
	}
	return fmt.Sprintf("FlagCase(%d)", int(fc))
}

// Visible reports whether the case sets the flag.
func (fc FlagCase) Visible() bool {
	return fc == StraddlesThreshold || fc == TableScanOpaque
}

// Classify decides the opacity flag of one block record for one channel.
// table is the channel's scalar opacity table, minScalar and minGradient the
// cached thresholds. A scan past the end of table is an invariant violation
// and panics.
func Classify(rec models.BlockRecord, table []uint16, minScalar, minGradient int, gradientAware bool) FlagCase {
	switch {
	case int(rec.Max) < minScalar:
		return BelowScalarThreshold
	case gradientAware && int(rec.GradientMax()) < minGradient:
		return BelowGradientThreshold
	case int(rec.Min) < minScalar:
		return StraddlesThreshold
	}

	if int(rec.Max) >= len(table) {
		panic(fmt.Sprintf("spaceleap: block range [%d,%d] exceeds scalar opacity table of %d entries",
			rec.Min, rec.Max, len(table)))
	}
	for idx := int(rec.Min); idx <= int(rec.Max); idx++ {
		if table[idx] != 0 {
			return TableScanOpaque
		}
	}
	return TableScanTransparent
}

// evaluateFlags recomputes bit 0 of every record in piece. The gradient
// byte is preserved.
func evaluateFlags(v *BlockVolume, piece models.Extent, p *params) {
	view := grid.NewView(piece, v.Extent, v.Components())
	th := p.thresholds
	gradientAware := p.opts.ComputeGradientOpacity

	for k := 0; k < view.Dims[2]; k++ {
		for j := 0; j < view.Dims[1]; j++ {
			for i := 0; i < view.Dims[0]; i++ {
				base := view.Index(i, j, k)
				for c := 0; c < v.Channels; c++ {
					rec := v.Data[base+models.RecordSize*c:]
					fc := Classify(models.BlockRecord{Min: rec[0], Max: rec[1], Packed: rec[2]},
						p.tables.ScalarOpacity[c], th.MinNonZeroScalar[c], th.MinNonZeroGradient[c], gradientAware)

					rec[2] &= 0xff00
					if fc.Visible() {
						rec[2] |= 0x0001
					}
				}
			}
		}
	}
}
