package spaceleap

import (
	"gonum.org/v1/gonum/stat"

	"spaceleap/internal/models"
)

// ChannelSummary describes the blocks of one channel.
type ChannelSummary struct {
	// Visible is the number of blocks flagged as possibly opaque
	Visible int

	// Skippable is the number of blocks a ray can leap over
	Skippable int

	// SkipRatio is Skippable over the total block count
	SkipRatio float64

	// MeanRange and StdRange describe max-min of the quantized scalars
	MeanRange float64
	StdRange  float64

	// MeanGradient is the average per-block max gradient magnitude
	MeanGradient float64
}

// Summary holds block statistics for a built volume.
type Summary struct {
	Blocks   int
	Channels []ChannelSummary
}

// Summarize computes per-channel statistics over every block of v.
func Summarize(v *BlockVolume) Summary {
	blocks := v.Extent.NumVoxels()
	s := Summary{Blocks: blocks, Channels: make([]ChannelSummary, v.Channels)}
	if blocks == 0 {
		return s
	}

	ranges := make([]float64, blocks)
	grads := make([]float64, blocks)
	comps := v.Components()

	for c := 0; c < v.Channels; c++ {
		cs := &s.Channels[c]
		for b := 0; b < blocks; b++ {
			rec := v.Data[b*comps+models.RecordSize*c:]
			if rec[1] >= rec[0] {
				ranges[b] = float64(rec[1] - rec[0])
			} else {
				ranges[b] = 0
			}
			grads[b] = float64(rec[2] >> 8)
			if rec[2]&0x0001 != 0 {
				cs.Visible++
			}
		}
		cs.Skippable = blocks - cs.Visible
		cs.SkipRatio = float64(cs.Skippable) / float64(blocks)
		cs.MeanRange, cs.StdRange = stat.MeanStdDev(ranges, nil)
		if blocks == 1 {
			cs.StdRange = 0
		}
		cs.MeanGradient = stat.Mean(grads, nil)
	}
	return s
}
