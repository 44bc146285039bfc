// Package spaceleap builds the block volume a ray caster uses to leap over
// regions that cannot contribute opacity. Each block summarizes the
// quantized scalar range and maximum gradient magnitude of the voxels it
// covers and carries a flag telling whether it may be visible under the
// current transfer functions.
package spaceleap

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spaceleap/internal/models"
	"spaceleap/pkg/grid"
	"spaceleap/pkg/transfer"
)

// Options selects what a build computes.
type Options struct {
	// ComputeMinMax recomputes the per-block scalar range.
	ComputeMinMax bool

	// ComputeGradientOpacity recomputes the per-block max gradient magnitude
	// and lets it gate the opacity flag.
	ComputeGradientOpacity bool

	// IndependentComponents tracks every component as its own channel. When
	// false a single channel is driven by the last component.
	IndependentComponents bool

	// BlockSize is the number of cells per block along each axis.
	BlockSize int

	// Workers is the number of goroutines sharing the output extent.
	Workers int
}

// DefaultOptions computes min-max with independent components on every CPU.
func DefaultOptions() Options {
	return Options{
		ComputeMinMax:         true,
		IndependentComponents: true,
		BlockSize:             grid.DefaultBlockSize,
		Workers:               runtime.NumCPU(),
	}
}

// Input is the data read by a build.
type Input struct {
	// Scalars is the full-resolution volume. A nil value makes Build a no-op.
	Scalars ScalarArray

	// GradientMagnitude holds one slice per z index of the scalar extent,
	// each with one byte per channel per voxel laid out like the scalar
	// x/y plane. Only read when gradient opacity is computed.
	GradientMagnitude [][]uint8
}

// Builder owns the threshold cache and the last successfully built volume.
// Builds and transfer-function updates are serialized.
type Builder struct {
	mu sync.RWMutex

	opts       Options
	tables     *transfer.Tables
	thresholds *transfer.Thresholds

	output          *BlockVolume
	lastMinMaxBuild time.Time
	lastFlagBuild   time.Time
}

// NewBuilder creates a builder with the given options. Zero block size or
// worker count fall back to the defaults.
func NewBuilder(opts Options) *Builder {
	b := &Builder{}
	b.SetOptions(opts)
	return b
}

// SetOptions replaces the build options.
func (b *Builder) SetOptions(opts Options) {
	if opts.BlockSize < 1 {
		opts.BlockSize = grid.DefaultBlockSize
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
}

// Options returns the current build options.
func (b *Builder) Options() Options {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.opts
}

// SetTransferFunctions references new opacity tables and rebuilds the
// threshold cache for every channel they define.
func (b *Builder) SetTransferFunctions(tables *transfer.Tables) error {
	if tables == nil || len(tables.ScalarOpacity) == 0 {
		return fmt.Errorf("spaceleap: %w", ErrNoTransferFunctions)
	}
	channels := len(tables.ScalarOpacity)
	if err := tables.Validate(channels, 0); err != nil {
		return fmt.Errorf("spaceleap: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = tables
	b.thresholds = transfer.NewThresholds(tables, channels)
	Logger().Debug("thresholds rebuilt", "channels", channels, "thresholds", b.thresholds.String())
	return nil
}

// RebuildThresholds rescans the current tables after they were edited in place.
func (b *Builder) RebuildThresholds() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tables == nil {
		return fmt.Errorf("spaceleap: %w", ErrNoTransferFunctions)
	}
	b.thresholds.Rebuild(b.tables, len(b.tables.ScalarOpacity))
	return nil
}

// Thresholds returns the current threshold cache, or nil.
func (b *Builder) Thresholds() *transfer.Thresholds {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.thresholds
}

// Output returns the last successfully built block volume, or nil.
func (b *Builder) Output() *BlockVolume {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.output
}

// LastMinMaxBuild is the time the block summaries were last recomputed.
func (b *Builder) LastMinMaxBuild() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastMinMaxBuild
}

// LastFlagBuild is the time the opacity flags were last recomputed.
func (b *Builder) LastFlagBuild() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastFlagBuild
}

// NumberOfIndependentComponents returns the channel count a build of s
// produces, or 0 for a nil array.
func (b *Builder) NumberOfIndependentComponents(s ScalarArray) int {
	if s == nil {
		return 0
	}
	return numChannels(s.NumComponents(), b.Options().IndependentComponents)
}

func numChannels(components int, independent bool) int {
	if independent {
		return components
	}
	return 1
}

func (b *Builder) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("ComputeMinMax: %t ComputeGradientOpacity: %t IndependentComponents: %t BlockSize: %d Workers: %d",
		b.opts.ComputeMinMax, b.opts.ComputeGradientOpacity, b.opts.IndependentComponents,
		b.opts.BlockSize, b.opts.Workers)
}

// Build recomputes the block volume from in. It returns nil without doing
// anything when no scalars are bound or nothing is to be computed. On error
// the previous output is kept.
func (b *Builder) Build(in *Input) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if in == nil || in.Scalars == nil {
		Logger().Debug("no scalars bound, skipping build")
		return nil
	}
	opts := b.opts
	if !opts.ComputeMinMax && !opts.ComputeGradientOpacity {
		Logger().Debug("nothing to compute, skipping build")
		return nil
	}

	k, err := lookupKernel(in.Scalars)
	if err != nil {
		return fmt.Errorf("spaceleap: %w", err)
	}
	if b.tables == nil {
		return fmt.Errorf("spaceleap: %w", ErrNoTransferFunctions)
	}

	components := in.Scalars.NumComponents()
	channels := numChannels(components, opts.IndependentComponents)
	if err := b.tables.Validate(channels, components); err != nil {
		return fmt.Errorf("spaceleap: %w", err)
	}

	whole := in.Scalars.Extent()
	if opts.ComputeGradientOpacity && len(in.GradientMagnitude) < whole.Dims()[2] {
		return fmt.Errorf("spaceleap: %w: have %d slices, need %d",
			ErrMissingGradient, len(in.GradientMagnitude), whole.Dims()[2])
	}

	p := &params{opts: opts, tables: b.tables, thresholds: b.thresholds}
	outExt := grid.ToBlockExtent(whole, opts.BlockSize)
	out := &BlockVolume{
		Extent:    outExt,
		Channels:  channels,
		BlockSize: opts.BlockSize,
		Data:      make([]uint16, outExt.NumVoxels()*models.RecordSize*channels),
	}

	// A gradient-only rebuild keeps the scalar ranges of a matching volume.
	// Without one the ranges are recomputed so that min <= max holds.
	reuse := !opts.ComputeMinMax && out.SameShape(b.output)
	if reuse {
		copy(out.Data, b.output.Data)
	}
	ranges := !reuse

	start := time.Now()
	pieces := grid.SplitExtent(outExt, opts.Workers)

	var g errgroup.Group
	for _, piece := range pieces {
		w := &job{
			params:     p,
			out:        out,
			piece:      piece,
			inWhole:    whole,
			components: components,
			channels:   channels,
			gradient:   in.GradientMagnitude,
		}
		g.Go(func() error {
			Logger().Debug("worker started", "piece", w.piece.String())

			if reuse {
				out.resetGradient(w.piece)
			} else {
				out.Clear(w.piece)
			}

			var err error
			switch {
			case ranges && opts.ComputeGradientOpacity:
				err = k.combined(w)
			case ranges:
				err = k.minMax(w)
			default:
				err = reduceGradientMax(w)
			}
			if err != nil {
				return err
			}

			evaluateFlags(out, w.piece, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("spaceleap: %w", err)
	}

	b.output = out
	now := time.Now()
	if ranges {
		b.lastMinMaxBuild = now
	}
	b.lastFlagBuild = now

	Logger().Info("block volume built",
		"type", in.Scalars.ScalarType().String(),
		"input", whole.String(),
		"blocks", outExt.String(),
		"channels", channels,
		"workers", len(pieces),
		"elapsed", time.Since(start))
	return nil
}
