package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"spaceleap/internal/models"
	"spaceleap/pkg/config"
	"spaceleap/pkg/gradient"
	"spaceleap/pkg/spaceleap"
	"spaceleap/pkg/visualization"
	"spaceleap/pkg/volumeio"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "spaceleap.yaml", "YAML configuration file")
	createConfig := flag.Bool("create-config", false, "Write the default configuration to -config and exit")
	inputPath := flag.String("input", "", "Raw volume file (overrides volume.path; empty uses a sphere phantom)")
	outputPath := flag.String("output", "", "Block volume file (overrides output.blockVolumeFile)")
	workers := flag.Int("workers", 0, "Number of workers (overrides processing.workers)")
	useGradient := flag.Bool("gradient", false, "Compute gradient magnitudes and gate opacity with them")
	extractSlices := flag.Bool("extract-slices", false, "Save flag slices of the block volume along all axes")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices (overrides output.slicesDir)")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *inputPath != "" {
		cfg.Volume.Path = *inputPath
	}
	if *outputPath != "" {
		cfg.Output.BlockVolumeFile = *outputPath
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if *useGradient {
		cfg.SpaceLeaping.ComputeGradientOpacity = true
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}

	closer := setupLogging(cfg)
	defer closer.Close()

	fmt.Println("================================")
	fmt.Println("SPACE-LEAPING BLOCK VOLUME BUILDER")
	fmt.Println("================================")

	scalars, err := loadVolume(cfg)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	ext := scalars.Extent()
	d := ext.Dims()
	fmt.Printf("Loaded %s volume %dx%dx%d with %d component(s), %s\n",
		scalars.ScalarType(), d[0], d[1], d[2], scalars.NumComponents(),
		humanize.Bytes(uint64(ext.NumVoxels()*scalars.NumComponents()*scalars.ScalarType().Size())))

	tables, err := cfg.Tables(scalars.NumComponents())
	if err != nil {
		log.Fatalf("Invalid transfer functions: %v", err)
	}

	ranges, err := spaceleap.ComponentRanges(scalars)
	if err != nil {
		log.Fatalf("Failed to scan volume: %v", err)
	}
	if err := tables.CheckRange(ranges, cfg.SpaceLeaping.IndependentComponents); err != nil {
		log.Fatalf("Transfer functions do not cover the volume: %v", err)
	}

	builder := spaceleap.NewBuilder(cfg.BuilderOptions())
	if err := builder.SetTransferFunctions(tables); err != nil {
		log.Fatalf("Invalid transfer functions: %v", err)
	}
	fmt.Printf("Builder: %s\n", builder)

	input := &spaceleap.Input{Scalars: scalars}
	if cfg.SpaceLeaping.ComputeGradientOpacity {
		fmt.Println("Computing gradient magnitudes...")
		startTime := time.Now()
		input.GradientMagnitude, err = gradient.Compute(scalars, cfg.SpaceLeaping.IndependentComponents, cfg.Processing.Workers)
		if err != nil {
			log.Fatalf("Gradient computation failed: %v", err)
		}
		fmt.Printf("Gradient magnitudes computed in %.2f seconds\n", time.Since(startTime).Seconds())
	}

	fmt.Println("Building block volume...")
	startTime := time.Now()
	if err := builder.Build(input); err != nil {
		log.Fatalf("Build failed: %v", err)
	}
	buildTime := time.Since(startTime)

	out := builder.Output()
	if out == nil {
		fmt.Println("Nothing was computed (both computeMinMax and computeGradientOpacity are off)")
		return
	}

	bd := out.Dims()
	fmt.Printf("\nBlock volume built in %.3f seconds\n", buildTime.Seconds())
	fmt.Printf("Blocks: %dx%dx%d (%s blocks, %s)\n", bd[0], bd[1], bd[2],
		humanize.Comma(int64(out.Extent.NumVoxels())), humanize.Bytes(uint64(2*len(out.Data))))

	summary := spaceleap.Summarize(out)
	for c, cs := range summary.Channels {
		fmt.Printf("Channel %d:\n", c)
		fmt.Printf("- Skippable blocks: %s of %s (%.1f%%)\n",
			humanize.Comma(int64(cs.Skippable)), humanize.Comma(int64(summary.Blocks)), 100*cs.SkipRatio)
		fmt.Printf("- Block scalar range: mean %.1f, stddev %.1f\n", cs.MeanRange, cs.StdRange)
		if cfg.SpaceLeaping.ComputeGradientOpacity {
			fmt.Printf("- Mean block gradient: %.1f\n", cs.MeanGradient)
		}
	}

	if cfg.Output.BlockVolumeFile != "" {
		if err := volumeio.SaveBlockVolume(cfg.Output.BlockVolumeFile, out); err != nil {
			log.Fatalf("Failed to save block volume: %v", err)
		}
		fmt.Printf("\nBlock volume saved to: %s\n", cfg.Output.BlockVolumeFile)
	}

	if *extractSlices || cfg.Output.SlicesDir != "" {
		dir := cfg.Output.SlicesDir
		if dir == "" {
			dir = "block_slices"
		}
		fmt.Println("\nExtracting flag slices along all axes...")
		for c := 0; c < out.Channels; c++ {
			viewer, err := visualization.NewViewer(out, c, visualization.FieldFlag)
			if err != nil {
				log.Fatalf("Failed to create viewer: %v", err)
			}
			for _, axis := range []string{"x", "y", "z"} {
				axisDir := filepath.Join(dir, axis)
				if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
					log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
				}
			}
		}
		fmt.Printf("Slices saved to: %s\n", dir)
	}
}

// loadVolume reads the configured raw volume or synthesizes a sphere phantom
func loadVolume(cfg *config.Config) (spaceleap.ScalarArray, error) {
	if cfg.Volume.Path == "" {
		fmt.Println("No input volume given, using a sphere phantom")
		return volumeio.Sphere(cfg.Volume.Dims, cfg.Volume.Components), nil
	}

	t, err := models.ParseScalarType(cfg.Volume.ScalarType)
	if err != nil {
		return nil, err
	}
	order, err := volumeio.ParseByteOrder(cfg.Volume.ByteOrder)
	if err != nil {
		return nil, err
	}

	o := cfg.Volume.Origin
	d := cfg.Volume.Dims
	layout := volumeio.RawLayout{
		Type:       t,
		Components: cfg.Volume.Components,
		Whole:      models.Extent{o[0], o[0] + d[0] - 1, o[1], o[1] + d[1] - 1, o[2], o[2] + d[2] - 1},
		Order:      order,
	}
	if _, err := os.Stat(cfg.Volume.Path); err != nil {
		return nil, err
	}
	return volumeio.ReadRawFile(cfg.Volume.Path, layout)
}
