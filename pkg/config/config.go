// Package config provides configuration loading and management for spaceleap.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"spaceleap/pkg/grid"
	"spaceleap/pkg/spaceleap"
	"spaceleap/pkg/transfer"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines share a build
		Workers int `yaml:"workers"`

		// BlockSize is the number of cells per block along each axis
		BlockSize int `yaml:"blockSize"`
	} `yaml:"processing"`

	// What a build recomputes
	SpaceLeaping struct {
		ComputeMinMax          bool `yaml:"computeMinMax"`
		ComputeGradientOpacity bool `yaml:"computeGradientOpacity"`
		IndependentComponents  bool `yaml:"independentComponents"`
	} `yaml:"spaceLeaping"`

	// Input volume
	Volume struct {
		// Path of a raw interleaved volume. Empty selects the sphere phantom.
		Path string `yaml:"path"`

		// ScalarType is the element type name, e.g. "uint16" or "float32"
		ScalarType string `yaml:"scalarType"`

		// Dims is width, height, depth in voxels
		Dims [3]int `yaml:"dims"`

		// Components is the number of interleaved values per voxel
		Components int `yaml:"components"`

		// Origin is the index of the first voxel
		Origin [3]int `yaml:"origin"`

		// ByteOrder is "little" or "big"
		ByteOrder string `yaml:"byteOrder"`
	} `yaml:"volume"`

	// Transfer function parameters, one entry per channel
	Transfer struct {
		Channels []ChannelConfig `yaml:"channels"`
	} `yaml:"transfer"`

	// Output parameters
	Output struct {
		// BlockVolumeFile is where the built block volume is written
		BlockVolumeFile string `yaml:"blockVolumeFile"`

		// SlicesDir receives JPEG dumps of the block flags when set
		SlicesDir string `yaml:"slicesDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Log file rotation
	Log struct {
		// File is the log file path. Empty logs to stderr.
		File string `yaml:"file"`

		// MaxSize is the size in megabytes before a log file is rotated
		MaxSize int `yaml:"maxSize"`

		// MaxAge is the number of days rotated files are kept
		MaxAge int `yaml:"maxAge"`

		// MaxBackups is the number of rotated files kept
		MaxBackups int `yaml:"maxBackups"`
	} `yaml:"log"`
}

// ChannelConfig describes the opacity tables and quantization of one channel
type ChannelConfig struct {
	Shift float32 `yaml:"shift"`
	Scale float32 `yaml:"scale"`

	// TableSize is the number of scalar opacity entries
	TableSize int `yaml:"tableSize"`

	// OpaqueRanges lists inclusive [lo, hi] index spans with non-zero opacity
	OpaqueRanges [][2]int `yaml:"opaqueRanges"`

	// GradientOpaqueFrom is the first gradient magnitude with non-zero
	// opacity. Nil disables gradient gating for the channel.
	GradientOpaqueFrom *int `yaml:"gradientOpaqueFrom,omitempty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.BlockSize = grid.DefaultBlockSize

	cfg.SpaceLeaping.ComputeMinMax = true
	cfg.SpaceLeaping.ComputeGradientOpacity = false
	cfg.SpaceLeaping.IndependentComponents = true

	// A 64^3 uint16 phantom unless a path is given
	cfg.Volume.ScalarType = "uint16"
	cfg.Volume.Dims = [3]int{64, 64, 64}
	cfg.Volume.Components = 1
	cfg.Volume.ByteOrder = "little"

	gradientFrom := 32
	cfg.Transfer.Channels = []ChannelConfig{{
		Shift:              0,
		Scale:              1.0 / 16,
		TableSize:          256,
		OpaqueRanges:       [][2]int{{64, 255}},
		GradientOpaqueFrom: &gradientFrom,
	}}

	cfg.Output.BlockVolumeFile = "blocks.slb"
	cfg.Output.Verbose = true

	cfg.Log.MaxSize = 10
	cfg.Log.MaxAge = 7
	cfg.Log.MaxBackups = 3

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values a build cannot run without
func (c *Config) Validate() error {
	if c.Processing.BlockSize < 1 {
		return fmt.Errorf("blockSize must be positive, got %d", c.Processing.BlockSize)
	}
	for i, d := range c.Volume.Dims {
		if d < 1 {
			return fmt.Errorf("volume dimension %d must be positive, got %d", i, d)
		}
	}
	if c.Volume.Components < 1 {
		return fmt.Errorf("volume components must be positive, got %d", c.Volume.Components)
	}
	if len(c.Transfer.Channels) == 0 {
		return fmt.Errorf("no transfer channels configured")
	}
	for i, ch := range c.Transfer.Channels {
		if ch.TableSize < 1 {
			return fmt.Errorf("channel %d: tableSize must be positive, got %d", i, ch.TableSize)
		}
		for _, r := range ch.OpaqueRanges {
			if r[0] > r[1] {
				return fmt.Errorf("channel %d: inverted opaque range %v", i, r)
			}
		}
	}
	return nil
}

// BuilderOptions converts the processing and spaceLeaping sections
func (c *Config) BuilderOptions() spaceleap.Options {
	return spaceleap.Options{
		ComputeMinMax:          c.SpaceLeaping.ComputeMinMax,
		ComputeGradientOpacity: c.SpaceLeaping.ComputeGradientOpacity,
		IndependentComponents:  c.SpaceLeaping.IndependentComponents,
		BlockSize:              c.Processing.BlockSize,
		Workers:                c.Processing.Workers,
	}
}

// Tables builds the opacity tables for a volume with the given number of
// components. Shift and scale are taken per channel; in dependent mode the
// last configured channel's values apply to every component.
func (c *Config) Tables(components int) (*transfer.Tables, error) {
	n := len(c.Transfer.Channels)
	if n == 0 {
		return nil, fmt.Errorf("no transfer channels configured")
	}

	tables := &transfer.Tables{
		ScalarOpacity:   make([][]uint16, n),
		GradientOpacity: make([][]uint16, n),
		Shift:           make([]float32, components),
		Scale:           make([]float32, components),
	}
	for i, ch := range c.Transfer.Channels {
		ranges := make([]transfer.Range, len(ch.OpaqueRanges))
		for j, r := range ch.OpaqueRanges {
			ranges[j] = transfer.Range{Lo: r[0], Hi: r[1]}
		}
		tables.ScalarOpacity[i] = transfer.NewScalarTable(ch.TableSize, ranges...)
		if ch.GradientOpaqueFrom != nil {
			tables.GradientOpacity[i] = transfer.NewGradientTable(*ch.GradientOpaqueFrom)
		}
	}
	for comp := 0; comp < components; comp++ {
		ch := c.Transfer.Channels[n-1]
		if comp < n {
			ch = c.Transfer.Channels[comp]
		}
		tables.Shift[comp] = ch.Shift
		tables.Scale[comp] = ch.Scale
	}

	return tables, nil
}
