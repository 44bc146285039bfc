// Package visualization renders block volumes as grayscale slices so the
// skippable regions can be inspected.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"spaceleap/internal/models"
	"spaceleap/pkg/spaceleap"
)

// Field selects which part of a block record is drawn
type Field string

const (
	FieldMin      Field = "min"
	FieldMax      Field = "max"
	FieldGradient Field = "gradient"
	FieldFlag     Field = "flag"
)

// Viewer extracts slices and regions of one channel of a block volume
type Viewer struct {
	// volume is the block volume being viewed
	volume *spaceleap.BlockVolume

	// dimensions in blocks
	width  int
	height int
	depth  int

	// channel is the channel drawn by ExtractSlice
	channel int

	// field is the record value drawn by ExtractSlice
	field Field
}

// NewViewer creates a viewer for channel of v drawing the given field
func NewViewer(v *spaceleap.BlockVolume, channel int, field Field) (*Viewer, error) {
	if v == nil {
		return nil, fmt.Errorf("no block volume")
	}
	if channel < 0 || channel >= v.Channels {
		return nil, fmt.Errorf("channel %d out of range [0,%d)", channel, v.Channels)
	}
	switch field {
	case FieldMin, FieldMax, FieldGradient, FieldFlag:
	default:
		return nil, fmt.Errorf("invalid field: %s (must be min, max, gradient, or flag)", field)
	}

	d := v.Dims()
	return &Viewer{
		volume:  v,
		width:   d[0],
		height:  d[1],
		depth:   d[2],
		channel: channel,
		field:   field,
	}, nil
}

// intensity maps a record to a 16-bit gray level
func (v *Viewer) intensity(rec models.BlockRecord) uint16 {
	switch v.field {
	case FieldMin:
		if rec.Min > rec.Max {
			return 0
		}
		return rec.Min
	case FieldMax:
		return rec.Max
	case FieldGradient:
		return uint16(rec.GradientMax()) * 257
	}
	if rec.Visible() {
		return math.MaxUint16
	}
	return 0
}

// record returns the record of the block at zero-based position (x, y, z)
func (v *Viewer) record(x, y, z int) models.BlockRecord {
	ext := v.volume.Extent
	return v.volume.Record(ext[0]+x, ext[2]+y, ext[4]+z, v.channel)
}

// ExtractSlice extracts a 2D slice of blocks along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}

		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, color.Gray16{Y: v.intensity(v.record(position, y, z))})
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, color.Gray16{Y: v.intensity(v.record(x, position, z))})
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: v.intensity(v.record(x, y, position))})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion extracts the records of a 3D subregion of blocks for the
// viewer's channel, x fastest
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]models.BlockRecord, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]models.BlockRecord, 0, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				region = append(region, v.record(startX+x, startY+y, startZ+z))
			}
		}
	}

	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis.
// Files are named slice_<field>_c<channel>_<axis>_<pos>.jpg
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, SliceFileName(v.field, v.channel, axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SliceFileName is the name SaveSliceSequence gives the slice at pos
func SliceFileName(field Field, channel int, axis string, pos int) string {
	return fmt.Sprintf("slice_%s_c%d_%s_%03d.jpg", field, channel, axis, pos)
}
