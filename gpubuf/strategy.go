/*
Package gpubuf packs resident octree node payloads into GPU buffers. Two
strategies implement the same contract: fixed-stride chunks in parallel
per-attribute vertex buffers, or variable-length regions compacted into a
storage buffer with an accumulated-indices array locating each slot's star
range. The streaming manager picks one at construction; traversal and
streaming logic are strategy-agnostic.
*/
package gpubuf

import (
	"context"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/render"
	"github.com/astrovis/starstream/util"
)

// Strategy is the packing contract shared by both buffer layouts.
type Strategy interface {
	// Name identifies the strategy for logging and stats.
	Name() string

	// SlotBytes returns the GPU cost of packing a node with the given star
	// count, for budget reservations.
	SlotBytes(starCount int) int64

	// MaxSlots returns the slot capacity of the strategy's buffers.
	MaxSlots() int

	// Accepts reports whether nodes of the given layout and per-node star
	// capacity can be packed by this strategy's buffers.
	Accepts(layout catalog.Layout, maxStarsPerNode int) error

	// UploadNode packs a node's records into the given slot, replacing the
	// slot's previous contents.
	UploadNode(ctx context.Context, slot int, records []catalog.StarRecord) error

	// RemoveNode clears the given slot so no stale data trails behind
	// evictions.
	RemoveNode(ctx context.Context, slot int) error

	// StarCount returns the total stars currently packed.
	StarCount() int64

	// Draw returns the buffers to bind and the star count for this frame.
	Draw() render.Draw

	// Close releases the strategy's buffers.
	Close()
}

// Attribute group names shared by both strategies. Order matters: position,
// photometry and motion lead every layout, matching the record contract.
const (
	GroupPosition   = "position"
	GroupPhotometry = "photometry"
	GroupMotion     = "motion"
	GroupExtras     = "extras"
)

// ColorMode selects how the photometry group carries star color.
type ColorMode int

const (
	// RawColorIndex packs the B-V color index as stored; the shader does its
	// own color mapping.
	RawColorIndex ColorMode = iota
	// PackedRGB converts the index to linear RGB at pack time, for shaders
	// that want a ready-made color.
	PackedRGB
)

type packConfig struct {
	colorMode ColorMode
}

// Option configures a packing strategy.
type Option func(*packConfig)

// WithColorMode sets how the photometry group carries star color.
func WithColorMode(mode ColorMode) Option {
	return func(c *packConfig) {
		c.colorMode = mode
	}
}

func newPackConfig(opts []Option) packConfig {
	cfg := packConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type attributeGroup struct {
	name  string
	width int
	fill  func(rec *catalog.StarRecord, dst []float32)
}

// attributeGroups returns the per-attribute split for a layout. Extras are
// absent when the layout has no extra columns.
func attributeGroups(layout catalog.Layout, mode ColorMode) []attributeGroup {
	photometry := attributeGroup{
		name:  GroupPhotometry,
		width: 2,
		fill: func(rec *catalog.StarRecord, dst []float32) {
			dst[0], dst[1] = rec.AbsMagnitude, rec.ColorIndex
		},
	}
	if mode == PackedRGB {
		photometry = attributeGroup{
			name:  GroupPhotometry,
			width: 4,
			fill: func(rec *catalog.StarRecord, dst []float32) {
				dst[0] = rec.AbsMagnitude
				dst[1], dst[2], dst[3] = catalog.BVToRGB(rec.ColorIndex)
			},
		}
	}
	groups := []attributeGroup{
		{
			name:  GroupPosition,
			width: 3,
			fill: func(rec *catalog.StarRecord, dst []float32) {
				dst[0], dst[1], dst[2] = rec.Position.X(), rec.Position.Y(), rec.Position.Z()
			},
		},
		photometry,
		{
			name:  GroupMotion,
			width: 4,
			fill: func(rec *catalog.StarRecord, dst []float32) {
				dst[0], dst[1], dst[2] = rec.Velocity.X(), rec.Velocity.Y(), rec.Velocity.Z()
				dst[3] = rec.Speed
			},
		},
	}
	if n := len(layout.ExtraColumns); n > 0 {
		groups = append(groups, attributeGroup{
			name:  GroupExtras,
			width: n,
			fill: func(rec *catalog.StarRecord, dst []float32) {
				copy(dst, rec.Extras)
			},
		})
	}
	return groups
}

func groupsWidth(groups []attributeGroup) int {
	width := 0
	for _, g := range groups {
		width += g.width
	}
	return width
}

// PackedValuesPerStar returns the number of float32 values one star occupies
// in GPU buffers under the given options. Differs from the layout's
// serialized width when pack-time color conversion widens the photometry
// group.
func PackedValuesPerStar(layout catalog.Layout, opts ...Option) int {
	cfg := newPackConfig(opts)
	return groupsWidth(attributeGroups(layout, cfg.colorMode))
}

// fillRecord writes a record's full flat form (all groups in order).
func fillRecord(groups []attributeGroup, rec *catalog.StarRecord, dst []float32) {
	offset := 0
	for _, g := range groups {
		g.fill(rec, dst[offset:offset+g.width])
		offset += g.width
	}
}

func floatsToBytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		util.F32(buf[i*4:], v)
	}
	return buf
}

func intsToBytes(values []int32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		util.U32(buf[i*4:], uint32(v))
	}
	return buf
}
