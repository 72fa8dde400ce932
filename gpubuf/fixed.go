package gpubuf

import (
	"context"
	"fmt"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/render"
)

/*
Fixed-chunk strategy. Every slot occupies a fixed-size chunk - the per-node
star capacity times the group width - in each of several parallel vertex
buffers, one per attribute group. Offsets are pure arithmetic
(slot x chunk size) and under-filled chunks are zero-padded so evictions
never leave stale trailing stars behind.
*/

////////////////////////////////////////////////////////////////////////////////

// FixedChunkStrategy packs nodes into fixed-stride chunks of parallel
// per-attribute vertex buffers.
type FixedChunkStrategy struct {
	groups       []attributeGroup
	layout       catalog.Layout
	buffers      []render.Buffer
	starsPerSlot int
	maxSlots     int
	counts       []int
	total        int64
}

// NewFixedChunk allocates one vertex buffer per attribute group, each sized
// maxSlots chunks. starsPerSlot must equal the octree's per-node capacity.
func NewFixedChunk(
	dev render.Device,
	layout catalog.Layout,
	starsPerSlot int,
	maxSlots int,
	opts ...Option,
) (*FixedChunkStrategy, error) {
	if starsPerSlot < 1 || maxSlots < 1 {
		return nil, fmt.Errorf("invalid geometry: %d stars per slot, %d slots", starsPerSlot, maxSlots)
	}
	cfg := newPackConfig(opts)
	groups := attributeGroups(layout, cfg.colorMode)
	buffers := make([]render.Buffer, 0, len(groups))
	for _, group := range groups {
		size := int64(maxSlots) * int64(starsPerSlot) * int64(group.width) * 4
		buf, err := dev.AllocateBuffer(render.VertexBuffer, size)
		if err != nil {
			for _, allocated := range buffers {
				allocated.Release()
			}
			return nil, fmt.Errorf("failed to allocate %s buffer: %w", group.name, err)
		}
		buffers = append(buffers, buf)
	}
	return &FixedChunkStrategy{
		groups:       groups,
		layout:       layout,
		buffers:      buffers,
		starsPerSlot: starsPerSlot,
		maxSlots:     maxSlots,
		counts:       make([]int, maxSlots),
	}, nil
}

// Name implements Strategy.
func (s *FixedChunkStrategy) Name() string {
	return "fixed-chunk"
}

// SlotBytes implements Strategy. A slot always costs a full chunk across all
// groups, regardless of how many stars occupy it.
func (s *FixedChunkStrategy) SlotBytes(int) int64 {
	return int64(s.starsPerSlot) * int64(groupsWidth(s.groups)) * 4
}

// Accepts implements Strategy. Chunk geometry is fixed at allocation, so the
// layout's serialized width and the per-node capacity must both fit.
func (s *FixedChunkStrategy) Accepts(layout catalog.Layout, maxStarsPerNode int) error {
	if layout.ValuesPerStar() != s.layout.ValuesPerStar() {
		return fmt.Errorf("layout of %d values per star does not match packed width %d",
			layout.ValuesPerStar(), s.layout.ValuesPerStar())
	}
	if maxStarsPerNode > s.starsPerSlot {
		return fmt.Errorf("nodes of up to %d stars exceed slot capacity %d", maxStarsPerNode, s.starsPerSlot)
	}
	return nil
}

// MaxSlots implements Strategy.
func (s *FixedChunkStrategy) MaxSlots() int {
	return s.maxSlots
}

// UploadNode implements Strategy.
func (s *FixedChunkStrategy) UploadNode(_ context.Context, slot int, records []catalog.StarRecord) error {
	if slot < 0 || slot >= s.maxSlots {
		return fmt.Errorf("slot %d out of range [0, %d)", slot, s.maxSlots)
	}
	if len(records) > s.starsPerSlot {
		return fmt.Errorf("node of %d stars exceeds slot capacity %d", len(records), s.starsPerSlot)
	}
	for i, group := range s.groups {
		chunk := make([]float32, s.starsPerSlot*group.width)
		for j := range records {
			group.fill(&records[j], chunk[j*group.width:(j+1)*group.width])
		}
		offset := int64(slot) * int64(len(chunk)) * 4
		if err := s.buffers[i].Write(offset, floatsToBytes(chunk)); err != nil {
			return fmt.Errorf("failed to write %s chunk: %w", group.name, err)
		}
	}
	s.total += int64(len(records)) - int64(s.counts[slot])
	s.counts[slot] = len(records)
	return nil
}

// RemoveNode implements Strategy. The slot's chunks are zeroed.
func (s *FixedChunkStrategy) RemoveNode(ctx context.Context, slot int) error {
	return s.UploadNode(ctx, slot, nil)
}

// StarCount implements Strategy.
func (s *FixedChunkStrategy) StarCount() int64 {
	return s.total
}

// Draw implements Strategy.
func (s *FixedChunkStrategy) Draw() render.Draw {
	draw := render.Draw{StarCount: s.total}
	for i, group := range s.groups {
		draw.Buffers = append(draw.Buffers, render.BoundBuffer{
			Name:   group.name,
			Buffer: s.buffers[i],
		})
	}
	return draw
}

// Close implements Strategy.
func (s *FixedChunkStrategy) Close() {
	for _, buf := range s.buffers {
		buf.Release()
	}
	s.buffers = nil
}
