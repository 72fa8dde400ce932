package gpubuf

import (
	"context"
	"fmt"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/render"
	"github.com/astrovis/starstream/util/log"
)

/*
Variable-length strategy. Node payloads are packed contiguously into one
storage buffer with no padding. An auxiliary index buffer holds, per slot,
the running total of stars up to and including that slot; the shader locates
slot k's range as [accumulated[k-1], accumulated[k]) without a fixed stride.
On add or remove, the accumulated array is patched incrementally from the
changed slot onward rather than recomputed, and the packed data after the
changed slot shifts by the node's star delta. A CPU mirror of the packed
region makes the shift a memmove plus a single tail upload.
*/

////////////////////////////////////////////////////////////////////////////////

// VariableStrategy packs nodes contiguously into a storage buffer.
type VariableStrategy struct {
	groups   []attributeGroup
	layout   catalog.Layout
	stride   int // float32 values per star
	maxSlots int

	data  render.Buffer
	index render.Buffer

	counts      []int
	accumulated []int32 // inclusive prefix sums of counts
	mirror      []float32
	total       int64

	warnedInconsistent bool
}

// NewVariable allocates the packed data buffer with the given byte capacity
// and an index buffer of maxSlots entries.
func NewVariable(
	dev render.Device,
	layout catalog.Layout,
	capacityBytes int64,
	maxSlots int,
	opts ...Option,
) (*VariableStrategy, error) {
	if capacityBytes < 4 || maxSlots < 1 {
		return nil, fmt.Errorf("invalid geometry: %d bytes, %d slots", capacityBytes, maxSlots)
	}
	cfg := newPackConfig(opts)
	groups := attributeGroups(layout, cfg.colorMode)
	data, err := dev.AllocateBuffer(render.StorageBuffer, capacityBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate data buffer: %w", err)
	}
	index, err := dev.AllocateBuffer(render.StorageBuffer, int64(maxSlots)*4)
	if err != nil {
		data.Release()
		return nil, fmt.Errorf("failed to allocate index buffer: %w", err)
	}
	return &VariableStrategy{
		groups:      groups,
		layout:      layout,
		stride:      groupsWidth(groups),
		maxSlots:    maxSlots,
		data:        data,
		index:       index,
		counts:      make([]int, maxSlots),
		accumulated: make([]int32, maxSlots),
	}, nil
}

// Name implements Strategy.
func (s *VariableStrategy) Name() string {
	return "variable-length"
}

// SlotBytes implements Strategy. Cost is exact: stars times stride, no
// padding.
func (s *VariableStrategy) SlotBytes(starCount int) int64 {
	return int64(starCount) * int64(s.stride) * 4
}

// MaxSlots implements Strategy.
func (s *VariableStrategy) MaxSlots() int {
	return s.maxSlots
}

// Accepts implements Strategy. Packing is unpadded, so only the layout's
// serialized width matters; per-node capacity is bounded by the data buffer
// at upload time.
func (s *VariableStrategy) Accepts(layout catalog.Layout, _ int) error {
	if layout.ValuesPerStar() != s.layout.ValuesPerStar() {
		return fmt.Errorf("layout of %d values per star does not match packed width %d",
			layout.ValuesPerStar(), s.layout.ValuesPerStar())
	}
	return nil
}

// UploadNode implements Strategy.
func (s *VariableStrategy) UploadNode(ctx context.Context, slot int, records []catalog.StarRecord) error {
	if slot < 0 || slot >= len(s.accumulated) {
		// Transient disagreement between traversal and streaming; self-heals
		// next frame. Logged once to avoid per-frame noise.
		if !s.warnedInconsistent {
			log.Warnw(ctx, "slot outside accumulated index bounds, write skipped",
				"slot", slot,
				"slots", len(s.accumulated),
			)
			s.warnedInconsistent = true
		}
		return nil
	}
	start := int(s.accumulated[slot]) - s.counts[slot]
	if start < 0 || start > len(s.mirror)/s.stride {
		if !s.warnedInconsistent {
			log.Warnw(ctx, "slot offset outside packed region, write skipped",
				"slot", slot,
				"start", start,
				"packedStars", len(s.mirror)/s.stride,
			)
			s.warnedInconsistent = true
		}
		return nil
	}
	newTotal := s.total + int64(len(records)) - int64(s.counts[slot])
	if newTotal*int64(s.stride)*4 > s.data.Len() {
		return fmt.Errorf("packed region of %d stars exceeds %d-byte buffer", newTotal, s.data.Len())
	}

	// Splice the node's new flat form into the mirror at its slot position.
	flat := make([]float32, len(records)*s.stride)
	for i := range records {
		fillRecord(s.groups, &records[i], flat[i*s.stride:(i+1)*s.stride])
	}
	head := s.mirror[:start*s.stride]
	tail := s.mirror[(start+s.counts[slot])*s.stride:]
	next := make([]float32, 0, len(head)+len(flat)+len(tail))
	next = append(append(append(next, head...), flat...), tail...)
	s.mirror = next

	delta := int32(len(records) - s.counts[slot])
	s.counts[slot] = len(records)
	for i := slot; i < len(s.accumulated); i++ {
		s.accumulated[i] += delta
	}
	s.total = newTotal

	// Everything from the changed slot onward shifted; re-upload the tail of
	// the packed region and the patched part of the index.
	if err := s.data.Write(int64(start*s.stride)*4, floatsToBytes(s.mirror[start*s.stride:])); err != nil {
		return fmt.Errorf("failed to write packed data: %w", err)
	}
	if err := s.index.Write(int64(slot)*4, intsToBytes(s.accumulated[slot:])); err != nil {
		return fmt.Errorf("failed to write accumulated indices: %w", err)
	}
	return nil
}

// RemoveNode implements Strategy. The slot's region is compacted away.
func (s *VariableStrategy) RemoveNode(ctx context.Context, slot int) error {
	return s.UploadNode(ctx, slot, nil)
}

// StarCount implements Strategy.
func (s *VariableStrategy) StarCount() int64 {
	return s.total
}

// Draw implements Strategy.
func (s *VariableStrategy) Draw() render.Draw {
	return render.Draw{
		StarCount: s.total,
		Buffers: []render.BoundBuffer{
			{Name: "stars", Buffer: s.data},
			{Name: "accumulatedIndices", Buffer: s.index},
		},
	}
}

// Close implements Strategy.
func (s *VariableStrategy) Close() {
	if s.data != nil {
		s.data.Release()
		s.data = nil
	}
	if s.index != nil {
		s.index.Release()
		s.index = nil
	}
}

// AccumulatedIndices exposes a copy of the prefix-sum array for testing and
// diagnostics.
func (s *VariableStrategy) AccumulatedIndices() []int32 {
	out := make([]int32, len(s.accumulated))
	copy(out, s.accumulated)
	return out
}
