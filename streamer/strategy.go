package streamer

import (
	"fmt"

	"github.com/astrovis/starstream/gpubuf"
	"github.com/astrovis/starstream/octree"
	"github.com/astrovis/starstream/render"
)

/*
Strategy selection. The rendering strategy is a configuration-time choice:
fixed-chunk vertex buffers for baseline hardware, variable-length storage
buffers where the tighter packing pays off. Both are sized from the GPU
budget ceiling so the whole buffer arena fits the reserved tier.
*/

////////////////////////////////////////////////////////////////////////////////

// StrategyMode selects a buffer packing strategy.
type StrategyMode int

const (
	// FixedChunk packs nodes into fixed-stride VBO chunks.
	FixedChunk StrategyMode = iota + 1
	// VariableLength packs nodes contiguously into an SSBO.
	VariableLength
)

func (m StrategyMode) String() string {
	switch m {
	case FixedChunk:
		return "fixed"
	case VariableLength:
		return "variable"
	default:
		return "unknown"
	}
}

// ParseStrategyMode parses a strategy selector string.
func ParseStrategyMode(s string) (StrategyMode, error) {
	switch s {
	case "fixed", "vbo":
		return FixedChunk, nil
	case "variable", "ssbo":
		return VariableLength, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q (want fixed or variable)", s)
	}
}

// variableSlotCap bounds the accumulated-indices array; the incremental
// patch is linear in resident slots.
const variableSlotCap = 1 << 16

// NewStrategy constructs the packing strategy for an index, sizing its
// buffers to the given GPU budget ceiling.
func NewStrategy(
	dev render.Device,
	idx *octree.Index,
	gpuCeiling uint64,
	mode StrategyMode,
	opts ...gpubuf.Option,
) (gpubuf.Strategy, error) {
	meta := idx.Metadata()
	packedBytes := int64(gpubuf.PackedValuesPerStar(meta.Layout, opts...)) * 4
	switch mode {
	case FixedChunk:
		chunkBytes := int64(meta.MaxStarsPerNode) * packedBytes
		maxSlots := int(int64(gpuCeiling) / chunkBytes)
		if maxSlots < 1 {
			return nil, fmt.Errorf("gpu budget %d cannot hold a single %d-byte chunk", gpuCeiling, chunkBytes)
		}
		if maxSlots > idx.NodeCount() {
			maxSlots = idx.NodeCount()
		}
		return gpubuf.NewFixedChunk(dev, meta.Layout, meta.MaxStarsPerNode, maxSlots, opts...)
	case VariableLength:
		maxSlots := idx.NodeCount()
		if maxSlots > variableSlotCap {
			maxSlots = variableSlotCap
		}
		capacity := int64(gpuCeiling) - int64(maxSlots)*4
		if capacity < packedBytes {
			return nil, fmt.Errorf("gpu budget %d too small for variable packing", gpuCeiling)
		}
		return gpubuf.NewVariable(dev, meta.Layout, capacity, maxSlots, opts...)
	default:
		return nil, fmt.Errorf("unknown strategy mode %d", mode)
	}
}
