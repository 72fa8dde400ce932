package gpubuf_test

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/gpubuf"
	"github.com/astrovis/starstream/render"
	"github.com/astrovis/starstream/util"
)

// star returns a record whose position encodes its identity, making packed
// regions easy to recognize in buffer contents.
func star(id float32) catalog.StarRecord {
	return catalog.StarRecord{
		Position:     mgl32.Vec3{id, id + 0.25, id + 0.5},
		AbsMagnitude: id,
		ColorIndex:   0.5,
	}
}

func bufferFloats(t *testing.T, b render.Buffer) []float32 {
	t.Helper()
	raw := b.(*render.MemBuffer).Bytes()
	require.Zero(t, len(raw)%4)
	out := make([]float32, len(raw)/4)
	for i := range out {
		util.ReadF32(raw[i*4:], &out[i])
	}
	return out
}

func drawBuffer(t *testing.T, s gpubuf.Strategy, name string) render.Buffer {
	t.Helper()
	for _, bound := range s.Draw().Buffers {
		if bound.Name == name {
			return bound.Buffer
		}
	}
	t.Fatalf("no buffer named %q in draw", name)
	return nil
}

func TestFixedChunkPacking(t *testing.T) {
	ctx := context.Background()
	dev := render.NewMemDevice(0)
	s, err := gpubuf.NewFixedChunk(dev, catalog.Layout{}, 4, 3)
	require.NoError(t, err)
	defer s.Close()

	// position(3) + photometry(2) + motion(4), 4 stars per slot, 3 slots.
	assert.Equal(t, int64(4*9*4), s.SlotBytes(2))
	assert.Equal(t, 3, s.MaxSlots())
	assert.Equal(t, int64(3*4*3*4), drawBuffer(t, s, gpubuf.GroupPosition).Len())

	require.NoError(t, s.UploadNode(ctx, 1, []catalog.StarRecord{star(10), star(20)}))
	assert.Equal(t, int64(2), s.StarCount())

	positions := bufferFloats(t, drawBuffer(t, s, gpubuf.GroupPosition))
	t.Run("slot offset is slot times chunk size", func(t *testing.T) {
		chunk := positions[1*4*3 : 2*4*3]
		assert.Equal(t, []float32{10, 10.25, 10.5, 20, 20.25, 20.5}, chunk[:6])
	})
	t.Run("under-filled chunks are zero padded", func(t *testing.T) {
		chunk := positions[1*4*3 : 2*4*3]
		assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, chunk[6:])
	})
	t.Run("other slots are untouched", func(t *testing.T) {
		for _, v := range positions[:4*3] {
			assert.Zero(t, v)
		}
	})
	t.Run("photometry group packs in parallel", func(t *testing.T) {
		photometry := bufferFloats(t, drawBuffer(t, s, gpubuf.GroupPhotometry))
		assert.Equal(t, []float32{10, 0.5, 20, 0.5}, photometry[1*4*2:1*4*2+4])
	})
}

func TestFixedChunkReplaceAndRemove(t *testing.T) {
	ctx := context.Background()
	s, err := gpubuf.NewFixedChunk(render.NewMemDevice(0), catalog.Layout{}, 4, 2)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{star(1), star(2), star(3)}))
	require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{star(7)}))
	assert.Equal(t, int64(1), s.StarCount())

	positions := bufferFloats(t, drawBuffer(t, s, gpubuf.GroupPosition))
	assert.Equal(t, float32(7), positions[0])
	t.Run("replacement clears stale trailing stars", func(t *testing.T) {
		for _, v := range positions[3 : 4*3] {
			assert.Zero(t, v)
		}
	})

	require.NoError(t, s.RemoveNode(ctx, 0))
	assert.Zero(t, s.StarCount())
	positions = bufferFloats(t, drawBuffer(t, s, gpubuf.GroupPosition))
	for _, v := range positions[:4*3] {
		assert.Zero(t, v)
	}
}

func TestFixedChunkRejectsOversizedNodes(t *testing.T) {
	ctx := context.Background()
	s, err := gpubuf.NewFixedChunk(render.NewMemDevice(0), catalog.Layout{}, 2, 2)
	require.NoError(t, err)
	defer s.Close()
	err = s.UploadNode(ctx, 0, []catalog.StarRecord{star(1), star(2), star(3)})
	assert.Error(t, err)
	err = s.UploadNode(ctx, 5, nil)
	assert.Error(t, err)
}

func TestVariablePackingIsContiguous(t *testing.T) {
	ctx := context.Background()
	s, err := gpubuf.NewVariable(render.NewMemDevice(0), catalog.Layout{}, 1<<16, 4)
	require.NoError(t, err)
	defer s.Close()
	const stride = 9

	require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{star(1), star(2)}))
	require.NoError(t, s.UploadNode(ctx, 1, []catalog.StarRecord{star(3)}))
	require.NoError(t, s.UploadNode(ctx, 2, []catalog.StarRecord{star(4), star(5)}))
	assert.Equal(t, int64(5), s.StarCount())
	assert.Equal(t, []int32{2, 3, 5, 5}, s.AccumulatedIndices())

	data := bufferFloats(t, drawBuffer(t, s, "stars"))
	for i, id := range []float32{1, 2, 3, 4, 5} {
		assert.Equal(t, id, data[i*stride], "star %d", i)
	}

	t.Run("growing a middle slot shifts the tail", func(t *testing.T) {
		require.NoError(t, s.UploadNode(ctx, 1, []catalog.StarRecord{star(6), star(7), star(8)}))
		assert.Equal(t, []int32{2, 5, 7, 7}, s.AccumulatedIndices())
		assert.Equal(t, int64(7), s.StarCount())
		data := bufferFloats(t, drawBuffer(t, s, "stars"))
		for i, id := range []float32{1, 2, 6, 7, 8, 4, 5} {
			assert.Equal(t, id, data[i*stride], "star %d", i)
		}
	})

	t.Run("removal compacts the region", func(t *testing.T) {
		require.NoError(t, s.RemoveNode(ctx, 0))
		assert.Equal(t, []int32{0, 3, 5, 5}, s.AccumulatedIndices())
		assert.Equal(t, int64(5), s.StarCount())
		data := bufferFloats(t, drawBuffer(t, s, "stars"))
		for i, id := range []float32{6, 7, 8, 4, 5} {
			assert.Equal(t, id, data[i*stride], "star %d", i)
		}
	})

	t.Run("index buffer matches the prefix sums", func(t *testing.T) {
		raw := drawBuffer(t, s, "accumulatedIndices").(*render.MemBuffer).Bytes()
		for i, want := range s.AccumulatedIndices() {
			var got uint32
			util.ReadU32(raw[i*4:], &got)
			assert.Equal(t, want, int32(got))
		}
	})
}

func TestVariableSkipsOutOfBoundsSlots(t *testing.T) {
	ctx := context.Background()
	s, err := gpubuf.NewVariable(render.NewMemDevice(0), catalog.Layout{}, 1<<12, 2)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{star(1)}))
	before := s.AccumulatedIndices()

	// A stale slot from a torn-down epoch must not corrupt the packed region.
	require.NoError(t, s.UploadNode(ctx, 7, []catalog.StarRecord{star(9)}))
	assert.Equal(t, before, s.AccumulatedIndices())
	assert.Equal(t, int64(1), s.StarCount())
}

func TestPackedRGBColorMode(t *testing.T) {
	ctx := context.Background()
	hot := catalog.StarRecord{Position: mgl32.Vec3{1, 0, 0}, AbsMagnitude: 2, ColorIndex: -0.3}
	cool := catalog.StarRecord{Position: mgl32.Vec3{2, 0, 0}, AbsMagnitude: 3, ColorIndex: 1.8}

	assert.Equal(t, 11, gpubuf.PackedValuesPerStar(catalog.Layout{}, gpubuf.WithColorMode(gpubuf.PackedRGB)))
	assert.Equal(t, 9, gpubuf.PackedValuesPerStar(catalog.Layout{}))

	t.Run("fixed chunks widen the photometry group", func(t *testing.T) {
		s, err := gpubuf.NewFixedChunk(render.NewMemDevice(0), catalog.Layout{}, 2, 2,
			gpubuf.WithColorMode(gpubuf.PackedRGB))
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, int64(2*11*4), s.SlotBytes(1))

		require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{hot, cool}))
		photometry := bufferFloats(t, drawBuffer(t, s, gpubuf.GroupPhotometry))
		r, g, b := catalog.BVToRGB(hot.ColorIndex)
		assert.Equal(t, []float32{hot.AbsMagnitude, r, g, b}, photometry[:4])
		r, g, b = catalog.BVToRGB(cool.ColorIndex)
		assert.Equal(t, []float32{cool.AbsMagnitude, r, g, b}, photometry[4:8])
	})
	t.Run("variable stride carries the rgb triple", func(t *testing.T) {
		s, err := gpubuf.NewVariable(render.NewMemDevice(0), catalog.Layout{}, 1<<12, 2,
			gpubuf.WithColorMode(gpubuf.PackedRGB))
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, int64(11*4), s.SlotBytes(1))

		require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{hot}))
		data := bufferFloats(t, drawBuffer(t, s, "stars"))
		r, _, b := catalog.BVToRGB(hot.ColorIndex)
		assert.Equal(t, r, data[4])
		assert.Equal(t, b, data[6])
		assert.Greater(t, b, r, "a hot star should lean blue")
	})
}

func TestStrategyAccepts(t *testing.T) {
	fixed, err := gpubuf.NewFixedChunk(render.NewMemDevice(0), catalog.Layout{}, 16, 2)
	require.NoError(t, err)
	defer fixed.Close()
	assert.NoError(t, fixed.Accepts(catalog.Layout{}, 16))
	assert.Error(t, fixed.Accepts(catalog.Layout{}, 64), "over-capacity nodes cannot fit a chunk")
	assert.Error(t, fixed.Accepts(catalog.Layout{ExtraColumns: []string{"parallax"}}, 16))

	variable, err := gpubuf.NewVariable(render.NewMemDevice(0), catalog.Layout{}, 1<<12, 2)
	require.NoError(t, err)
	defer variable.Close()
	assert.NoError(t, variable.Accepts(catalog.Layout{}, 64), "unpadded packing has no per-node cap")
	assert.Error(t, variable.Accepts(catalog.Layout{ExtraColumns: []string{"parallax"}}, 16))
}

func TestVariableRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	// Room for exactly two stars of the base layout.
	s, err := gpubuf.NewVariable(render.NewMemDevice(0), catalog.Layout{}, 2*9*4, 3)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UploadNode(ctx, 0, []catalog.StarRecord{star(1), star(2)}))
	err = s.UploadNode(ctx, 1, []catalog.StarRecord{star(3)})
	assert.Error(t, err)
	assert.Equal(t, int64(2), s.StarCount())
}
