package octree_test

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/octree"
	"github.com/astrovis/starstream/storage"
)

func randomDataset(t *testing.T, n int) *catalog.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	records := make([]catalog.StarRecord, n)
	for i := range records {
		records[i] = catalog.StarRecord{
			Position: mgl32.Vec3{
				rng.Float32()*200 - 100,
				rng.Float32()*200 - 100,
				rng.Float32()*200 - 100,
			},
			AbsMagnitude: rng.Float32()*20 - 5,
			ColorIndex:   rng.Float32()*2 - 0.4,
		}
	}
	return &catalog.Dataset{Records: records}
}

// flush builds the dataset, writes the object to a memstore, and reopens it.
func flush(
	t *testing.T,
	ds *catalog.Dataset,
	cfg octree.Config,
) (*octree.Index, storage.Provider) {
	t.Helper()
	ctx := context.Background()
	tree, err := octree.Build(ctx, ds, cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = tree.Flush(ctx, &buf)
	require.NoError(t, err)
	store := storage.NewMemStore()
	require.NoError(t, store.Put(ctx, "stars", buf.Bytes()))
	idx, err := octree.ReadIndex(ctx, store, "stars")
	require.NoError(t, err)
	return idx, store
}

func TestBuildNineStarScenario(t *testing.T) {
	ctx := context.Background()
	ds := randomDataset(t, 9)
	tree, err := octree.Build(ctx, ds, octree.Config{MaxStarsPerNode: 4, MaxDepth: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), tree.TotalStars())

	idx, store := flush(t, ds, octree.Config{MaxStarsPerNode: 4, MaxDepth: 5})
	root, ok := idx.Node(idx.Root())
	require.True(t, ok)
	require.True(t, root.HasChildren(), "9 stars with capacity 4 must split the root")

	children, ok := idx.Children(idx.Root())
	require.True(t, ok)
	var leafStars uint64
	nonEmpty := 0
	for _, child := range children {
		node, ok := idx.Node(child)
		require.True(t, ok)
		require.False(t, node.HasChildren())
		assert.LessOrEqual(t, int(node.StarCount), 4)
		if node.StarCount > 0 {
			nonEmpty++
		}
		records, err := idx.LoadNodeData(ctx, store, "stars", child)
		require.NoError(t, err)
		require.Len(t, records, int(node.StarCount))
		leafStars += uint64(node.StarCount)
	}
	assert.Equal(t, uint64(9), leafStars)
	assert.Positive(t, nonEmpty)
}

func TestBuildInvariants(t *testing.T) {
	cfg := octree.Config{MaxStarsPerNode: 16, MaxDepth: 6}
	ds := randomDataset(t, 1000)
	idx, _ := flush(t, ds, cfg)

	var leafStars uint64
	for id := octree.NodeID(0); int(id) < idx.NodeCount(); id++ {
		node, ok := idx.Node(id)
		require.True(t, ok)
		if node.HasChildren() {
			// Interior LOD samples are capped at the per-node capacity.
			assert.LessOrEqual(t, int(node.StarCount), cfg.MaxStarsPerNode)
			continue
		}
		leafStars += uint64(node.StarCount)
		if int(node.Depth) < cfg.MaxDepth {
			assert.LessOrEqual(t, int(node.StarCount), cfg.MaxStarsPerNode,
				"node %d exceeds capacity below max depth", id)
		}
	}
	assert.Equal(t, uint64(1000), leafStars, "leaf stars must sum to the input count")
	assert.Equal(t, uint64(1000), idx.TotalStars())
}

func TestBuildBoundsContainment(t *testing.T) {
	ctx := context.Background()
	cfg := octree.Config{MaxStarsPerNode: 8, MaxDepth: 5}
	ds := randomDataset(t, 300)
	idx, store := flush(t, ds, cfg)

	for id := octree.NodeID(0); int(id) < idx.NodeCount(); id++ {
		node, ok := idx.Node(id)
		require.True(t, ok)
		if node.HasChildren() {
			continue
		}
		records, err := idx.LoadNodeData(ctx, store, "stars", id)
		require.NoError(t, err)
		for _, rec := range records {
			assert.True(t, node.Bounds.Contains(rec.Position),
				"star %v outside leaf bounds %v", rec.Position, node.Bounds)
		}
	}
}

func TestInteriorLODSamplesAreBrightest(t *testing.T) {
	ctx := context.Background()
	cfg := octree.Config{MaxStarsPerNode: 8, MaxDepth: 4}
	ds := randomDataset(t, 200)
	idx, store := flush(t, ds, cfg)

	root, ok := idx.Node(idx.Root())
	require.True(t, ok)
	require.True(t, root.HasChildren())
	sample, err := idx.LoadNodeData(ctx, store, "stars", idx.Root())
	require.NoError(t, err)
	require.Len(t, sample, cfg.MaxStarsPerNode)

	// Lower absolute magnitude = brighter. The sample must hold the dataset's
	// brightest stars.
	var cutoff float32 = -1e9
	for _, rec := range sample {
		if rec.AbsMagnitude > cutoff {
			cutoff = rec.AbsMagnitude
		}
	}
	brighter := 0
	for _, rec := range ds.Records {
		if rec.AbsMagnitude < cutoff {
			brighter++
		}
	}
	assert.LessOrEqual(t, brighter, cfg.MaxStarsPerNode)
}

func TestBuildRejectsNonconformingDataset(t *testing.T) {
	ctx := context.Background()
	ds := randomDataset(t, 10)
	ds.Layout.ExtraColumns = []string{"parallax"}
	_, err := octree.Build(ctx, ds, octree.Config{MaxStarsPerNode: 4, MaxDepth: 3})
	assert.ErrorIs(t, err, catalog.MalformedDatasetError{})
}
