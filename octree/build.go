package octree

import (
	"context"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/util/log"
)

/*
Octree construction. Records are inserted one at a time; a leaf that
overflows its capacity subdivides into eight children at the midpoint of its
box on all three axes and redistributes its records. After insertion, a
finalize pass assigns every interior node a brightest-first sample of its
subtree, capped at the per-node capacity - the payload rendered when the
whole subtree is represented by that single node at coarse LOD.
*/

////////////////////////////////////////////////////////////////////////////////

type buildNode struct {
	bounds   Box
	depth    uint8
	children *[8]*buildNode

	// Leaf: the records assigned to this octant. Interior: the LOD sample,
	// populated by finalize.
	records []catalog.StarRecord

	// Stars held by leaves of this subtree.
	leafStars uint64
}

// Tree is a fully built, not yet flushed octree. It holds every record in
// memory; Flush serializes it and releases that memory.
type Tree struct {
	root       *buildNode
	layout     catalog.Layout
	cfg        Config
	totalStars uint64
}

// Build partitions a dataset into an octree. Records that do not conform to
// the dataset layout fail the whole build; no partial tree is produced.
func Build(ctx context.Context, ds *catalog.Dataset, cfg Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ds.Layout.Validate(ds.Records); err != nil {
		return nil, err
	}
	root := &buildNode{bounds: rootBounds(ds.Records)}
	for _, rec := range ds.Records {
		root.insert(rec, cfg)
	}
	root.finalize(cfg)
	log.Infow(ctx, "octree built",
		"stars", len(ds.Records),
		"maxStarsPerNode", cfg.MaxStarsPerNode,
		"maxDepth", cfg.MaxDepth,
	)
	return &Tree{
		root:       root,
		layout:     ds.Layout,
		cfg:        cfg,
		totalStars: uint64(len(ds.Records)),
	}, nil
}

// TotalStars returns the number of records the tree was built from.
func (t *Tree) TotalStars() uint64 {
	return t.totalStars
}

// rootBounds computes a cube centered on the origin that covers every record
// position. A cube keeps octants cubical at every depth.
func rootBounds(records []catalog.StarRecord) Box {
	extent := float32(1)
	for _, rec := range records {
		for i := 0; i < 3; i++ {
			if v := float32(math.Abs(float64(rec.Position[i]))); v > extent {
				extent = v
			}
		}
	}
	// Nudge outward so boundary points are strictly interior.
	extent *= 1.001
	return Box{
		Min: mgl32.Vec3{-extent, -extent, -extent},
		Max: mgl32.Vec3{extent, extent, extent},
	}
}

func (n *buildNode) insert(rec catalog.StarRecord, cfg Config) {
	n.leafStars++
	if n.children != nil {
		octant := n.bounds.OctantFor(rec.Position)
		n.children[octant].insert(rec, cfg)
		return
	}
	n.records = append(n.records, rec)
	if len(n.records) > cfg.MaxStarsPerNode && int(n.depth) < cfg.MaxDepth {
		n.subdivide(cfg)
	}
}

func (n *buildNode) subdivide(cfg Config) {
	children := &[8]*buildNode{}
	for i := range children {
		children[i] = &buildNode{
			bounds: n.bounds.Octant(i),
			depth:  n.depth + 1,
		}
	}
	n.children = children
	records := n.records
	n.records = nil
	for _, rec := range records {
		child := children[n.bounds.OctantFor(rec.Position)]
		child.records = append(child.records, rec)
		child.leafStars++
	}
	// Redistribution can leave a single octant over capacity.
	for _, child := range children {
		if len(child.records) > cfg.MaxStarsPerNode && int(child.depth) < cfg.MaxDepth {
			child.subdivide(cfg)
		}
	}
}

// finalize populates interior nodes with their LOD samples, bottom-up. The
// sample is the brightest MaxStarsPerNode stars of the subtree (lowest
// absolute magnitude first), merged from the children's own samples.
func (n *buildNode) finalize(cfg Config) {
	if n.children == nil {
		return
	}
	var merged []catalog.StarRecord
	for _, child := range n.children {
		child.finalize(cfg)
		merged = append(merged, child.records...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].AbsMagnitude < merged[j].AbsMagnitude
	})
	if len(merged) > cfg.MaxStarsPerNode {
		merged = merged[:cfg.MaxStarsPerNode]
	}
	n.records = append([]catalog.StarRecord(nil), merged...)
}
