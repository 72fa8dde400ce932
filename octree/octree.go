/*
Package octree implements the out-of-core spatial index for star catalogs.

A tree is built once from an ingested dataset: space is partitioned
recursively into eight octants whenever a node exceeds its per-node star
capacity, down to a maximum depth. Interior nodes retain a brightest-first
sample of their subtree so a single coarse node can stand in for unseen
detail at render time. Flushing serializes the whole tree into a single
immutable object - header, node index arrays, then contiguous per-node
payloads - after which the in-memory tree holds only byte ranges and node
payloads are read back on demand through a storage provider.
*/
package octree

import "errors"

// Build parameters. Defaults follow what works well for Gaia-scale catalogs.
const (
	DefaultMaxStarsPerNode = 2000
	DefaultMaxDepth        = 12

	// maxDepthCeiling bounds configuration: beyond this the octant edge
	// lengths underflow float32 for typical catalog extents.
	maxDepthCeiling = 20
)

// Config holds the build parameters for an octree.
type Config struct {
	// MaxStarsPerNode is the subdivision trigger: a node holding more than
	// this many records is split, except at MaxDepth.
	MaxStarsPerNode int

	// MaxDepth is the maximum depth of the tree. The root is at depth 0.
	MaxDepth int
}

// Validate checks the configuration, filling zero values with defaults.
func (c *Config) Validate() error {
	if c.MaxStarsPerNode == 0 {
		c.MaxStarsPerNode = DefaultMaxStarsPerNode
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxStarsPerNode < 1 {
		return errors.New("max stars per node must be positive")
	}
	if c.MaxDepth < 1 || c.MaxDepth > maxDepthCeiling {
		return errors.New("max depth out of range")
	}
	return nil
}
