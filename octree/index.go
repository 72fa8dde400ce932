package octree

import (
	"math"

	"github.com/astrovis/starstream/catalog"
)

/*
The flat node index. After a flush, the octree is addressed by NodeID - an
index into a breadth-first array of node descriptors. Children of a
subdivided node occupy a contiguous block of eight entries starting at the
parent's child base, so child lookup is arithmetic rather than pointer
chasing and the whole index for a billion-star catalog stays a few megabytes.
*/

////////////////////////////////////////////////////////////////////////////////

// NodeID identifies a node within an octree index.
type NodeID uint32

// InvalidNode is the sentinel for "no node".
const InvalidNode NodeID = math.MaxUint32

// NodeInfo describes one node: its spatial extent, tree position, and the
// byte range of its payload within the octree object.
type NodeInfo struct {
	Bounds    Box
	Depth     uint8
	ChildBase NodeID // first of 8 contiguous children; InvalidNode for leaves
	Parent    NodeID // InvalidNode for the root
	StarCount uint32 // records in this node's payload

	PayloadOffset uint64 // absolute offset within the octree object
	PayloadLength uint32 // stored (possibly compressed) length
	RawLength     uint32 // decompressed length
}

// HasChildren reports whether the node is subdivided.
func (n NodeInfo) HasChildren() bool {
	return n.ChildBase != InvalidNode
}

// Metadata is the global header block of an octree object.
type Metadata struct {
	MaxStarsPerNode int            `json:"maxStarsPerNode"`
	MaxDepth        int            `json:"maxDepth"`
	TotalStars      uint64         `json:"totalStars"`
	NodeCount       uint32         `json:"nodeCount"`
	Layout          catalog.Layout `json:"layout"`
	RootMin         [3]float32     `json:"rootMin"`
	RootMax         [3]float32     `json:"rootMax"`
	Compression     string         `json:"compression"`
}

// Index is the in-memory node table of a flushed octree.
type Index struct {
	meta  Metadata
	nodes []NodeInfo
}

// Root returns the root node ID.
func (idx *Index) Root() NodeID {
	return 0
}

// Node returns the descriptor for the given node ID.
func (idx *Index) Node(id NodeID) (NodeInfo, bool) {
	if int(id) >= len(idx.nodes) {
		return NodeInfo{}, false
	}
	return idx.nodes[id], true
}

// Children returns the eight child IDs of a node, or false for leaves and
// unknown IDs.
func (idx *Index) Children(id NodeID) ([8]NodeID, bool) {
	node, ok := idx.Node(id)
	if !ok || !node.HasChildren() {
		return [8]NodeID{}, false
	}
	var children [8]NodeID
	for i := range children {
		children[i] = node.ChildBase + NodeID(i)
	}
	return children, true
}

// NodeCount returns the number of nodes in the index.
func (idx *Index) NodeCount() int {
	return len(idx.nodes)
}

// TotalStars returns the number of records in the dataset's leaves.
func (idx *Index) TotalStars() uint64 {
	return idx.meta.TotalStars
}

// Layout returns the dataset layout.
func (idx *Index) Layout() catalog.Layout {
	return idx.meta.Layout
}

// Metadata returns the global header block.
func (idx *Index) Metadata() Metadata {
	return idx.meta
}

// EstimatedNodeBytes returns the CPU-resident size of a node's payload,
// used for budget reservations before the payload is read.
func (idx *Index) EstimatedNodeBytes(id NodeID) int64 {
	node, ok := idx.Node(id)
	if !ok {
		return 0
	}
	return int64(node.RawLength)
}

// DataBytes returns the summed decompressed payload sizes of all nodes - the
// CPU footprint of a fully resident dataset.
func (idx *Index) DataBytes() int64 {
	var total int64
	for _, node := range idx.nodes {
		total += int64(node.RawLength)
	}
	return total
}

// derive fills in parent links from child bases.
func (idx *Index) derive() {
	for i := range idx.nodes {
		idx.nodes[i].Parent = InvalidNode
	}
	for i, node := range idx.nodes {
		if !node.HasChildren() {
			continue
		}
		for j := NodeID(0); j < 8; j++ {
			idx.nodes[node.ChildBase+j].Parent = NodeID(i)
		}
	}
}
