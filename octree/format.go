package octree

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/storage"
	"github.com/astrovis/starstream/util"
	"github.com/astrovis/starstream/util/log"
)

/*
The octree object format, one immutable object per dataset:

	magic "SSOC" | version u8 | metaLen u32 | metadata JSON
	node table: nodeCount fixed-size entries (breadth-first order)
	payload region: contiguous per-node payloads, lz4 block compressed

A node table entry is 49 bytes: depth u8, childBase u32, starCount u32,
payloadOffset u64, payloadLength u32, rawLength u32, bounds 6xf32. Offsets
are absolute within the object. A payload whose stored length equals its raw
length is stored uncompressed; lz4 otherwise.
*/

////////////////////////////////////////////////////////////////////////////////

var formatMagic = [4]byte{'S', 'S', 'O', 'C'}

const (
	formatVersion = uint8(1)
	nodeEntrySize = 49
	headerFixed   = 9 // magic + version + metaLen
)

// Flush serializes the tree to w and returns the resulting index. Build-time
// record storage is released: after a successful flush the tree is empty and
// node payloads are only reachable through the written object.
func (t *Tree) Flush(ctx context.Context, w io.Writer) (*Index, error) {
	if t.root == nil {
		return nil, newFormatError("tree already flushed")
	}

	// Breadth-first node order; children of node i form a contiguous block.
	order := []*buildNode{t.root}
	childBase := []NodeID{InvalidNode}
	for i := 0; i < len(order); i++ {
		if order[i].children == nil {
			continue
		}
		childBase[i] = NodeID(len(order))
		for _, child := range order[i].children {
			order = append(order, child)
			childBase = append(childBase, InvalidNode)
		}
	}

	// Marshal and compress payloads. Compression dominates flush time for
	// large catalogs, so it is fanned out; writes below stay in node order.
	payloads := make([][]byte, len(order))
	rawLens := make([]uint32, len(order))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, node := range order {
		i, node := i, node
		g.Go(func() error {
			raw, err := catalog.Marshal(node.records, t.layout)
			if err != nil {
				return err
			}
			rawLens[i] = uint32(len(raw))
			payloads[i] = compressPayload(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to serialize payloads: %w", err)
	}

	meta := Metadata{
		MaxStarsPerNode: t.cfg.MaxStarsPerNode,
		MaxDepth:        t.cfg.MaxDepth,
		TotalStars:      t.totalStars,
		NodeCount:       uint32(len(order)),
		Layout:          t.layout,
		RootMin:         [3]float32(t.root.bounds.Min),
		RootMax:         [3]float32(t.root.bounds.Max),
		Compression:     "lz4",
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// Assign payload offsets and build the index.
	idx := &Index{meta: meta, nodes: make([]NodeInfo, len(order))}
	offset := uint64(headerFixed + len(metaBytes) + nodeEntrySize*len(order))
	for i, node := range order {
		idx.nodes[i] = NodeInfo{
			Bounds:        node.bounds,
			Depth:         node.depth,
			ChildBase:     childBase[i],
			StarCount:     uint32(len(node.records)),
			PayloadOffset: offset,
			PayloadLength: uint32(len(payloads[i])),
			RawLength:     rawLens[i],
		}
		offset += uint64(len(payloads[i]))
	}
	idx.derive()

	header := make([]byte, headerFixed)
	n := copy(header, formatMagic[:])
	n += util.U8(header[n:], formatVersion)
	util.U32(header[n:], uint32(len(metaBytes)))
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(metaBytes); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	entry := make([]byte, nodeEntrySize)
	for i := range order {
		marshalNodeEntry(entry, idx.nodes[i])
		if _, err := w.Write(entry); err != nil {
			return nil, fmt.Errorf("failed to write node table: %w", err)
		}
	}
	for _, payload := range payloads {
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("failed to write payloads: %w", err)
		}
	}

	log.Infow(ctx, "octree flushed",
		"nodes", len(order),
		"stars", t.totalStars,
		"bytes", offset,
	)
	t.root = nil
	return idx, nil
}

// ReadIndex opens an octree object and loads its header and node table.
func ReadIndex(ctx context.Context, provider storage.Provider, object string) (*Index, error) {
	header, err := provider.GetRange(ctx, object, 0, headerFixed)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if [4]byte(header[:4]) != formatMagic {
		return nil, newFormatError("bad magic")
	}
	var version uint8
	var metaLen uint32
	n := 4
	n += util.ReadU8(header[n:], &version)
	util.ReadU32(header[n:], &metaLen)
	if version != formatVersion {
		return nil, newFormatError("unsupported version %d", version)
	}

	metaBytes, err := provider.GetRange(ctx, object, headerFixed, int64(metaLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, newFormatError("undecodable metadata: %v", err)
	}
	if meta.NodeCount == 0 {
		return nil, newFormatError("empty node table")
	}

	tableOffset := int64(headerFixed) + int64(metaLen)
	table, err := provider.GetRange(ctx, object, tableOffset, int64(meta.NodeCount)*nodeEntrySize)
	if err != nil {
		return nil, fmt.Errorf("failed to read node table: %w", err)
	}
	idx := &Index{meta: meta, nodes: make([]NodeInfo, meta.NodeCount)}
	for i := range idx.nodes {
		unmarshalNodeEntry(table[i*nodeEntrySize:], &idx.nodes[i])
		if node := idx.nodes[i]; node.HasChildren() && uint32(node.ChildBase)+8 > meta.NodeCount {
			return nil, newFormatError("node %d has out-of-range children", i)
		}
	}
	idx.derive()
	return idx, nil
}

func marshalNodeEntry(dst []byte, node NodeInfo) {
	n := util.U8(dst, node.Depth)
	n += util.U32(dst[n:], uint32(node.ChildBase))
	n += util.U32(dst[n:], node.StarCount)
	n += util.U64(dst[n:], node.PayloadOffset)
	n += util.U32(dst[n:], node.PayloadLength)
	n += util.U32(dst[n:], node.RawLength)
	for i := 0; i < 3; i++ {
		n += util.F32(dst[n:], node.Bounds.Min[i])
	}
	for i := 0; i < 3; i++ {
		n += util.F32(dst[n:], node.Bounds.Max[i])
	}
}

func unmarshalNodeEntry(src []byte, node *NodeInfo) {
	var childBase uint32
	n := util.ReadU8(src, &node.Depth)
	n += util.ReadU32(src[n:], &childBase)
	n += util.ReadU32(src[n:], &node.StarCount)
	n += util.ReadU64(src[n:], &node.PayloadOffset)
	n += util.ReadU32(src[n:], &node.PayloadLength)
	n += util.ReadU32(src[n:], &node.RawLength)
	node.ChildBase = NodeID(childBase)
	for i := 0; i < 3; i++ {
		n += util.ReadF32(src[n:], &node.Bounds.Min[i])
	}
	for i := 0; i < 3; i++ {
		n += util.ReadF32(src[n:], &node.Bounds.Max[i])
	}
}

// compressPayload lz4-compresses a payload, falling back to raw storage when
// compression does not help. A stored length equal to the raw length marks
// the raw encoding.
func compressPayload(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil || n == 0 || n >= len(raw) {
		return raw
	}
	return dst[:n]
}
