package octree

import (
	"context"

	"github.com/pierrec/lz4/v4"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/storage"
)

// LoadNodeData reads and decodes one node's payload from the octree object.
// Failures come back as StorageReadError: the streaming path logs and skips
// the node rather than aborting the frame.
func (idx *Index) LoadNodeData(
	ctx context.Context,
	provider storage.Provider,
	object string,
	id NodeID,
) ([]catalog.StarRecord, error) {
	node, ok := idx.Node(id)
	if !ok {
		return nil, newStorageReadError(id, ErrInvalidNode)
	}
	if node.PayloadLength == 0 {
		return nil, nil
	}
	data, err := provider.GetRange(ctx, object, int64(node.PayloadOffset), int64(node.PayloadLength))
	if err != nil {
		return nil, newStorageReadError(id, err)
	}
	if node.PayloadLength < node.RawLength {
		raw := make([]byte, node.RawLength)
		n, err := lz4.UncompressBlock(data, raw)
		if err != nil {
			return nil, newStorageReadError(id, err)
		}
		data = raw[:n]
	}
	records, err := catalog.Unmarshal(data, idx.meta.Layout)
	if err != nil {
		return nil, newStorageReadError(id, err)
	}
	return records, nil
}
