/*
Package streamer implements the per-frame streaming and eviction manager.
Each frame it runs the LOD traversal, turns the wanted-node set into loads
and evictions under the CPU and GPU budgets, and hands the packed buffers to
the render submission. Budget refusals are silent deferrals - the node is
simply retried on a later frame - and per-node storage failures are logged
and skipped; nothing on this path ever aborts a frame.
*/
package streamer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/astrovis/starstream/budget"
	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/gpubuf"
	"github.com/astrovis/starstream/lod"
	"github.com/astrovis/starstream/octree"
	"github.com/astrovis/starstream/render"
	"github.com/astrovis/starstream/storage"
	"github.com/astrovis/starstream/util"
	"github.com/astrovis/starstream/util/log"
)

// ResidencyState is the lifecycle position of a node.
type ResidencyState int

const (
	// NotLoaded: known to exist on disk only. Absent from the resident map.
	NotLoaded ResidencyState = iota
	// CpuLoaded: payload decoded in RAM, not yet packed into a GPU buffer.
	CpuLoaded
	// CpuAndGpuLoaded: packed into a GPU slot and renderable.
	CpuAndGpuLoaded
)

type residentNode struct {
	state    ResidencyState
	records  []catalog.StarRecord
	cpuBytes int64
	gpuBytes int64
	slot     int
}

// Manager is the streaming and eviction manager.
type Manager struct {
	idx        *octree.Index
	provider   storage.Provider
	object     string
	budget     *budget.Tracker
	strategy   gpubuf.Strategy
	slots      *gpubuf.SlotAllocator
	submission render.Submission

	resident map[octree.NodeID]*residentNode
	cache    *util.LRU[octree.NodeID, []catalog.StarRecord]

	renderedStars int64
	rebuilding    atomic.Bool
	prefetch      bool
	cfg           config
}

// NewManager wires a streaming manager over an opened octree index. All
// collaborators are injected; the manager owns no globals.
func NewManager(
	idx *octree.Index,
	provider storage.Provider,
	object string,
	tracker *budget.Tracker,
	strategy gpubuf.Strategy,
	submission render.Submission,
	opts ...Option,
) (*Manager, error) {
	if idx == nil || provider == nil || tracker == nil || strategy == nil {
		return nil, errors.New("all collaborators must be provided")
	}
	if submission == nil {
		submission = render.NopSubmission{}
	}
	cfg := config{
		pixelThreshold:   lod.DefaultPixelThreshold,
		cacheFraction:    DefaultCacheFraction,
		ancestorLayers:   DefaultAncestorLayers,
		descendantLayers: DefaultDescendantLayers,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Manager{
		idx:        idx,
		provider:   provider,
		object:     object,
		budget:     tracker,
		strategy:   strategy,
		slots:      gpubuf.NewSlotAllocator(strategy.MaxSlots()),
		submission: submission,
		resident:   make(map[octree.NodeID]*residentNode),
		cfg:        cfg,
	}
	if cacheBytes := int64(cfg.cacheFraction * float64(tracker.Ceiling(budget.CPU))); cacheBytes > 0 {
		m.cache = util.NewLRU[octree.NodeID, []catalog.StarRecord](
			cacheBytes,
			func(_ octree.NodeID, _ []catalog.StarRecord, size int64) {
				tracker.Release(budget.CPU, uint64(size))
			},
		)
	}
	// The prefetch window earns its I/O only when the dataset cannot be
	// fully resident anyway.
	m.prefetch = cfg.forcePrefetch || idx.DataBytes() > int64(tracker.Ceiling(budget.CPU))
	return m, nil
}

// Update runs one frame: traversal, streaming decisions, packing, and
// submission, in that order. During a rebuild it returns immediately.
func (m *Manager) Update(ctx context.Context, frame lod.Frame) error {
	if m.rebuilding.Load() {
		return nil
	}
	frame.PixelThreshold = m.cfg.pixelThreshold
	result := lod.Traverse(m.idx, frame, m)
	m.applyTraversal(ctx, result)
	if m.prefetch {
		m.fetchSurroundingNodes(ctx, result.ToKeep)
	}
	m.renderedStars = m.strategy.StarCount()
	m.submission.Submit(m.strategy.Draw())
	return nil
}

// Resident implements lod.Residency.
func (m *Manager) Resident(id octree.NodeID) bool {
	rn, ok := m.resident[id]
	return ok && rn.state == CpuAndGpuLoaded
}

// ResidentNodes implements lod.Residency.
func (m *Manager) ResidentNodes() []octree.NodeID {
	ids := make([]octree.NodeID, 0, len(m.resident))
	for id, rn := range m.resident {
		if rn.state == CpuAndGpuLoaded {
			ids = append(ids, id)
		}
	}
	return ids
}

// applyTraversal turns one traversal result into loads and evictions.
// Evictions run first so their released slots and budget are available to
// this frame's loads.
func (m *Manager) applyTraversal(ctx context.Context, result lod.Result) {
	keep := make(map[octree.NodeID]bool, len(result.ToKeep))
	for _, id := range result.ToKeep {
		keep[id] = true
	}
	for id, rn := range m.resident {
		if keep[id] {
			continue
		}
		m.evict(ctx, id, rn)
	}
	for _, id := range result.ToKeep {
		rn, ok := m.resident[id]
		if !ok {
			records, cpuBytes, loaded := m.acquireCPU(ctx, id)
			if !loaded {
				continue
			}
			rn = &residentNode{state: CpuLoaded, records: records, cpuBytes: cpuBytes, slot: -1}
			m.resident[id] = rn
		}
		if rn.state == CpuLoaded {
			m.promote(ctx, id, rn)
		}
	}
}

// evict releases a node's GPU slot and demotes its CPU copy to the cache
// (or frees it outright when the cache is disabled).
func (m *Manager) evict(ctx context.Context, id octree.NodeID, rn *residentNode) {
	if rn.state == CpuAndGpuLoaded {
		if err := m.strategy.RemoveNode(ctx, rn.slot); err != nil {
			log.Warnw(ctx, "failed to clear evicted slot", "node", id, "slot", rn.slot, "error", err)
		}
		m.slots.Reissue(rn.slot)
		m.budget.Release(budget.GPU, uint64(rn.gpuBytes))
	}
	delete(m.resident, id)
	if m.cache != nil {
		m.cache.Put(id, rn.records, rn.cpuBytes)
		return
	}
	m.budget.Release(budget.CPU, uint64(rn.cpuBytes))
}

// acquireCPU obtains a node's payload: from the demoted-node cache when
// possible, otherwise from storage under a CPU budget reservation. A false
// return is normal backpressure - the node retries on a later frame.
func (m *Manager) acquireCPU(ctx context.Context, id octree.NodeID) ([]catalog.StarRecord, int64, bool) {
	if m.cache != nil {
		if records, size, ok := m.cache.Remove(id); ok {
			return records, size, true
		}
	}
	estimate := m.idx.EstimatedNodeBytes(id)
	for !m.budget.TryReserve(budget.CPU, uint64(estimate)) {
		// Wanted data outranks cached data: trim the cache before deferring.
		if m.cache == nil || !m.cache.TrimOldest() {
			return nil, 0, false
		}
	}
	records, err := m.idx.LoadNodeData(ctx, m.provider, m.object, id)
	if err != nil {
		log.Warnw(ctx, "skipping unreadable node", "node", id, "error", err)
		m.budget.Release(budget.CPU, uint64(estimate))
		return nil, 0, false
	}
	return records, estimate, true
}

// promote packs a CPU-loaded node into a GPU slot. Refusals leave the node
// CpuLoaded: cached but not renderable this frame.
func (m *Manager) promote(ctx context.Context, id octree.NodeID, rn *residentNode) {
	gpuBytes := m.strategy.SlotBytes(len(rn.records))
	if !m.budget.TryReserve(budget.GPU, uint64(gpuBytes)) {
		return
	}
	slot, ok := m.slots.Acquire()
	if !ok {
		m.budget.Release(budget.GPU, uint64(gpuBytes))
		return
	}
	if err := m.strategy.UploadNode(ctx, slot, rn.records); err != nil {
		log.Warnw(ctx, "failed to pack node", "node", id, "slot", slot, "error", err)
		m.slots.Reissue(slot)
		m.budget.Release(budget.GPU, uint64(gpuBytes))
		return
	}
	rn.slot = slot
	rn.gpuBytes = gpuBytes
	rn.state = CpuAndGpuLoaded
}

// fetchSurroundingNodes warms the CPU cache with the configured number of
// ancestor and descendant layers around each wanted node, reducing pop-in
// when the camera moves. Prefetch stops for the frame at the first budget
// refusal.
func (m *Manager) fetchSurroundingNodes(ctx context.Context, wanted []octree.NodeID) {
	if m.cache == nil {
		return
	}
	candidates := make([]octree.NodeID, 0, len(wanted)*8)
	seen := make(map[octree.NodeID]bool)
	for _, id := range wanted {
		node, ok := m.idx.Node(id)
		if !ok {
			continue
		}
		parent := node.Parent
		for layer := 0; layer < m.cfg.ancestorLayers && parent != octree.InvalidNode; layer++ {
			if !seen[parent] {
				seen[parent] = true
				candidates = append(candidates, parent)
			}
			ancestor, ok := m.idx.Node(parent)
			if !ok {
				break
			}
			parent = ancestor.Parent
		}
		frontier := []octree.NodeID{id}
		for layer := 0; layer < m.cfg.descendantLayers; layer++ {
			var next []octree.NodeID
			for _, fid := range frontier {
				children, ok := m.idx.Children(fid)
				if !ok {
					continue
				}
				for _, child := range children {
					if node, ok := m.idx.Node(child); !ok || node.StarCount == 0 {
						continue
					}
					if !seen[child] {
						seen[child] = true
						candidates = append(candidates, child)
					}
					next = append(next, child)
				}
			}
			frontier = next
		}
	}
	for _, id := range candidates {
		if _, resident := m.resident[id]; resident {
			continue
		}
		if _, cached := m.cache.Get(id); cached {
			continue
		}
		estimate := m.idx.EstimatedNodeBytes(id)
		if !m.budget.TryReserve(budget.CPU, uint64(estimate)) {
			return
		}
		records, err := m.idx.LoadNodeData(ctx, m.provider, m.object, id)
		if err != nil {
			log.Warnw(ctx, "skipping unreadable prefetch node", "node", id, "error", err)
			m.budget.Release(budget.CPU, uint64(estimate))
			continue
		}
		m.cache.Put(id, records, estimate)
	}
}

// Rebuild replaces the managed octree with one built from a new dataset.
// Rebuilds are mutually exclusive with Update: while one is in progress,
// Update degenerates to a no-op. The new tree must stay packable by the
// live strategy, whose buffers are sized once at construction; incompatible
// geometry is rejected before any state is torn down.
func (m *Manager) Rebuild(ctx context.Context, ds *catalog.Dataset, cfg octree.Config) error {
	if !m.rebuilding.CompareAndSwap(false, true) {
		return errors.New("rebuild already in progress")
	}
	defer m.rebuilding.Store(false)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.strategy.Accepts(ds.Layout, cfg.MaxStarsPerNode); err != nil {
		return fmt.Errorf("dataset not packable by %s strategy: %w", m.strategy.Name(), err)
	}
	tree, err := octree.Build(ctx, ds, cfg)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	idx, err := tree.Flush(ctx, &buf)
	if err != nil {
		return err
	}
	if err := m.provider.Put(ctx, m.object, buf.Bytes()); err != nil {
		return err
	}

	for id, rn := range m.resident {
		if rn.state == CpuAndGpuLoaded {
			if err := m.strategy.RemoveNode(ctx, rn.slot); err != nil {
				log.Warnw(ctx, "failed to clear slot during rebuild", "node", id, "error", err)
			}
			m.slots.Reissue(rn.slot)
			m.budget.Release(budget.GPU, uint64(rn.gpuBytes))
		}
		m.budget.Release(budget.CPU, uint64(rn.cpuBytes))
		delete(m.resident, id)
	}
	if m.cache != nil {
		m.cache.Reset()
	}
	m.slots = gpubuf.NewSlotAllocator(m.strategy.MaxSlots())
	m.idx = idx
	m.prefetch = m.cfg.forcePrefetch || idx.DataBytes() > int64(m.budget.Ceiling(budget.CPU))
	m.renderedStars = 0
	log.Infow(ctx, "octree rebuilt", "nodes", idx.NodeCount(), "stars", idx.TotalStars())
	return nil
}

// Close evicts everything and releases the packing strategy's buffers.
func (m *Manager) Close(ctx context.Context) {
	for id, rn := range m.resident {
		if rn.state == CpuAndGpuLoaded {
			m.slots.Reissue(rn.slot)
			m.budget.Release(budget.GPU, uint64(rn.gpuBytes))
		}
		m.budget.Release(budget.CPU, uint64(rn.cpuBytes))
		delete(m.resident, id)
	}
	if m.cache != nil {
		m.cache.Reset()
	}
	m.strategy.Close()
	log.Debugf(ctx, "streaming manager closed")
}

// Stats is a point-in-time summary of streaming state.
type Stats struct {
	RenderedStars int64
	ResidentCPU   int
	ResidentGPU   int
	CachedNodes   int
	CPUConsumed   uint64
	CPUCeiling    uint64
	GPUConsumed   uint64
	GPUCeiling    uint64
}

// Stats reports the current streaming state.
func (m *Manager) Stats() Stats {
	s := Stats{
		RenderedStars: m.renderedStars,
		CPUConsumed:   m.budget.Consumed(budget.CPU),
		CPUCeiling:    m.budget.Ceiling(budget.CPU),
		GPUConsumed:   m.budget.Consumed(budget.GPU),
		GPUCeiling:    m.budget.Ceiling(budget.GPU),
	}
	for _, rn := range m.resident {
		s.ResidentCPU++
		if rn.state == CpuAndGpuLoaded {
			s.ResidentGPU++
		}
	}
	if m.cache != nil {
		s.CachedNodes = m.cache.Len()
	}
	return s
}
