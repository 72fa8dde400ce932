/*
Package lod implements the per-frame visibility and level-of-detail
traversal. Walking the octree against the current view-projection, it
classifies every reachable node: culled (outside the frustum), terminal (its
screen-space footprint is small enough that it stands in for its entire
subtree), or superseded (large enough that its children carry the detail
instead). The result is pure classification - no I/O happens here; the
streaming manager turns the wanted set into loads and evictions.

Along any camera ray at most one node is wanted: the unique
ancestor-or-descendant level picked by the pixel-area test. The wanted set
is therefore an antichain in the tree order.
*/
package lod

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/astrovis/starstream/octree"
)

// DefaultPixelThreshold is the screen-space footprint, in squared pixels,
// below which a node is rendered in place of its subtree.
const DefaultPixelThreshold = 256

// Frame carries the per-frame view state the traversal depends on.
type Frame struct {
	ViewProjection mgl32.Mat4
	ScreenWidth    int
	ScreenHeight   int

	// PixelThreshold is the LOD cutoff in squared pixels. Zero selects
	// DefaultPixelThreshold.
	PixelThreshold float64
}

func (f Frame) threshold() float64 {
	if f.PixelThreshold == 0 {
		return DefaultPixelThreshold
	}
	return f.PixelThreshold
}

// Residency is the traversal's read-only view of which nodes are fully
// resident (packed into GPU buffers).
type Residency interface {
	Resident(octree.NodeID) bool
	ResidentNodes() []octree.NodeID
}

// Result is the classification produced by one traversal.
type Result struct {
	// ToKeep is the full wanted set: every terminal node with stars.
	ToKeep []octree.NodeID

	// ToLoad is the subset of ToKeep not currently resident.
	ToLoad []octree.NodeID

	// DeltaStars is the star count of wanted-but-not-resident nodes minus
	// that of resident-but-not-wanted nodes: the change the renderer would
	// see if every load and eviction implied by this result landed. It is
	// measured against the residency view per call, not against previous
	// results; when loads can be deferred, summing deltas across frames
	// recounts pending nodes. Running totals belong to the residency owner.
	DeltaStars int64
}

// Traverse classifies the octree's nodes for the given frame. It never
// blocks and performs no I/O.
func Traverse(idx *octree.Index, frame Frame, residency Residency) Result {
	var result Result
	keep := make(map[octree.NodeID]bool)
	threshold := frame.threshold()

	var visit func(id octree.NodeID)
	visit = func(id octree.NodeID) {
		node, ok := idx.Node(id)
		if !ok {
			return
		}
		if node.StarCount == 0 && !node.HasChildren() {
			return
		}
		corners := node.Bounds.Corners()
		area, visible := projectedArea(frame, corners)
		if !visible {
			return
		}
		children, hasChildren := idx.Children(id)
		if !hasChildren || area <= threshold {
			if node.StarCount == 0 {
				return
			}
			keep[id] = true
			result.ToKeep = append(result.ToKeep, id)
			if !residency.Resident(id) {
				result.ToLoad = append(result.ToLoad, id)
				result.DeltaStars += int64(node.StarCount)
			}
			return
		}
		// Detail superseded by children; the node itself is not wanted.
		for _, child := range children {
			visit(child)
		}
	}
	visit(idx.Root())

	for _, id := range residency.ResidentNodes() {
		if keep[id] {
			continue
		}
		if node, ok := idx.Node(id); ok {
			result.DeltaStars -= int64(node.StarCount)
		}
	}
	return result
}

// Clip-plane outcode bits, one per frustum plane.
const (
	outLeft = 1 << iota
	outRight
	outBottom
	outTop
	outNear
	outFar
)

func outcode(v mgl32.Vec4) int {
	code := 0
	w := v.W()
	if v.X() < -w {
		code |= outLeft
	}
	if v.X() > w {
		code |= outRight
	}
	if v.Y() < -w {
		code |= outBottom
	}
	if v.Y() > w {
		code |= outTop
	}
	if v.Z() < -w {
		code |= outNear
	}
	if v.Z() > w {
		code |= outFar
	}
	return code
}

// projectedArea returns the pixel area of the screen-space bounding box of
// the projected corners, and whether the box intersects the frustum at all.
// A box straddling the camera plane cannot be measured and reports an
// unbounded area, forcing descent.
func projectedArea(frame Frame, corners [8]mgl32.Vec3) (float64, bool) {
	const unbounded = 1e18
	var clips [8]mgl32.Vec4
	and := -1
	behind := false
	for i, c := range corners {
		clips[i] = frame.ViewProjection.Mul4x1(c.Vec4(1))
		and &= outcode(clips[i])
		if clips[i].W() <= 0 {
			behind = true
		}
	}
	// All corners rejected by the same plane: the whole box is outside.
	if and != 0 {
		return 0, false
	}
	if behind {
		return unbounded, true
	}
	w, h := float64(frame.ScreenWidth), float64(frame.ScreenHeight)
	minX, minY := unbounded, unbounded
	maxX, maxY := -unbounded, -unbounded
	for _, clip := range clips {
		inv := 1 / float64(clip.W())
		x := (float64(clip.X())*inv*0.5 + 0.5) * w
		y := (float64(clip.Y())*inv*0.5 + 0.5) * h
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return (maxX - minX) * (maxY - minY), true
}
