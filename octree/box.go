package octree

import "github.com/go-gl/mathgl/mgl32"

// Box is an axis-aligned bounding box in object space.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center returns the midpoint of the box.
func (b Box) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains reports whether the point lies within the box (inclusive).
func (b Box) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

// OctantFor returns the octant index of the child box containing the point.
// Bit 0 is set for the high-x half, bit 1 for high-y, bit 2 for high-z.
func (b Box) OctantFor(p mgl32.Vec3) int {
	c := b.Center()
	octant := 0
	if p.X() >= c.X() {
		octant |= 1
	}
	if p.Y() >= c.Y() {
		octant |= 2
	}
	if p.Z() >= c.Z() {
		octant |= 4
	}
	return octant
}

// Octant returns the child box for the given octant index.
func (b Box) Octant(i int) Box {
	c := b.Center()
	child := Box{Min: b.Min, Max: c}
	if i&1 != 0 {
		child.Min[0], child.Max[0] = c.X(), b.Max.X()
	}
	if i&2 != 0 {
		child.Min[1], child.Max[1] = c.Y(), b.Max.Y()
	}
	if i&4 != 0 {
		child.Min[2], child.Max[2] = c.Z(), b.Max.Z()
	}
	return child
}

// Corners returns the eight corner points of the box.
func (b Box) Corners() [8]mgl32.Vec3 {
	var corners [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		corners[i] = mgl32.Vec3{b.Min.X(), b.Min.Y(), b.Min.Z()}
		if i&1 != 0 {
			corners[i][0] = b.Max.X()
		}
		if i&2 != 0 {
			corners[i][1] = b.Max.Y()
		}
		if i&4 != 0 {
			corners[i][2] = b.Max.Z()
		}
	}
	return corners
}
