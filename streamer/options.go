package streamer

/*
Configuration for the streaming manager. Values arrive through functional
options and are validated once at construction; there is no live tweaking
surface inside the core.
*/

////////////////////////////////////////////////////////////////////////////////

// Defaults for streaming behavior.
const (
	// DefaultCacheFraction is the share of the CPU ceiling granted to the
	// demoted-node cache.
	DefaultCacheFraction = 0.25

	// DefaultAncestorLayers and DefaultDescendantLayers size the prefetch
	// window around visible nodes for datasets that exceed the CPU budget.
	DefaultAncestorLayers   = 1
	DefaultDescendantLayers = 1
)

type config struct {
	pixelThreshold   float64
	cacheFraction    float64
	ancestorLayers   int
	descendantLayers int
	forcePrefetch    bool
}

// Option is an option for the streaming manager.
type Option func(*config)

// WithPixelThreshold sets the LOD cutoff in squared pixels. A node whose
// projected bounding box covers at most this many pixels represents its
// entire subtree.
func WithPixelThreshold(pixels float64) Option {
	return func(c *config) {
		c.pixelThreshold = pixels
	}
}

// WithCacheFraction sets the share of the CPU budget ceiling the manager may
// fill with demoted node payloads. Zero disables the cache: evicted nodes
// release their CPU copy immediately.
func WithCacheFraction(fraction float64) Option {
	return func(c *config) {
		c.cacheFraction = fraction
	}
}

// WithSurroundingLayers sets how many ancestor and descendant layers around
// each visible node are prefetched into the CPU cache. The prefetch window
// only activates when the dataset cannot fit in the CPU budget.
func WithSurroundingLayers(ancestors int, descendants int) Option {
	return func(c *config) {
		c.ancestorLayers = ancestors
		c.descendantLayers = descendants
	}
}

// WithForcedPrefetch activates the prefetch window regardless of dataset
// size. Intended for tests.
func WithForcedPrefetch() Option {
	return func(c *config) {
		c.forcePrefetch = true
	}
}
