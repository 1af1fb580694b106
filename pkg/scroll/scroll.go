// Package scroll decides when proximity to the bottom of the viewport should
// load the next page.
package scroll

// DefaultThreshold is the near-bottom margin, in the geometry's units.
const DefaultThreshold = 50

// Geometry is a snapshot of the scroll container.
type Geometry struct {
	ScrollTop    float64
	ClientHeight float64
	ScrollHeight float64
}

// Gate is the fetch-side state the decision depends on.
type Gate struct {
	LastPointer float64
	Loading     bool
	Exhausted   bool
	// Suppressed is set while a text filter is active.
	Suppressed bool
}

// Policy holds the near-bottom margin.
type Policy struct {
	Threshold float64
}

// NewPolicy returns a policy with the given threshold, or DefaultThreshold
// when threshold is not positive.
func NewPolicy(threshold float64) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Policy{Threshold: threshold}
}

// NearBottom reports whether the viewport is within Threshold of the end.
func (p Policy) NearBottom(g Geometry) bool {
	return g.ScrollTop+g.ClientHeight+p.Threshold >= g.ScrollHeight
}

// ShouldFetch is the trigger rule: near the bottom, scrolled further down
// than the last trigger, and nothing gating it.
func (p Policy) ShouldFetch(g Geometry, gate Gate) bool {
	if gate.Loading || gate.Exhausted || gate.Suppressed {
		return false
	}
	return p.NearBottom(g) && g.ScrollTop > gate.LastPointer
}
