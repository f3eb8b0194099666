// Package txlog implements the L3 transactional log: content-addressed,
// causally-ordered transactions appended over the graph projection.
// Cycle detection and topological ordering of the causal DAG reuse
// kotobadb.dev/kotobadb/graph's cycle.go.
package txlog

import "fmt"

// HLC is a Hybrid Logical Clock timestamp: a physical wall-clock
// reading paired with a logical tiebreak counter and the node that
// produced it, giving every transaction a total order even across
// clock skew.
type HLC struct {
	Physical uint64
	Logical  uint32
	NodeID   string
}

// NewHLC starts a clock reading at physical with logical 0.
func NewHLC(nodeID string, physical uint64) HLC {
	return HLC{Physical: physical, NodeID: nodeID}
}

// IsValid rejects the zero-value HLC; a genuine reading always has a
// node ID and the physical component set by the clock source.
func (h HLC) IsValid() bool {
	return h.NodeID != ""
}

// Tick advances the clock on a local event: if the wall clock has
// moved forward, logical resets to zero; otherwise logical increments,
// the standard HLC send/local-event rule.
func (h HLC) Tick(wallClock uint64) HLC {
	if wallClock > h.Physical {
		return HLC{Physical: wallClock, Logical: 0, NodeID: h.NodeID}
	}
	return HLC{Physical: h.Physical, Logical: h.Logical + 1, NodeID: h.NodeID}
}

// Receive merges a remote HLC reading into the local clock on message
// receipt, the standard HLC receive rule.
func (h HLC) Receive(wallClock uint64, remote HLC) HLC {
	max := h.Physical
	if remote.Physical > max {
		max = remote.Physical
	}
	if wallClock > max {
		return HLC{Physical: wallClock, Logical: 0, NodeID: h.NodeID}
	}
	switch {
	case h.Physical == remote.Physical && h.Physical == max:
		logical := h.Logical
		if remote.Logical > logical {
			logical = remote.Logical
		}
		return HLC{Physical: max, Logical: logical + 1, NodeID: h.NodeID}
	case h.Physical == max:
		return HLC{Physical: max, Logical: h.Logical + 1, NodeID: h.NodeID}
	case remote.Physical == max:
		return HLC{Physical: max, Logical: remote.Logical + 1, NodeID: h.NodeID}
	default:
		return HLC{Physical: max, Logical: 0, NodeID: h.NodeID}
	}
}

// Compare gives the deterministic tie-break total order used for
// replay: (physical, logical, nodeID) lexicographic.
func (h HLC) Compare(other HLC) int {
	if h.Physical != other.Physical {
		if h.Physical < other.Physical {
			return -1
		}
		return 1
	}
	if h.Logical != other.Logical {
		if h.Logical < other.Logical {
			return -1
		}
		return 1
	}
	switch {
	case h.NodeID < other.NodeID:
		return -1
	case h.NodeID > other.NodeID:
		return 1
	default:
		return 0
	}
}

func (h HLC) String() string {
	return fmt.Sprintf("%d.%d@%s", h.Physical, h.Logical, h.NodeID)
}

// SkewBound reports whether remote's physical component is within
// maxSkew of local wall-clock time, the check Log.Append performs
// before accepting a transaction.
func SkewBound(localWallClock uint64, remote HLC, maxSkew uint64) bool {
	if remote.Physical > localWallClock {
		return remote.Physical-localWallClock <= maxSkew
	}
	return localWallClock-remote.Physical <= maxSkew
}
