package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHLC_TickAdvancesLogicalWhenClockStalls(t *testing.T) {
	h := NewHLC("n1", 100)
	next := h.Tick(100)
	assert.Equal(t, uint64(100), next.Physical)
	assert.Equal(t, uint32(1), next.Logical)
}

func TestHLC_TickResetsLogicalWhenClockAdvances(t *testing.T) {
	h := HLC{Physical: 100, Logical: 5, NodeID: "n1"}
	next := h.Tick(200)
	assert.Equal(t, uint64(200), next.Physical)
	assert.Equal(t, uint32(0), next.Logical)
}

func TestHLC_CompareOrdersByPhysicalThenLogicalThenNode(t *testing.T) {
	a := HLC{Physical: 1, Logical: 0, NodeID: "a"}
	b := HLC{Physical: 1, Logical: 1, NodeID: "a"}
	c := HLC{Physical: 1, Logical: 1, NodeID: "b"}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
	assert.Equal(t, 1, c.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestSkewBound(t *testing.T) {
	remote := HLC{Physical: 1000, NodeID: "n"}
	assert.True(t, SkewBound(1005, remote, 10))
	assert.False(t, SkewBound(1050, remote, 10))
}

func TestHLC_IsValid(t *testing.T) {
	assert.False(t, HLC{}.IsValid())
	assert.True(t, NewHLC("n1", 1).IsValid())
}
