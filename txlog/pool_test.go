package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_EvictsOldestWhenFull(t *testing.T) {
	p := NewPool(2)
	tx1 := NewTransaction("tx1", NewHLC("n1", 1), nil, "a", regOp())
	tx2 := NewTransaction("tx2", NewHLC("n1", 1), nil, "a", regOp())
	tx3 := NewTransaction("tx3", NewHLC("n1", 1), nil, "a", regOp())

	p.Add(tx1)
	p.Add(tx2)
	p.Add(tx3)

	assert.Equal(t, 2, p.Size())
	_, ok := p.Get("tx1")
	assert.False(t, ok)
	_, ok = p.Get("tx3")
	assert.True(t, ok)
}

func TestPool_RemoveDropsFromOrder(t *testing.T) {
	p := NewPool(5)
	tx1 := NewTransaction("tx1", NewHLC("n1", 1), nil, "a", regOp())
	p.Add(tx1)

	removed, ok := p.Remove("tx1")
	assert.True(t, ok)
	assert.Equal(t, tx1, removed)
	assert.Equal(t, 0, p.Size())
	assert.Empty(t, p.All())
}
