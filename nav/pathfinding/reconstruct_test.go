package pathfinding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct_CycleIsCapped(t *testing.T) {
	p, err := New(3, 1)
	require.NoError(t, err)

	a, _ := p.Node(0, 0)
	b, _ := p.Node(1, 0)
	c, _ := p.Node(2, 0)
	c.CameFrom = b
	b.CameFrom = c

	path, err := p.reconstruct(a, c)
	assert.ErrorIs(t, err, ErrBrokenPath)
	assert.Nil(t, path)
}

func TestReconstruct_ChainMissesStart(t *testing.T) {
	p, err := New(3, 1)
	require.NoError(t, err)

	a, _ := p.Node(0, 0)
	b, _ := p.Node(1, 0)
	c, _ := p.Node(2, 0)
	c.CameFrom = b

	_, err = p.reconstruct(a, c)
	assert.ErrorIs(t, err, ErrBrokenPath)
}

func TestAddCost_Saturates(t *testing.T) {
	assert.Equal(t, Unreached, addCost(Unreached, 14))
	assert.Equal(t, Unreached, addCost(Unreached-5, 10))
	assert.Equal(t, 24, addCost(10, 14))
}

func TestSearch_ResetsScratchState(t *testing.T) {
	p, err := New(4, 4)
	require.NoError(t, err)

	_, err = p.FindPath(0, 0, 3, 3)
	require.NoError(t, err)

	// A search elsewhere must not see back-references from the previous one.
	_, err = p.FindPath(3, 0, 3, 0)
	require.NoError(t, err)
	p.grid.Each(func(x, y int, n *PathNode) {
		assert.Nil(t, n.CameFrom, "%d,%d", x, y)
		if x != 3 || y != 0 {
			assert.Equal(t, Unreached, n.GCost)
		}
	})
}
