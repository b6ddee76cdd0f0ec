package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileIDRoundTrip(t *testing.T) {
	for level := uint8(0); level <= 14; level++ {
		n := uint32(1) << level
		step := n/8 + 1
		for x := uint32(0); x < n; x += step {
			for y := uint32(0); y < n; y += step {
				c := Coord{Level: level, X: x, Y: y}
				id := c.ID()
				got, err := FromID(id)
				require.NoError(t, err)
				assert.Equal(t, c, got)
			}
		}
	}
}

func TestLevelsAreContiguousRanges(t *testing.T) {
	for level := uint8(0); level < 8; level++ {
		start := levelStart(level)
		nextStart := levelStart(level + 1)
		assert.Equal(t, start+uint64(1<<level)*uint64(1<<level), nextStart)

		c := Coord{Level: level, X: 0, Y: 0}
		assert.GreaterOrEqual(t, c.ID(), start)
		assert.Less(t, c.ID(), nextStart)
	}
}

func TestParentID(t *testing.T) {
	child := Coord{Level: 5, X: 3, Y: 7}
	parent := Coord{Level: 4, X: 1, Y: 3}
	assert.Equal(t, parent.ID(), ParentID(child.ID()))
}

func TestInvalidCoord(t *testing.T) {
	_, err := New(32, 0, 0)
	require.Error(t, err)

	_, err = New(2, 4, 0)
	require.Error(t, err)
}
