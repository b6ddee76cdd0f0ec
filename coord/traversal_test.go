package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraversalIntersectWithAnyIsIdentity(t *testing.T) {
	t1, err := New(PMTiles, 4, 256)
	require.NoError(t, err)

	got, err := t1.Intersect(Any)
	require.NoError(t, err)
	assert.Equal(t, t1, got)

	got2, err := Any.Intersect(t1)
	require.NoError(t, err)
	assert.Equal(t, t1, got2)
}

func TestTraversalIntersectCommutative(t *testing.T) {
	t1, err := New(DepthFirst, 2, 64)
	require.NoError(t, err)
	t2, err := New(AnyOrder, 8, 128)
	require.NoError(t, err)

	ab, err := t1.Intersect(t2)
	require.NoError(t, err)
	ba, err := t2.Intersect(t1)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestTraversalIntersectAssociative(t *testing.T) {
	t1, err := New(PMTiles, 1, 1024)
	require.NoError(t, err)
	t2, err := New(AnyOrder, 4, 512)
	require.NoError(t, err)
	t3, err := New(AnyOrder, 2, 256)
	require.NoError(t, err)

	ab, err := t1.Intersect(t2)
	require.NoError(t, err)
	abc, err := ab.Intersect(t3)
	require.NoError(t, err)

	bc, err := t2.Intersect(t3)
	require.NoError(t, err)
	abc2, err := t1.Intersect(bc)
	require.NoError(t, err)

	assert.Equal(t, abc, abc2)
}

func TestTraversalIntersectIncompatibleOrders(t *testing.T) {
	t1, err := New(DepthFirst, 1, 64)
	require.NoError(t, err)
	t2, err := New(PMTiles, 1, 64)
	require.NoError(t, err)

	_, err = t1.Intersect(t2)
	require.Error(t, err)
}

func TestTraversalIntersectDisjointSizes(t *testing.T) {
	t1, err := New(AnyOrder, 1, 4)
	require.NoError(t, err)
	t2, err := New(AnyOrder, 16, 64)
	require.NoError(t, err)

	_, err = t1.Intersect(t2)
	require.Error(t, err)
}

func TestTraverseAnyOrderFullPyramid(t *testing.T) {
	pyramid := NewFullPyramid(5)
	tr, err := New(AnyOrder, 1, 256)
	require.NoError(t, err)

	boxes, err := tr.TraversePyramid(pyramid)
	require.NoError(t, err)
	var got []string
	for _, b := range boxes {
		got = append(got, b.String())
	}
	assert.Equal(t, []string{
		"0: [0,0,0,0] (1)",
		"1: [0,0,1,1] (4)",
		"2: [0,0,3,3] (16)",
		"3: [0,0,7,7] (64)",
		"4: [0,0,15,15] (256)",
		"5: [0,0,31,31] (1024)",
	}, got)
}
