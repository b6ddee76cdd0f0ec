package ioutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range cases {
		w := NewWriter()
		w.WriteVarint(v)
		r := NewReader(w.Bytes())
		got, err := r.Varint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestSignedVarintRoundTrip(t *testing.T) {
	cases := []int64{0, -1, 1, -1000, 1000, -(1 << 40), 1 << 40}
	for _, v := range cases {
		w := NewWriter()
		w.WriteSignedVarint(v)
		r := NewReader(w.Bytes())
		got, err := r.SignedVarint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestVarintMalformedOverlong(t *testing.T) {
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	buf[10] = 0x02
	r := NewReader(buf)
	_, err := r.Varint()
	require.Error(t, err)
}

func TestSetPositionBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	require.NoError(t, r.SetPosition(2))
	require.Error(t, r.SetPosition(3))
}

func TestFixedWidthRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(7)
	w.WriteUint16(300)
	w.WriteUint32(70000)
	w.WriteUint64(1 << 40)

	r := NewReader(w.Bytes())
	u8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(300), u16)

	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(70000), u32)

	u64, err := r.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)
}
