package bcache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeU32RoundTrip(t *testing.T) {
	var buf [4]byte
	putU32(buf[:], 0xdeadbeef)

	got, err := decodeU32(bytes.NewReader(buf[:]), "test")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), got)
}

func TestDecodeU64RoundTrip(t *testing.T) {
	var buf [8]byte
	putU64(buf[:], 0x0123456789abcdef)

	got, err := decodeU64(bytes.NewReader(buf[:]), "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789abcdef), got)
}

func TestDecodeShortReadIsCorrupt(t *testing.T) {
	_, err := decodeU32(bytes.NewReader([]byte{1, 2}), "test")
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeU64(bytes.NewReader([]byte{1, 2, 3}), "test")
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeFlag(bytes.NewReader(nil), "test")
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeBytes(bytes.NewReader([]byte{1}), 4, "test")
	assert.ErrorIs(t, err, ErrCorrupt)
}
