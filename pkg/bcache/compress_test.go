package bcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZlibCompressorRoundTrip(t *testing.T) {
	comp := newZlibCompressor()

	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("hello world"),
		make([]byte, 1<<16),
	}

	for _, data := range cases {
		compressed, err := comp.compress(data)
		require.NoError(t, err)

		decompressed, err := comp.decompress(compressed)
		require.NoError(t, err)
		// nil and empty inputs compress identically, so compare contents.
		assert.Equal(t, string(data), string(decompressed))
	}
}

func TestZlibDecompressInvalidStreamFails(t *testing.T) {
	comp := newZlibCompressor()

	_, err := comp.decompress([]byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrCodecError)
}
