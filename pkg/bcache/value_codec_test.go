package bcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	cases := []Value{
		BoolValue(true),
		BoolValue(false),
		IntValue(0),
		IntValue(-123456),
		FloatValue(1.5),
		FloatValue(-0.001),
		SequenceValue([]Value{IntValue(1), IntValue(2), IntValue(3)}),
		MappingValue(map[string]Value{"a": IntValue(1), "b": IntValue(2)}),
	}

	for _, v := range cases {
		payload, isBytes, err := encodeValue(v)
		require.NoError(t, err)
		assert.False(t, isBytes)

		got, err := decodeValue(payload, isBytes, false)
		require.NoError(t, err)
		assert.True(t, v.Equal(got), "got %+v, want %+v", got, v)
	}
}

func TestEncodeTopLevelStringIsRawBytes(t *testing.T) {
	payload, isBytes, err := encodeValue(StringValue("123")) // a "numeric string"
	require.NoError(t, err)
	require.True(t, isBytes)
	assert.Equal(t, []byte("123"), payload)

	got, err := decodeValue(payload, isBytes, false)
	require.NoError(t, err)

	s, ok := got.String()
	require.True(t, ok)
	assert.Equal(t, "123", s)
}

func TestEncodeBytesIsRawPassthrough(t *testing.T) {
	payload, isBytes, err := encodeValue(BytesValue([]byte{0x00, 0xff}))
	require.NoError(t, err)
	assert.True(t, isBytes)
	assert.Equal(t, []byte{0x00, 0xff}, payload)
}

func TestDecodeAsMappingOption(t *testing.T) {
	payload, isBytes, err := encodeValue(MappingValue(map[string]Value{"0": IntValue(1), "1": IntValue(2)}))
	require.NoError(t, err)

	asSeq, err := decodeValue(payload, isBytes, false)
	require.NoError(t, err)
	assert.Equal(t, KindSequence, asSeq.Kind())

	asMapping, err := decodeValue(payload, isBytes, true)
	require.NoError(t, err)
	assert.Equal(t, KindMapping, asMapping.Kind())

	mapping, _ := asMapping.Mapping()
	assert.Equal(t, map[string]Value{"0": IntValue(1), "1": IntValue(2)}, mapping)
}
