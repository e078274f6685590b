package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdempotent(t *testing.T) {
	for _, name := range []string{NameJSON, NameCBOR, NameAuto} {
		c1, err := Resolve(name)
		require.NoError(t, err)

		c2, err := Resolve(c1)
		require.NoError(t, err)

		c3, err := Resolve(name)
		require.NoError(t, err)

		assert.Equal(t, c2, c3)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	msg := map[string]any{"op": "publish", "topic": "/t", "msg": map[string]any{"data": 1.0}}

	encoded, err := JSON.Encode(msg)
	require.NoError(t, err)
	text, ok := encoded.(string)
	require.True(t, ok)

	decoded, err := JSON.Decode(text)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestCBORRoundTripBytes(t *testing.T) {
	msg := map[string]any{"op": "publish", "topic": "/t", "id": int64(7)}

	encoded, err := CBOR.Encode(msg)
	require.NoError(t, err)
	b, ok := encoded.([]byte)
	require.True(t, ok)

	decoded, err := CBOR.Decode(b)
	require.NoError(t, err)
	m, ok := decoded.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "publish", m["op"])
	assert.Equal(t, "/t", m["topic"])
}

func TestSelfContainedCBORRoundTrip(t *testing.T) {
	msg := map[string]any{"a": int64(1)}

	encoded, err := SelfContainedCBOR.Encode(msg)
	require.NoError(t, err)

	decoded, err := SelfContainedCBOR.Decode(encoded.([]byte))
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestCBORDecodeFallsBackToJSONForText(t *testing.T) {
	decoded, err := CBOR.Decode(`{"op":"error","error":"boom"}`)
	require.NoError(t, err)
	m := decoded.(map[string]any)
	assert.Equal(t, "boom", m["error"])
}

func TestAutoEncodeAlwaysJSON(t *testing.T) {
	encoded, err := Auto.Encode(map[string]any{"op": "publish"})
	require.NoError(t, err)
	_, ok := encoded.(string)
	assert.True(t, ok)
}

func TestAutoDecodeBytesTriesCBORThenJSON(t *testing.T) {
	// Valid JSON that is not valid CBOR by coincidence would still decode
	// via the JSON fallback; here we just confirm bytes round-trip via CBOR.
	native, err := CBOR.Encode(map[string]any{"op": "publish"})
	require.NoError(t, err)

	decoded, err := Auto.Decode(native)
	require.NoError(t, err)
	m := decoded.(map[string]any)
	assert.Equal(t, "publish", m["op"])
}

func TestResolveUnknownNameFails(t *testing.T) {
	_, err := Resolve("xml")
	assert.Error(t, err)
}
