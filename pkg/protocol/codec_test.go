package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_EventPayloadNumbers(t *testing.T) {
	for _, codec := range []Codec{NewJSONCodec(), NewMsgPackCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			msg := EventMessage("job_update", map[string]any{"index": 1, "field": "title", "value": "Engineer"}).WithRef("7")

			data, err := codec.Encode(msg)
			require.NoError(t, err)
			got, err := codec.Decode(data)
			require.NoError(t, err)

			assert.Equal(t, MsgEvent, got.Type)
			assert.Equal(t, "7", got.Ref)
			assert.Equal(t, "job_update", got.Event)
			assert.Equal(t, "Engineer", got.GetPayloadString("value"))

			idx, err := PayloadInt(got.Payload, "index")
			require.NoError(t, err)
			assert.Equal(t, 1, idx)
		})
	}
}

func TestCodecs_RejectGarbage(t *testing.T) {
	_, err := NewJSONCodec().Decode([]byte(`{malformed`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = NewMsgPackCodec().Decode([]byte{0xc1})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestCodecRegistry_Subprotocols(t *testing.T) {
	r := NewCodecRegistry()
	assert.Equal(t, []string{"applyform.json", "applyform.msgpack"}, r.Subprotocols())

	c, err := r.ForSubprotocol("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = r.ForSubprotocol("applyform.msgpack")
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = r.ForSubprotocol("graphql-ws")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	require.NoError(t, r.SetDefault("msgpack"))
	assert.Equal(t, []string{"applyform.msgpack", "applyform.json"}, r.Subprotocols())
	assert.ErrorIs(t, r.SetDefault("phoenix"), ErrUnknownCodec)
}

func TestPayloadHelpers(t *testing.T) {
	p := map[string]any{
		"f":    float64(2),
		"u8":   uint8(3),
		"s":    "4",
		"frac": 1.5,
		"lat":  "6.45",
		"b":    true,
	}

	for key, want := range map[string]int{"f": 2, "u8": 3, "s": 4} {
		got, err := PayloadInt(p, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
	_, err := PayloadInt(p, "frac")
	assert.Error(t, err)
	_, err = PayloadInt(p, "missing")
	assert.Error(t, err)

	lat, err := PayloadFloat(p, "lat")
	require.NoError(t, err)
	assert.InDelta(t, 6.45, lat, 1e-9)

	assert.Equal(t, "true", PayloadString(p, "b"))
	assert.Equal(t, "2", PayloadString(p, "f"))
	assert.Equal(t, "", PayloadString(p, "missing"))
}

// FuzzJSONCodec checks that anything the JSON codec accepts survives a
// round trip.
func FuzzJSONCodec(f *testing.F) {
	f.Add([]byte(`{"t":2,"ref":"1","event":"next","payload":{}}`))
	f.Add([]byte(`{"t":0,"payload":{"path":"/"}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"ref": 123}`))

	codec := NewJSONCodec()
	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			return
		}
		out, err := codec.Encode(msg)
		if err != nil {
			return
		}
		again, err := codec.Decode(out)
		if err != nil {
			t.Fatalf("failed to decode encoded message: %v", err)
		}
		if msg.Type != again.Type || msg.Ref != again.Ref || msg.Event != again.Event {
			t.Errorf("roundtrip mismatch: %+v != %+v", msg, again)
		}
	})
}
