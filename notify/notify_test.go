package notify

import (
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	on, err := Decode([]byte(`{"buzzer_on": true}`))
	require.NoError(t, err)
	require.True(t, on)

	on, err = Decode([]byte(`{"buzzer_on": false}`))
	require.NoError(t, err)
	require.False(t, on)

	_, err = Decode([]byte(`{}`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"buzzer_on": "yes"}`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeFrame(t *testing.T) {
	t.Run("buzzer update", func(t *testing.T) {
		on, ok, err := DecodeFrame([]byte(`{"event":"buzzer_update","data":{"buzzer_on":true}}`))
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, on)
	})

	t.Run("other event", func(t *testing.T) {
		_, ok, err := DecodeFrame([]byte(`{"event":"camera_update","data":{"on":true}}`))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("missing data", func(t *testing.T) {
		_, ok, err := DecodeFrame([]byte(`{"event":"buzzer_update"}`))
		require.ErrorIs(t, err, ErrMalformed)
		require.False(t, ok)
	})

	t.Run("missing flag", func(t *testing.T) {
		_, ok, err := DecodeFrame([]byte(`{"event":"buzzer_update","data":{}}`))
		require.ErrorIs(t, err, ErrMalformed)
		require.False(t, ok)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := DecodeFrame([]byte(`buzzer on`))
		require.ErrorIs(t, err, ErrMalformed)
	})
}

type fakeMessage struct {
	mqtt.Message
	payload []byte
}

func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Topic() string   { return DefaultTopic }

func TestMessageHandler(t *testing.T) {
	var got []bool
	handler := messageHandler(func(on bool) {
		got = append(got, on)
	})

	handler(nil, fakeMessage{payload: []byte(`{"buzzer_on": true}`)})
	handler(nil, fakeMessage{payload: []byte(`nope`)})
	handler(nil, fakeMessage{payload: []byte(`{}`)})
	handler(nil, fakeMessage{payload: []byte(`{"buzzer_on": false}`)})

	require.Equal(t, []bool{true, false}, got)
}
