package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOmitsEmptyFields(t *testing.T) {
	data, err := NewPong().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))

	data, err = NewStatus(StatusListening).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status","status":"listening"}`, string(data))

	data, err = NewSessionStarted("sess-1").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session_started","session_id":"sess-1"}`, string(data))

	data, err = NewError("something broke").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"something broke"}`, string(data))
}

func TestDecodeClient(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"audio","audio":"cGNt"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAudio, msg.Type)
	assert.Equal(t, "cGNt", msg.Audio)

	msg, err = DecodeClient([]byte(`{"type":"barge_in"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeBargeIn, msg.Type)

	_, err = DecodeClient([]byte(`{"type":`))
	assert.Error(t, err)
}
