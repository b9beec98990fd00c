package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelayStateLifecycle(t *testing.T) {
	s := &relayState{}

	assert.False(t, s.ActiveResponse())
	assert.False(t, s.Suppressed())

	s.ResponseCreated()
	assert.True(t, s.ActiveResponse())
	assert.False(t, s.Suppressed())

	s.ResponseDone()
	assert.False(t, s.ActiveResponse())
	assert.False(t, s.Suppressed())
}

func TestBeginInterruptRequiresActiveResponse(t *testing.T) {
	s := &relayState{}

	suppress, cancel := s.BeginInterrupt()
	assert.False(t, suppress)
	assert.False(t, cancel)
	assert.False(t, s.Suppressed())

	s.ResponseCreated()
	s.ResponseDone()
	suppress, cancel = s.BeginInterrupt()
	assert.False(t, suppress)
	assert.False(t, cancel)
}

func TestBeginInterruptCancelsOnce(t *testing.T) {
	s := &relayState{}
	s.ResponseCreated()

	suppress, cancel := s.BeginInterrupt()
	assert.True(t, suppress)
	assert.True(t, cancel)
	assert.True(t, s.Suppressed())

	suppress, cancel = s.BeginInterrupt()
	assert.True(t, suppress)
	assert.False(t, cancel, "second interrupt must not cancel again")

	// A fresh response re-arms the cancel
	s.ResponseCreated()
	assert.False(t, s.Suppressed())
	_, cancel = s.BeginInterrupt()
	assert.True(t, cancel)
}

func TestSuppressionNeverOutlivesResponse(t *testing.T) {
	s := &relayState{}
	s.ResponseCreated()
	s.BeginInterrupt()
	assert.True(t, s.Suppressed())

	s.ResponseDone()
	assert.False(t, s.ActiveResponse())
	assert.False(t, s.Suppressed())
}

func TestStartConversationFlipsOnce(t *testing.T) {
	s := &relayState{}
	assert.True(t, s.StartConversation())
	assert.False(t, s.StartConversation())
	assert.False(t, s.StartConversation())
}
