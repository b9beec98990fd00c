package session

import "sync"

// relayState tracks the response lifecycle of one relay. Both relay loops
// mutate it, but only through its methods, so there is a single synchronized
// owner for every flag.
//
// Invariant: activeResponse == false implies audioSuppressed == false.
type relayState struct {
	mu                  sync.Mutex
	activeResponse      bool
	responseFinalized   bool
	conversationStarted bool
	audioSuppressed     bool
	cancelRequested     bool // one response.cancel per response, across both barge-in paths
}

// ResponseCreated marks the start of a new response lifecycle
func (s *relayState) ResponseCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeResponse = true
	s.responseFinalized = false
	s.audioSuppressed = false
	s.cancelRequested = false
}

// ResponseDone marks full completion of the current response
func (s *relayState) ResponseDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeResponse = false
	s.responseFinalized = true
	s.audioSuppressed = false
}

// BeginInterrupt handles a barge-in from either direction. When a response
// is active and not yet finalized it flips on audio suppression and reports
// suppress=true; cancel is true only the first time for the current
// response, so cancellation is requested at most once per response.
func (s *relayState) BeginInterrupt() (suppress, cancel bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeResponse || s.responseFinalized {
		return false, false
	}
	s.audioSuppressed = true
	if s.cancelRequested {
		return true, false
	}
	s.cancelRequested = true
	return true, true
}

// Suppressed reports whether response audio is currently being discarded
func (s *relayState) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioSuppressed
}

// ActiveResponse reports whether a response lifecycle is in progress
func (s *relayState) ActiveResponse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeResponse
}

// StartConversation flips conversationStarted and reports whether this call
// did the flip, so the proactive greeting is requested at most once even if
// the upstream re-announces the session.
func (s *relayState) StartConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationStarted {
		return false
	}
	s.conversationStarted = true
	return true
}
