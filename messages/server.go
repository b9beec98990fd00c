package messages

import "github.com/bytedance/sonic"

// Server -> client message types
const (
	TypeSessionStarted  = "session_started"
	TypeUserTranscript  = "user_transcript"
	TypeAgentTranscript = "agent_transcript"
	TypeAgentText       = "agent_text"
	TypeClearPlayback   = "clear_playback"
	TypeStatus          = "status"
	TypeError           = "error"
	TypePong            = "pong"
)

// Status values carried by TypeStatus messages
const (
	StatusListening     = "listening"
	StatusProcessing    = "processing"
	StatusAgentSpeaking = "agent_speaking"
	StatusReady         = "ready"
)

// ServerMessage is a control message sent to the frontend client as a text
// frame. Agent audio is sent separately as binary frames.
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Encode serializes a message for the wire
func (m *ServerMessage) Encode() ([]byte, error) {
	return sonic.Marshal(m)
}

// NewSessionStarted announces the upstream session ID to the client
func NewSessionStarted(sessionID string) *ServerMessage {
	return &ServerMessage{Type: TypeSessionStarted, SessionID: sessionID}
}

// NewUserTranscript carries a finalized transcription of the user's speech
func NewUserTranscript(text string) *ServerMessage {
	return &ServerMessage{Type: TypeUserTranscript, Text: text}
}

// NewAgentTranscript carries the transcript of the agent's spoken audio
func NewAgentTranscript(text string) *ServerMessage {
	return &ServerMessage{Type: TypeAgentTranscript, Text: text}
}

// NewAgentText carries the agent's text response
func NewAgentText(text string) *ServerMessage {
	return &ServerMessage{Type: TypeAgentText, Text: text}
}

// NewClearPlayback tells the client to flush any queued agent audio
func NewClearPlayback() *ServerMessage {
	return &ServerMessage{Type: TypeClearPlayback}
}

// NewStatus creates a status update message
func NewStatus(status string) *ServerMessage {
	return &ServerMessage{Type: TypeStatus, Status: status}
}

// NewError creates an error message
func NewError(message string) *ServerMessage {
	return &ServerMessage{Type: TypeError, Message: message}
}

// NewPong answers a client ping
func NewPong() *ServerMessage {
	return &ServerMessage{Type: TypePong}
}
