package messages

import "github.com/bytedance/sonic"

// Client -> server message types
const (
	TypeAudio   = "audio"
	TypeBargeIn = "barge_in"
	TypePing    = "ping"
)

// ClientMessage represents a text frame from the frontend client. Raw binary
// frames carry audio directly and never pass through this type.
type ClientMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"` // base64 PCM16, TypeAudio only
}

// DecodeClient parses a client text frame
func DecodeClient(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
