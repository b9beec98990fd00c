package voicelive

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/bytedance/sonic"
)

// EventKind enumerates the server event variants of the Voice Live protocol.
// Events arrive as JSON objects discriminated by their "type" field; unknown
// types decode to KindUnknown rather than failing.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindSessionUpdated
	KindInputTranscriptionCompleted
	KindInputTranscriptionFailed
	KindResponseTextDone
	KindResponseAudioTranscriptDone
	KindSpeechStarted
	KindSpeechStopped
	KindResponseCreated
	KindResponseAudioDelta
	KindResponseAudioDone
	KindResponseDone
	KindError
	KindConversationItemCreated
)

// Wire values of the "type" discriminator
const (
	typeSessionCreated                = "session.created"
	typeSessionUpdated                = "session.updated"
	typeInputTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	typeInputTranscriptionFailed      = "conversation.item.input_audio_transcription.failed"
	typeResponseTextDone              = "response.text.done"
	typeResponseAudioTranscriptDone   = "response.audio_transcript.done"
	typeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	typeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"
	typeResponseCreated               = "response.created"
	typeResponseAudioDelta            = "response.audio.delta"
	typeResponseAudioDone             = "response.audio.done"
	typeResponseDone                  = "response.done"
	typeError                         = "error"
	typeConversationItemCreated       = "conversation.item.created"
)

// ServerEvent is one decoded upstream event. Kind selects which payload
// fields are meaningful.
type ServerEvent struct {
	Kind    EventKind
	RawType string

	SessionID  string // KindSessionUpdated
	ResponseID string // KindResponseCreated
	ItemID     string // KindConversationItemCreated
	Transcript string // transcription / audio-transcript events
	Text       string // KindResponseTextDone
	Audio      []byte // KindResponseAudioDelta, decoded PCM16
	Err        *ServerError
}

// ServerError is an upstream-reported error, carried both by KindError events
// and by KindInputTranscriptionFailed.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("voice live error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("voice live error: %s", e.Message)
}

// IsNoActiveResponse reports whether the error is the benign race of a
// response.cancel landing after the response already completed. The upstream
// error code is checked first; the message text match is a fallback for
// deployments that omit the code.
func (e *ServerError) IsNoActiveResponse() bool {
	if e == nil {
		return false
	}
	if e.Code == "response_cancel_not_active" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "no active response")
}

// IsNoActiveResponse classifies any error, unwrapping *ServerError and
// falling back to the message text for plain errors.
func IsNoActiveResponse(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ServerError); ok {
		return se.IsNoActiveResponse()
	}
	return strings.Contains(strings.ToLower(err.Error()), "no active response")
}

// wireEvent is the superset envelope all server events decode into before
// being narrowed to a ServerEvent.
type wireEvent struct {
	Type    string `json:"type"`
	Session *struct {
		ID string `json:"id"`
	} `json:"session"`
	Response *struct {
		ID string `json:"id"`
	} `json:"response"`
	Item *struct {
		ID string `json:"id"`
	} `json:"item"`
	Transcript string `json:"transcript"`
	Text       string `json:"text"`
	Delta      string `json:"delta"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseServerEvent decodes one upstream JSON frame into a typed event.
// Malformed JSON is an error; an unrecognized type is not.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var we wireEvent
	if err := sonic.Unmarshal(data, &we); err != nil {
		return ServerEvent{}, fmt.Errorf("decode server event: %w", err)
	}

	ev := ServerEvent{RawType: we.Type}
	switch we.Type {
	case typeSessionCreated, typeSessionUpdated:
		ev.Kind = KindSessionUpdated
		if we.Session != nil {
			ev.SessionID = we.Session.ID
		}
	case typeInputTranscriptionCompleted:
		ev.Kind = KindInputTranscriptionCompleted
		ev.Transcript = we.Transcript
	case typeInputTranscriptionFailed:
		ev.Kind = KindInputTranscriptionFailed
		if we.Error != nil {
			ev.Err = &ServerError{Code: we.Error.Code, Message: we.Error.Message}
		}
	case typeResponseTextDone:
		ev.Kind = KindResponseTextDone
		ev.Text = we.Text
	case typeResponseAudioTranscriptDone:
		ev.Kind = KindResponseAudioTranscriptDone
		ev.Transcript = we.Transcript
	case typeInputAudioBufferSpeechStarted:
		ev.Kind = KindSpeechStarted
	case typeInputAudioBufferSpeechStopped:
		ev.Kind = KindSpeechStopped
	case typeResponseCreated:
		ev.Kind = KindResponseCreated
		if we.Response != nil {
			ev.ResponseID = we.Response.ID
		}
	case typeResponseAudioDelta:
		ev.Kind = KindResponseAudioDelta
		if we.Delta != "" {
			audio, err := base64.StdEncoding.DecodeString(we.Delta)
			if err != nil {
				// One bad frame must not end the session; drop the payload
				// and let the stream continue.
				log.Printf("voicelive: dropping undecodable audio delta: %v", err)
			} else {
				ev.Audio = audio
			}
		}
	case typeResponseAudioDone:
		ev.Kind = KindResponseAudioDone
	case typeResponseDone:
		ev.Kind = KindResponseDone
	case typeError:
		ev.Kind = KindError
		ev.Err = &ServerError{}
		if we.Error != nil {
			ev.Err.Code = we.Error.Code
			ev.Err.Message = we.Error.Message
		}
	case typeConversationItemCreated:
		ev.Kind = KindConversationItemCreated
		if we.Item != nil {
			ev.ItemID = we.Item.ID
		}
	default:
		ev.Kind = KindUnknown
	}
	return ev, nil
}
