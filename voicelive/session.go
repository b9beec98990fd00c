package voicelive

// Modality selects a response channel of the upstream session
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// Audio format tags accepted by the upstream
const (
	FormatPCM16 = "pcm16"
)

// Voice describes the synthesized voice. EndpointID selects a custom neural
// voice deployment; Temperature tunes prosody variation (0 = upstream default).
type Voice struct {
	Name        string   `json:"name"`
	EndpointID  string   `json:"endpoint_id,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// EndOfUtterance refines server VAD with a semantic end-of-utterance model
type EndOfUtterance struct {
	Model     string  `json:"model"`
	Threshold float64 `json:"threshold,omitempty"`
	TimeoutMs int     `json:"timeout_ms,omitempty"`
}

// TurnDetection configures upstream server-side voice activity detection
type TurnDetection struct {
	Type                    string          `json:"type"`
	Threshold               float64         `json:"threshold"`
	PrefixPaddingMs         int             `json:"prefix_padding_ms"`
	SilenceDurationMs       int             `json:"silence_duration_ms"`
	RemoveFillerWords       *bool           `json:"remove_filler_words,omitempty"`
	EndOfUtteranceDetection *EndOfUtterance `json:"end_of_utterance_detection,omitempty"`
}

// EchoCancellation enables upstream echo cancellation on input audio
type EchoCancellation struct{}

// NoiseReduction selects an upstream noise reduction mode
type NoiseReduction struct {
	Type string `json:"type"`
}

// InputTranscription enables transcription of the user's input audio
type InputTranscription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

// SessionConfig is the session.update payload sent once at session start,
// before any audio flows in either direction.
type SessionConfig struct {
	Modalities                 []Modality          `json:"modalities"`
	Instructions               string              `json:"instructions,omitempty"`
	Voice                      *Voice              `json:"voice,omitempty"`
	InputAudioFormat           string              `json:"input_audio_format"`
	OutputAudioFormat          string              `json:"output_audio_format"`
	TurnDetection              *TurnDetection      `json:"turn_detection,omitempty"`
	InputAudioEchoCancellation *EchoCancellation   `json:"input_audio_echo_cancellation,omitempty"`
	InputAudioNoiseReduction   *NoiseReduction     `json:"input_audio_noise_reduction,omitempty"`
	InputAudioTranscription    *InputTranscription `json:"input_audio_transcription,omitempty"`
}

// clientEvent is the envelope for all client -> upstream protocol events
type clientEvent struct {
	Type    string         `json:"type"`
	Session *SessionConfig `json:"session,omitempty"`
	Audio   string         `json:"audio,omitempty"`
}
