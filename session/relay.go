package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"voicelive-bridge/messages"
	"voicelive-bridge/voicelive"

	"github.com/gorilla/websocket"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// Transport is the duplex message connection to the end-user client.
// *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Upstream is the connection to the Voice Live realtime session.
// *voicelive.Conn satisfies it.
type Upstream interface {
	Configure(cfg voicelive.SessionConfig) error
	AppendAudio(audioB64 string) error
	CreateResponse() error
	CancelResponse() error
	Receive() (voicelive.ServerEvent, error)
	Close() error
}

// Options configures one relay
type Options struct {
	Session           voicelive.SessionConfig
	ProactiveGreeting bool
}

type outFrame struct {
	binary bool
	data   []byte
}

// Relay owns one client transport and one upstream connection for the
// lifetime of a single voice interaction. It configures the upstream, runs
// the two forwarding loops concurrently, and tears everything down when
// either side finishes. Each instance is single-use.
type Relay struct {
	ID        string
	CreatedAt time.Time
	CloseChan chan struct{}

	transport Transport
	upstream  Upstream
	opts      Options
	state     *relayState

	writeChan chan outFrame
	writeMu   sync.Mutex // serializes writePump and direct teardown writes

	closeOnce    sync.Once
	closed       atomic.Bool
	lastActivity atomic.Int64
}

// NewRelay creates a relay over an already-authenticated client transport
// and a dialed (but not yet configured) upstream connection.
func NewRelay(id string, transport Transport, upstream Upstream, opts Options) *Relay {
	r := &Relay{
		ID:        id,
		CreatedAt: time.Now(),
		CloseChan: make(chan struct{}),
		transport: transport,
		upstream:  upstream,
		opts:      opts,
		state:     &relayState{},
		writeChan: make(chan outFrame, writeBufferSize),
	}
	r.touch()
	return r
}

// Run configures the upstream session and relays until either direction
// finishes. It returns the session's failure outcome, or nil for a clean
// disconnect. The upstream connection and the transport are always released
// before Run returns.
func (r *Relay) Run(ctx context.Context) error {
	defer r.shutdown()

	// Startup contract: configure exactly once, before either loop starts.
	// Failure is fatal and reported, never retried.
	if err := r.upstream.Configure(r.opts.Session); err != nil {
		r.writeControlNow(messages.NewError("session configuration failed"))
		return fmt.Errorf("configure upstream session: %w", err)
	}
	log.Printf("[%s] session configuration sent", r.shortID())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.writePump()

	errChan := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		errChan <- r.clientToUpstream()
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		errChan <- r.upstreamToClient(ctx)
	}()

	// First loop to exit cancels the context; closing both connections then
	// unblocks the surviving loop's pending read.
	go func() {
		<-ctx.Done()
		r.shutdown()
	}()

	wg.Wait()
	close(errChan)

	var first error
	for err := range errChan {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// clientToUpstream forwards client audio and control messages until the
// transport disconnects. Disconnection is cooperative cancellation, not an
// error.
func (r *Relay) clientToUpstream() error {
	for {
		messageType, data, err := r.transport.ReadMessage()
		if err != nil {
			if !r.closed.Load() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[%s] client read error: %v", r.shortID(), err)
			}
			return nil
		}
		r.touch()

		switch messageType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			if err := r.appendAudio(base64.StdEncoding.EncodeToString(data)); err != nil {
				return err
			}
		case websocket.TextMessage:
			if err := r.handleClientText(data); err != nil {
				return err
			}
		}
	}
}

// handleClientText dispatches one JSON control frame from the client.
// Malformed JSON is discarded, never fatal.
func (r *Relay) handleClientText(data []byte) error {
	msg, err := messages.DecodeClient(data)
	if err != nil {
		log.Printf("[%s] invalid JSON from client: %v", r.shortID(), err)
		return nil
	}

	switch msg.Type {
	case messages.TypeAudio:
		if msg.Audio == "" {
			return nil
		}
		return r.appendAudio(msg.Audio)
	case messages.TypeBargeIn:
		r.bargeIn()
	case messages.TypePing:
		r.queueControl(messages.NewPong())
	default:
		log.Printf("[%s] ignoring client message type %q", r.shortID(), msg.Type)
	}
	return nil
}

func (r *Relay) appendAudio(audioB64 string) error {
	if err := r.upstream.AppendAudio(audioB64); err != nil {
		r.writeControlNow(messages.NewError("audio forwarding failed"))
		return fmt.Errorf("append audio: %w", err)
	}
	return nil
}

// bargeIn handles a client-initiated interruption: suppression first, so
// deltas already in flight are dropped, then at most one cancellation.
// Unlike the upstream speech-started path it emits no clear_playback and no
// status change; the client already flushed its own playback.
func (r *Relay) bargeIn() {
	suppress, cancel := r.state.BeginInterrupt()
	if !suppress {
		return
	}
	log.Printf("[%s] client barge-in", r.shortID())
	if cancel {
		r.cancelResponse()
	}
}

// cancelResponse requests upstream cancellation, swallowing the benign
// already-completed race
func (r *Relay) cancelResponse() {
	if err := r.upstream.CancelResponse(); err != nil {
		if voicelive.IsNoActiveResponse(err) {
			log.Printf("[%s] cancel ignored, response already completed", r.shortID())
		} else {
			log.Printf("[%s] cancel failed: %v", r.shortID(), err)
		}
	}
}

// upstreamToClient consumes the upstream event sequence one event at a time,
// dispatching synchronously in arrival order. A failing event sequence is
// fatal to the session; a failing individual event is not.
func (r *Relay) upstreamToClient(ctx context.Context) error {
	for {
		ev, err := r.upstream.Receive()
		if err != nil {
			if r.closed.Load() || ctx.Err() != nil {
				return nil
			}
			r.writeControlNow(messages.NewError("voice session ended unexpectedly"))
			return fmt.Errorf("receive upstream event: %w", err)
		}
		r.touch()
		r.handleEvent(ev)
	}
}

// handleEvent translates one upstream event per the event→action table
func (r *Relay) handleEvent(ev voicelive.ServerEvent) {
	switch ev.Kind {
	case voicelive.KindSessionUpdated:
		log.Printf("[%s] session ready: %s", r.shortID(), ev.SessionID)
		r.queueControl(messages.NewSessionStarted(ev.SessionID))
		if r.opts.ProactiveGreeting && r.state.StartConversation() {
			if err := r.upstream.CreateResponse(); err != nil {
				log.Printf("[%s] proactive greeting request failed: %v", r.shortID(), err)
			}
		}

	case voicelive.KindInputTranscriptionCompleted:
		if ev.Transcript == "" {
			return
		}
		log.Printf("[%s] user: %s", r.shortID(), ev.Transcript)
		r.queueControl(messages.NewUserTranscript(ev.Transcript))

	case voicelive.KindInputTranscriptionFailed:
		log.Printf("[%s] input transcription failed: %v", r.shortID(), ev.Err)

	case voicelive.KindResponseTextDone:
		r.queueControl(messages.NewAgentText(ev.Text))

	case voicelive.KindResponseAudioTranscriptDone:
		r.queueControl(messages.NewAgentTranscript(ev.Transcript))

	case voicelive.KindSpeechStarted:
		log.Printf("[%s] speech started", r.shortID())
		r.queueControl(messages.NewStatus(messages.StatusListening))
		suppress, cancel := r.state.BeginInterrupt()
		if suppress {
			r.queueControl(messages.NewClearPlayback())
		}
		if cancel {
			r.cancelResponse()
		}

	case voicelive.KindSpeechStopped:
		r.queueControl(messages.NewStatus(messages.StatusProcessing))

	case voicelive.KindResponseCreated:
		r.state.ResponseCreated()
		r.queueControl(messages.NewStatus(messages.StatusAgentSpeaking))

	case voicelive.KindResponseAudioDelta:
		if len(ev.Audio) == 0 || r.state.Suppressed() {
			return
		}
		r.queueAudio(ev.Audio)

	case voicelive.KindResponseAudioDone:
		log.Printf("[%s] agent audio complete", r.shortID())
		r.queueControl(messages.NewStatus(messages.StatusReady))

	case voicelive.KindResponseDone:
		r.state.ResponseDone()

	case voicelive.KindError:
		if ev.Err.IsNoActiveResponse() {
			log.Printf("[%s] benign cancellation error", r.shortID())
			return
		}
		log.Printf("[%s] upstream error: %v", r.shortID(), ev.Err)
		r.queueControl(messages.NewError(ev.Err.Message))

	case voicelive.KindConversationItemCreated:
		log.Printf("[%s] conversation item: %s", r.shortID(), ev.ItemID)

	default:
		log.Printf("[%s] unhandled event: %s", r.shortID(), ev.RawType)
	}
}

// writePump is the single writer to the client transport. All outgoing
// frames funnel through writeChan; batched drain keeps audio latency low
// under bursts.
func (r *Relay) writePump() {
	defer func() {
		r.writeMu.Lock()
		r.transport.SetWriteDeadline(time.Now().Add(writeTimeout))
		r.transport.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		r.writeMu.Unlock()
	}()

	for {
		select {
		case <-r.CloseChan:
			return
		case frame := <-r.writeChan:
			if !r.writeFrame(frame) {
				return
			}
			n := len(r.writeChan)
			for i := 0; i < n; i++ {
				select {
				case frame := <-r.writeChan:
					if !r.writeFrame(frame) {
						return
					}
				default:
				}
			}
		}
	}
}

func (r *Relay) writeFrame(frame outFrame) bool {
	messageType := websocket.TextMessage
	if frame.binary {
		messageType = websocket.BinaryMessage
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.transport.SetWriteDeadline(time.Now().Add(writeTimeout))
	return r.transport.WriteMessage(messageType, frame.data) == nil
}

// queueControl enqueues a JSON control message for the client (non-blocking)
func (r *Relay) queueControl(msg *messages.ServerMessage) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("[%s] encode %s: %v", r.shortID(), msg.Type, err)
		return
	}
	r.queueFrame(outFrame{data: data})
}

// queueAudio enqueues one binary PCM chunk for the client (non-blocking)
func (r *Relay) queueAudio(data []byte) {
	r.queueFrame(outFrame{binary: true, data: data})
}

func (r *Relay) queueFrame(frame outFrame) {
	if r.closed.Load() {
		return
	}
	select {
	case r.writeChan <- frame:
	default:
		// Queue full, drop frame (shouldn't happen with proper sizing)
	}
}

// writeControlNow writes a control message directly, bypassing the pump.
// Used before the pump starts and for best-effort error reporting during
// teardown.
func (r *Relay) writeControlNow(msg *messages.ServerMessage) {
	data, err := msg.Encode()
	if err != nil {
		return
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.transport.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = r.transport.WriteMessage(websocket.TextMessage, data)
}

// shutdown releases both connections exactly once and unblocks any pending
// reads, so a session never leaves one loop running after the other exited.
func (r *Relay) shutdown() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.CloseChan)
		r.upstream.Close()
		r.transport.Close()
	})
}

// IsClosed reports whether the relay has been torn down
func (r *Relay) IsClosed() bool {
	return r.closed.Load()
}

// Close tears the relay down without waiting for either loop
func (r *Relay) Close() error {
	r.shutdown()
	return nil
}

// LastActivity returns the time of the last frame or event seen
func (r *Relay) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

func (r *Relay) touch() {
	r.lastActivity.Store(time.Now().UnixNano())
}

func (r *Relay) shortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}
