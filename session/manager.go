package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"voicelive-bridge/config"
	"voicelive-bridge/voicelive"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Manager tracks all live relays, enforces the session cap, and mirrors
// session metadata to Redis when one is available.
type Manager struct {
	sessions map[string]*Relay
	mu       sync.RWMutex

	redis  *redis.Client
	config *config.Config

	upstreamCfg  voicelive.Config
	sessionCfg   voicelive.SessionConfig
	instructions string
}

// NewManager builds the manager, the upstream credential, and the session
// configuration template shared by all relays. rdb may be nil; the manager
// then runs without the Redis mirror.
func NewManager(cfg *config.Config, rdb *redis.Client) (*Manager, error) {
	cred, err := buildCredential(cfg)
	if err != nil {
		return nil, err
	}

	instructions := LoadInstructions(cfg.InstructionsFile)

	return &Manager{
		sessions: make(map[string]*Relay),
		redis:    rdb,
		config:   cfg,
		upstreamCfg: voicelive.Config{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			APIVersion: cfg.APIVersion,
			Credential: cred,
		},
		sessionCfg:   BuildSessionConfig(cfg, instructions),
		instructions: instructions,
	}, nil
}

func buildCredential(cfg *config.Config) (voicelive.Credential, error) {
	if cfg.APIKey != "" {
		return voicelive.APIKeyCredential{Key: cfg.APIKey}, nil
	}
	if cfg.HasServicePrincipal() {
		return voicelive.NewServicePrincipalCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret)
	}
	return nil, fmt.Errorf("no upstream credential configured")
}

// BuildSessionConfig maps server configuration onto the upstream
// session.update payload.
func BuildSessionConfig(cfg *config.Config, instructions string) voicelive.SessionConfig {
	voice := &voicelive.Voice{
		Name:       cfg.VoiceName,
		EndpointID: cfg.VoiceEndpointID,
	}
	if cfg.VoiceTemperature > 0 {
		t := cfg.VoiceTemperature
		voice.Temperature = &t
	}

	turnDetection := &voicelive.TurnDetection{
		Type:              "server_vad",
		Threshold:         cfg.VADThreshold,
		PrefixPaddingMs:   cfg.VADPrefixPaddingMs,
		SilenceDurationMs: cfg.VADSilenceDurationMs,
	}
	if cfg.VADRemoveFillerWords {
		b := true
		turnDetection.RemoveFillerWords = &b
	}
	if cfg.EOUModel != "" {
		turnDetection.EndOfUtteranceDetection = &voicelive.EndOfUtterance{
			Model:     cfg.EOUModel,
			Threshold: cfg.EOUThreshold,
			TimeoutMs: cfg.EOUTimeoutMs,
		}
	}

	sc := voicelive.SessionConfig{
		Modalities:        []voicelive.Modality{voicelive.ModalityText, voicelive.ModalityAudio},
		Instructions:      instructions,
		Voice:             voice,
		InputAudioFormat:  voicelive.FormatPCM16,
		OutputAudioFormat: voicelive.FormatPCM16,
		TurnDetection:     turnDetection,
	}
	if cfg.EchoCancellation {
		sc.InputAudioEchoCancellation = &voicelive.EchoCancellation{}
	}
	if cfg.NoiseReduction != "" {
		sc.InputAudioNoiseReduction = &voicelive.NoiseReduction{Type: cfg.NoiseReduction}
	}
	if cfg.TranscriptionModel != "" {
		sc.InputAudioTranscription = &voicelive.InputTranscription{
			Model:    cfg.TranscriptionModel,
			Language: cfg.TranscriptionLanguage,
		}
	}
	return sc
}

// CreateSession dials the upstream and builds a relay for one client
// transport. The relay is registered until RemoveSession.
func (sm *Manager) CreateSession(ctx context.Context, transport Transport) (*Relay, error) {
	// Dial outside the lock; the handshake can take seconds and must not
	// stall counts or cleanup. The cap is re-checked at registration.
	sm.mu.RLock()
	full := len(sm.sessions) >= sm.config.MaxSessions
	sm.mu.RUnlock()
	if full {
		return nil, fmt.Errorf("maximum sessions reached")
	}

	upstream, err := voicelive.Dial(ctx, sm.upstreamCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to voice live: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		upstream.Close()
		return nil, fmt.Errorf("maximum sessions reached")
	}

	sessionID := uuid.New().String()
	relay := NewRelay(sessionID, transport, upstream, Options{
		Session:           sm.sessionCfg,
		ProactiveGreeting: sm.config.EnableProactiveGreeting,
	})

	sm.storeSession(ctx, sessionID, relay)
	return relay, nil
}

// storeSession saves a session to memory and Redis
func (sm *Manager) storeSession(ctx context.Context, sessionID string, relay *Relay) {
	sm.sessions[sessionID] = relay

	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+sessionID, map[string]interface{}{
			"created_at":    relay.CreatedAt.Format(time.RFC3339),
			"last_activity": relay.LastActivity().Format(time.RFC3339),
			"status":        "active",
		})
		sm.redis.SAdd(ctx, "active_sessions", sessionID)
		sm.redis.Expire(ctx, "session:"+sessionID, sm.config.SessionTimeout)
	}
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*Relay, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	relay, exists := sm.sessions[sessionID]
	return relay, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	relay, exists := sm.sessions[sessionID]
	if !exists {
		return nil
	}

	relay.Close()
	delete(sm.sessions, sessionID)

	if sm.redis != nil {
		sm.redis.Del(ctx, "session:"+sessionID)
		sm.redis.SRem(ctx, "active_sessions", sessionID)
	}

	return nil
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions tears down sessions idle beyond the timeout
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, relay := range sm.sessions {
		if now.Sub(relay.LastActivity()) > sm.config.SessionTimeout {
			log.Printf("[%s] closing inactive session", id)
			relay.Close()
			delete(sm.sessions, id)

			if sm.redis != nil {
				sm.redis.Del(ctx, "session:"+id)
				sm.redis.SRem(ctx, "active_sessions", id)
			}
		}
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, relay := range sm.sessions {
		relay.Close()
		delete(sm.sessions, id)
	}
}
