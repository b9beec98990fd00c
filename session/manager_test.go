package session

import (
	"context"
	"testing"
	"time"

	"voicelive-bridge/config"
	"voicelive-bridge/voicelive"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Endpoint:             "https://example.cognitiveservices.azure.com",
		APIKey:               "test-key",
		Model:                "gpt-realtime",
		APIVersion:           "2025-10-01",
		VoiceName:            "alloy",
		VADThreshold:         0.5,
		VADPrefixPaddingMs:   300,
		VADSilenceDurationMs: 500,
		MaxSessions:          3,
		SessionTimeout:       30 * time.Minute,
	}
}

func TestNewManagerRequiresCredential(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""

	_, err := NewManager(cfg, nil)
	assert.Error(t, err)
}

func TestBuildSessionConfigDefaults(t *testing.T) {
	sc := BuildSessionConfig(testConfig(), "be brief")

	assert.Equal(t, []voicelive.Modality{voicelive.ModalityText, voicelive.ModalityAudio}, sc.Modalities)
	assert.Equal(t, "be brief", sc.Instructions)
	assert.Equal(t, voicelive.FormatPCM16, sc.InputAudioFormat)
	assert.Equal(t, voicelive.FormatPCM16, sc.OutputAudioFormat)

	require.NotNil(t, sc.Voice)
	assert.Equal(t, "alloy", sc.Voice.Name)
	assert.Nil(t, sc.Voice.Temperature, "temperature omitted when unset")

	require.NotNil(t, sc.TurnDetection)
	assert.Equal(t, "server_vad", sc.TurnDetection.Type)
	assert.Equal(t, 0.5, sc.TurnDetection.Threshold)
	assert.Nil(t, sc.TurnDetection.RemoveFillerWords)
	assert.Nil(t, sc.TurnDetection.EndOfUtteranceDetection)

	assert.Nil(t, sc.InputAudioEchoCancellation)
	assert.Nil(t, sc.InputAudioNoiseReduction)
	assert.Nil(t, sc.InputAudioTranscription)
}

func TestBuildSessionConfigOptionalFeatures(t *testing.T) {
	cfg := testConfig()
	cfg.VoiceTemperature = 0.7
	cfg.VADRemoveFillerWords = true
	cfg.EOUModel = "semantic_detection_v1"
	cfg.EOUThreshold = 0.1
	cfg.EOUTimeoutMs = 2000
	cfg.EchoCancellation = true
	cfg.NoiseReduction = "azure_deep_noise_suppression"
	cfg.TranscriptionModel = "whisper-1"
	cfg.TranscriptionLanguage = "en"

	sc := BuildSessionConfig(cfg, "")

	require.NotNil(t, sc.Voice.Temperature)
	assert.Equal(t, 0.7, *sc.Voice.Temperature)

	require.NotNil(t, sc.TurnDetection.RemoveFillerWords)
	assert.True(t, *sc.TurnDetection.RemoveFillerWords)
	require.NotNil(t, sc.TurnDetection.EndOfUtteranceDetection)
	assert.Equal(t, "semantic_detection_v1", sc.TurnDetection.EndOfUtteranceDetection.Model)
	assert.Equal(t, 2000, sc.TurnDetection.EndOfUtteranceDetection.TimeoutMs)

	require.NotNil(t, sc.InputAudioEchoCancellation)
	require.NotNil(t, sc.InputAudioNoiseReduction)
	assert.Equal(t, "azure_deep_noise_suppression", sc.InputAudioNoiseReduction.Type)
	require.NotNil(t, sc.InputAudioTranscription)
	assert.Equal(t, "whisper-1", sc.InputAudioTranscription.Model)
	assert.Equal(t, "en", sc.InputAudioTranscription.Language)
}

func newTestManager(t *testing.T, rdb *redis.Client) *Manager {
	t.Helper()
	m, err := NewManager(testConfig(), rdb)
	require.NoError(t, err)
	return m
}

func registerRelay(m *Manager, id string) *Relay {
	relay := NewRelay(id, newFakeTransport(), newFakeUpstream(), Options{})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeSession(context.Background(), id, relay)
	return relay
}

func TestManagerSessionBookkeeping(t *testing.T) {
	m := newTestManager(t, nil)

	relay := registerRelay(m, "session-1")
	assert.Equal(t, 1, m.GetActiveSessionCount())

	got, ok := m.GetSession("session-1")
	require.True(t, ok)
	assert.Same(t, relay, got)

	require.NoError(t, m.RemoveSession(context.Background(), "session-1"))
	assert.Equal(t, 0, m.GetActiveSessionCount())
	assert.True(t, relay.IsClosed(), "removal closes the relay")

	_, ok = m.GetSession("session-1")
	assert.False(t, ok)

	// Removing an unknown session is not an error
	require.NoError(t, m.RemoveSession(context.Background(), "session-1"))
}

func TestCreateSessionEnforcesCapBeforeDialing(t *testing.T) {
	m := newTestManager(t, nil)
	for i := 0; i < m.config.MaxSessions; i++ {
		registerRelay(m, string(rune('a'+i)))
	}

	_, err := m.CreateSession(context.Background(), newFakeTransport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum sessions reached")
	assert.Equal(t, m.config.MaxSessions, m.GetActiveSessionCount())
}

func TestManagerCleanupRemovesIdleSessions(t *testing.T) {
	m := newTestManager(t, nil)

	stale := registerRelay(m, "stale")
	stale.lastActivity.Store(time.Now().Add(-time.Hour).UnixNano())
	fresh := registerRelay(m, "fresh")

	m.CleanupInactiveSessions(context.Background())

	assert.Equal(t, 1, m.GetActiveSessionCount())
	assert.True(t, stale.IsClosed())
	assert.False(t, fresh.IsClosed())
	_, ok := m.GetSession("fresh")
	assert.True(t, ok)
}

func TestManagerRedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	m := newTestManager(t, rdb)
	registerRelay(m, "session-r")

	assert.True(t, mr.Exists("session:session-r"))
	members, err := rdb.SMembers(context.Background(), "active_sessions").Result()
	require.NoError(t, err)
	assert.Contains(t, members, "session-r")

	require.NoError(t, m.RemoveSession(context.Background(), "session-r"))
	assert.False(t, mr.Exists("session:session-r"))
}

func TestManagerShutdownClosesAll(t *testing.T) {
	m := newTestManager(t, nil)
	a := registerRelay(m, "a")
	b := registerRelay(m, "b")

	m.Shutdown()

	assert.Equal(t, 0, m.GetActiveSessionCount())
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
}
