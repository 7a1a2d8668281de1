package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultVoiceSettings balance latency against naturalness for short
// conversational replies.
var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.75,
}

// VoiceSettings tune the ElevenLabs voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabs is an Engine backed by the ElevenLabs HTTP API, returning MP3.
type ElevenLabs struct {
	baseURL  string
	apiKey   string
	voiceID  string
	modelID  string
	settings VoiceSettings
	client   *http.Client
}

// ElevenLabsOption configures the engine.
type ElevenLabsOption func(*ElevenLabs)

// WithBaseURL points the engine at a different endpoint, for tests or
// compatible proxies.
func WithBaseURL(u string) ElevenLabsOption {
	return func(e *ElevenLabs) { e.baseURL = u }
}

// WithModel overrides the synthesis model.
func WithModel(id string) ElevenLabsOption {
	return func(e *ElevenLabs) { e.modelID = id }
}

// WithVoiceSettings overrides the voice tuning.
func WithVoiceSettings(s VoiceSettings) ElevenLabsOption {
	return func(e *ElevenLabs) { e.settings = s }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ElevenLabsOption {
	return func(e *ElevenLabs) { e.client = c }
}

// NewElevenLabs creates an ElevenLabs engine for one voice.
func NewElevenLabs(apiKey, voiceID string, opts ...ElevenLabsOption) *ElevenLabs {
	e := &ElevenLabs{
		baseURL:  "https://api.elevenlabs.io",
		apiKey:   apiKey,
		voiceID:  voiceID,
		modelID:  "eleven_turbo_v2_5",
		settings: DefaultVoiceSettings,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synthesize posts text and returns the response body unread, so chunks
// reach the caller as ElevenLabs renders them.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]any{
		"text":           text,
		"model_id":       e.modelID,
		"voice_settings": e.settings,
	})
	if err != nil {
		return nil, err
	}

	url := e.baseURL + "/v1/text-to-speech/" + e.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: elevenlabs request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("tts: elevenlabs status %d: %s", resp.StatusCode, msg)
	}
	return resp.Body, nil
}
