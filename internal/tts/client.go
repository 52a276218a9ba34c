// Package tts provides speech synthesis and single-flight playback of
// interviewer utterances.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrCancelled is returned by Speak when playback was pre-empted by a
// newer utterance or by session teardown.
var ErrCancelled = errors.New("playback cancelled")

// PlaybackError covers synthesis and playback failures. The controller
// skips to listening rather than blocking the session on audio.
type PlaybackError struct {
	Stage string // synthesis, playback
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("speech %s failed: %v", e.Stage, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// ClientConfig holds synthesis service configuration
type ClientConfig struct {
	Endpoint string        `json:"endpoint"`
	Voice    string        `json:"voice"`
	Timeout  time.Duration `json:"timeout"`
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint: "http://localhost:8080/tts",
		Voice:    "nova",
		Timeout:  30 * time.Second,
	}
}

// Client synthesizes speech through the backend /tts endpoint, which
// returns encoded audio (audio/mpeg) for the given text.
type Client struct {
	client *http.Client
	logger zerolog.Logger
	config *ClientConfig
}

// NewClient creates a synthesis client.
func NewClient(config *ClientConfig, logger zerolog.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "tts").Logger(),
		config: config,
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize converts text to encoded audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	startTime := time.Now()

	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.config.Voice})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Msg("TTS API error")
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}

	c.logger.Debug().Int("bytes", len(body)).Dur("time", time.Since(startTime)).Msg("Synthesis complete")
	return body, nil
}
