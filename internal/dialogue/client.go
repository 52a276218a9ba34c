// Package dialogue obtains the interviewer's next utterance from the
// follow-up generation service, with scripted fallbacks for when the
// service is unreachable.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Error is a dialogue-generation failure. The controller retries once,
// then degrades to a scripted utterance so the session keeps moving.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dialogue generation failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientConfig holds follow-up service configuration
type ClientConfig struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint: "http://localhost:8080/followup",
		Timeout:  20 * time.Second,
	}
}

// Client calls the follow-up generation endpoint.
type Client struct {
	client *http.Client
	logger zerolog.Logger
	config *ClientConfig
}

// NewClient creates a dialogue client.
func NewClient(config *ClientConfig, logger zerolog.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "dialogue").Logger(),
		config: config,
	}
}

type followUpRequest struct {
	UserAnswer string `json:"userAnswer"`
}

type followUpResponse struct {
	FollowUpQuestion string `json:"followUpQuestion"`
}

// FollowUp sends the candidate's answer and returns the generated next
// interviewer utterance.
func (c *Client) FollowUp(ctx context.Context, answer string) (string, error) {
	payload, err := json.Marshal(followUpRequest{UserAnswer: answer})
	if err != nil {
		return "", &Error{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Msg("Follow-up API error")
		return "", &Error{Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var result followUpResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &Error{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	question := strings.TrimSpace(result.FollowUpQuestion)
	if question == "" {
		return "", &Error{Err: fmt.Errorf("empty follow-up question")}
	}

	c.logger.Debug().Str("question", question).Msg("Follow-up generated")
	return question, nil
}
