package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PersistenceError marks a failed write to the durability side-channel.
// The live conversation continues; these are logged, not fatal.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session persistence failed (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ClientConfig holds interview API configuration
type ClientConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 15 * time.Second,
	}
}

// Client talks to the interview backend.
type Client struct {
	client *http.Client
	logger zerolog.Logger
	config *ClientConfig
}

// NewClient creates an interview API client.
func NewClient(config *ClientConfig, logger zerolog.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "session-api").Logger(),
		config: config,
	}
}

type startResponse struct {
	SessionID string   `json:"sessionId"`
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
	// Legacy fields still emitted by older backends.
	QuestionScript    string   `json:"question_script"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// Start creates a session for the problem and returns it with its
// question script resolved into concrete questions.
func (c *Client) Start(ctx context.Context, problemID string) (*Session, error) {
	url := fmt.Sprintf("%s/video-interviews/%s/start", strings.TrimRight(c.config.BaseURL, "/"), problemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to start session: status %d: %s", resp.StatusCode, string(body))
	}

	var result startResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse start response: %w", err)
	}

	sessionID := result.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var questions []Question
	if len(result.Questions) > 0 {
		questions = ParseQuestions(strings.Join(result.Questions, "\n"), nil)
	} else {
		questions = ParseQuestions(result.QuestionScript, result.FollowUpQuestions)
	}

	c.logger.Info().
		Str("session_id", sessionID).
		Int("questions", len(questions)).
		Msg("Session started")

	return &Session{
		ID:           sessionID,
		ProblemID:    problemID,
		ProblemTitle: result.Title,
		Questions:    questions,
		CurrentIndex: 0,
		Status:       StatusInProgress,
		StartedAt:    time.Now(),
	}, nil
}

// Message is one persisted transcript entry.
type Message struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// AppendMessages persists exchanged turns. Best effort: callers log the
// returned PersistenceError and move on.
func (c *Client) AppendMessages(ctx context.Context, sessionID string, messages []Message) error {
	url := fmt.Sprintf("%s/video-interviews/%s/message", strings.TrimRight(c.config.BaseURL, "/"), sessionID)

	payload, err := json.Marshal(map[string]any{"messages": messages})
	if err != nil {
		return &PersistenceError{Op: "message", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &PersistenceError{Op: "message", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &PersistenceError{Op: "message", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PersistenceError{Op: "message", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

type completeRequest struct {
	Transcript        string             `json:"transcript"`
	QuestionResponses []QuestionResponse `json:"question_responses"`
	DurationMinutes   int                `json:"duration_minutes,omitempty"`
}

type completeResponse struct {
	Feedback string `json:"feedback"`
}

// Complete finalizes the session and returns the evaluation feedback.
func (c *Client) Complete(ctx context.Context, sessionID string, report Report) (string, error) {
	url := fmt.Sprintf("%s/video-interviews/%s/complete", strings.TrimRight(c.config.BaseURL, "/"), sessionID)

	payload, err := json.Marshal(completeRequest{
		Transcript:        report.Transcript,
		QuestionResponses: report.Responses,
		DurationMinutes:   int(report.Duration.Round(time.Minute).Minutes()),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &PersistenceError{Op: "complete", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &PersistenceError{Op: "complete", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var result completeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse complete response: %w", err)
	}

	c.logger.Info().Str("session_id", sessionID).Msg("Session completed")
	return result.Feedback, nil
}
