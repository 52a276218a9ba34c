package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/voiceinterview/internal/audio"
)

const (
	deepgramWSEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramModel      = "nova-2"
)

// DeepgramProvider transcribes utterances over Deepgram's streaming
// websocket. The utterance is already complete when Transcribe runs, so
// the stream is written in one burst and drained for final transcripts.
type DeepgramProvider struct {
	apiKey string
	logger zerolog.Logger
	config *DeepgramConfig
}

// DeepgramConfig holds Deepgram configuration
type DeepgramConfig struct {
	Endpoint  string        `json:"endpoint"`
	APIKey    string        `json:"api_key"`
	Model     string        `json:"model"`
	Language  string        `json:"language"`
	Punctuate bool          `json:"punctuate"`
	Timeout   time.Duration `json:"timeout"`
	ChunkSize int           `json:"chunk_size"`
}

// DefaultDeepgramConfig returns sensible defaults
func DefaultDeepgramConfig() *DeepgramConfig {
	return &DeepgramConfig{
		Endpoint:  deepgramWSEndpoint,
		Model:     deepgramModel,
		Language:  "en-US",
		Punctuate: true,
		Timeout:   30 * time.Second,
		ChunkSize: 8192,
	}
}

// NewDeepgramProvider creates a Deepgram streaming transcription provider.
func NewDeepgramProvider(config *DeepgramConfig, logger zerolog.Logger) *DeepgramProvider {
	if config == nil {
		config = DefaultDeepgramConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}

	return &DeepgramProvider{
		apiKey: apiKey,
		logger: logger.With().Str("provider", "deepgram").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe streams the utterance and concatenates the final results.
func (p *DeepgramProvider) Transcribe(ctx context.Context, utt audio.Utterance) (string, error) {
	if p.apiKey == "" {
		return "", &Error{Provider: p.Name(), Err: fmt.Errorf("Deepgram API key not configured")}
	}
	if len(utt.Data) == 0 {
		return "", &Error{Provider: p.Name(), Err: audio.ErrEmptyRecording}
	}

	timeout := p.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dial(ctx, utt)
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	defer conn.Close()

	if err := p.sendAudio(conn, utt.Data); err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}

	text, err := p.collectFinals(ctx, conn)
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}

	p.logger.Info().Str("text", text).Msg("Transcription complete")
	return text, nil
}

func (p *DeepgramProvider) dial(ctx context.Context, utt audio.Utterance) (*websocket.Conn, error) {
	endpoint := p.config.Endpoint
	if endpoint == "" {
		endpoint = deepgramWSEndpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("model", p.config.Model)
	q.Set("language", p.config.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(utt.SampleRate))
	q.Set("channels", strconv.Itoa(utt.Channels))
	q.Set("punctuate", strconv.FormatBool(p.config.Punctuate))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (p *DeepgramProvider) sendAudio(conn *websocket.Conn, data []byte) error {
	chunkSize := p.config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 8192
	}

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data[offset:end]); err != nil {
			return fmt.Errorf("failed to stream audio: %w", err)
		}
	}

	// Tell Deepgram the stream is done so it flushes final results.
	return conn.WriteJSON(map[string]string{"type": "CloseStream"})
}

func (p *DeepgramProvider) collectFinals(ctx context.Context, conn *websocket.Conn) (string, error) {
	var parts []string

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			if len(parts) > 0 {
				// The socket may drop right after the last final result.
				break
			}
			return "", fmt.Errorf("websocket read failed: %w", err)
		}

		var result deepgramResult
		if err := json.Unmarshal(message, &result); err != nil {
			continue
		}

		if result.Type == "Metadata" {
			break
		}
		if !result.IsFinal || len(result.Channel.Alternatives) == 0 {
			continue
		}
		if transcript := strings.TrimSpace(result.Channel.Alternatives[0].Transcript); transcript != "" {
			parts = append(parts, transcript)
		}
	}

	return strings.Join(parts, " "), nil
}
