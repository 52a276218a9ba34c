package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voiceinterview/internal/audio"
)

// WhisperProvider transcribes utterances through a Whisper-style HTTP
// endpoint: multipart audio upload in, {"text": ...} out.
type WhisperProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *WhisperConfig
}

// WhisperConfig holds Whisper API configuration
type WhisperConfig struct {
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Language string        `json:"language"` // optional hint
	Timeout  time.Duration `json:"timeout"`
}

// DefaultWhisperConfig returns sensible defaults
func DefaultWhisperConfig() *WhisperConfig {
	return &WhisperConfig{
		Endpoint: "https://api.openai.com/v1/audio/transcriptions",
		Model:    "whisper-1",
		Language: "",
		Timeout:  30 * time.Second,
	}
}

// NewWhisperProvider creates a Whisper HTTP transcription provider.
func NewWhisperProvider(config *WhisperConfig, logger zerolog.Logger) *WhisperProvider {
	if config == nil {
		config = DefaultWhisperConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &WhisperProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "whisper").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *WhisperProvider) Name() string {
	return "whisper"
}

// Transcribe uploads the utterance and returns its transcript.
func (p *WhisperProvider) Transcribe(ctx context.Context, utt audio.Utterance) (string, error) {
	startTime := time.Now()

	if len(utt.Data) == 0 {
		return "", &Error{Provider: p.Name(), Err: audio.ErrEmptyRecording}
	}

	payload := utt.Data
	filename := "utterance." + utt.Format
	if utt.Format == "pcm" || utt.Format == "" {
		payload = wrapWAV(utt.Data, utt.SampleRate, utt.Channels)
		filename = "utterance.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	if _, err := part.Write(payload); err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	if err := writer.WriteField("model", p.config.Model); err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	if p.config.Language != "" {
		if err := writer.WriteField("language", p.config.Language); err != nil {
			return "", &Error{Provider: p.Name(), Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, &buf)
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: p.Name(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Whisper API error")
		return "", &Error{Provider: p.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &Error{Provider: p.Name(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	p.logger.Info().Str("text", result.Text).Dur("time", time.Since(startTime)).Msg("Transcription complete")
	return result.Text, nil
}

// wrapWAV prefixes raw 16-bit PCM with a RIFF/WAVE header.
func wrapWAV(pcm []byte, sampleRate, channels int) []byte {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if channels == 0 {
		channels = 1
	}

	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}
