// Package config provides configuration management for the voice interview
// orchestrator.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Audio       AudioConfig       `mapstructure:"audio"`
	Endpointing EndpointingConfig `mapstructure:"endpointing"`
	STT         STTConfig         `mapstructure:"stt"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Dialogue    DialogueConfig    `mapstructure:"dialogue"`
}

// APIConfig configures the interview backend API client
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AudioConfig configures microphone capture
type AudioConfig struct {
	InputFormat     string `mapstructure:"input_format"` // ffmpeg input format (pulse, alsa, avfoundation)
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	BitDepth        int    `mapstructure:"bit_depth"`
	ChunkDurationMs int    `mapstructure:"chunk_duration_ms"`
}

// EndpointingConfig configures automatic end-of-turn detection.
// The source values these replace were untuned magic numbers; they are
// configuration here so deployments can adjust them.
type EndpointingConfig struct {
	SilenceThreshold float64       `mapstructure:"silence_threshold"` // normalized peak amplitude (0-1)
	SilenceDuration  time.Duration `mapstructure:"silence_duration"`  // silence before the turn ends
	MinTurnDuration  time.Duration `mapstructure:"min_turn_duration"` // turns shorter than this never end automatically
	TickInterval     time.Duration `mapstructure:"tick_interval"`     // amplitude sampling period
}

// STTConfig configures speech-to-text
type STTConfig struct {
	Provider string        `mapstructure:"provider"` // whisper, deepgram
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TTSConfig configures speech synthesis
type TTSConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // defaults to API base + /tts
	Voice    string        `mapstructure:"voice"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DialogueConfig configures follow-up question generation
type DialogueConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // defaults to API base + /followup
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Audio: AudioConfig{
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
			BitDepth:        16,
			ChunkDurationMs: 100,
		},
		Endpointing: EndpointingConfig{
			SilenceThreshold: 0.06,
			SilenceDuration:  3 * time.Second,
			MinTurnDuration:  500 * time.Millisecond,
			TickInterval:     16 * time.Millisecond,
		},
		STT: STTConfig{
			Provider: "whisper",
			Endpoint: "https://api.openai.com/v1/audio/transcriptions",
			Model:    "whisper-1",
			Language: "",
			Timeout:  30 * time.Second,
		},
		TTS: TTSConfig{
			Endpoint: "",
			Voice:    "nova",
			Timeout:  30 * time.Second,
		},
		Dialogue: DialogueConfig{
			Endpoint: "",
			Timeout:  20 * time.Second,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := Dir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("VOICEINTERVIEW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("api", cfg.API)
	viper.Set("audio", cfg.Audio)
	viper.Set("endpointing", cfg.Endpointing)
	viper.Set("stt", cfg.STT)
	viper.Set("tts", cfg.TTS)
	viper.Set("dialogue", cfg.Dialogue)

	return viper.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// Dir returns the configuration directory path
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".voiceinterview"), nil
}
