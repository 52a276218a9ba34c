// Package audio provides end-of-turn detection and per-turn recording on
// top of the shared media track.
package audio

import (
	"errors"
	"math"
	"time"
)

// Common errors
var (
	// ErrEmptyRecording means a turn captured zero audio; it is recoverable
	// by listening again instead of sending an empty transcription request.
	ErrEmptyRecording = errors.New("recording captured no audio")

	ErrNotRecording     = errors.New("recorder not started")
	ErrAlreadyRecording = errors.New("recorder already started")
	ErrMonitorRunning   = errors.New("activity monitor already running")
)

// Utterance is the finished audio of one candidate turn. It lives only
// long enough to be transcribed and is never persisted.
type Utterance struct {
	Data       []byte
	Format     string // pcm
	SampleRate int
	Channels   int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Duration derives the utterance length from its PCM size.
func (u Utterance) Duration(bitDepth int) time.Duration {
	if u.SampleRate <= 0 || u.Channels <= 0 || bitDepth <= 0 {
		return 0
	}
	samples := len(u.Data) / (bitDepth / 8 * u.Channels)
	return time.Duration(samples) * time.Second / time.Duration(u.SampleRate)
}

// peakAmplitude returns the largest normalized sample magnitude (0-1) in
// the chunk.
func peakAmplitude(data []byte, bitDepth int) float64 {
	if len(data) == 0 {
		return 0
	}

	var peak float64

	switch bitDepth {
	case 16:
		// 16-bit signed PCM, little endian
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(data[i]) | int16(data[i+1])<<8
			normalized := math.Abs(float64(sample)) / 32768.0
			if normalized > peak {
				peak = normalized
			}
		}
	case 32:
		// 32-bit float PCM
		for i := 0; i+3 < len(data); i += 4 {
			bits := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
			normalized := math.Abs(float64(math.Float32frombits(bits)))
			if normalized > peak {
				peak = normalized
			}
		}
	default:
		// 8-bit unsigned PCM
		for _, b := range data {
			normalized := math.Abs(float64(b)-128.0) / 128.0
			if normalized > peak {
				peak = normalized
			}
		}
	}

	return peak
}
