// Package stt provides speech-to-text transcription of finished
// candidate utterances.
package stt

import (
	"context"
	"fmt"

	"github.com/normanking/voiceinterview/internal/audio"
)

// Error is a transcription failure. The controller treats it as
// recoverable: one retry, then degrade.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Provider transcribes one utterance per call.
type Provider interface {
	// Name returns the provider identifier (e.g., "whisper", "deepgram")
	Name() string

	// Transcribe converts a finished utterance to text.
	Transcribe(ctx context.Context, utt audio.Utterance) (string, error)
}
