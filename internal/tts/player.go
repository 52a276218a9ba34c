package tts

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Output plays encoded audio and returns when playback ends or its
// context is cancelled.
type Output interface {
	Play(ctx context.Context, audio []byte) error
}

// Synthesizer converts text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player speaks interviewer utterances. At most one utterance is audible
// at a time: starting a new one cancels the previous playback and waits
// for its resources to be released. That invariant lives here, not in
// the callers.
type Player struct {
	synth  Synthesizer
	output Output
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayer creates a Player.
func NewPlayer(synth Synthesizer, output Output, logger zerolog.Logger) *Player {
	return &Player{
		synth:  synth,
		output: output,
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Speak synthesizes the text and blocks until playback finishes. Any
// prior playback is cancelled first. Returns ErrCancelled when this
// playback itself was pre-empted.
func (p *Player) Speak(ctx context.Context, text string) error {
	audio, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return &PlaybackError{Stage: "synthesis", Err: err}
	}
	return p.play(ctx, audio)
}

func (p *Player) play(ctx context.Context, audio []byte) error {
	p.CancelCurrent()

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	err := p.output.Play(playCtx, audio)

	p.mu.Lock()
	if p.done == done {
		p.cancel = nil
		p.done = nil
	}
	p.mu.Unlock()

	close(done)
	cancel()

	if playCtx.Err() != nil {
		p.logger.Debug().Msg("Playback cancelled")
		return ErrCancelled
	}
	if err != nil {
		return &PlaybackError{Stage: "playback", Err: err}
	}
	return nil
}

// CancelCurrent stops any active playback and waits for it to release
// its output. Calling it when nothing is playing is a no-op.
func (p *Player) CancelCurrent() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Speaking reports whether playback is in flight.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}
