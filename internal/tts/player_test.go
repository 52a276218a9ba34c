package tts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSynth struct {
	err error
}

func (s *stubSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(text), nil
}

// blockingOutput plays until its context is cancelled or release is
// closed, and counts concurrent playbacks.
type blockingOutput struct {
	concurrent atomic.Int32
	maxSeen    atomic.Int32
	plays      atomic.Int32
	release    chan struct{}
	err        error
}

func newBlockingOutput() *blockingOutput {
	return &blockingOutput{release: make(chan struct{})}
}

func (o *blockingOutput) Play(ctx context.Context, _ []byte) error {
	n := o.concurrent.Add(1)
	for {
		prev := o.maxSeen.Load()
		if n <= prev || o.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	o.plays.Add(1)
	defer o.concurrent.Add(-1)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.release:
		return o.err
	}
}

func TestSpeakPlaysToCompletion(t *testing.T) {
	output := newBlockingOutput()
	close(output.release) // playback returns immediately
	player := NewPlayer(&stubSynth{}, output, zerolog.Nop())

	require.NoError(t, player.Speak(context.Background(), "hello"))
	assert.Equal(t, int32(1), output.plays.Load())
	assert.False(t, player.Speaking())
}

func TestSpeakSingleFlight(t *testing.T) {
	output := newBlockingOutput()
	player := NewPlayer(&stubSynth{}, output, zerolog.Nop())

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- player.Speak(context.Background(), "first utterance")
	}()

	require.Eventually(t, player.Speaking, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- player.Speak(context.Background(), "second utterance")
	}()

	// Starting the second playback pre-empts the first.
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("first playback was never cancelled")
	}

	close(output.release)
	require.NoError(t, <-secondErr)

	assert.Equal(t, int32(1), output.maxSeen.Load(), "two playbacks overlapped")
	assert.Equal(t, int32(2), output.plays.Load())
}

func TestCancelCurrent(t *testing.T) {
	output := newBlockingOutput()
	player := NewPlayer(&stubSynth{}, output, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- player.Speak(context.Background(), "hello")
	}()
	require.Eventually(t, player.Speaking, time.Second, 5*time.Millisecond)

	player.CancelCurrent()
	assert.ErrorIs(t, <-errCh, ErrCancelled)
	assert.False(t, player.Speaking())

	// Idle cancels are no-ops.
	player.CancelCurrent()
	player.CancelCurrent()
}

func TestSpeakSynthesisFailure(t *testing.T) {
	player := NewPlayer(&stubSynth{err: errors.New("backend down")}, newBlockingOutput(), zerolog.Nop())

	err := player.Speak(context.Background(), "hello")
	require.Error(t, err)

	var pe *PlaybackError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "synthesis", pe.Stage)
}

func TestSpeakPlaybackFailure(t *testing.T) {
	output := newBlockingOutput()
	output.err = errors.New("device gone")
	close(output.release)
	player := NewPlayer(&stubSynth{}, output, zerolog.Nop())

	err := player.Speak(context.Background(), "hello")
	require.Error(t, err)

	var pe *PlaybackError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "playback", pe.Stage)
}

func TestSpeakCancelledContext(t *testing.T) {
	output := newBlockingOutput()
	player := NewPlayer(&stubSynth{}, output, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- player.Speak(ctx, "hello")
	}()
	require.Eventually(t, player.Speaking, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, ErrCancelled)
}
