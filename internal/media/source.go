// Package media owns acquisition and teardown of the live microphone
// stream. The Handle is the single owner of the underlying device; every
// other component sees only read-only taps on its audio track.
package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Common errors
var (
	// ErrPermissionDenied is fatal to the whole session: no microphone,
	// no interview.
	ErrPermissionDenied = errors.New("microphone permission denied")

	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Chunk is one captured slice of PCM audio.
type Chunk struct {
	Data      []byte
	Timestamp time.Time
}

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	BitDepth    int
	ChunkBytes  int
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.BitDepth <= 0 {
		c.BitDepth = 16
	}
	if c.ChunkBytes <= 0 {
		// 100ms of audio at the configured rate
		c.ChunkBytes = c.SampleRate * c.Channels * c.BitDepth / 8 / 10
	}
	return c
}

// DeviceSession is a live capture session on a physical device.
type DeviceSession interface {
	io.Reader
	Stop() error
}

// Device opens capture sessions. Implementations map their native
// failures to ErrPermissionDenied / ErrDeviceUnavailable.
type Device interface {
	Start(ctx context.Context, cfg CaptureConfig) (DeviceSession, error)
}

// Source acquires the microphone stream.
type Source struct {
	device Device
	logger zerolog.Logger
}

// NewSource creates a Source backed by the given capture device.
func NewSource(device Device, logger zerolog.Logger) *Source {
	return &Source{
		device: device,
		logger: logger.With().Str("component", "media").Logger(),
	}
}

// Acquire opens the device and starts the pump that feeds the track.
// Only audio is requested; there is no video path into analysis.
func (s *Source) Acquire(ctx context.Context, cfg CaptureConfig) (*Handle, error) {
	cfg = cfg.withDefaults()

	session, err := s.device.Start(ctx, cfg)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to acquire microphone")
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}

	h := &Handle{
		session: session,
		track:   newTrack(),
		logger:  s.logger,
		done:    make(chan struct{}),
	}

	go h.pump(cfg.ChunkBytes)

	s.logger.Info().
		Int("sample_rate", cfg.SampleRate).
		Int("channels", cfg.Channels).
		Msg("Microphone acquired")

	return h, nil
}

// Handle is the exclusive owner of the live capture stream.
type Handle struct {
	session DeviceSession
	track   *Track
	logger  zerolog.Logger

	releaseOnce sync.Once
	done        chan struct{}
}

// Track returns the audio track consumers may tap. Consumers never get
// lifecycle control over the stream.
func (h *Handle) Track() *Track {
	return h.track
}

// Release stops capture and closes the track. Safe to call from any exit
// path; only the first call stops the device.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		if err := h.session.Stop(); err != nil {
			h.logger.Warn().Err(err).Msg("Device stop reported error")
		}
		<-h.done
		h.track.close()
		h.logger.Info().Msg("Microphone released")
	})
}

func (h *Handle) pump(chunkBytes int) {
	defer close(h.done)

	buf := make([]byte, chunkBytes)
	for {
		n, err := h.session.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.track.deliver(Chunk{Data: data, Timestamp: time.Now()})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Warn().Err(err).Msg("Capture read ended")
			}
			return
		}
	}
}

// Track fans captured chunks out to read-only taps.
type Track struct {
	mu     sync.Mutex
	taps   map[*Tap]struct{}
	closed bool
}

func newTrack() *Track {
	return &Track{taps: make(map[*Tap]struct{})}
}

// Subscribe returns a new tap on the track. The tap's channel closes when
// either the tap or the track is closed.
func (t *Track) Subscribe() *Tap {
	tap := &Tap{
		ch:    make(chan Chunk, 256),
		track: t,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(tap.ch)
		tap.closed = true
		return tap
	}
	t.taps[tap] = struct{}{}
	return tap
}

func (t *Track) deliver(chunk Chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tap := range t.taps {
		select {
		case tap.ch <- chunk:
		default:
			// Slow consumer: drop rather than stall capture.
		}
	}
}

func (t *Track) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for tap := range t.taps {
		close(tap.ch)
		tap.closed = true
	}
	t.taps = make(map[*Tap]struct{})
}

func (t *Track) unsubscribe(tap *Tap) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.taps[tap]; !ok {
		return
	}
	delete(t.taps, tap)
	close(tap.ch)
	tap.closed = true
}

// Tap is a read-only chunk subscription.
type Tap struct {
	ch     chan Chunk
	track  *Track
	closed bool
}

// Chunks returns the tap's receive channel.
func (p *Tap) Chunks() <-chan Chunk {
	return p.ch
}

// Close detaches the tap from the track.
func (p *Tap) Close() {
	p.track.unsubscribe(p)
}
