package audio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voiceinterview/internal/media"
)

// RecorderConfig describes the audio the recorder buffers.
type RecorderConfig struct {
	SampleRate int
	Channels   int
}

// Recorder buffers the captured chunks of exactly one candidate turn.
// The buffer is fresh at every Start, so two consecutive turns can never
// bleed into each other.
type Recorder struct {
	cfg    RecorderConfig
	logger zerolog.Logger

	mu        sync.Mutex
	tap       *media.Tap
	buf       []byte
	chunks    int
	startedAt time.Time
	active    bool
	flushed   chan struct{}
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg RecorderConfig, logger zerolog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		logger: logger.With().Str("component", "recorder").Logger(),
	}
}

// Start resets the buffer and begins collecting chunks from the track.
func (r *Recorder) Start(track *media.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrAlreadyRecording
	}

	r.tap = track.Subscribe()
	r.buf = r.buf[:0]
	r.chunks = 0
	r.startedAt = time.Now()
	r.active = true
	r.flushed = make(chan struct{})

	go r.collect(r.tap, r.flushed)

	r.logger.Debug().Msg("Recording started")
	return nil
}

func (r *Recorder) collect(tap *media.Tap, flushed chan struct{}) {
	defer close(flushed)
	for chunk := range tap.Chunks() {
		r.mu.Lock()
		r.buf = append(r.buf, chunk.Data...)
		r.chunks++
		r.mu.Unlock()
	}
}

// Stop finalizes the current turn's audio. It returns only after the
// final buffered chunk has been flushed into the utterance. A turn that
// captured nothing yields ErrEmptyRecording instead of an empty blob.
func (r *Recorder) Stop() (Utterance, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return Utterance{}, ErrNotRecording
	}
	tap := r.tap
	flushed := r.flushed
	r.mu.Unlock()

	// Closing the tap ends the collect loop once every delivered chunk
	// has been appended.
	tap.Close()
	<-flushed

	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = false
	r.tap = nil

	if r.chunks == 0 || len(r.buf) == 0 {
		r.logger.Warn().Msg("Recording stopped with no audio")
		return Utterance{}, ErrEmptyRecording
	}

	data := make([]byte, len(r.buf))
	copy(data, r.buf)
	r.buf = r.buf[:0]

	utt := Utterance{
		Data:       data,
		Format:     "pcm",
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
		StartedAt:  r.startedAt,
		EndedAt:    time.Now(),
	}

	r.logger.Debug().
		Int("bytes", len(data)).
		Dur("duration", utt.EndedAt.Sub(utt.StartedAt)).
		Msg("Recording finalized")

	return utt, nil
}

// Discard stops collection and drops the buffer without producing an
// utterance. Used when a session ends mid-turn.
func (r *Recorder) Discard() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	tap := r.tap
	flushed := r.flushed
	r.mu.Unlock()

	tap.Close()
	<-flushed

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.tap = nil
	r.buf = r.buf[:0]
	r.chunks = 0
	r.logger.Debug().Msg("Recording discarded")
}

// Active reports whether a turn is currently being recorded.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}
