package audio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voiceinterview/internal/media"
)

// MonitorConfig configures automatic end-of-turn detection.
type MonitorConfig struct {
	SilenceThreshold float64       // normalized peak amplitude (0-1)
	SilenceDuration  time.Duration // silence this long ends the turn
	MinTurnDuration  time.Duration // turns shorter than this never end automatically
	TickInterval     time.Duration // amplitude sampling period
	BitDepth         int
}

// DefaultMonitorConfig returns sensible defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SilenceThreshold: 0.06,
		SilenceDuration:  3 * time.Second,
		MinTurnDuration:  500 * time.Millisecond,
		TickInterval:     16 * time.Millisecond,
		BitDepth:         16,
	}
}

// Monitor watches the live audio track while the candidate holds the
// floor and fires exactly one end-of-turn signal per Start. Silence
// detection is a heuristic; the manual finish control remains the
// fallback for quiet speakers and loud rooms.
type Monitor struct {
	cfg    MonitorConfig
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	stopped chan struct{}
}

// NewMonitor creates an activity monitor.
func NewMonitor(cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 16 * time.Millisecond
	}
	if cfg.BitDepth <= 0 {
		cfg.BitDepth = 16
	}
	return &Monitor{
		cfg:    cfg,
		logger: logger.With().Str("component", "monitor").Logger(),
	}
}

// SetConfig replaces the monitor thresholds. Takes effect on the next
// Start.
func (m *Monitor) SetConfig(cfg MonitorConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = m.cfg.TickInterval
	}
	if cfg.BitDepth <= 0 {
		cfg.BitDepth = m.cfg.BitDepth
	}
	m.cfg = cfg
}

// Start begins sampling the track. onEndOfTurn runs at most once, after
// which the monitor has already stopped itself.
func (m *Monitor) Start(track *media.Track, onEndOfTurn func()) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.running = true
	cfg := m.cfg
	stop := make(chan struct{})
	stopped := make(chan struct{})
	m.stop = stop
	m.stopped = stopped
	m.mu.Unlock()

	tap := track.Subscribe()
	go m.run(cfg, tap, onEndOfTurn, stop, stopped)
	return nil
}

// Stop cancels the sampling tick immediately. Idempotent; safe to call
// after the monitor fired on its own.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	stopped := m.stopped
	running := m.running
	m.mu.Unlock()

	if !running {
		return
	}

	select {
	case <-stop:
	default:
		close(stop)
	}
	<-stopped
}

func (m *Monitor) run(cfg MonitorConfig, tap *media.Tap, onEndOfTurn func(), stop, stopped chan struct{}) {
	defer func() {
		tap.Close()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(stopped)
	}()

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	startedAt := time.Now()
	lastLoudAt := startedAt
	var windowPeak float64

	for {
		select {
		case <-stop:
			return
		case chunk, ok := <-tap.Chunks():
			if !ok {
				return
			}
			if peak := peakAmplitude(chunk.Data, cfg.BitDepth); peak > windowPeak {
				windowPeak = peak
			}
		case now := <-ticker.C:
			peak := windowPeak
			windowPeak = 0

			if peak >= cfg.SilenceThreshold {
				lastLoudAt = now
				continue
			}

			if now.Sub(lastLoudAt) >= cfg.SilenceDuration && now.Sub(startedAt) >= cfg.MinTurnDuration {
				m.logger.Debug().
					Dur("silence", now.Sub(lastLoudAt)).
					Dur("turn", now.Sub(startedAt)).
					Msg("End of turn detected")
				// Invoked on its own goroutine so the handler can call
				// Stop without deadlocking on this loop.
				go onEndOfTurn()
				return
			}
		}
	}
}
