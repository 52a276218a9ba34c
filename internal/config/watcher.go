package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the config file when it changes and hands the result to
// a callback. Endpointing thresholds in particular are meant to be tuned
// while a session is idle.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
	onLoad  func(*Config)

	mu   sync.Mutex
	done chan struct{}
}

// NewWatcher starts watching the config directory. onLoad is invoked with
// the freshly loaded config after each write event.
func NewWatcher(logger zerolog.Logger, onLoad func(*Config)) (*Watcher, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		logger:  logger.With().Str("component", "config-watcher").Logger(),
		onLoad:  onLoad,
		done:    make(chan struct{}),
	}

	go w.watchLoop()

	return w, nil
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load()
			if err != nil {
				w.logger.Warn().Err(err).Str("file", event.Name).Msg("Config reload failed")
				continue
			}
			w.logger.Info().Str("file", event.Name).Msg("Config reloaded")
			w.onLoad(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Config watch error")
		case <-w.done:
			return
		}
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
