// interviewd runs a single voice interview session from the terminal:
// it asks the scripted questions aloud, listens for spoken answers, and
// prints the transcript and final feedback.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/normanking/voiceinterview/internal/audio"
	"github.com/normanking/voiceinterview/internal/bus"
	"github.com/normanking/voiceinterview/internal/config"
	"github.com/normanking/voiceinterview/internal/dialogue"
	"github.com/normanking/voiceinterview/internal/interview"
	"github.com/normanking/voiceinterview/internal/logging"
	"github.com/normanking/voiceinterview/internal/media"
	"github.com/normanking/voiceinterview/internal/session"
	"github.com/normanking/voiceinterview/internal/stt"
	"github.com/normanking/voiceinterview/internal/tts"
)

func main() {
	problemID := flag.String("problem", "", "problem ID to interview on (required)")
	verbose := flag.Bool("verbose", false, "log debug detail to the console")
	flag.Parse()

	if *problemID == "" {
		fmt.Fprintln(os.Stderr, "usage: interviewd -problem <problem-id>")
		os.Exit(2)
	}

	// Local overrides (API keys etc.) come from .env when present.
	_ = godotenv.Load()

	if err := run(*problemID, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "interviewd: %v\n", err)
		os.Exit(1)
	}
}

func run(problemID string, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	log := logger.Component("main")
	events := bus.NewEventBus()

	controller, player, err := buildController(cfg, logger, events)
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(logger.Component("config"), func(next *config.Config) {
		controller.UpdateEndpointing(monitorConfig(next))
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Close()
	}

	done := make(chan struct{})
	wireConsole(events, done)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.Start(ctx, problemID); err != nil {
		return fmt.Errorf("start interview: %w", err)
	}
	go manualFinishLoop(os.Stdin, controller.FinishResponse)

	select {
	case <-ctx.Done():
		log.Info().Msg("Interrupt received, ending interview")
		if player.Speaking() {
			fmt.Println("(cutting the interviewer off)")
		}
		endCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := controller.EndInterview(endCtx); err != nil {
			log.Warn().Err(err).Msg("Interview completion reported an error")
		}
	case <-done:
	}

	printOutcome(controller)
	return nil
}

// manualFinishLoop ends the current answer on each Enter keypress, the
// manual fallback for when the silence detector misses a pause.
func manualFinishLoop(r io.Reader, finish func() error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// Fails with ErrNotListening outside an answer; the keypress is
		// simply ignored then.
		_ = finish()
	}
}

func buildController(cfg *config.Config, logger *logging.Logger, events *bus.EventBus) (*interview.Controller, *tts.Player, error) {
	source := media.NewSource(media.NewFFmpegDevice("ffmpeg"), logger.Component("media"))

	monitor := audio.NewMonitor(monitorConfig(cfg), logger.Component("monitor"))
	recorder := audio.NewRecorder(audio.RecorderConfig{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}, logger.Component("recorder"))

	transcriber, err := buildTranscriber(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	ttsClient := tts.NewClient(&tts.ClientConfig{
		Endpoint: orDefault(cfg.TTS.Endpoint, cfg.API.BaseURL+"/tts"),
		Voice:    cfg.TTS.Voice,
		Timeout:  cfg.TTS.Timeout,
	}, logger.Component("tts"))
	player := tts.NewPlayer(ttsClient, tts.NewFFplayOutput("ffplay"), logger.Component("player"))

	followUps := dialogueClient(cfg, logger)

	api := session.NewClient(&session.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, logger.Component("session"))

	bytesPerSecond := cfg.Audio.SampleRate * cfg.Audio.Channels * cfg.Audio.BitDepth / 8
	capture := media.CaptureConfig{
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		BitDepth:    cfg.Audio.BitDepth,
		ChunkBytes:  bytesPerSecond * cfg.Audio.ChunkDurationMs / 1000,
	}

	return interview.NewController(interview.Deps{
		Media:       source,
		Monitor:     monitor,
		Recorder:    recorder,
		Transcriber: transcriber,
		FollowUps:   followUps,
		Player:      player,
		API:         api,
	}, interview.Config{
		Capture:     capture,
		Endpointing: monitorConfig(cfg),
	}, events, logger.Zerolog()), player, nil
}

func buildTranscriber(cfg *config.Config, logger *logging.Logger) (interview.Transcriber, error) {
	switch cfg.STT.Provider {
	case "deepgram":
		dg := stt.DefaultDeepgramConfig()
		dg.APIKey = cfg.STT.APIKey
		if cfg.STT.Endpoint != "" {
			dg.Endpoint = cfg.STT.Endpoint
		}
		if cfg.STT.Model != "" {
			dg.Model = cfg.STT.Model
		}
		dg.Language = cfg.STT.Language
		dg.Timeout = cfg.STT.Timeout
		return stt.NewDeepgramProvider(dg, logger.Component("stt")), nil
	case "whisper", "":
		return stt.NewWhisperProvider(&stt.WhisperConfig{
			Endpoint: cfg.STT.Endpoint,
			APIKey:   cfg.STT.APIKey,
			Model:    cfg.STT.Model,
			Language: cfg.STT.Language,
			Timeout:  cfg.STT.Timeout,
		}, logger.Component("stt")), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.STT.Provider)
	}
}

func dialogueClient(cfg *config.Config, logger *logging.Logger) interview.FollowUpSource {
	return dialogue.NewClient(&dialogue.ClientConfig{
		Endpoint: orDefault(cfg.Dialogue.Endpoint, cfg.API.BaseURL+"/followup"),
		Timeout:  cfg.Dialogue.Timeout,
	}, logger.Component("dialogue"))
}

func monitorConfig(cfg *config.Config) audio.MonitorConfig {
	return audio.MonitorConfig{
		SilenceThreshold: cfg.Endpointing.SilenceThreshold,
		SilenceDuration:  cfg.Endpointing.SilenceDuration,
		MinTurnDuration:  cfg.Endpointing.MinTurnDuration,
		TickInterval:     cfg.Endpointing.TickInterval,
		BitDepth:         cfg.Audio.BitDepth,
	}
}

// wireConsole prints the running conversation and closes done when the
// session finishes.
func wireConsole(events *bus.EventBus, done chan struct{}) {
	events.Subscribe(bus.EventTypeSpeakingStarted, func(e bus.Event) {
		if text, ok := e.Data["text"].(string); ok {
			fmt.Printf("\nInterviewer: %s\n", text)
		}
	})
	events.Subscribe(bus.EventTypeListeningStarted, func(bus.Event) {
		fmt.Println("(listening... press Enter when you're done)")
	})
	events.Subscribe(bus.EventTypeTranscript, func(e bus.Event) {
		if text, ok := e.Data["text"].(string); ok {
			fmt.Printf("You: %s\n", text)
		}
	})
	events.Subscribe(bus.EventTypeRetryPrompt, func(bus.Event) {
		fmt.Println("(having trouble hearing you, bear with me...)")
	})
	events.Subscribe(bus.EventTypeSessionCompleted, func(bus.Event) {
		close(done)
	})
}

func printOutcome(controller *interview.Controller) {
	if feedback := controller.Feedback(); feedback != "" {
		fmt.Printf("\n--- Feedback ---\n%s\n", feedback)
	}
	if sess := controller.Session(); sess != nil {
		fmt.Printf("\nSession %s finished with %d turns recorded.\n",
			sess.ID, controller.Log().Len())
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
