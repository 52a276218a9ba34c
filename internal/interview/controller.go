// Package interview contains the turn-taking controller that conducts a
// spoken interview session: it owns the session state, decides who holds
// the floor, and sequences capture, transcription, dialogue, and speech.
package interview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/voiceinterview/internal/audio"
	"github.com/normanking/voiceinterview/internal/bus"
	"github.com/normanking/voiceinterview/internal/dialogue"
	"github.com/normanking/voiceinterview/internal/media"
	"github.com/normanking/voiceinterview/internal/session"
	"github.com/normanking/voiceinterview/internal/tts"
)

// State is the single turn-taking state. Holding it in one field makes
// illegal combinations (listening while speaking) unrepresentable.
type State string

const (
	StateIdle       State = "idle"
	StateAiSpeaking State = "ai_speaking"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
)

// Common errors
var (
	ErrAlreadyStarted = errors.New("interview already started")
	ErrNotListening   = errors.New("not listening for a response")
	ErrCompleted      = errors.New("interview already completed")
)

// maxTurnFailures bounds consecutive recoverable failures on one turn
// before the controller degrades instead of looping.
const maxTurnFailures = 2

// MediaSource acquires the microphone stream.
type MediaSource interface {
	Acquire(ctx context.Context, cfg media.CaptureConfig) (*media.Handle, error)
}

// Transcriber converts a finished utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, utt audio.Utterance) (string, error)
}

// FollowUpSource generates the interviewer's next utterance from the
// candidate's answer.
type FollowUpSource interface {
	FollowUp(ctx context.Context, answer string) (string, error)
}

// SpeechPlayer speaks interviewer utterances, one at a time.
type SpeechPlayer interface {
	Speak(ctx context.Context, text string) error
	CancelCurrent()
}

// SessionAPI is the interview backend.
type SessionAPI interface {
	Start(ctx context.Context, problemID string) (*session.Session, error)
	AppendMessages(ctx context.Context, sessionID string, messages []session.Message) error
	Complete(ctx context.Context, sessionID string, report session.Report) (string, error)
}

// Config holds controller configuration.
type Config struct {
	Capture     media.CaptureConfig
	Endpointing audio.MonitorConfig
}

// Deps are the collaborating components.
type Deps struct {
	Media       MediaSource
	Monitor     *audio.Monitor
	Recorder    *audio.Recorder
	Transcriber Transcriber
	FollowUps   FollowUpSource
	Player      SpeechPlayer
	API         SessionAPI
}

// Controller is the turn-taking orchestrator. All shared session state
// lives here and is mutated only under mu; every async completion is
// tagged with the generation it was spawned under and discarded when the
// generations no longer match.
type Controller struct {
	deps   Deps
	cfg    Config
	events *bus.EventBus
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	sess       *session.Session
	log        *session.ConversationLog
	handle     *media.Handle
	sessCtx    context.Context
	sessCancel context.CancelFunc
	failures   int
	feedback   string
}

// NewController creates a Controller.
func NewController(deps Deps, cfg Config, events *bus.EventBus, logger zerolog.Logger) *Controller {
	return &Controller{
		deps:   deps,
		cfg:    cfg,
		events: events,
		logger: logger.With().Str("component", "controller").Logger(),
		state:  StateIdle,
		log:    session.NewConversationLog(),
	}
}

// State returns the current turn-taking state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Log returns the conversation log.
func (c *Controller) Log() *session.ConversationLog {
	return c.log
}

// Session returns a snapshot of the session, or nil before Start.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	snapshot := *c.sess
	snapshot.Questions = append([]session.Question(nil), c.sess.Questions...)
	return &snapshot
}

// Feedback returns the evaluation feedback once the session completed.
func (c *Controller) Feedback() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedback
}

// UpdateEndpointing applies new endpointing thresholds; they take effect
// at the next listening turn.
func (c *Controller) UpdateEndpointing(cfg audio.MonitorConfig) {
	c.mu.Lock()
	c.cfg.Endpointing = cfg
	c.mu.Unlock()
	c.deps.Monitor.SetConfig(cfg)
}

// Start acquires the microphone, creates the session, and speaks the
// opening question. A denied microphone is fatal: no turn logic runs.
func (c *Controller) Start(ctx context.Context, problemID string) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateIdle {
		if state == StateCompleted {
			return ErrCompleted
		}
		return ErrAlreadyStarted
	}

	handle, err := c.deps.Media.Acquire(ctx, c.cfg.Capture)
	if err != nil {
		c.publish(bus.EventTypeSessionError, map[string]any{"error": err.Error()})
		return err
	}

	sess, err := c.deps.API.Start(ctx, problemID)
	if err != nil {
		handle.Release()
		c.publish(bus.EventTypeSessionError, map[string]any{"error": err.Error()})
		return err
	}

	first, ok := sess.CurrentQuestion()
	if !ok {
		handle.Release()
		return errors.New("session has no questions")
	}

	sessCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		cancel()
		handle.Release()
		if state == StateCompleted {
			return ErrCompleted
		}
		return ErrAlreadyStarted
	}
	c.sess = sess
	c.handle = handle
	c.sessCtx = sessCtx
	c.sessCancel = cancel
	sess.MarkAsked(sess.CurrentIndex)

	opening := dialogue.Opening(sess.ProblemTitle, first.Text, len(sess.Questions))
	gen := c.generation
	c.setStateLocked(StateAiSpeaking)
	c.appendTurnLocked(session.SpeakerAI, opening)
	c.mu.Unlock()

	c.publish(bus.EventTypeSessionStarted, map[string]any{"session_id": sess.ID})
	c.publish(bus.EventTypeQuestionAsked, map[string]any{"index": 0, "question": first.Text})
	c.persistMessages([]session.Message{{Speaker: string(session.SpeakerAI), Message: opening}})

	go c.speak(gen, opening, false)
	return nil
}

// FinishResponse is the manual end-of-turn override for when silence
// detection misses quiet speech.
func (c *Controller) FinishResponse() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateListening {
		return ErrNotListening
	}
	c.beginProcessingLocked(c.generation)
	return nil
}

// EndInterview completes the session from any state, cancelling whatever
// is in flight and releasing every media resource.
func (c *Controller) EndInterview(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return nil
	}
	c.completeLocked()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	return c.finalize(ctx)
}

// speak plays one interviewer utterance; when it ends the floor passes
// to the candidate, or the session completes after the closing remark.
func (c *Controller) speak(gen uint64, text string, closing bool) {
	c.publish(bus.EventTypeSpeakingStarted, map[string]any{"text": text})
	err := c.deps.Player.Speak(c.sessCtx, text)
	c.publish(bus.EventTypeSpeakingStopped, nil)

	if err != nil {
		if errors.Is(err, tts.ErrCancelled) {
			return
		}
		var pe *tts.PlaybackError
		if errors.As(err, &pe) {
			// Audio trouble never blocks the session; move on as if
			// playback finished.
			c.logger.Warn().Err(err).Msg("Playback failed, continuing")
		}
	}

	c.mu.Lock()
	if gen != c.generation || c.state != StateAiSpeaking {
		c.mu.Unlock()
		return
	}

	if closing {
		c.completeLocked()
		c.mu.Unlock()
		if err := c.finalize(context.Background()); err != nil {
			c.logger.Error().Err(err).Msg("Session finalization failed")
		}
		return
	}

	c.enterListeningLocked(gen)
	c.mu.Unlock()
}

// enterListeningLocked hands the floor to the candidate.
func (c *Controller) enterListeningLocked(gen uint64) {
	c.setStateLocked(StateListening)

	track := c.handle.Track()
	if c.deps.Recorder.Active() {
		// A recording left over from an aborted turn never leaks into
		// this one.
		c.deps.Recorder.Discard()
	}
	if err := c.deps.Recorder.Start(track); err != nil {
		c.logger.Error().Err(err).Msg("Recorder start failed")
	}
	if err := c.deps.Monitor.Start(track, func() {
		c.onEndOfTurn(gen)
	}); err != nil {
		c.logger.Error().Err(err).Msg("Monitor start failed")
	}

	c.publish(bus.EventTypeListeningStarted, nil)
}

func (c *Controller) onEndOfTurn(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != StateListening {
		return
	}
	c.publish(bus.EventTypeEndOfTurn, nil)
	c.beginProcessingLocked(gen)
}

// beginProcessingLocked takes the floor back: stop sampling, finalize
// the recording, and hand the utterance to the processing pipeline.
func (c *Controller) beginProcessingLocked(gen uint64) {
	c.setStateLocked(StateProcessing)
	c.deps.Monitor.Stop()
	c.publish(bus.EventTypeListeningStopped, nil)

	utt, err := c.deps.Recorder.Stop()
	if err != nil {
		if errors.Is(err, audio.ErrEmptyRecording) {
			c.failures++
			if c.failures >= maxTurnFailures {
				c.logger.Warn().Msg("Repeated empty recordings, degrading")
				c.advanceLocked(gen, answeredTurn{}, "")
				return
			}
			c.logger.Warn().Msg("Empty recording, prompting and listening again")
			c.publish(bus.EventTypeRetryPrompt, map[string]any{"reason": "empty_recording"})
			c.setStateLocked(StateAiSpeaking)
			// Prompts and the closing remark are spoken, not logged;
			// the log records only the question/answer exchange.
			go c.speak(gen, dialogue.RetryPrompt(), false)
			return
		}
		c.logger.Error().Err(err).Msg("Recorder stop failed")
		c.enterListeningLocked(gen)
		return
	}

	go c.process(gen, utt)
}

// process transcribes the utterance and derives the next interviewer
// utterance. It runs off the lock; its results are discarded if the
// session moved on while it was in flight.
func (c *Controller) process(gen uint64, utt audio.Utterance) {
	ctx := c.sessCtx

	transcript, terr := c.transcribeWithRetry(ctx, utt)
	if terr != nil {
		c.logger.Warn().Err(terr).Msg("Transcription failed twice, degrading")
	}

	c.mu.Lock()
	if gen != c.generation || c.state != StateProcessing {
		// A stale result from a superseded turn never touches state.
		c.mu.Unlock()
		return
	}

	if terr != nil {
		c.publish(bus.EventTypeRetryPrompt, map[string]any{"reason": "transcription"})
		c.advanceLocked(gen, answeredTurn{startedAt: utt.StartedAt, endedAt: utt.EndedAt}, "")
		c.mu.Unlock()
		return
	}

	c.publish(bus.EventTypeTranscript, map[string]any{"text": transcript})
	next, hasNext := c.sess.NextQuestion()
	c.mu.Unlock()

	// Dialogue generation runs off the lock too; the floor stays with
	// the controller (Processing) while it is in flight.
	var aiText string
	if hasNext {
		personalized, err := c.followUpWithRetry(ctx, transcript)
		if err == nil {
			aiText = personalized
		} else {
			c.logger.Warn().Err(err).Msg("Dialogue failed twice, using scripted transition")
			c.publish(bus.EventTypeRetryPrompt, map[string]any{"reason": "dialogue"})
			aiText = dialogue.Transition(next.Text)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != StateProcessing {
		return
	}
	c.advanceLocked(gen, answeredTurn{
		text:      transcript,
		startedAt: utt.StartedAt,
		endedAt:   utt.EndedAt,
	}, aiText)
}

// answeredTurn carries the candidate's finished response into the
// advance step. The recorded window drives response timing in the final
// report, so it is kept rather than re-stamped.
type answeredTurn struct {
	text      string
	startedAt time.Time
	endedAt   time.Time
}

// advanceLocked appends the finished exchange and moves the interview
// forward: the prepared next utterance, a scripted transition when none
// was prepared, or the closing remark once the script is exhausted.
func (c *Controller) advanceLocked(gen uint64, answer answeredTurn, aiText string) {
	// The empty-recording allowance is per question, not per session.
	c.failures = 0

	if answer.startedAt.IsZero() {
		answer.startedAt = time.Now()
	}
	if answer.endedAt.IsZero() {
		answer.endedAt = answer.startedAt
	}
	candidate := session.Turn{
		ID:        uuid.NewString(),
		Speaker:   session.SpeakerCandidate,
		Text:      answer.text,
		StartedAt: answer.startedAt,
		EndedAt:   answer.endedAt,
	}
	c.log.Append(candidate)

	next, hasNext := c.sess.NextQuestion()
	if !hasNext {
		closing := dialogue.Closing()
		c.setStateLocked(StateAiSpeaking)
		c.persistMessages([]session.Message{
			{Speaker: string(candidate.Speaker), Message: candidate.Text},
		})
		go c.speak(gen, closing, true)
		return
	}

	if aiText == "" {
		aiText = dialogue.Transition(next.Text)
	}

	c.sess.Advance()
	c.sess.MarkAsked(c.sess.CurrentIndex)
	c.publish(bus.EventTypeQuestionAsked, map[string]any{
		"index":    c.sess.CurrentIndex,
		"question": next.Text,
	})

	ai := c.appendTurnLocked(session.SpeakerAI, aiText)
	c.persistMessages([]session.Message{
		{Speaker: string(candidate.Speaker), Message: candidate.Text},
		{Speaker: string(ai.Speaker), Message: ai.Text},
	})

	c.setStateLocked(StateAiSpeaking)
	go c.speak(gen, aiText, false)
}

// completeLocked tears the live pipeline down. Bumping the generation
// first guarantees every in-flight callback lands in a discard branch.
func (c *Controller) completeLocked() {
	c.generation++
	c.setStateLocked(StateCompleted)

	c.deps.Player.CancelCurrent()
	c.deps.Monitor.Stop()
	c.deps.Recorder.Discard()

	if c.sessCancel != nil {
		c.sessCancel()
	}
	if c.handle != nil {
		c.handle.Release()
		c.handle = nil
	}

	if c.sess != nil {
		c.sess.Status = session.StatusCompleted
		c.sess.EndedAt = time.Now()
	}
}

// finalize persists the conversation and requests the evaluation. Runs
// after completeLocked, outside the lock.
func (c *Controller) finalize(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	report := session.BuildReport(c.log, sess.AskedQuestions(), sess.StartedAt, sess.EndedAt)

	feedback, err := c.deps.API.Complete(ctx, sess.ID, report)
	if err != nil {
		c.publish(bus.EventTypeSessionError, map[string]any{"error": err.Error()})
		c.publish(bus.EventTypeSessionCompleted, map[string]any{"session_id": sess.ID})
		return err
	}

	c.mu.Lock()
	c.feedback = feedback
	c.mu.Unlock()

	c.publish(bus.EventTypeSessionCompleted, map[string]any{"session_id": sess.ID})
	return nil
}

func (c *Controller) transcribeWithRetry(ctx context.Context, utt audio.Utterance) (string, error) {
	transcript, err := c.deps.Transcriber.Transcribe(ctx, utt)
	if err == nil || ctx.Err() != nil {
		return transcript, err
	}
	c.logger.Warn().Err(err).Msg("Transcription failed, retrying once")
	return c.deps.Transcriber.Transcribe(ctx, utt)
}

func (c *Controller) followUpWithRetry(ctx context.Context, answer string) (string, error) {
	text, err := c.deps.FollowUps.FollowUp(ctx, answer)
	if err == nil || ctx.Err() != nil {
		return text, err
	}
	c.logger.Warn().Err(err).Msg("Dialogue failed, retrying once")
	return c.deps.FollowUps.FollowUp(ctx, answer)
}

func (c *Controller) appendTurnLocked(speaker session.Speaker, text string) session.Turn {
	now := time.Now()
	turn := session.Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		StartedAt: now,
		EndedAt:   now,
	}
	c.log.Append(turn)
	return turn
}

// persistMessages writes turns to the durability side-channel. Best
// effort: failures are logged and never touch the live conversation.
func (c *Controller) persistMessages(messages []session.Message) {
	sessID := c.sess.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.deps.API.AppendMessages(ctx, sessID, messages); err != nil {
			c.logger.Warn().Err(err).Msg("Transcript persistence failed")
		}
	}()
}

func (c *Controller) setStateLocked(next State) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	c.logger.Info().Str("from", string(prev)).Str("to", string(next)).Msg("State changed")
	c.publish(bus.EventTypeStateChanged, map[string]any{
		"from": string(prev),
		"to":   string(next),
	})
	if holder := floorHolder(next); holder != floorHolder(prev) {
		c.publish(bus.EventTypeFloorChanged, map[string]any{"holder": holder})
	}
}

// floorHolder maps a state to the party holding the conversational floor.
// Processing keeps the floor with the interviewer so nothing listens
// while a response is being analyzed.
func floorHolder(s State) string {
	switch s {
	case StateListening:
		return "candidate"
	case StateAiSpeaking, StateProcessing:
		return "interviewer"
	default:
		return "none"
	}
}

func (c *Controller) publish(eventType bus.EventType, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(bus.Event{Type: eventType, Data: data})
}
