package session

import (
	"strings"
	"sync"
	"time"
)

// ConversationLog is the ordered, append-only record of exchanged turns.
// Turns are appended strictly in completion order, which - with one
// active turn at a time - is conversation order. Nothing is ever edited
// or removed.
type ConversationLog struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversationLog creates an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

// Append adds a finalized turn.
func (l *ConversationLog) Append(turn Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
}

// Len returns the number of recorded turns.
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Turns returns a copy of all recorded turns.
func (l *ConversationLog) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Turn, len(l.turns))
	copy(result, l.turns)
	return result
}

// QuestionResponse pairs an asked question with the candidate's answer.
type QuestionResponse struct {
	Question           string `json:"question"`
	ResponseTranscript string `json:"response_transcript"`
	ResponseTime       int    `json:"response_time"` // seconds
}

// Report is the flattened completion payload for a finished session.
type Report struct {
	Transcript string             `json:"transcript"`
	Responses  []QuestionResponse `json:"question_responses"`
	Duration   time.Duration      `json:"-"`
}

// BuildReport flattens the log into (question, response_transcript,
// response_time) triples plus the transcript string. Pure transformation;
// the i-th asked question pairs with the i-th candidate turn.
func BuildReport(log *ConversationLog, asked []Question, startedAt, endedAt time.Time) Report {
	turns := log.Turns()

	var candidate []Turn
	var texts []string
	for _, t := range turns {
		if t.Speaker == SpeakerCandidate {
			candidate = append(candidate, t)
			if t.Text != "" {
				texts = append(texts, t.Text)
			}
		}
	}

	responses := make([]QuestionResponse, 0, len(asked))
	for i, q := range asked {
		resp := QuestionResponse{Question: q.Text}
		if i < len(candidate) {
			resp.ResponseTranscript = candidate[i].Text
			resp.ResponseTime = int(candidate[i].EndedAt.Sub(candidate[i].StartedAt).Round(time.Second).Seconds())
		}
		responses = append(responses, resp)
	}

	return Report{
		Transcript: strings.Join(texts, "\n\n"),
		Responses:  responses,
		Duration:   endedAt.Sub(startedAt),
	}
}
