// Package session holds the interview session model, the append-only
// conversation log, and the client for the interview backend API.
package session

import (
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerAI        Speaker = "ai"
	SpeakerCandidate Speaker = "candidate"
)

// Question is one scripted interview question. Asked flips exactly once,
// when the controller emits it as AI speech.
type Question struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Asked bool   `json:"asked"`
}

// Turn is one contiguous utterance by either party. Immutable once
// appended to the conversation log.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Session is one interview run over a problem's question script.
type Session struct {
	ID           string     `json:"id"`
	ProblemID    string     `json:"problem_id"`
	ProblemTitle string     `json:"problem_title"`
	Questions    []Question `json:"questions"`
	CurrentIndex int        `json:"current_index"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      time.Time  `json:"ended_at"`
}

// CurrentQuestion returns the question at the current index.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// NextQuestion returns the question after the current index without
// advancing.
func (s *Session) NextQuestion() (Question, bool) {
	next := s.CurrentIndex + 1
	if next >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[next], true
}

// Advance moves to the next question and returns it.
func (s *Session) Advance() (Question, bool) {
	if s.CurrentIndex+1 >= len(s.Questions) {
		return Question{}, false
	}
	s.CurrentIndex++
	return s.Questions[s.CurrentIndex], true
}

// MarkAsked flips the asked flag for the question at index i.
func (s *Session) MarkAsked(i int) {
	if i >= 0 && i < len(s.Questions) {
		s.Questions[i].Asked = true
	}
}

// AskedQuestions returns the questions emitted so far, in order.
func (s *Session) AskedQuestions() []Question {
	var asked []Question
	for _, q := range s.Questions {
		if q.Asked {
			asked = append(asked, q)
		}
	}
	return asked
}
