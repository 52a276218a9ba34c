package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lastSpeaker reads the speaker of the most recent turn.
func (l *ConversationLog) lastSpeaker() (Speaker, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return "", false
	}
	return l.turns[len(l.turns)-1].Speaker, true
}

func turnAt(speaker Speaker, text string, start time.Time, dur time.Duration) Turn {
	return Turn{
		ID:        text,
		Speaker:   speaker,
		Text:      text,
		StartedAt: start,
		EndedAt:   start.Add(dur),
	}
}

func TestConversationLogAppendOnly(t *testing.T) {
	log := NewConversationLog()
	assert.Equal(t, 0, log.Len())

	_, ok := log.lastSpeaker()
	assert.False(t, ok)

	now := time.Now()
	log.Append(turnAt(SpeakerAI, "q1", now, time.Second))
	log.Append(turnAt(SpeakerCandidate, "a1", now, 5*time.Second))

	assert.Equal(t, 2, log.Len())

	last, ok := log.lastSpeaker()
	require.True(t, ok)
	assert.Equal(t, SpeakerCandidate, last)

	// Turns() hands out a copy; mutating it never reaches the log.
	turns := log.Turns()
	turns[0].Text = "mutated"
	assert.Equal(t, "q1", log.Turns()[0].Text)
}

func TestConversationLogAlternation(t *testing.T) {
	log := NewConversationLog()
	now := time.Now()

	// Three completed question/answer cycles.
	for i := 0; i < 3; i++ {
		log.Append(turnAt(SpeakerAI, "question", now, time.Second))
		log.Append(turnAt(SpeakerCandidate, "answer", now, time.Second))
	}

	turns := log.Turns()
	require.Equal(t, 6, len(turns))
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, SpeakerAI, turn.Speaker, "turn %d", i)
		} else {
			assert.Equal(t, SpeakerCandidate, turn.Speaker, "turn %d", i)
		}
	}
}

func TestBuildReport(t *testing.T) {
	log := NewConversationLog()
	start := time.Now().Add(-10 * time.Minute)

	log.Append(turnAt(SpeakerAI, "How would you design it?", start, 2*time.Second))
	log.Append(turnAt(SpeakerCandidate, "With a queue.", start.Add(3*time.Second), 30*time.Second))
	log.Append(turnAt(SpeakerAI, "Why a queue?", start.Add(40*time.Second), 2*time.Second))
	log.Append(turnAt(SpeakerCandidate, "It decouples producers.", start.Add(45*time.Second), 20*time.Second))

	asked := []Question{
		{ID: "q-0", Text: "How would you design it?", Asked: true},
		{ID: "q-1", Text: "Why a queue?", Asked: true},
	}

	end := start.Add(10 * time.Minute)
	report := BuildReport(log, asked, start, end)

	assert.Equal(t, "With a queue.\n\nIt decouples producers.", report.Transcript)
	assert.Equal(t, 10*time.Minute, report.Duration)

	require.Len(t, report.Responses, 2)
	assert.Equal(t, "How would you design it?", report.Responses[0].Question)
	assert.Equal(t, "With a queue.", report.Responses[0].ResponseTranscript)
	assert.Equal(t, 30, report.Responses[0].ResponseTime)
	assert.Equal(t, "Why a queue?", report.Responses[1].Question)
	assert.Equal(t, "It decouples producers.", report.Responses[1].ResponseTranscript)
	assert.Equal(t, 20, report.Responses[1].ResponseTime)
}

func TestBuildReportDegradedTurns(t *testing.T) {
	log := NewConversationLog()
	now := time.Now()

	// A turn whose transcription totally failed is recorded empty to keep
	// the alternation intact, but stays out of the flat transcript.
	log.Append(turnAt(SpeakerAI, "q1", now, time.Second))
	log.Append(turnAt(SpeakerCandidate, "", now, 10*time.Second))
	log.Append(turnAt(SpeakerAI, "q2", now, time.Second))
	log.Append(turnAt(SpeakerCandidate, "real answer", now, 10*time.Second))

	asked := []Question{{Text: "q1", Asked: true}, {Text: "q2", Asked: true}}
	report := BuildReport(log, asked, now, now.Add(time.Minute))

	assert.Equal(t, "real answer", report.Transcript)
	require.Len(t, report.Responses, 2)
	assert.Equal(t, "", report.Responses[0].ResponseTranscript)
	assert.Equal(t, "real answer", report.Responses[1].ResponseTranscript)
}

func TestBuildReportMoreQuestionsThanAnswers(t *testing.T) {
	log := NewConversationLog()
	now := time.Now()
	log.Append(turnAt(SpeakerAI, "q1", now, time.Second))
	log.Append(turnAt(SpeakerCandidate, "a1", now, 5*time.Second))

	asked := []Question{{Text: "q1", Asked: true}, {Text: "q2", Asked: true}}
	report := BuildReport(log, asked, now, now.Add(time.Minute))

	require.Len(t, report.Responses, 2)
	assert.Equal(t, "a1", report.Responses[0].ResponseTranscript)
	assert.Equal(t, "", report.Responses[1].ResponseTranscript)
	assert.Equal(t, 0, report.Responses[1].ResponseTime)
}
