package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voiceinterview/internal/dialogue"
)

func TestParseQuestions(t *testing.T) {
	script := `Welcome to the interview.

How would you design a rate limiter?
The candidate should mention token buckets.
What storage would you pick for counters?
Why is a sliding window more accurate?`

	questions := ParseQuestions(script, nil)
	require.Len(t, questions, 3)
	assert.Equal(t, "How would you design a rate limiter?", questions[0].Text)
	assert.Equal(t, "What storage would you pick for counters?", questions[1].Text)
	assert.Equal(t, "Why is a sliding window more accurate?", questions[2].Text)
	for _, q := range questions {
		assert.NotEmpty(t, q.ID)
		assert.False(t, q.Asked)
	}
}

func TestParseQuestionsFollowUps(t *testing.T) {
	questions := ParseQuestions("How does it work?", []string{
		"Can you elaborate on failure modes?",
		"  ",
		"What would you monitor?",
	})

	require.Len(t, questions, 3)
	assert.Equal(t, "How does it work?", questions[0].Text)
	assert.Equal(t, "Can you elaborate on failure modes?", questions[1].Text)
	assert.Equal(t, "What would you monitor?", questions[2].Text)
}

func TestParseQuestionsTopsUpToMinimum(t *testing.T) {
	questions := ParseQuestions("", nil)
	require.Len(t, questions, MinQuestions)
	for i, q := range questions {
		assert.Equal(t, dialogue.GenericQuestion(i), q.Text)
	}

	// One real question still yields a full script.
	questions = ParseQuestions("How would you test this?", nil)
	require.Len(t, questions, MinQuestions)
	assert.Equal(t, "How would you test this?", questions[0].Text)
}

func TestSessionQuestionCursor(t *testing.T) {
	s := &Session{Questions: []Question{{Text: "q1"}, {Text: "q2"}, {Text: "q3"}}}

	current, ok := s.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, "q1", current.Text)

	next, ok := s.NextQuestion()
	require.True(t, ok)
	assert.Equal(t, "q2", next.Text)
	assert.Equal(t, 0, s.CurrentIndex, "NextQuestion must not advance")

	advanced, ok := s.Advance()
	require.True(t, ok)
	assert.Equal(t, "q2", advanced.Text)

	s.MarkAsked(0)
	s.MarkAsked(1)
	s.MarkAsked(99) // out of range, ignored

	asked := s.AskedQuestions()
	require.Len(t, asked, 2)
	assert.Equal(t, "q1", asked[0].Text)
	assert.Equal(t, "q2", asked[1].Text)

	_, ok = s.Advance()
	require.True(t, ok)
	_, ok = s.Advance()
	assert.False(t, ok, "cannot advance past the last question")

	_, ok = s.NextQuestion()
	assert.False(t, ok)
}
