package session

import (
	"fmt"
	"strings"

	"github.com/normanking/voiceinterview/internal/dialogue"
)

// MinQuestions is the floor the parsed script is topped up to.
const MinQuestions = 3

// ParseQuestions extracts interview questions from a free-form question
// script plus an optional follow-up list, topping the result up to
// MinQuestions with generic questions. A line counts as a question when
// it carries a question mark or opens like one.
func ParseQuestions(script string, followUps []string) []Question {
	var questions []Question

	for i, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !looksLikeQuestion(line) {
			continue
		}
		questions = append(questions, Question{
			ID:   fmt.Sprintf("q-%d", i),
			Text: line,
		})
	}

	for i, q := range followUps {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		questions = append(questions, Question{
			ID:   fmt.Sprintf("fq-%d", i),
			Text: q,
		})
	}

	for len(questions) < MinQuestions {
		questions = append(questions, Question{
			ID:   fmt.Sprintf("gq-%d", len(questions)),
			Text: dialogue.GenericQuestion(len(questions)),
		})
	}

	return questions
}

func looksLikeQuestion(line string) bool {
	if strings.Contains(line, "?") {
		return true
	}
	lower := strings.ToLower(line)
	for _, prefix := range []string{"how", "what", "why"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
