package dialogue

import "fmt"

// Scripted utterances used when personalization is unavailable. These
// keep the interview progressing after repeated service failures.

// GenericQuestions is the fallback question pool used to top up short
// question scripts and to keep degraded sessions moving.
var GenericQuestions = []string{
	"Can you tell me about your experience with this technology?",
	"How would you approach this problem in a production environment?",
	"What challenges do you foresee with this solution?",
}

// GenericQuestion returns the i-th fallback question, cycling the pool.
func GenericQuestion(i int) string {
	if i < 0 {
		i = 0
	}
	return GenericQuestions[i%len(GenericQuestions)]
}

// Opening returns the interviewer's opening utterance for a session.
func Opening(title, firstQuestion string, total int) string {
	return fmt.Sprintf(
		"Hello! I'll be your interviewer today, and we'll be discussing %q. "+
			"I'm going to ask you %d questions. Let's begin with the first one: %s",
		title, total, firstQuestion)
}

// Transition returns the scripted bridge into the next question. Used
// when follow-up generation is degraded.
func Transition(nextQuestion string) string {
	return "Thank you for your response. Let's move on to the next question: " + nextQuestion
}

// RetryPrompt asks the candidate to repeat themselves after a recoverable
// capture or transcription problem.
func RetryPrompt() string {
	return "I'm sorry, I didn't catch that. Let's try that again - please repeat your answer."
}

// Closing returns the interviewer's final utterance.
func Closing() string {
	return "Thank you for your thoughtful responses. We've now completed all the questions " +
		"for this interview. I appreciate your time and insights."
}
