package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&ClientConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, zerolog.Nop())
}

func TestClientStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/video-interviews/prob-42/start", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "sess-1",
			"title":     "Design a URL shortener",
			"questions": []string{
				"How would you store the mappings?",
				"What about collisions?",
				"How would you scale reads?",
			},
		})
	}))
	defer server.Close()

	sess, err := newTestClient(server.URL).Start(context.Background(), "prob-42")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "prob-42", sess.ProblemID)
	assert.Equal(t, "Design a URL shortener", sess.ProblemTitle)
	assert.Equal(t, StatusInProgress, sess.Status)
	assert.Equal(t, 0, sess.CurrentIndex)
	assert.False(t, sess.StartedAt.IsZero())

	require.Len(t, sess.Questions, 3)
	assert.Equal(t, "How would you store the mappings?", sess.Questions[0].Text)
}

func TestClientStartLegacyScript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":               "Legacy problem",
			"question_script":     "How does the cache eviction work?",
			"follow_up_questions": []string{"What about memory pressure?"},
		})
	}))
	defer server.Close()

	sess, err := newTestClient(server.URL).Start(context.Background(), "prob-9")
	require.NoError(t, err)

	// Missing session ID gets a generated one.
	assert.NotEmpty(t, sess.ID)

	// One script question, one follow-up, topped up to the minimum.
	require.Len(t, sess.Questions, 3)
	assert.Equal(t, "How does the cache eviction work?", sess.Questions[0].Text)
	assert.Equal(t, "What about memory pressure?", sess.Questions[1].Text)
}

func TestClientStartServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "problem not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Start(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClientAppendMessages(t *testing.T) {
	var gotPath string
	var gotPayload struct {
		Messages []Message `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestClient(server.URL).AppendMessages(context.Background(), "sess-1", []Message{
		{Speaker: "candidate", Message: "I would use consistent hashing."},
		{Speaker: "ai", Message: "How would you handle rebalancing?"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/video-interviews/sess-1/message", gotPath)
	require.Len(t, gotPayload.Messages, 2)
	assert.Equal(t, "candidate", gotPayload.Messages[0].Speaker)
	assert.Equal(t, "ai", gotPayload.Messages[1].Speaker)
}

func TestClientAppendMessagesFailureIsPersistenceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestClient(server.URL).AppendMessages(context.Background(), "sess-1", nil)
	require.Error(t, err)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "message", pe.Op)
}

func TestClientComplete(t *testing.T) {
	var gotPath string
	var gotPayload struct {
		Transcript        string             `json:"transcript"`
		QuestionResponses []QuestionResponse `json:"question_responses"`
		DurationMinutes   int                `json:"duration_minutes"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"feedback": "Strong on fundamentals, dig deeper on tradeoffs.",
		})
	}))
	defer server.Close()

	report := Report{
		Transcript: "answer one\n\nanswer two",
		Responses: []QuestionResponse{
			{Question: "q1", ResponseTranscript: "answer one", ResponseTime: 30},
			{Question: "q2", ResponseTranscript: "answer two", ResponseTime: 45},
		},
		Duration: 12 * time.Minute,
	}

	feedback, err := newTestClient(server.URL).Complete(context.Background(), "sess-1", report)
	require.NoError(t, err)

	assert.Equal(t, "Strong on fundamentals, dig deeper on tradeoffs.", feedback)
	assert.Equal(t, "/video-interviews/sess-1/complete", gotPath)
	assert.Equal(t, "answer one\n\nanswer two", gotPayload.Transcript)
	assert.Equal(t, 12, gotPayload.DurationMinutes)
	require.Len(t, gotPayload.QuestionResponses, 2)
	assert.Equal(t, 30, gotPayload.QuestionResponses[0].ResponseTime)
}

func TestClientCompleteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "evaluation failed", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "sess-1", Report{})
	require.Error(t, err)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "complete", pe.Op)
}
