package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.1-8b-instant", req.Model)
		assert.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Przytulna kawalerka")
		assert.Contains(t, req.Messages[0].Content, "animals_allowed")

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": "price: 2500\ndeposit: 2500\nanimals_allowed: true\nrent: 600",
				}},
			},
		})
	}))
	defer server.Close()

	s := NewGroqSummarizer(server.URL, "test-key", "llama-3.1-8b-instant")
	got := s.Summarize(context.Background(), "Przytulna kawalerka, kaucja 2500, czynsz 600.")
	assert.Equal(t, "price: 2500\ndeposit: 2500\nanimals_allowed: true\nrent: 600", got)
}

func TestSummarizeFailuresReturnEmpty(t *testing.T) {
	// Backend error status
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer failing.Close()

	s := NewGroqSummarizer(failing.URL, "k", "m")
	assert.Empty(t, s.Summarize(context.Background(), "opis"))

	// Malformed body
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	s = NewGroqSummarizer(garbage.URL, "k", "m")
	assert.Empty(t, s.Summarize(context.Background(), "opis"))

	// Empty choices
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	s = NewGroqSummarizer(empty.URL, "k", "m")
	assert.Empty(t, s.Summarize(context.Background(), "opis"))

	// Unreachable backend
	s = NewGroqSummarizer("http://127.0.0.1:1", "k", "m")
	assert.Empty(t, s.Summarize(context.Background(), "opis"))
}

func TestPromptContainsRules(t *testing.T) {
	p := descriptionSummaryPrompt("some description")
	assert.Contains(t, p, "some description")
	assert.Contains(t, p, "multiply by 4")
	assert.Contains(t, p, "NOT_SPECIFIED")
	assert.Contains(t, p, "price: [integer in PLN]")
}
