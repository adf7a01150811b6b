// Package summary condenses raw listing descriptions through an external
// text-generation backend. Failures never propagate: an empty summary tells
// the caller to fall back to the raw text.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"topn/olxmonitor/logger"
)

// GroqSummarizer talks to the Groq OpenAI-compatible chat-completions API.
type GroqSummarizer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	log     *logger.Logger
}

// NewGroqSummarizer creates a summarizer against the given endpoint
func NewGroqSummarizer(baseURL, apiKey, model string) *GroqSummarizer {
	return &GroqSummarizer{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		log:     logger.ForSummarizer(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize sends the description through the fixed extraction prompt and
// returns the model's reply. Any failure returns "" and is logged; the call
// site treats an empty summary as "use the raw text instead".
func (s *GroqSummarizer) Summarize(ctx context.Context, description string) string {
	reply, err := s.complete(ctx, descriptionSummaryPrompt(description))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed summarising description")
		return ""
	}
	return reply
}

func (s *GroqSummarizer) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
