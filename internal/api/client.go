// internal/api/client.go
// HTTP client for the deliberation backend: start a conversation, fetch its
// authoritative history, open its live event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"agora/internal/stream"
)

// DefaultBaseURL is the backend's API root in a local deployment.
const DefaultBaseURL = "http://localhost:8000/api"

// Client talks to the deliberation backend's REST surface.
type Client struct {
	baseURL string
	rest    *retryableClient
	// The stream connection stays open for the whole deliberation, so it
	// bypasses the retrying client and its request timeout.
	streamClient *http.Client
	log          zerolog.Logger
}

// NewClient creates a backend client. An empty baseURL falls back to the
// local deployment default.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		rest:         newRetryableClient(DefaultRetryConfig()),
		streamClient: &http.Client{},
		log:          log,
	}
}

type startRequest struct {
	Question  string      `json:"question"`
	APIKeys   Credentials `json:"api_keys"`
	MaxRounds int         `json:"max_rounds"`
}

type startResponse struct {
	ConversationID string `json:"conversation_id"`
}

// StartDeliberation asks the backend to begin a deliberation and returns the
// conversation id it assigns.
func (c *Client) StartDeliberation(ctx context.Context, question string, creds Credentials, maxRounds int) (string, error) {
	body, err := json.Marshal(startRequest{
		Question:  question,
		APIKeys:   creds,
		MaxRounds: maxRounds,
	})
	if err != nil {
		return "", fmt.Errorf("marshal start request: %w", err)
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/conversation/start/", body)
	if err != nil {
		return "", fmt.Errorf("start request: %w", err)
	}

	resp, err := c.rest.doWithRetry(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start deliberation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("start rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out startResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	if out.ConversationID == "" {
		return "", fmt.Errorf("backend returned no conversation id")
	}

	c.log.Info().Str("conversation", out.ConversationID).Int("max_rounds", maxRounds).Msg("deliberation started")
	return out.ConversationID, nil
}

// History fetches the backend's canonical, ordered message list for a
// conversation.
func (c *Client) History(ctx context.Context, conversationID string) ([]Message, error) {
	url := fmt.Sprintf("%s/conversation/%s/history/", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}

	resp, err := c.rest.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history status %d", resp.StatusCode)
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return messages, nil
}

// StreamURL returns the live event endpoint for a conversation.
func (c *Client) StreamURL(conversationID string) string {
	return fmt.Sprintf("%s/conversation/%s/stream/", c.baseURL, conversationID)
}

// OpenStream opens the live event stream for a conversation.
func (c *Client) OpenStream(ctx context.Context, conversationID string) (stream.Subscription, error) {
	return stream.Open(ctx, c.streamClient, c.StreamURL(conversationID), c.log)
}
