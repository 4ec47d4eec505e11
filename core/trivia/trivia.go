package trivia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coinfm/logger"
	"coinfm/model"
)

// Placeholder is returned whenever the completion endpoint cannot be
// reached or returns garbage. Trivia is best-effort by design.
const Placeholder = "Every song has a story. Press play and write your own."

// Config holds the hosted completion endpoint settings.
type Config struct {
	APIBaseURL string
	APIKey     string
	Model      string
}

// Client fetches a short trivia blurb about a track from a hosted
// chat-completion endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a trivia client with a bounded request timeout.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// FetchTrivia asks the completion endpoint for a one-paragraph blurb about
// the track. It never returns an error to the caller: any failure degrades
// to the placeholder string.
func (c *Client) FetchTrivia(ctx context.Context, track *model.Track) string {
	if c.config.APIBaseURL == "" {
		return Placeholder
	}

	prompt := fmt.Sprintf("Share one short, interesting piece of trivia about the song %q by %s. Two sentences at most.",
		track.Title, track.Artist)

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   120,
		Temperature: 0.8,
	})
	if err != nil {
		logger.Warn("trivia request marshal failed", logger.ErrorField(err))
		return Placeholder
	}

	url := strings.TrimRight(c.config.APIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Warn("trivia request build failed", logger.ErrorField(err))
		return Placeholder
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("trivia fetch failed", logger.String("track", track.Title), logger.ErrorField(err))
		return Placeholder
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("trivia endpoint returned non-200", logger.Int("status", resp.StatusCode))
		return Placeholder
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		logger.Warn("trivia response read failed", logger.ErrorField(err))
		return Placeholder
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Choices) == 0 {
		logger.Warn("trivia response decode failed", logger.ErrorField(err))
		return Placeholder
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return Placeholder
	}
	return content
}
