// Package remote wraps the external semantic memory service. The service is
// authoritative for search relevance but not guaranteed available; every call
// is bounded by a configured timeout and failures collapse into
// ErrUnavailable so callers can degrade to the durable store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned for timeouts, transport errors, and
// service-reported errors alike. Callers compare with errors.Is.
var ErrUnavailable = errors.New("remote: index unavailable")

// Match is one normalized search hit: the originating note id plus the
// indexed text. Both wire shapes the service emits decode into this.
type Match struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // per-call bound, applied via context
	Logger  zerolog.Logger
}

// Client talks to the remote memory service.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a remote index client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		// The context timeout is the real bound; the client timeout is a
		// backstop for calls made without a deadline.
		httpClient: &http.Client{Timeout: timeout + time.Second},
		logger:     cfg.Logger,
	}
}

// addRequest is the write payload: free text plus metadata carrying the
// originating note id so reads can re-locate it.
type addRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// wireMatch is a single hit as the service returns it. Field names vary
// between deployments; Memory and Text are alternates for the same content.
type wireMatch struct {
	ID       string            `json:"id"`
	Memory   string            `json:"memory"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Add indexes a denormalized copy of a note. The remote copy is a
// projection, not a second source of truth.
func (c *Client) Add(ctx context.Context, id, title, content string) error {
	req := addRequest{
		Text:     title + "\n" + content,
		Metadata: map[string]string{"note_id": id},
	}

	if _, err := c.post(ctx, "/memories", req); err != nil {
		return err
	}

	c.logger.Debug().Str("id", id).Msg("Remote index add succeeded")
	return nil
}

// Search queries the service and normalizes whatever shape it returns —
// either a bare array of matches or an object wrapping a "results" field —
// into a uniform []Match.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	body, err := c.post(ctx, "/search", searchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return normalizeMatches(body)
}

// post sends a JSON request bounded by the configured timeout and returns
// the raw response body. All failure modes map to ErrUnavailable.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("remote: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeout-triggered abandonment: the in-flight call is not cancelled
		// service-side, so an abandoned write may still land. Delivery to the
		// remote store is therefore at-least-once, never exactly-once.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	return body, nil
}

// normalizeMatches accepts both known wire shapes and produces one.
func normalizeMatches(body []byte) ([]Match, error) {
	var bare []wireMatch
	if err := json.Unmarshal(body, &bare); err == nil {
		return toMatches(bare), nil
	}

	var wrapped struct {
		Results []wireMatch `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		// A response we cannot parse is as useless as no response.
		return nil, fmt.Errorf("%w: unparseable search response: %v", ErrUnavailable, err)
	}
	return toMatches(wrapped.Results), nil
}

func toMatches(wire []wireMatch) []Match {
	matches := make([]Match, 0, len(wire))
	for _, w := range wire {
		id := w.ID
		if noteID, ok := w.Metadata["note_id"]; ok && noteID != "" {
			id = noteID
		}
		content := w.Memory
		if content == "" {
			content = w.Text
		}
		matches = append(matches, Match{ID: id, Content: content})
	}
	return matches
}
