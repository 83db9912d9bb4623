package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/quotemill/internal/domain"
)

// HTTPClient talks to an external reasoning/extraction service over
// plain JSON POST endpoints:
//
//	POST {base}/ask      {"messages": [...]}          → {"reply": "..."}
//	POST {base}/extract  {"messages": [...]}          → {"items": [...]}
//
// It implements both Reasoner and Extractor.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the given service base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type askRequest struct {
	Messages []domain.Message `json:"messages"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

type extractResponse struct {
	Items []domain.InventoryItem `json:"items"`
}

func (c *HTTPClient) Ask(ctx context.Context, history []domain.Message) (string, error) {
	var out askResponse
	if err := c.post(ctx, "/ask", askRequest{Messages: history}, &out); err != nil {
		return "", fmt.Errorf("reasoning call: %w", err)
	}
	return out.Reply, nil
}

func (c *HTTPClient) ExtractItems(ctx context.Context, window []domain.Message) ([]domain.InventoryItem, error) {
	var out extractResponse
	if err := c.post(ctx, "/extract", askRequest{Messages: window}, &out); err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}
	return out.Items, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service error (%d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
