// Copyright 2025 James Ross
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is a thin adapter over an OpenAI-compatible chat completion
// endpoint. It is deliberately minimal: the provider SDK is out of
// scope, and Processor gates its Rewrite calls with a rate limiter and
// circuit breaker (its RewriteTitle calls are not gated), so this type
// owns nothing but the wire shape.
type HTTPClient struct {
	Endpoint   string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewHTTPClient(endpoint, apiKey, model string) *HTTPClient {
	return &HTTPClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
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
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// costPerThousandTokens is a rough, configuration-free cost estimate;
// exact provider billing is out of scope (spec.md §1 Non-goals).
const costPerThousandTokens = 0.002

func (c *HTTPClient) call(ctx context.Context, prompt string) (string, int, float64, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", 0, 0, ErrThrottled
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return "", 0, 0, fmt.Errorf("llm: http %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, err
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("llm: empty choices")
	}
	tokens := out.Usage.TotalTokens
	cost := float64(tokens) / 1000.0 * costPerThousandTokens
	return out.Choices[0].Message.Content, tokens, cost, nil
}

func (c *HTTPClient) Rewrite(ctx context.Context, req RewriteRequest) (RewriteResponse, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following article for a technical news site. Keep factual content, improve clarity.\nTitle: %s\nSource: %s\nContent: %s",
		req.Title, req.Source, req.Content)
	content, tokens, cost, err := c.call(ctx, prompt)
	if err != nil {
		return RewriteResponse{}, err
	}
	return RewriteResponse{Content: content, Tokens: tokens, CostUSD: cost, Model: c.Model}, nil
}

func (c *HTTPClient) RewriteTitle(ctx context.Context, req TitleRequest) (TitleResponse, error) {
	prompt := fmt.Sprintf(
		"Propose a concise, specific headline (under 80 characters, no placeholders) for this article.\nCurrent title: %s\nContent: %s",
		req.CleanedTitle, req.Content)
	title, tokens, cost, err := c.call(ctx, prompt)
	if err != nil {
		return TitleResponse{}, err
	}
	return TitleResponse{Title: title, Tokens: tokens, CostUSD: cost, Model: c.Model}, nil
}
