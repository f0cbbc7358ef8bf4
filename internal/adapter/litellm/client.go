// Package litellm implements the TextGenerator port against a LiteLLM proxy.
// All error classification for the generation side lives here; nothing
// outside this package inspects provider error text.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/drawbridge-ai/drawbridge/internal/port/generator"
	"github.com/drawbridge-ai/drawbridge/internal/resilience"
)

// systemPrompt instructs the model to answer with Draw.io XML. The response
// may still arrive fenced; extraction is the caller's concern.
const systemPrompt = "You are a diagram generator. Respond with a complete draw.io " +
	"diagram as XML: a single <mxfile> element containing an <mxGraphModel>. " +
	"Do not include any explanation outside the XML."

// Client talks to a LiteLLM proxy's OpenAI-compatible chat completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a LiteLLM generation client. timeout bounds each call.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt to the proxy and returns the raw model output.
// Failures are returned as *generator.Error with a classified kind.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("marshal request: %w", err), 0, nil)
	}

	var result string
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return classify(fmt.Errorf("create request: %w", err), 0, nil)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classify(err, 0, nil)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return classify(fmt.Errorf("read response: %w", err), 0, nil)
		}
		if resp.StatusCode >= 400 {
			return classify(nil, resp.StatusCode, data)
		}

		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return &generator.Error{Kind: generator.Unknown, Message: "malformed completion response", Err: err}
		}
		if len(parsed.Choices) == 0 {
			return &generator.Error{Kind: generator.Unknown, Message: "completion response contained no choices"}
		}
		result = parsed.Choices[0].Message.Content
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return "", &generator.Error{
					Kind:    generator.Connection,
					Message: "generation backend temporarily unavailable (circuit open)",
					Err:     err,
				}
			}
			return "", err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return "", err
	}
	return result, nil
}

// classify maps a transport error or an HTTP error status into the tagged
// failure kinds of the generator port. Substring sniffing of provider error
// bodies is confined to this function.
func classify(err error, status int, body []byte) *generator.Error {
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return &generator.Error{Kind: generator.Timeout, Message: "generation call timed out", Err: err}
		case errors.As(err, &netErr) && netErr.Timeout():
			return &generator.Error{Kind: generator.Timeout, Message: "generation call timed out", Err: err}
		case errors.Is(err, context.Canceled):
			return &generator.Error{Kind: generator.Connection, Message: "generation call canceled", Err: err}
		default:
			return &generator.Error{Kind: generator.Connection, Message: "could not reach generation backend", Err: err}
		}
	}

	text := strings.ToLower(string(body))
	httpErr := fmt.Errorf("litellm API error %d: %s", status, truncate(string(body), 512))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &generator.Error{Kind: generator.Unauthenticated, Message: "generation backend rejected credentials", Err: httpErr}
	case status == http.StatusPaymentRequired:
		return &generator.Error{Kind: generator.QuotaExceeded, Message: "generation quota exhausted", Err: httpErr}
	case status == http.StatusTooManyRequests:
		if strings.Contains(text, "quota") || strings.Contains(text, "billing") {
			return &generator.Error{Kind: generator.QuotaExceeded, Message: "generation quota exhausted", Err: httpErr}
		}
		return &generator.Error{Kind: generator.RateLimited, Message: "generation backend rate limit hit", Err: httpErr}
	case status == http.StatusGatewayTimeout:
		return &generator.Error{Kind: generator.Timeout, Message: "generation backend timed out upstream", Err: httpErr}
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return &generator.Error{Kind: generator.Connection, Message: "generation backend unavailable", Err: httpErr}
	default:
		return &generator.Error{Kind: generator.Unknown, Message: "generation backend returned an error", Err: httpErr}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
