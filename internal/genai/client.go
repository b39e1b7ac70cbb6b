// Package genai calls the text generation service and turns its output into validated JSON.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subscription-intake/internal/common/config"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
)

const generatePath = "/api/ai/generate"

// Request is one generation call.
type Request struct {
	Op                string // operation name for logs and errors
	SystemInstruction string
	UserPrompt        string
	Temperature       *float64
	MaxOutputTokens   int
	JSON              bool
}

// Generator produces text, optionally constrained to a JSON schema.
type Generator interface {
	Generate(ctx context.Context, schema *validation.Schema, req Request) (json.RawMessage, error)
	Complete(ctx context.Context, req Request) (string, error)
}

// Client talks to the generation service over HTTP.
type Client struct {
	cfg    config.GenAIConfig
	http   *http.Client
	logger logger.Logger
}

// NewClient creates a Client. The http client carries no timeout; each attempt is bounded by
// cfg.Timeout through its context.
func NewClient(cfg config.GenAIConfig, log logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: log.WithFields(map[string]interface{}{"component": "genai"}),
	}
}

type generateRequest struct {
	Model          string  `json:"model,omitempty"`
	System         string  `json:"system,omitempty"`
	Prompt         string  `json:"prompt"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	Temperature    float64 `json:"temperature"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Complete returns free text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	var out string
	err := c.withRetries(ctx, req, func(text string) error {
		out = strings.TrimSpace(text)
		if out == "" {
			return newError(req.Op, CategoryEmptyOutput, 0, nil)
		}
		return nil
	})
	return out, err
}

// Generate returns the JSON document the model produced, validated against schema.
func (c *Client) Generate(ctx context.Context, schema *validation.Schema, req Request) (json.RawMessage, error) {
	req.JSON = true
	var out json.RawMessage
	err := c.withRetries(ctx, req, func(text string) error {
		doc, err := ExtractJSON(text)
		if err != nil {
			if strings.TrimSpace(text) == "" {
				return newError(req.Op, CategoryEmptyOutput, 0, nil)
			}
			return newError(req.Op, CategoryMalformedOutput, 0, err)
		}
		if schema != nil {
			if err := schema.Validate(doc); err != nil {
				return newError(req.Op, CategorySchemaViolation, 0, err)
			}
		}
		out = doc
		return nil
	})
	return out, err
}

// withRetries runs attempts until accept returns nil or a non-retryable error occurs.
func (c *Client) withRetries(ctx context.Context, req Request, accept func(text string) error) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return newError(req.Op, CategoryCredentialMissing, 0, nil)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return newError(req.Op, CategoryTimeout, 0, ctx.Err())
			}
		}

		text, err := c.call(ctx, req)
		if err == nil {
			err = accept(text)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		var gerr *Error
		if !errors.As(err, &gerr) || !gerr.Retryable() || ctx.Err() != nil {
			break
		}
		c.logger.Warn("generation attempt failed", map[string]interface{}{
			"op":       req.Op,
			"attempt":  attempt + 1,
			"category": string(gerr.Category),
			"status":   gerr.Status,
		})
	}
	return lastErr
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	timeout := time.Duration(c.cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := generateRequest{
		Model:       c.cfg.Model,
		System:      req.SystemInstruction,
		Prompt:      req.UserPrompt,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: c.cfg.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.cfg.MaxOutputTokens
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if req.JSON {
		body.ResponseFormat = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", newError(req.Op, CategoryRequestFailed, 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+generatePath, bytes.NewReader(payload))
	if err != nil {
		return "", newError(req.Op, CategoryRequestFailed, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", newError(req.Op, CategoryTimeout, 0, err)
		}
		return "", newError(req.Op, CategoryRequestFailed, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", newError(req.Op, CategoryCredentialMissing, resp.StatusCode, nil)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", newError(req.Op, CategoryRequestFailed, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(snippet))))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", newError(req.Op, CategoryTimeout, 0, err)
		}
		return "", newError(req.Op, CategoryMalformedOutput, 0, fmt.Errorf("decode envelope: %w", err))
	}
	return out.Text, nil
}

// Decode generates and unmarshals into T.
func Decode[T any](ctx context.Context, g Generator, schema *validation.Schema, req Request) (*T, error) {
	raw, err := g.Generate(ctx, schema, req)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, newError(req.Op, CategoryMalformedOutput, 0, err)
	}
	return &out, nil
}

// ExtractJSON strips code fences and surrounding prose and returns the first JSON value.
func ExtractJSON(text string) (json.RawMessage, error) {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[") {
			t = t[nl+1:]
		}
		if end := strings.LastIndex(t, "```"); end >= 0 {
			t = t[:end]
		}
		t = strings.TrimSpace(t)
	}
	if json.Valid([]byte(t)) && t != "" {
		return json.RawMessage(t), nil
	}

	start := strings.IndexAny(t, "{[")
	if start < 0 {
		return nil, errors.New("no JSON value in output")
	}
	dec := json.NewDecoder(strings.NewReader(t[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in output: %w", err)
	}
	return raw, nil
}
