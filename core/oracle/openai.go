package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ferrors "fibre-cost/internal/errors"
)

// DefaultTimeout bounds a single oracle round trip
const DefaultTimeout = 30 * time.Second

// OpenAIConfig configures an OpenAI-compatible chat-completions endpoint.
// Groq, OpenAI and local gateways all speak this protocol.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string

	// Model answers judgments and narratives
	Model string

	// FastModel answers output validation; defaults to Model
	FastModel string

	// Timeout bounds each call; defaults to DefaultTimeout
	Timeout time.Duration
}

// OpenAIClient is an Oracle backed by a chat-completions API
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	fastModel  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAIClient creates a client
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.FastModel == "" {
		cfg.FastModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		fastModel: cfg.FastModel,
		timeout:   cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout + 5*time.Second, // slightly beyond the per-call context timeout
		},
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Judge asks for a JSON object and parses it, tolerating prose around the object
func (c *OpenAIClient) Judge(ctx context.Context, p Prompt) (map[string]any, error) {
	text, err := c.complete(ctx, p, true)
	if err != nil {
		return nil, err
	}
	out, err := ExtractJSON(text)
	if err != nil {
		return nil, ferrors.Oracle(fmt.Sprintf("%s judgment", p.Kind), err)
	}
	return out, nil
}

// Narrate asks for free text
func (c *OpenAIClient) Narrate(ctx context.Context, p Prompt) (string, error) {
	text, err := c.complete(ctx, p, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *OpenAIClient) complete(ctx context.Context, p Prompt, jsonMode bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model
	if p.Kind == KindValidation {
		model = c.fastModel
	}

	payload := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: p.Text}},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if jsonMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", ferrors.Oracle("marshal request", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", ferrors.Oracle("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ferrors.Oracle("request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", ferrors.Oracle(fmt.Sprintf("status %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(respBody))))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", ferrors.Oracle("decode response", err)
	}
	if len(result.Choices) == 0 {
		return "", ferrors.Oracle("no choices in response", nil)
	}
	return result.Choices[0].Message.Content, nil
}
