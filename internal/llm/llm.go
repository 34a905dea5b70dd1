package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is a single generation response with token usage.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider performs one request/response exchange with a model backend.
type Provider interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Name() string
	IsConfigured() bool
}

// OpenAIProvider talks to an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewOpenAIProvider creates a provider reading the API key from the given
// environment variable.
func NewOpenAIProvider(baseURL, apiKeyEnv string, timeout time.Duration) *OpenAIProvider {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  os.Getenv(apiKeyEnv),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider key used for circuit breaking.
func (o *OpenAIProvider) Name() string { return "openai" }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool { return o.APIKey != "" }

// Chat sends a chat completion request and returns content plus usage.
func (o *OpenAIProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	if o.APIKey == "" {
		return nil, &APIError{Provider: o.Name(), Status: http.StatusUnauthorized, Message: "API key not configured"}
	}

	body := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			Provider: o.Name(),
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(respBody)),
		}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices in provider response")
	}

	model := result.Model
	if model == "" {
		model = req.Model
	}

	return &Response{
		Content:      result.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}, nil
}

// OllamaProvider is a local Ollama backend.
type OllamaProvider struct {
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(baseURL string, timeout time.Duration) *OllamaProvider {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider key used for circuit breaking.
func (o *OllamaProvider) Name() string { return "ollama" }

// IsConfigured checks if Ollama is reachable.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Chat sends a chat request to Ollama and returns content plus usage.
func (o *OllamaProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   false,
		"options": map[string]any{
			"num_predict": req.MaxTokens,
			"temperature": req.Temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			Provider: o.Name(),
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(respBody)),
		}
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &Response{
		Content:      result.Message.Content,
		Model:        req.Model,
		InputTokens:  result.PromptEvalCount,
		OutputTokens: result.EvalCount,
	}, nil
}
