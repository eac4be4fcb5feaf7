package providers

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
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
)

// ChatBackend talks to any OpenAI-compatible chat completions endpoint.
type ChatBackend struct {
	provider string
	baseURL  string
	apiKey   string
	client   *http.Client
}

func NewChatBackend(provider, baseURL, apiKey string, timeout time.Duration) *ChatBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatBackend{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *ChatBackend) Configured(string) bool { return c.apiKey != "" }

func NewOpenAIBackend(apiKey string) *ChatBackend {
	return NewChatBackend("openai", OpenAIBaseURL, apiKey, 60*time.Second)
}

func (c *ChatBackend) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", newError(KindNotConfigured, c.provider, modelID, fmt.Errorf("%s api key missing", c.provider))
	}
	if strings.TrimSpace(modelID) == "" {
		return "", newError(KindInvalidModel, c.provider, modelID, errors.New("empty model id"))
	}
	payload, err := json.Marshal(map[string]any{
		"model":    modelID,
		"messages": messages,
	})
	if err != nil {
		return "", newError(KindUnknown, c.provider, modelID, fmt.Errorf("encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", newError(KindUnknown, c.provider, modelID, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", newError(KindUnreachable, c.provider, modelID, fmt.Errorf("%s generate request failed: %w", c.provider, err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		be := newError(kindForStatus(resp.StatusCode, string(body)), c.provider, modelID, fmt.Errorf("%s generate error %d: %s", c.provider, resp.StatusCode, string(body)))
		be.Status = resp.StatusCode
		return "", be
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newError(KindUnknown, c.provider, modelID, fmt.Errorf("decode %s response: %w", c.provider, err))
	}
	if len(parsed.Choices) == 0 {
		return "", newError(KindUnknown, c.provider, modelID, fmt.Errorf("%s returned empty choices", c.provider))
	}
	return parsed.Choices[0].Message.Content, nil
}

// OpenAIEmbedder uses the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	keyName string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIEmbedder(keyName string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		keyName: keyName,
		apiKey:  resolveKey("openai", keyName),
		baseURL: OpenAIBaseURL,
		model:   "text-embedding-3-small",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.model, Key: o.keyName}
	if o.apiKey == "" {
		return nil, info, newError(KindNotConfigured, "openai", o.model, fmt.Errorf("openai key missing for alias %q", o.keyName))
	}
	payload, _ := json.Marshal(map[string]any{"model": o.model, "input": req.Inputs})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, info, newError(KindUnreachable, "openai", o.model, fmt.Errorf("openai embedding request failed: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, info, newError(kindForStatus(resp.StatusCode, string(body)), "openai", o.model, fmt.Errorf("openai embedding error %d: %s", resp.StatusCode, string(body)))
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode embedding response: %w", err)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, matchDimension(d.Embedding, req.Dimension))
	}
	return out, info, nil
}
