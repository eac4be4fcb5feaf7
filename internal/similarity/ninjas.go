package similarity

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
	NinjasURL      = "https://api.api-ninjas.com/v1/textsimilarity"
	NinjasMaxChars = 4900
)

// Ninjas calls the API Ninjas text similarity service.
type Ninjas struct {
	url      string
	apiKey   string
	maxChars int
	client   *http.Client
}

func NewNinjas(url, apiKey string, maxChars int) *Ninjas {
	if url == "" {
		url = NinjasURL
	}
	if maxChars <= 0 {
		maxChars = NinjasMaxChars
	}
	return &Ninjas{url: url, apiKey: apiKey, maxChars: maxChars, client: &http.Client{Timeout: 30 * time.Second}}
}

func (n *Ninjas) Similarity(ctx context.Context, a, b string) (float64, error) {
	if n.apiKey == "" {
		return 0, errors.New("similarity api key missing")
	}
	payload, _ := json.Marshal(map[string]string{
		"text_1": truncateRunes(a, n.maxChars),
		"text_2": truncateRunes(b, n.maxChars),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build similarity request: %w", err)
	}
	req.Header.Set("X-Api-Key", n.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("similarity request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("similarity error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed struct {
		Similarity *float64 `json:"similarity"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decode similarity response: %w", err)
	}
	if parsed.Similarity == nil {
		return 0, errors.New("similarity response missing score")
	}
	return Clamp(*parsed.Similarity), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
