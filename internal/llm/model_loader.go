package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModelProbe asks an OpenAI-compatible server which models it serves.
type ModelProbe struct {
	baseURL string
	client  *http.Client
}

// NewModelProbe creates a probe against baseURL.
func NewModelProbe(baseURL string) *ModelProbe {
	return &ModelProbe{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ModelEntry is one item of the /v1/models listing.
type ModelEntry struct {
	ID string `json:"id"`
}

// ModelsResponse represents the response from the /v1/models endpoint.
type ModelsResponse struct {
	Data []ModelEntry `json:"data"`
}

// Available reports whether modelName appears in the server's model list.
func (p *ModelProbe) Available(ctx context.Context, modelName string) (bool, error) {
	modelsURL := fmt.Sprintf("%s/v1/models", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create models request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to list models: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return false, fmt.Errorf("failed to decode models response: %w", err)
	}

	for _, model := range modelsResp.Data {
		if model.ID == modelName {
			return true, nil
		}
	}
	return false, nil
}
