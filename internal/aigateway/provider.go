package aigateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPProviderConfig configures a plain net/http provider adapter
// against an OpenAI-style responses endpoint (grounded on the
// teacher's openAIInvokeAdapter — no SDK client, just a POST and a
// narrow response decode).
type HTTPProviderConfig struct {
	ResponsesURL string
	APIKey       string
	Model        string
	HTTPClient   *http.Client
}

// HTTPProvider implements Provider against a real HTTP model endpoint.
type HTTPProvider struct {
	cfg HTTPProviderConfig
}

// NewHTTPProvider builds an HTTPProvider, defaulting the responses URL
// and HTTP client the same way the teacher's adapter constructor does.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = "https://api.openai.com/v1/responses"
	}
	return &HTTPProvider{cfg: cfg}
}

// Invoke implements Provider.
func (p *HTTPProvider) Invoke(ctx context.Context, req Request) (string, string, int, int, error) {
	model := strings.TrimSpace(p.cfg.Model)
	if model == "" {
		return "", "", 0, 0, fmt.Errorf("model is required")
	}
	prompt := strings.TrimSpace(req.UserPrompt)
	if prompt == "" {
		return "", "", 0, 0, fmt.Errorf("user prompt is required")
	}

	body, err := json.Marshal(map[string]any{
		"model":         model,
		"input":         prompt,
		"instructions":  req.SystemPrompt,
		"max_output_tokens": req.MaxTokens,
	})
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("marshal generate request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.ResponsesURL, bytes.NewReader(body))
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	res, err := p.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", "", 0, 0, Transient(fmt.Errorf("generate request failed: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return "", "", 0, 0, Transient(fmt.Errorf("generate request status %d", res.StatusCode))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", "", 0, 0, fmt.Errorf("generate request status %d: %s", res.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Model      string `json:"model"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", "", 0, 0, fmt.Errorf("decode generate response: %w", err)
	}
	text := strings.TrimSpace(payload.OutputText)
	if text == "" {
		return "", "", 0, 0, fmt.Errorf("generate response missing output text")
	}
	modelID := payload.Model
	if modelID == "" {
		modelID = model
	}
	return text, modelID, payload.Usage.InputTokens, payload.Usage.OutputTokens, nil
}
