package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModelExecutor runs a work unit as a hosted model call against the
// Anthropic Messages API. The unit's context is rendered into the prompt;
// the model's reply becomes the captured output.
type ModelExecutor struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// modelRequest is the Messages API request body.
type modelRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system,omitempty"`
	Messages  []modelMessage `json:"messages"`
}

type modelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// modelResponse is the subset of the Messages API response we consume.
type modelResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type modelError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewModelExecutor creates a hosted-model executor.
func NewModelExecutor(apiKey, baseURL, model string) (*ModelExecutor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the model executor")
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}

	return &ModelExecutor{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		// The dispatch context carries the hard timeout; no client timeout
		// so the reliability layer stays the single source of deadlines.
		httpClient: &http.Client{},
	}, nil
}

// Name identifies the executor variant.
func (e *ModelExecutor) Name() string {
	return "model"
}

// Execute sends the unit's context to the model and captures its reply.
func (e *ModelExecutor) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	start := time.Now()

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Phase: %s\nAgent role: %s\n", ec.Phase, ec.Agent)
	if ec.Intake != "" {
		fmt.Fprintf(&prompt, "\nIntake:\n%s\n", ec.Intake)
	}
	for phase, artifacts := range ec.PriorArtifacts {
		fmt.Fprintf(&prompt, "\nArtifacts from %s:\n", phase)
		for _, a := range artifacts {
			fmt.Fprintf(&prompt, "  - %s\n", a)
		}
	}

	req := modelRequest{
		Model:     e.model,
		MaxTokens: 4096,
		System:    fmt.Sprintf("You are the %q agent in a phased workflow. Produce the deliverable for your role.", ec.Agent),
		Messages: []modelMessage{
			{Role: "user", Content: prompt.String()},
		},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", e.apiKey)
	httpReq.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp modelError
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, firstLine(string(body)))
	}

	var modelResp modelResponse
	if err := json.Unmarshal(body, &modelResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(modelResp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	return &Result{
		Success:  true,
		Output:   modelResp.Content[0].Text,
		Duration: time.Since(start),
	}, nil
}
