package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// Item is a single generated recommendation before guardrail processing.
type Item struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Rationale string `json:"rationale"`
}

// GenerationResult carries the generated items plus usage accounting.
// Token usage and cost are for logs only; callers must not persist them.
type GenerationResult struct {
	Items            []Item
	Model            string
	InputTokens      int
	OutputTokens     int
	TotalTokens      int
	EstimatedCostUSD float64
}

// Client generates persona-tailored recommendation drafts from an
// OpenAI-compatible responses endpoint. Each call is exactly one HTTP
// attempt; callers decide whether a failed generation is retried.
type Client interface {
	GenerateRecommendations(ctx context.Context, personaType string, promptTemplate string, userContext map[string]any) (GenerationResult, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	model   string

	httpClient *http.Client

	temperature *float64

	inputCostPer1K  float64
	outputCostPer1K float64
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSec := 30
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	var tempPtr *float64
	temp := 0.2
	if v := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); v != "" {
		low := strings.ToLower(v)
		if low == "off" || low == "none" || low == "false" {
			temp = -1
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			temp = f
		}
	}
	if temp >= 0 {
		tempPtr = &temp
	}

	inCost := parseFloatEnv("OPENAI_INPUT_COST_PER_1K", 0.00015)
	outCost := parseFloatEnv("OPENAI_OUTPUT_COST_PER_1K", 0.0006)

	return &client{
		log:             log.With("service", "LLMClient"),
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		httpClient:      &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		temperature:     tempPtr,
		inputCostPer1K:  inCost,
		outputCostPer1K: outCost,
	}, nil
}

func parseFloatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

// HTTPError is a non-2xx response from the provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// -------------------- Responses API --------------------

type responsesRequest struct {
	Model string `json:"model"`

	Input []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"input"`

	Text struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
	Usage   struct {
		InputTokens      int `json:"input_tokens"`
		OutputTokens     int `json:"output_tokens"`
		TotalTokens      int `json:"total_tokens"`
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func recommendationSchema() map[string]any {
	itemSchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"title", "content", "rationale"},
		"properties": map[string]any{
			"title":     map[string]any{"type": "string"},
			"content":   map[string]any{"type": "string"},
			"rationale": map[string]any{"type": "string"},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"recommendations"},
		"properties": map[string]any{
			"recommendations": map[string]any{
				"type":  "array",
				"items": itemSchema,
			},
		},
	}
}

// doOnce performs exactly one HTTP attempt. No retry, no backoff.
func (c *client) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func (c *client) GenerateRecommendations(ctx context.Context, personaType string, promptTemplate string, userContext map[string]any) (GenerationResult, error) {
	var out GenerationResult

	personaType = strings.TrimSpace(personaType)
	if personaType == "" {
		return out, errors.New("persona type required")
	}
	if strings.TrimSpace(promptTemplate) == "" {
		return out, errors.New("prompt template required")
	}
	if userContext == nil {
		return out, errors.New("user context required")
	}

	contextJSON, err := json.MarshalIndent(userContext, "", "  ")
	if err != nil {
		return out, fmt.Errorf("encode user context: %w", err)
	}

	req := responsesRequest{
		Model: c.model,
		Input: []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		}{
			{Role: "system", Content: promptTemplate},
			{Role: "user", Content: "User context:\n" + string(contextJSON)},
		},
		Temperature: c.temperature,
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   "financial_recommendations",
		"schema": recommendationSchema(),
		"strict": true,
	}

	start := time.Now()
	raw, err := c.doOnce(ctx, "POST", "/v1/responses", req)
	if err != nil {
		return out, err
	}

	var resp responsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return out, fmt.Errorf("openai decode error: %w; raw=%s", err, string(raw))
	}
	if resp.Refusal != "" {
		return out, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	jsonText := extractOutputText(resp)
	if strings.TrimSpace(jsonText) == "" {
		return out, errors.New("no output_text found in response")
	}

	var payload struct {
		Recommendations []Item `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return out, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, jsonText)
	}

	items := make([]Item, 0, len(payload.Recommendations))
	for _, item := range payload.Recommendations {
		item.Title = strings.TrimSpace(item.Title)
		item.Content = strings.TrimSpace(item.Content)
		item.Rationale = strings.TrimSpace(item.Rationale)
		if item.Title == "" || item.Content == "" {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return out, errors.New("model returned no recommendations")
	}

	inTokens := resp.Usage.InputTokens
	outTokens := resp.Usage.OutputTokens
	totalTokens := resp.Usage.TotalTokens
	if inTokens == 0 && outTokens == 0 {
		inTokens = resp.Usage.PromptTokens
		outTokens = resp.Usage.CompletionTokens
	}
	if totalTokens == 0 {
		totalTokens = inTokens + outTokens
	}

	out = GenerationResult{
		Items:            items,
		Model:            c.model,
		InputTokens:      inTokens,
		OutputTokens:     outTokens,
		TotalTokens:      totalTokens,
		EstimatedCostUSD: c.estimateCostUSD(inTokens, outTokens),
	}

	c.log.Info("Generated recommendations",
		"persona_type", personaType,
		"items", len(out.Items),
		"model", out.Model,
		"total_tokens", out.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *client) estimateCostUSD(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000.0*c.inputCostPer1K + float64(outputTokens)/1000.0*c.outputCostPer1K
}
