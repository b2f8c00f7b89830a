// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/workflow-miner/internal/httputil"
)

// DefaultOpenAIURL is the OpenAI API base. Tests substitute an httptest URL.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// DefaultOpenAIModel is the model used when none is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIBackend calls the OpenAI Chat Completions API, and the file and
// assistant endpoints used to read PDFs directly.
type OpenAIBackend struct {
	APIKey     string
	Model      string
	BaseURL    string
	Client     *http.Client
	MaxRetries int
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAIBackend) baseURL() string {
	if o.BaseURL == "" {
		return DefaultOpenAIURL
	}
	return strings.TrimRight(o.BaseURL, "/")
}

func (o *OpenAIBackend) model() string {
	if o.Model == "" {
		return DefaultOpenAIModel
	}
	return o.Model
}

func (o *OpenAIBackend) httpClient() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

// Complete sends a system and user message and returns the first choice's
// content. A schema is passed as a json_schema response format.
func (o *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	body := openAIChatRequest{
		Model:       o.model(),
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: req.User})
	if req.Schema != nil {
		body.ResponseFormat = &openAIResponseFormat{
			Type:       "json_schema",
			JSONSchema: &openAIJSONSchema{Name: req.Schema.Name, Schema: req.Schema.Schema},
		}
	}

	var resp openAIChatResponse
	if err := o.doJSON(ctx, http.MethodPost, "/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// doJSON sends a JSON request (body may be nil) and decodes the JSON answer
// into out (which may be nil).
func (o *OpenAIBackend) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return o.do(ctx, req, out)
}

// do authorizes and sends req, retrying rate limits, and decodes the answer.
func (o *OpenAIBackend) do(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := httputil.DoWithRetry(ctx, o.httpClient(), req, o.MaxRetries)
	if err != nil {
		return fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("OpenAI", resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding OpenAI response: %w", err)
	}
	return nil
}
