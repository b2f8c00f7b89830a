// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm implements chat-completion backends for the Generative AI APIs
// used by workflow extraction and analysis. Each backend sends one system and
// one user message and returns the model's text; a JSON schema, when given,
// constrains the answer.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Schema names a JSON schema for structured output.
type Schema struct {
	Name   string
	Schema json.RawMessage
}

// Request is one chat-completion call.
type Request struct {
	System      string
	User        string
	Schema      *Schema
	Temperature float64
}

// Completer abstracts the Generative AI API so tests can supply a mock.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// from a model answer. Text without a fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON strips any code fence from answer and unmarshals it into v.
func DecodeJSON(answer string, v any) error {
	if err := json.Unmarshal([]byte(StripCodeFence(answer)), v); err != nil {
		return fmt.Errorf("parsing AI response JSON: %w", err)
	}
	return nil
}

// apiError reads a non-200 response into an error.
func apiError(api string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s API returned %d: %s", api, resp.StatusCode, strings.TrimSpace(string(body)))
}
