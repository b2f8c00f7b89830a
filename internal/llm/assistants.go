// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// PollInterval is the delay between run status checks. Tests override it.
var PollInterval = time.Second

// Run statuses reported by the Assistants API.
const (
	RunQueued         = "queued"
	RunInProgress     = "in_progress"
	RunCancelling     = "cancelling"
	RunCompleted      = "completed"
	RunRequiresAction = "requires_action"
)

// Run is the subset of an assistant run the pipeline reads.
type Run struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Terminal reports whether the run will not change status on its own.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunQueued, RunInProgress, RunCancelling:
		return false
	}
	return true
}

// AssistantSpec describes an assistant to create.
type AssistantSpec struct {
	Name         string
	Instructions string
	FileSearch   bool
}

type tool struct {
	Type string `json:"type"`
}

type idResponse struct {
	ID string `json:"id"`
}

type assistantRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
	Tools        []tool `json:"tools,omitempty"`
}

type attachment struct {
	FileID string `json:"file_id"`
	Tools  []tool `json:"tools"`
}

type threadMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type threadRequest struct {
	Messages []threadMessage `json:"messages"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// UploadFile uploads a local file with the given purpose and returns its ID.
func (o *OpenAIBackend) UploadFile(ctx context.Context, path, purpose string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return "", fmt.Errorf("writing purpose field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL()+"/files", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out idResponse
	if err := o.do(ctx, req, &out); err != nil {
		return "", fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}
	return out.ID, nil
}

// DeleteFile removes an uploaded file.
func (o *OpenAIBackend) DeleteFile(ctx context.Context, fileID string) error {
	return o.doJSON(ctx, http.MethodDelete, "/files/"+fileID, nil, nil)
}

// CreateAssistant creates an assistant on the backend's model and returns its ID.
func (o *OpenAIBackend) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	body := assistantRequest{
		Name:         spec.Name,
		Instructions: spec.Instructions,
		Model:        o.model(),
	}
	if spec.FileSearch {
		body.Tools = []tool{{Type: "file_search"}}
	}
	var out idResponse
	if err := o.doJSON(ctx, http.MethodPost, "/assistants", body, &out); err != nil {
		return "", fmt.Errorf("creating assistant: %w", err)
	}
	return out.ID, nil
}

// DeleteAssistant removes an assistant.
func (o *OpenAIBackend) DeleteAssistant(ctx context.Context, assistantID string) error {
	return o.doJSON(ctx, http.MethodDelete, "/assistants/"+assistantID, nil, nil)
}

// CreateThread starts a thread with one user message. fileIDs are attached
// for file search.
func (o *OpenAIBackend) CreateThread(ctx context.Context, content string, fileIDs ...string) (string, error) {
	msg := threadMessage{Role: "user", Content: content}
	for _, id := range fileIDs {
		msg.Attachments = append(msg.Attachments, attachment{
			FileID: id,
			Tools:  []tool{{Type: "file_search"}},
		})
	}
	var out idResponse
	if err := o.doJSON(ctx, http.MethodPost, "/threads", threadRequest{Messages: []threadMessage{msg}}, &out); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return out.ID, nil
}

// RunAndPoll runs the assistant on the thread and polls until the run
// reaches a terminal status, which it returns.
func (o *OpenAIBackend) RunAndPoll(ctx context.Context, threadID, assistantID string) (Run, error) {
	var run Run
	if err := o.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs", runRequest{AssistantID: assistantID}, &run); err != nil {
		return Run{}, fmt.Errorf("creating run: %w", err)
	}

	for !run.Terminal() {
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(PollInterval):
		}
		if err := o.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+run.ID, nil, &run); err != nil {
			return run, fmt.Errorf("polling run: %w", err)
		}
	}
	return run, nil
}

// LatestMessageText returns the first text block of the newest message in
// the thread.
func (o *OpenAIBackend) LatestMessageText(ctx context.Context, threadID string) (string, error) {
	var list messageList
	if err := o.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil, &list); err != nil {
		return "", fmt.Errorf("listing messages: %w", err)
	}
	if len(list.Data) == 0 || len(list.Data[0].Content) == 0 {
		return "", fmt.Errorf("thread %s has no message content", threadID)
	}
	for _, block := range list.Data[0].Content {
		if block.Type == "text" {
			return block.Text.Value, nil
		}
	}
	return "", fmt.Errorf("thread %s latest message has no text", threadID)
}
