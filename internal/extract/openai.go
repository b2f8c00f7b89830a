// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// contentPrompt asks the assistant for the same six fields GROBID yields.
const contentPrompt = `Extract the following information from this PDF:
1. Title
2. Authors (semicolon-separated)
3. Abstract
4. Full text content
5. All figure captions (each separated by double newlines)
6. All table captions (each separated by double newlines)

Return as json with keys: title, authors, abstract, full_text, figure_captions, table_captions
Return nothing else.`

const (
	assistantName         = "PDF Extractor"
	assistantInstructions = "You extract structured information from academic PDFs."
	filePurpose           = "assistants"
)

// AssistantAPI is the subset of the OpenAI Assistants API the extractor
// drives. *llm.OpenAIBackend implements it.
type AssistantAPI interface {
	UploadFile(ctx context.Context, path, purpose string) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateAssistant(ctx context.Context, spec llm.AssistantSpec) (string, error)
	DeleteAssistant(ctx context.Context, assistantID string) error
	CreateThread(ctx context.Context, content string, fileIDs ...string) (string, error)
	RunAndPoll(ctx context.Context, threadID, assistantID string) (llm.Run, error)
	LatestMessageText(ctx context.Context, threadID string) (string, error)
}

// OpenAIExtractor extracts content by uploading the PDF and asking a
// file-search assistant for the fields.
type OpenAIExtractor struct {
	api AssistantAPI
	log *slog.Logger
}

// NewOpenAIExtractor creates an extractor driving api. A nil logger uses
// slog.Default().
func NewOpenAIExtractor(api AssistantAPI, log *slog.Logger) *OpenAIExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIExtractor{api: api, log: log}
}

// Extract uploads the PDF, runs the assistant, and parses its answer. The
// uploaded file and the assistant are deleted whether or not the run
// succeeds.
func (o *OpenAIExtractor) Extract(ctx context.Context, pdfPath string) (types.PaperContent, error) {
	name := filepath.Base(pdfPath)

	fileID, err := o.api.UploadFile(ctx, pdfPath, filePurpose)
	if err != nil {
		return types.PaperContent{}, err
	}
	o.log.Info("uploaded file", "paper", name, "file_id", fileID)
	defer o.cleanup(name, "file", fileID, o.api.DeleteFile)

	assistantID, err := o.api.CreateAssistant(ctx, llm.AssistantSpec{
		Name:         assistantName,
		Instructions: assistantInstructions,
		FileSearch:   true,
	})
	if err != nil {
		return types.PaperContent{}, err
	}
	defer o.cleanup(name, "assistant", assistantID, o.api.DeleteAssistant)

	threadID, err := o.api.CreateThread(ctx, contentPrompt, fileID)
	if err != nil {
		return types.PaperContent{}, err
	}

	run, err := o.api.RunAndPoll(ctx, threadID, assistantID)
	if err != nil {
		return types.PaperContent{}, err
	}
	if run.Status != llm.RunCompleted {
		return types.PaperContent{}, fmt.Errorf("Run failed with status: %s", run.Status)
	}

	answer, err := o.api.LatestMessageText(ctx, threadID)
	if err != nil {
		return types.PaperContent{}, err
	}

	content := parseContentAnswer(answer)
	content.Filename = name
	return content, nil
}

// cleanup deletes a remote resource with a fresh context so cancellation of
// the extraction does not leak it.
func (o *OpenAIExtractor) cleanup(paper, kind, id string, del func(context.Context, string) error) {
	if err := del(context.Background(), id); err != nil {
		o.log.Warn("cleanup failed", "paper", paper, "kind", kind, "id", id, "error", err)
	}
}

// parseContentAnswer decodes the assistant's JSON. Text that is not JSON
// becomes the full text with every other field empty. List values are
// joined the way the CSV flattens them.
func parseContentAnswer(answer string) types.PaperContent {
	var fields map[string]any
	if err := llm.DecodeJSON(answer, &fields); err != nil {
		return types.PaperContent{FullText: answer}
	}
	return types.PaperContent{
		Title:          flatten(fields["title"], " "),
		Authors:        flatten(fields["authors"], "; "),
		Abstract:       flatten(fields["abstract"], "\n\n"),
		FullText:       flatten(fields["full_text"], "\n\n"),
		FigureCaptions: flatten(fields["figure_captions"], "\n\n"),
		TableCaptions:  flatten(fields["table_captions"], "\n\n"),
	}
}

func flatten(v any, sep string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item, sep); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(t)
	}
}
