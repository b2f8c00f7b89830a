// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow extracts the untargeted metabolomics workflow described in
// a paper. Each paper's content comes from an extract.Extractor (or a
// previously written content CSV); its full text is sent to a Generative AI
// API constrained by a JSON schema, and the answer is kept as a
// types.Workflow.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/workflow-miner/internal/extract"
	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// Defaults applied when the configuration leaves a field zero.
const (
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultInterPaperDelay = time.Second
)

// NoFullTextNote is the ambiguity note recorded when a paper has no text to
// analyze.
const NoFullTextNote = "No full text extracted from PDF."

// ExtractWorkflow asks c for the workflow described in fullText. A failed
// call is retried up to cfg.MaxRetries attempts in total, cfg.RetryDelay
// apart. When every attempt fails the result is an empty workflow whose note
// records the last error; ExtractWorkflow never fails.
func ExtractWorkflow(ctx context.Context, c llm.Completer, fullText string, cfg types.AIConfig) types.Workflow {
	if fullText == "" {
		return types.EmptyWorkflow(NoFullTextNote)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	prompt, err := renderPrompt(fullText)
	if err != nil {
		return types.EmptyWorkflow(fmt.Sprintf("Extraction failed after %d attempts: %v", maxRetries, err))
	}
	req := llm.Request{
		System:      systemPrompt,
		User:        prompt,
		Schema:      Schema(),
		Temperature: 0,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		wf, err := complete(ctx, c, req)
		if err == nil {
			return wf
		}
		lastErr = err
		slog.Warn("workflow extraction attempt failed", "attempt", attempt, "error", err)
		if attempt == maxRetries {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return types.EmptyWorkflow(fmt.Sprintf("Extraction failed after %d attempts: %v", maxRetries, lastErr))
}

func complete(ctx context.Context, c llm.Completer, req llm.Request) (types.Workflow, error) {
	answer, err := c.Complete(ctx, req)
	if err != nil {
		return types.Workflow{}, err
	}
	var wf types.Workflow
	if err := llm.DecodeJSON(answer, &wf); err != nil {
		return types.Workflow{}, err
	}
	return normalize(wf), nil
}

// normalize replaces nil slices so the workflow encodes as [] rather than null.
func normalize(wf types.Workflow) types.Workflow {
	if wf.WorkflowSteps == nil {
		wf.WorkflowSteps = []types.WorkflowStep{}
	}
	if wf.UnspecifiedOrOmittedSteps == nil {
		wf.UnspecifiedOrOmittedSteps = []string{}
	}
	for i, s := range wf.WorkflowSteps {
		if s.ToolsSoftware == nil {
			s.ToolsSoftware = []string{}
		}
		if s.DatabasesAPIs == nil {
			s.DatabasesAPIs = []string{}
		}
		if s.Inputs == nil {
			s.Inputs = []string{}
		}
		if s.Outputs == nil {
			s.Outputs = []string{}
		}
		wf.WorkflowSteps[i] = s
	}
	return wf
}

// EncodeWorkflow serializes wf as compact JSON without HTML escaping.
func EncodeWorkflow(wf types.Workflow) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wf); err != nil {
		return "", fmt.Errorf("encoding workflow: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Pipeline runs content extraction followed by workflow extraction.
type Pipeline struct {
	Extractor extract.Extractor
	Completer llm.Completer
	Config    types.WorkflowConfig

	// Out receives progress lines; nil discards them.
	Out io.Writer
	Log *slog.Logger
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// ProcessPaper extracts the content of one PDF and then its workflow. Only a
// content failure is returned as an error.
func (p *Pipeline) ProcessPaper(ctx context.Context, pdfPath string) (types.PaperWorkflow, error) {
	w := p.out()
	name := filepath.Base(pdfPath)
	fmt.Fprintf(w, "\nProcessing: %s\n%s\n", name, strings.Repeat("=", 80))

	fmt.Fprintln(w, "Step 1: Extracting PDF content...")
	content, err := p.Extractor.Extract(ctx, pdfPath)
	if err != nil {
		fmt.Fprintf(w, "  PDF extraction failed: %v\n", err)
		p.log().Error("content extraction failed", "paper", name, "error", err)
		return types.PaperWorkflow{}, err
	}
	if content.Filename == "" {
		content.Filename = name
	}
	fmt.Fprintln(w, "  PDF extraction successful")

	fmt.Fprintln(w, "Step 2: Extracting metabolomics workflow...")
	return p.withWorkflow(ctx, content)
}

// withWorkflow runs step 2 for content already extracted.
func (p *Pipeline) withWorkflow(ctx context.Context, content types.PaperContent) (types.PaperWorkflow, error) {
	w := p.out()
	var wf types.Workflow
	if content.FullText == "" {
		fmt.Fprintln(w, "  No full text available for workflow extraction")
		wf = types.EmptyWorkflow(NoFullTextNote)
	} else {
		wf = ExtractWorkflow(ctx, p.Completer, content.FullText, p.Config.AIConfig)
		if wf.PaperHasUntargetedMetabolomics {
			fmt.Fprintf(w, "  Workflow extracted (%d steps)\n", len(wf.WorkflowSteps))
		} else {
			fmt.Fprintln(w, "  No untargeted metabolomics workflow found")
		}
	}
	p.log().Info("workflow extracted", "paper", content.Filename,
		"untargeted", wf.PaperHasUntargetedMetabolomics, "steps", len(wf.WorkflowSteps))

	encoded, err := EncodeWorkflow(wf)
	if err != nil {
		return types.PaperWorkflow{}, err
	}
	return types.PaperWorkflow{PaperContent: content, WorkflowJSON: encoded}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
