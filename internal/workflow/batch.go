// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/internal/extract"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// Result holds the outcome of a workflow batch, in processing order.
type Result struct {
	Papers   []types.PaperWorkflow
	Failures []types.Failure
	Elapsed  time.Duration
}

// Columns of the combined CSV: the content columns plus workflow_json.
var Columns = append(append([]string{}, types.ContentColumns...), "workflow_json")

// WorkflowsPath returns dir/name_workflows.json.
func WorkflowsPath(dir, name string) string {
	return filepath.Join(dir, name+"_workflows.json")
}

// RunBatch processes pdfPaths one at a time, pausing InterPaperDelay
// between papers (not after the last).
func (p *Pipeline) RunBatch(ctx context.Context, pdfPaths []string) (Result, error) {
	w := p.out()
	start := time.Now()
	delay := p.Config.InterPaperDelay

	fmt.Fprintf(w, "\nProcessing %d PDFs...\n%s\n", len(pdfPaths), strings.Repeat("=", 80))

	var result Result
	for i, path := range pdfPaths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		name := filepath.Base(path)
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(pdfPaths), name)

		paper, err := p.ProcessPaper(ctx, path)
		if err != nil {
			result.Failures = append(result.Failures, types.Failure{Filename: name, Error: err.Error()})
			fmt.Fprintf(w, "Failed: %v\n", err)
		} else {
			result.Papers = append(result.Papers, paper)
			fmt.Fprintln(w, "Successfully processed")
		}

		if i < len(pdfPaths)-1 && delay > 0 {
			fmt.Fprintf(w, "Sleeping %s before next PDF...\n", delay)
			if err := sleep(ctx, delay); err != nil {
				return result, err
			}
		}
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// FromCSV runs workflow extraction over a previously written content CSV,
// skipping the PDF step.
func (p *Pipeline) FromCSV(ctx context.Context, csvPath string) (Result, error) {
	records, err := csvio.Read(csvPath)
	if err != nil {
		return Result{}, err
	}

	w := p.out()
	start := time.Now()
	fmt.Fprintf(w, "\nProcessing %d papers from %s...\n%s\n", len(records), csvPath, strings.Repeat("=", 80))

	var result Result
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		content := types.ContentFromRecord(rec)
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(records), content.Filename)

		paper, err := p.withWorkflow(ctx, content)
		if err != nil {
			result.Failures = append(result.Failures, types.Failure{Filename: content.Filename, Error: err.Error()})
			continue
		}
		result.Papers = append(result.Papers, paper)

		if i < len(records)-1 && p.Config.InterPaperDelay > 0 {
			if err := sleep(ctx, p.Config.InterPaperDelay); err != nil {
				return result, err
			}
		}
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// Save writes dir/name.csv and dir/name_workflows.json when there are
// results, and dir/name_failed.csv when there are failures.
func Save(dir, name string, result Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	if len(result.Papers) > 0 {
		rows := make([][]string, len(result.Papers))
		for i, paper := range result.Papers {
			rows[i] = append(paper.Row(), paper.WorkflowJSON)
		}
		if err := csvio.Write(extract.ResultsPath(dir, name), Columns, rows); err != nil {
			return err
		}

		records, err := Records(result.Papers)
		if err != nil {
			return err
		}
		if err := writeRecords(WorkflowsPath(dir, name), records); err != nil {
			return err
		}
	}

	return extract.SaveFailures(dir, name, result.Failures)
}

// Records decodes each paper's workflow_json into a WorkflowRecord.
func Records(papers []types.PaperWorkflow) ([]types.WorkflowRecord, error) {
	records := make([]types.WorkflowRecord, len(papers))
	for i, paper := range papers {
		var wf types.Workflow
		if err := json.Unmarshal([]byte(paper.WorkflowJSON), &wf); err != nil {
			return nil, fmt.Errorf("decoding workflow of %s: %w", paper.Filename, err)
		}
		records[i] = types.WorkflowRecord{
			Filename: paper.Filename,
			Title:    paper.Title,
			Workflow: normalize(wf),
		}
	}
	return records, nil
}

func writeRecords(path string, records []types.WorkflowRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// PrintSummary writes the end-of-run summary and the output file list.
func PrintSummary(w io.Writer, result Result, dir, name string) {
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintln(w, "=== FINAL SUMMARY ===")
	fmt.Fprintf(w, "Successfully processed: %d papers\n", len(result.Papers))
	fmt.Fprintf(w, "Failed: %d papers\n", len(result.Failures))
	fmt.Fprintf(w, "Runtime for %d papers: %s\n", len(result.Papers)+len(result.Failures), result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "\nOutput files:\n")
	if len(result.Papers) > 0 {
		fmt.Fprintf(w, "  - %s (all data)\n", extract.ResultsPath(dir, name))
		fmt.Fprintf(w, "  - %s (workflows only)\n", WorkflowsPath(dir, name))
	}
	if len(result.Failures) > 0 {
		fmt.Fprintf(w, "  - %s (failed papers)\n", extract.FailuresPath(dir, name))
	}
}
