// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns PDFs into structured paper content with pluggable
// backends (GROBID, or an OpenAI assistant reading the uploaded PDF) and
// writes the results as CSV tables.
package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// ReasonGrobidUnavailable is recorded for every PDF when the GROBID
// preflight check fails.
const ReasonGrobidUnavailable = "GROBID not available"

// Extractor transforms a PDF file into structured paper content. Different
// backends (GROBID, OpenAI) implement this interface.
type Extractor interface {
	// Extract reads the PDF at pdfPath and returns its content.
	Extract(ctx context.Context, pdfPath string) (types.PaperContent, error)
}

// unavailable fails every PDF with a fixed reason.
type unavailable struct {
	reason string
}

// Unavailable returns an Extractor that fails every PDF with reason.
func Unavailable(reason string) Extractor {
	return unavailable{reason: reason}
}

func (u unavailable) Extract(context.Context, string) (types.PaperContent, error) {
	return types.PaperContent{}, fmt.Errorf("%s", u.reason)
}

// BatchResult holds the outcome of a batch extraction run, in input order.
type BatchResult struct {
	Results  []types.PaperContent
	Failures []types.Failure
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return len(r.Results) + len(r.Failures)
}

// HasFailures reports whether any papers failed extraction.
func (r BatchResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// DiscoverPDFs returns every dir/*/*.pdf (one subdirectory per paper) in
// lexical order, keeping at most max paths when max > 0.
func DiscoverPDFs(dir string, max int) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading PDF directory %s: %w", dir, err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*", "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("listing PDFs in %s: %w", dir, err)
	}
	sort.Strings(paths)
	if max > 0 && len(paths) > max {
		paths = paths[:max]
	}
	return paths, nil
}

// ExtractBatch runs ex over paths with at most concurrency extractions in
// flight, printing per-file status to w (nil discards it). A failed paper is
// recorded and never stops the batch; only context cancellation does.
func ExtractBatch(ctx context.Context, ex Extractor, paths []string, concurrency int, w io.Writer) (BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	if w == nil {
		w = io.Discard
	}

	type outcome struct {
		content types.PaperContent
		err     error
	}
	outcomes := make([]outcome, len(paths))

	var mu sync.Mutex
	var succeeded, failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := ex.Extract(gctx, p)
			if err == nil && content.Filename == "" {
				content.Filename = filepath.Base(p)
			}
			outcomes[i] = outcome{content: content, err: err}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Fprintf(w, "failed:    %s (%v)\n", filepath.Base(p), err)
				fmt.Fprintf(w, "Failed to process: %d papers\n", failed)
			} else {
				succeeded++
				fmt.Fprintf(w, "processed: %s\n", filepath.Base(p))
				fmt.Fprintf(w, "Successfully processed: %d papers\n", succeeded)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, types.Failure{
				Filename: filepath.Base(paths[i]),
				Error:    o.err.Error(),
			})
			continue
		}
		result.Results = append(result.Results, o.content)
	}
	return result, nil
}

// ResultsPath is the CSV of successfully extracted papers.
func ResultsPath(dir, name string) string { return filepath.Join(dir, name+".csv") }

// FailuresPath is the CSV listing papers that could not be extracted.
func FailuresPath(dir, name string) string { return filepath.Join(dir, name+"_failed.csv") }

// SaveResults writes dir/name.csv with every successful paper and, when
// there are failures, dir/name_failed.csv. The directory is created.
func SaveResults(dir, name string, result BatchResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	rows := make([][]string, len(result.Results))
	for i, r := range result.Results {
		rows[i] = r.Row()
	}
	if err := csvio.Write(ResultsPath(dir, name), types.ContentColumns, rows); err != nil {
		return err
	}

	return SaveFailures(dir, name, result.Failures)
}

// SaveFailures writes dir/name_failed.csv when failures is non-empty.
func SaveFailures(dir, name string, failures []types.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	rows := make([][]string, len(failures))
	for i, f := range failures {
		rows[i] = []string{f.Filename, f.Error}
	}
	return csvio.Write(FailuresPath(dir, name), []string{"filename", "error"}, rows)
}

// PrintSummary writes the end-of-run summary.
func PrintSummary(w io.Writer, result BatchResult, dir, name string) {
	fmt.Fprintf(w, "\n=== Summary ===\n")
	fmt.Fprintf(w, "Successfully processed: %d papers\n", len(result.Results))
	fmt.Fprintf(w, "Failed: %d papers\n", len(result.Failures))
	fmt.Fprintf(w, "Output saved to: %s\n", ResultsPath(dir, name))
}
