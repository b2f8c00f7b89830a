// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis assesses extracted metabolomics workflows. Each workflow
// from the workflows JSON file is sent to a Generative AI API with a fixed
// twenty-field schema; the answers are tabulated as CSV and summarized.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// Item is one workflow to analyze. Workflow is kept as raw JSON so any
// workflow document can be analyzed, not only ones this tool wrote.
type Item struct {
	Filename string
	Workflow json.RawMessage
}

// LoadWorkflows reads a workflows JSON file. An entry without a filename is
// named unknown_<index>; an entry without a workflow analyzes {}.
func LoadWorkflows(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflows %s: %w", path, err)
	}
	var entries []struct {
		Filename string          `json:"filename"`
		Workflow json.RawMessage `json:"workflow"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing workflows %s: %w", path, err)
	}

	items := make([]Item, len(entries))
	for i, e := range entries {
		name := e.Filename
		if name == "" {
			name = fmt.Sprintf("unknown_%d", i)
		}
		wf := e.Workflow
		if len(wf) == 0 || string(wf) == "null" {
			wf = json.RawMessage("{}")
		}
		items[i] = Item{Filename: name, Workflow: wf}
	}
	return items, nil
}

// AnalyzeWorkflow asks c to assess one workflow. Any failure yields the
// default error row rather than an error.
func AnalyzeWorkflow(ctx context.Context, c llm.Completer, workflow json.RawMessage, filename string) types.WorkflowAnalysis {
	row, err := analyze(ctx, c, workflow)
	if err != nil {
		slog.Error("workflow analysis failed", "paper", filename, "error", err)
		return types.FailedAnalysis(filename, err.Error())
	}
	row.Filename = filename
	row.Error = ""
	return row
}

func analyze(ctx context.Context, c llm.Completer, workflow json.RawMessage) (types.WorkflowAnalysis, error) {
	var indented bytes.Buffer
	if err := json.Indent(&indented, workflow, "", "  "); err != nil {
		return types.WorkflowAnalysis{}, fmt.Errorf("formatting workflow: %w", err)
	}

	answer, err := c.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        analysisPrompt + "\n\nWorkflow to analyze:\n" + indented.String(),
		Schema:      Schema(),
		Temperature: 0,
	})
	if err != nil {
		return types.WorkflowAnalysis{}, err
	}

	var row types.WorkflowAnalysis
	if err := llm.DecodeJSON(answer, &row); err != nil {
		return types.WorkflowAnalysis{}, err
	}
	return row, nil
}

// AnalyzeAll analyzes items in order, printing progress to w (nil discards
// it).
func AnalyzeAll(ctx context.Context, c llm.Completer, items []Item, w io.Writer) ([]types.WorkflowAnalysis, error) {
	if w == nil {
		w = io.Discard
	}
	fmt.Fprintf(w, "Found %d workflows to analyze\n%s\n", len(items), strings.Repeat("=", 80))

	rows := make([]types.WorkflowAnalysis, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		fmt.Fprintf(w, "\n[%d/%d] Analyzing: %s\n", i+1, len(items), item.Filename)

		row := AnalyzeWorkflow(ctx, c, item.Workflow, item.Filename)
		rows = append(rows, row)
		if row.Error == "" {
			fmt.Fprintln(w, "  Analysis complete")
		} else {
			fmt.Fprintf(w, "  Analysis failed: %s\n", row.Error)
		}
	}
	return rows, nil
}

// Columns is the analysis CSV column order. An "error" column follows when
// any row failed.
var Columns = []string{
	"filename",
	"has_untargeted_metabolomics",
	"uses_ms",
	"uses_lcms",
	"uses_gcms",
	"uses_msms",
	"main_analytical_platform",
	"sample_type",
	"has_sample_prep",
	"has_extraction",
	"has_normalization",
	"uses_pca",
	"uses_plsda",
	"has_statistical_analysis",
	"has_pathway_analysis",
	"uses_kegg",
	"has_annotation",
	"num_workflow_steps",
	"num_tools_mentioned",
	"num_databases_mentioned",
	"workflow_completeness",
}

// Row returns a's values in Columns order.
func Row(a types.WorkflowAnalysis) []string {
	b := strconv.FormatBool
	return []string{
		a.Filename,
		b(a.HasUntargetedMetabolomics),
		b(a.UsesMS),
		b(a.UsesLCMS),
		b(a.UsesGCMS),
		b(a.UsesMSMS),
		a.MainAnalyticalPlatform,
		a.SampleType,
		b(a.HasSamplePrep),
		b(a.HasExtraction),
		b(a.HasNormalization),
		b(a.UsesPCA),
		b(a.UsesPLSDA),
		b(a.HasStatisticalAnalysis),
		b(a.HasPathwayAnalysis),
		b(a.UsesKEGG),
		b(a.HasAnnotation),
		strconv.Itoa(a.NumWorkflowSteps),
		strconv.Itoa(a.NumToolsMentioned),
		strconv.Itoa(a.NumDatabasesMentioned),
		strconv.Itoa(a.WorkflowCompleteness),
	}
}

// WriteCSV writes rows to path.
func WriteCSV(path string, rows []types.WorkflowAnalysis) error {
	withError := false
	for _, r := range rows {
		if r.Error != "" {
			withError = true
			break
		}
	}

	header := Columns
	if withError {
		header = append(append([]string{}, Columns...), "error")
	}
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = Row(r)
		if withError {
			records[i] = append(records[i], r.Error)
		}
	}
	return csvio.Write(path, header, records)
}

// FromRecord parses an analysis CSV record keyed by column name. Unparsable
// booleans read as false and unparsable counts as 0.
func FromRecord(rec map[string]string) types.WorkflowAnalysis {
	b := func(k string) bool {
		v, _ := strconv.ParseBool(rec[k])
		return v
	}
	n := func(k string) int {
		v, _ := strconv.Atoi(rec[k])
		return v
	}
	return types.WorkflowAnalysis{
		Filename:                  rec["filename"],
		HasUntargetedMetabolomics: b("has_untargeted_metabolomics"),
		UsesMS:                    b("uses_ms"),
		UsesLCMS:                  b("uses_lcms"),
		UsesGCMS:                  b("uses_gcms"),
		UsesMSMS:                  b("uses_msms"),
		SampleType:                rec["sample_type"],
		HasSamplePrep:             b("has_sample_prep"),
		HasExtraction:             b("has_extraction"),
		HasNormalization:          b("has_normalization"),
		UsesPCA:                   b("uses_pca"),
		UsesPLSDA:                 b("uses_plsda"),
		HasStatisticalAnalysis:    b("has_statistical_analysis"),
		HasPathwayAnalysis:        b("has_pathway_analysis"),
		UsesKEGG:                  b("uses_kegg"),
		NumWorkflowSteps:          n("num_workflow_steps"),
		NumToolsMentioned:         n("num_tools_mentioned"),
		NumDatabasesMentioned:     n("num_databases_mentioned"),
		HasAnnotation:             b("has_annotation"),
		WorkflowCompleteness:      n("workflow_completeness"),
		MainAnalyticalPlatform:    rec["main_analytical_platform"],
		Error:                     rec["error"],
	}
}

// Summary counts key properties across analyzed workflows.
type Summary struct {
	Total           int
	Untargeted      int
	LCMS            int
	GCMS            int
	MSMS            int
	PathwayAnalysis int
	KEGG            int

	// MeanCompleteness averages workflow_completeness over every row,
	// failed rows included as 0.
	MeanCompleteness float64
}

// Summarize computes the summary of rows.
func Summarize(rows []types.WorkflowAnalysis) Summary {
	s := Summary{Total: len(rows)}
	total := 0
	for _, r := range rows {
		s.Untargeted += count(r.HasUntargetedMetabolomics)
		s.LCMS += count(r.UsesLCMS)
		s.GCMS += count(r.UsesGCMS)
		s.MSMS += count(r.UsesMSMS)
		s.PathwayAnalysis += count(r.HasPathwayAnalysis)
		s.KEGG += count(r.UsesKEGG)
		total += r.WorkflowCompleteness
	}
	if len(rows) > 0 {
		s.MeanCompleteness = float64(total) / float64(len(rows))
	}
	return s
}

func count(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Print writes the summary block.
func (s Summary) Print(w io.Writer, outputPath string) {
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintln(w, "=== SUMMARY ===")
	fmt.Fprintf(w, "Total workflows analyzed: %d\n", s.Total)
	fmt.Fprintf(w, "\nKey Statistics:\n")
	fmt.Fprintf(w, "  - Has untargeted metabolomics: %d/%d\n", s.Untargeted, s.Total)
	fmt.Fprintf(w, "  - Uses LC-MS: %d/%d\n", s.LCMS, s.Total)
	fmt.Fprintf(w, "  - Uses GC-MS: %d/%d\n", s.GCMS, s.Total)
	fmt.Fprintf(w, "  - Uses MS/MS: %d/%d\n", s.MSMS, s.Total)
	fmt.Fprintf(w, "  - Has pathway analysis: %d/%d\n", s.PathwayAnalysis, s.Total)
	fmt.Fprintf(w, "  - Uses KEGG: %d/%d\n", s.KEGG, s.Total)
	fmt.Fprintf(w, "\nAverage workflow completeness: %.2f/5\n", s.MeanCompleteness)
	fmt.Fprintf(w, "\nOutput saved to: %s\n", outputPath)
}
