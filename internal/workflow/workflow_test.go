package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/internal/extract"
	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

const workflowAnswer = `{
  "paper_has_untargeted_metabolomics": true,
  "workflow_steps": [
    {
      "step_number": 1,
      "step_name": "Extraction",
      "description": "Methanol extraction of <plasma> & serum",
      "category": "sample prep",
      "tools_software": [],
      "databases_apis": [],
      "inputs": ["plasma"],
      "outputs": ["extract"],
      "is_explicit_in_paper": true
    },
    {
      "step_number": 2,
      "step_name": "Annotation",
      "description": "Spectral matching",
      "category": "annotation",
      "tools_software": ["MS-DIAL"],
      "databases_apis": ["HMDB"],
      "inputs": ["features"],
      "outputs": ["annotations"],
      "is_explicit_in_paper": false
    }
  ],
  "unspecified_or_omitted_steps": ["normalization"],
  "notes_on_ambiguity": "none"
}`

var fastRetry = types.AIConfig{MaxRetries: 3, RetryDelay: time.Millisecond}

type fakeExtractor map[string]types.PaperContent

func (f fakeExtractor) Extract(_ context.Context, pdfPath string) (types.PaperContent, error) {
	c, ok := f[filepath.Base(pdfPath)]
	if !ok {
		return types.PaperContent{}, errors.New("unreadable PDF")
	}
	return c, nil
}

func answering(answer string, calls *int32) llm.Completer {
	return llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return answer, nil
	})
}

// --- ExtractWorkflow ---

func TestExtractWorkflow(t *testing.T) {
	var got llm.Request
	c := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return workflowAnswer, nil
	})

	wf := ExtractWorkflow(context.Background(), c, "  The full text.  ", fastRetry)
	assert.True(t, wf.PaperHasUntargetedMetabolomics)
	require.Len(t, wf.WorkflowSteps, 2)
	assert.Equal(t, "Annotation", wf.WorkflowSteps[1].StepName)
	assert.Equal(t, []string{"MS-DIAL"}, wf.WorkflowSteps[1].ToolsSoftware)
	assert.False(t, wf.WorkflowSteps[1].IsExplicitInPaper)

	assert.Equal(t, systemPrompt, got.System)
	assert.Zero(t, got.Temperature)
	require.NotNil(t, got.Schema)
	assert.Equal(t, "metabolomics_workflow_extraction", got.Schema.Name)
	assert.True(t, strings.HasPrefix(got.User, "You are an expert in untargeted metabolomics"))
	assert.True(t, strings.HasSuffix(got.User, "\n\nFull paper text:\nThe full text.\n"))
}

func TestExtractWorkflow_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("rate limited")
		}
		return workflowAnswer, nil
	})

	wf := ExtractWorkflow(context.Background(), c, "text", fastRetry)
	assert.True(t, wf.PaperHasUntargetedMetabolomics)
	assert.Equal(t, int32(3), calls)
}

func TestExtractWorkflow_FallbackAfterRetries(t *testing.T) {
	var calls int32
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "not json", nil
	})

	wf := ExtractWorkflow(context.Background(), c, "text", fastRetry)
	assert.Equal(t, int32(3), calls)
	assert.False(t, wf.PaperHasUntargetedMetabolomics)
	assert.Empty(t, wf.WorkflowSteps)
	assert.NotNil(t, wf.WorkflowSteps)
	assert.True(t, strings.HasPrefix(wf.NotesOnAmbiguity, "Extraction failed after 3 attempts: "))
}

func TestExtractWorkflow_EmptyTextSkipsCall(t *testing.T) {
	var calls int32
	wf := ExtractWorkflow(context.Background(), answering(workflowAnswer, &calls), "", fastRetry)
	assert.Zero(t, calls)
	assert.Equal(t, types.EmptyWorkflow(NoFullTextNote), wf)
}

func TestExtractWorkflow_WhitespaceTextIsSent(t *testing.T) {
	var calls int32
	wf := ExtractWorkflow(context.Background(), answering(workflowAnswer, &calls), " \n\t", fastRetry)
	assert.Equal(t, int32(1), calls)
	assert.True(t, wf.PaperHasUntargetedMetabolomics)
}

func TestExtractWorkflow_NormalizesNulls(t *testing.T) {
	answer := `{"paper_has_untargeted_metabolomics": true,
		"workflow_steps": [{"step_number": 1, "step_name": "x", "tools_software": null}],
		"unspecified_or_omitted_steps": null, "notes_on_ambiguity": ""}`
	wf := ExtractWorkflow(context.Background(), answering(answer, nil), "text", fastRetry)

	encoded, err := EncodeWorkflow(wf)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "null")
}

func TestEncodeWorkflow_NoHTMLEscaping(t *testing.T) {
	wf := ExtractWorkflow(context.Background(), answering(workflowAnswer, nil), "text", fastRetry)
	encoded, err := EncodeWorkflow(wf)
	require.NoError(t, err)
	assert.Contains(t, encoded, "<plasma> & serum")
	assert.False(t, strings.HasSuffix(encoded, "\n"))
}

// --- Pipeline ---

func newPipeline(ex extract.Extractor, c llm.Completer, out io.Writer) *Pipeline {
	return &Pipeline{
		Extractor: ex,
		Completer: c,
		Config:    types.WorkflowConfig{AIConfig: fastRetry},
		Out:       out,
	}
}

func TestProcessPaper(t *testing.T) {
	ex := fakeExtractor{"a.pdf": {Title: "A", FullText: "text"}}
	var out bytes.Buffer
	paper, err := newPipeline(ex, answering(workflowAnswer, nil), &out).
		ProcessPaper(context.Background(), "/pdf/a/a.pdf")
	require.NoError(t, err)

	assert.Equal(t, "a.pdf", paper.Filename)
	var wf types.Workflow
	require.NoError(t, json.Unmarshal([]byte(paper.WorkflowJSON), &wf))
	assert.Len(t, wf.WorkflowSteps, 2)
	assert.Contains(t, out.String(), "Step 1: Extracting PDF content...")
	assert.Contains(t, out.String(), "Workflow extracted (2 steps)")
}

func TestProcessPaper_NoFullText(t *testing.T) {
	var calls int32
	ex := fakeExtractor{"a.pdf": {Filename: "a.pdf", Title: "A"}}
	var out bytes.Buffer
	paper, err := newPipeline(ex, answering(workflowAnswer, &calls), &out).
		ProcessPaper(context.Background(), "/pdf/a/a.pdf")
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Contains(t, paper.WorkflowJSON, NoFullTextNote)
	assert.Contains(t, out.String(), "No full text available")
}

func TestProcessPaper_WhitespaceFullText(t *testing.T) {
	var calls int32
	ex := fakeExtractor{"a.pdf": {Filename: "a.pdf", Title: "A", FullText: "  "}}
	var out bytes.Buffer
	_, err := newPipeline(ex, answering(workflowAnswer, &calls), &out).
		ProcessPaper(context.Background(), "/pdf/a/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
	assert.NotContains(t, out.String(), "No full text available")
}

func TestProcessPaper_NilOutDiscards(t *testing.T) {
	ex := fakeExtractor{"a.pdf": {Title: "A", FullText: "text"}}
	paper, err := newPipeline(ex, answering(workflowAnswer, nil), nil).
		ProcessPaper(context.Background(), "/pdf/a/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", paper.Filename)
}

func TestProcessPaper_ContentFailure(t *testing.T) {
	var calls int32
	_, err := newPipeline(fakeExtractor{}, answering(workflowAnswer, &calls), nil).
		ProcessPaper(context.Background(), "/pdf/a/a.pdf")
	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestRunBatchAndSave(t *testing.T) {
	ex := fakeExtractor{
		"a.pdf": {Title: "A", FullText: "text a"},
		"c.pdf": {Title: "C", FullText: "text c"},
	}
	var out bytes.Buffer
	p := newPipeline(ex, answering(workflowAnswer, nil), &out)
	p.Config.InterPaperDelay = time.Millisecond

	result, err := p.RunBatch(context.Background(), []string{"/pdf/a/a.pdf", "/pdf/b/b.pdf", "/pdf/c/c.pdf"})
	require.NoError(t, err)
	require.Len(t, result.Papers, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, types.Failure{Filename: "b.pdf", Error: "unreadable PDF"}, result.Failures[0])
	assert.Equal(t, 2, strings.Count(out.String(), "before next PDF"))

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Save(dir, "run", result))

	rows, err := csvio.Read(filepath.Join(dir, "run.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.pdf", rows[0]["filename"])
	assert.Equal(t, result.Papers[0].WorkflowJSON, rows[0]["workflow_json"])

	data, err := os.ReadFile(WorkflowsPath(dir, "run"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"filename\": \"a.pdf\"")
	assert.Contains(t, string(data), "<plasma> & serum")
	var records []types.WorkflowRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "C", records[1].Title)
	assert.True(t, records[1].Workflow.PaperHasUntargetedMetabolomics)

	failed, err := csvio.Read(filepath.Join(dir, "run_failed.csv"))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b.pdf", failed[0]["filename"])

	var summary bytes.Buffer
	PrintSummary(&summary, result, dir, "run")
	assert.Contains(t, summary.String(), "=== FINAL SUMMARY ===")
	assert.Contains(t, summary.String(), "Successfully processed: 2 papers")
	assert.Contains(t, summary.String(), "Runtime for 3 papers: ")
	assert.Contains(t, summary.String(), "run_failed.csv (failed papers)")
}

func TestSave_OnlyFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, "run", Result{Failures: []types.Failure{{Filename: "x.pdf", Error: "e"}}}))

	_, err := os.Stat(filepath.Join(dir, "run.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(WorkflowsPath(dir, "run"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "run_failed.csv"))
	assert.NoError(t, err)
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPipeline(fakeExtractor{}, answering(workflowAnswer, nil), nil).
		RunBatch(ctx, []string{"/pdf/a/a.pdf"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "content.csv")
	require.NoError(t, extract.SaveResults(dir, "content", extract.BatchResult{
		Results: []types.PaperContent{
			{Filename: "a.pdf", Title: "A", FullText: "text a"},
			{Filename: "b.pdf", Title: "B"},
		},
	}))

	var calls int32
	result, err := newPipeline(nil, answering(workflowAnswer, &calls), nil).
		FromCSV(context.Background(), csvPath)
	require.NoError(t, err)
	require.Len(t, result.Papers, 2)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, "B", result.Papers[1].Title)
	assert.Contains(t, result.Papers[1].WorkflowJSON, NoFullTextNote)
}
