package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

const analysisAnswer = `{
  "has_untargeted_metabolomics": true,
  "uses_ms": true,
  "uses_lcms": true,
  "uses_gcms": false,
  "uses_msms": true,
  "sample_type": "zebrafish larvae",
  "has_sample_prep": true,
  "has_extraction": true,
  "has_normalization": false,
  "uses_pca": true,
  "uses_plsda": false,
  "has_statistical_analysis": true,
  "has_pathway_analysis": true,
  "uses_kegg": true,
  "num_workflow_steps": 6,
  "num_tools_mentioned": 3,
  "num_databases_mentioned": 2,
  "has_annotation": true,
  "workflow_completeness": 4,
  "main_analytical_platform": "UPLC-Q Exactive/MS"
}`

func fixedAnswer(answer string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return answer, nil
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSchema(t *testing.T) {
	s := Schema()
	assert.Equal(t, "workflow_analysis", s.Name)

	var doc struct {
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(s.Schema, &doc))
	assert.Len(t, doc.Required, 20)
	assert.Len(t, doc.Properties, 20)
	assert.Equal(t, float64(1), doc.Properties["workflow_completeness"]["minimum"])
	assert.Equal(t, float64(5), doc.Properties["workflow_completeness"]["maximum"])
}

func TestLoadWorkflows(t *testing.T) {
	path := writeFile(t, "wf.json", `[
		{"filename": "a.pdf", "title": "A", "workflow": {"workflow_steps": []}},
		{"title": "no name"},
		{"filename": "c.pdf", "workflow": null}
	]`)

	items, err := LoadWorkflows(path)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a.pdf", items[0].Filename)
	assert.JSONEq(t, `{"workflow_steps": []}`, string(items[0].Workflow))
	assert.Equal(t, "unknown_1", items[1].Filename)
	assert.Equal(t, "{}", string(items[1].Workflow))
	assert.Equal(t, "{}", string(items[2].Workflow))
}

func TestLoadWorkflows_Errors(t *testing.T) {
	_, err := LoadWorkflows(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadWorkflows(writeFile(t, "bad.json", `{"not": "a list"}`))
	assert.Error(t, err)
}

func TestAnalyzeWorkflow(t *testing.T) {
	var got llm.Request
	c := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return analysisAnswer, nil
	})

	row := AnalyzeWorkflow(context.Background(), c, json.RawMessage(`{"workflow_steps":[{"step_number":1}]}`), "a.pdf")
	assert.Equal(t, "a.pdf", row.Filename)
	assert.True(t, row.UsesLCMS)
	assert.Equal(t, "zebrafish larvae", row.SampleType)
	assert.Equal(t, 4, row.WorkflowCompleteness)
	assert.Empty(t, row.Error)

	assert.Equal(t, systemPrompt, got.System)
	assert.Equal(t, "workflow_analysis", got.Schema.Name)
	assert.True(t, strings.HasSuffix(got.User,
		"\n\nWorkflow to analyze:\n{\n  \"workflow_steps\": [\n    {\n      \"step_number\": 1\n    }\n  ]\n}"))
}

func TestAnalyzeWorkflow_Failure(t *testing.T) {
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("API down")
	})
	row := AnalyzeWorkflow(context.Background(), c, json.RawMessage(`{}`), "a.pdf")
	assert.Equal(t, types.FailedAnalysis("a.pdf", "API down"), row)

	row = AnalyzeWorkflow(context.Background(), fixedAnswer("not json"), json.RawMessage(`{}`), "b.pdf")
	assert.Equal(t, "error", row.SampleType)
	assert.Equal(t, "error", row.MainAnalyticalPlatform)
	assert.Zero(t, row.WorkflowCompleteness)
	assert.NotEmpty(t, row.Error)
}

func TestAnalyzeAll(t *testing.T) {
	calls := 0
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("boom")
		}
		return analysisAnswer, nil
	})
	items := []Item{
		{Filename: "a.pdf", Workflow: json.RawMessage(`{}`)},
		{Filename: "b.pdf", Workflow: json.RawMessage(`{}`)},
	}

	var out bytes.Buffer
	rows, err := AnalyzeAll(context.Background(), c, items, &out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].Error)
	assert.Equal(t, "boom", rows[1].Error)
	assert.Contains(t, out.String(), "[1/2] Analyzing: a.pdf")
	assert.Contains(t, out.String(), "Analysis failed: boom")
}

func TestAnalyzeAll_NilWriter(t *testing.T) {
	items := []Item{{Filename: "a.pdf", Workflow: json.RawMessage(`{}`)}}
	rows, err := AnalyzeAll(context.Background(), fixedAnswer(analysisAnswer), items, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Error)
}

func TestWriteCSV(t *testing.T) {
	ok := AnalyzeWorkflow(context.Background(), fixedAnswer(analysisAnswer), json.RawMessage(`{}`), "a.pdf")
	path := filepath.Join(t.TempDir(), "analysis.csv")

	require.NoError(t, WriteCSV(path, []types.WorkflowAnalysis{ok}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, strings.Join(Columns, ","), header)

	rows, err := csvio.Read(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ok, FromRecord(rows[0]))
}

func TestWriteCSV_ErrorColumn(t *testing.T) {
	ok := AnalyzeWorkflow(context.Background(), fixedAnswer(analysisAnswer), json.RawMessage(`{}`), "a.pdf")
	failed := types.FailedAnalysis("b.pdf", "boom")
	path := filepath.Join(t.TempDir(), "analysis.csv")

	require.NoError(t, WriteCSV(path, []types.WorkflowAnalysis{ok, failed}))
	rows, err := csvio.Read(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0]["error"])
	assert.Equal(t, "boom", rows[1]["error"])
	assert.Equal(t, "0", rows[1]["workflow_completeness"])
	assert.Equal(t, failed, FromRecord(rows[1]))
}

func TestSummarize(t *testing.T) {
	ok := AnalyzeWorkflow(context.Background(), fixedAnswer(analysisAnswer), json.RawMessage(`{}`), "a.pdf")
	rows := []types.WorkflowAnalysis{ok, ok, types.FailedAnalysis("c.pdf", "boom")}

	s := Summarize(rows)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Untargeted)
	assert.Equal(t, 2, s.LCMS)
	assert.Equal(t, 0, s.GCMS)
	assert.Equal(t, 2, s.KEGG)
	assert.InDelta(t, 8.0/3.0, s.MeanCompleteness, 1e-9)

	var out bytes.Buffer
	s.Print(&out, "analysis.csv")
	assert.Contains(t, out.String(), "  - Uses LC-MS: 2/3")
	assert.Contains(t, out.String(), "Average workflow completeness: 2.67/5")
	assert.Contains(t, out.String(), "Output saved to: analysis.csv")
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
