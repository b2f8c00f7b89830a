package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/internal/grobid"
	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// --- test doubles ---

// funcExtractor adapts a function to Extractor.
type funcExtractor func(ctx context.Context, pdfPath string) (types.PaperContent, error)

func (f funcExtractor) Extract(ctx context.Context, pdfPath string) (types.PaperContent, error) {
	return f(ctx, pdfPath)
}

// fakeAssistants records calls to the Assistants API and answers from fields.
type fakeAssistants struct {
	mu      sync.Mutex
	calls   []string
	status  string
	answer  string
	failAt  string
	prompt  string
	fileIDs []string
	spec    llm.AssistantSpec
}

func (f *fakeAssistants) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failAt == call {
		return errors.New(call + " failed")
	}
	return nil
}

func (f *fakeAssistants) UploadFile(_ context.Context, _, purpose string) (string, error) {
	if err := f.record("upload:" + purpose); err != nil {
		return "", err
	}
	return "file-1", nil
}

func (f *fakeAssistants) DeleteFile(_ context.Context, id string) error {
	return f.record("delete-file:" + id)
}

func (f *fakeAssistants) CreateAssistant(_ context.Context, spec llm.AssistantSpec) (string, error) {
	f.spec = spec
	if err := f.record("create-assistant"); err != nil {
		return "", err
	}
	return "asst-1", nil
}

func (f *fakeAssistants) DeleteAssistant(_ context.Context, id string) error {
	return f.record("delete-assistant:" + id)
}

func (f *fakeAssistants) CreateThread(_ context.Context, content string, fileIDs ...string) (string, error) {
	f.prompt = content
	f.fileIDs = fileIDs
	if err := f.record("create-thread"); err != nil {
		return "", err
	}
	return "thread-1", nil
}

func (f *fakeAssistants) RunAndPoll(_ context.Context, threadID, assistantID string) (llm.Run, error) {
	if err := f.record("run:" + threadID + ":" + assistantID); err != nil {
		return llm.Run{}, err
	}
	status := f.status
	if status == "" {
		status = llm.RunCompleted
	}
	return llm.Run{ID: "run-1", Status: status}, nil
}

func (f *fakeAssistants) LatestMessageText(_ context.Context, threadID string) (string, error) {
	if err := f.record("messages:" + threadID); err != nil {
		return "", err
	}
	return f.answer, nil
}

func makePDFTree(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		path := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	}
	return dir
}

// --- DiscoverPDFs ---

func TestDiscoverPDFs(t *testing.T) {
	dir := makePDFTree(t,
		"b/second.pdf",
		"a/first.pdf",
		"c/third.pdf",
		"top.pdf",
		"a/notes.txt",
		"a/deep/nested.pdf",
	)

	paths, err := DiscoverPDFs(dir, 0)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "a", "first.pdf"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b", "second.pdf"), paths[1])
	assert.Equal(t, filepath.Join(dir, "c", "third.pdf"), paths[2])

	limited, err := DiscoverPDFs(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, paths[:2], limited)
}

func TestDiscoverPDFs_MissingDir(t *testing.T) {
	_, err := DiscoverPDFs(filepath.Join(t.TempDir(), "nope"), 0)
	assert.Error(t, err)
}

func TestDiscoverPDFs_Empty(t *testing.T) {
	paths, err := DiscoverPDFs(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

// --- ExtractBatch ---

func TestExtractBatch_OrderAndFailures(t *testing.T) {
	paths := []string{"/p/a/one.pdf", "/p/b/two.pdf", "/p/c/three.pdf"}
	ex := funcExtractor(func(_ context.Context, p string) (types.PaperContent, error) {
		if strings.HasSuffix(p, "two.pdf") {
			return types.PaperContent{}, errors.New("boom")
		}
		return types.PaperContent{Title: filepath.Base(p)}, nil
	})

	var out bytes.Buffer
	result, err := ExtractBatch(context.Background(), ex, paths, 3, &out)
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	assert.Equal(t, "one.pdf", result.Results[0].Filename)
	assert.Equal(t, "three.pdf", result.Results[1].Filename)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, types.Failure{Filename: "two.pdf", Error: "boom"}, result.Failures[0])
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())

	assert.Contains(t, out.String(), "failed:    two.pdf (boom)")
	assert.Contains(t, out.String(), "processed: one.pdf")
}

func TestExtractBatch_NilWriter(t *testing.T) {
	ex := funcExtractor(func(_ context.Context, p string) (types.PaperContent, error) {
		if strings.HasSuffix(p, "two.pdf") {
			return types.PaperContent{}, errors.New("boom")
		}
		return types.PaperContent{}, nil
	})
	result, err := ExtractBatch(context.Background(), ex, []string{"/p/a/one.pdf", "/p/b/two.pdf"}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
	assert.Len(t, result.Failures, 1)
}

func TestExtractBatch_RespectsConcurrency(t *testing.T) {
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = filepath.Join("/p", string(rune('a'+i)), "x.pdf")
	}

	var inFlight, peak int32
	ex := funcExtractor(func(context.Context, string) (types.PaperContent, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return types.PaperContent{}, nil
	})

	result, err := ExtractBatch(context.Background(), ex, paths, 2, io.Discard)
	require.NoError(t, err)
	assert.Len(t, result.Results, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExtractBatch_Unavailable(t *testing.T) {
	paths := []string{"/p/a/one.pdf", "/p/b/two.pdf"}
	result, err := ExtractBatch(context.Background(), Unavailable(ReasonGrobidUnavailable), paths, 0, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		assert.Equal(t, ReasonGrobidUnavailable, f.Error)
	}
}

func TestExtractBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := funcExtractor(func(context.Context, string) (types.PaperContent, error) {
		return types.PaperContent{}, nil
	})
	_, err := ExtractBatch(ctx, ex, []string{"/p/a/one.pdf"}, 1, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- SaveResults ---

func TestSaveResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	result := BatchResult{
		Results: []types.PaperContent{{
			Filename: "one.pdf",
			Title:    "One",
			Authors:  "A; B",
			FullText: "line one,\n\"quoted\"",
		}},
		Failures: []types.Failure{{Filename: "two.pdf", Error: "boom"}},
	}
	require.NoError(t, SaveResults(dir, "papers", result))

	rows, err := csvio.Read(ResultsPath(dir, "papers"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, result.Results[0], types.ContentFromRecord(rows[0]))

	failed, err := csvio.Read(FailuresPath(dir, "papers"))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "two.pdf", failed[0]["filename"])
	assert.Equal(t, "boom", failed[0]["error"])
}

func TestSaveResults_NoFailuresFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveResults(dir, "papers", BatchResult{}))

	_, err := os.Stat(ResultsPath(dir, "papers"))
	assert.NoError(t, err)
	_, err = os.Stat(FailuresPath(dir, "papers"))
	assert.True(t, os.IsNotExist(err))
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	PrintSummary(&out, BatchResult{
		Results:  make([]types.PaperContent, 2),
		Failures: make([]types.Failure, 1),
	}, "out", "papers")

	s := out.String()
	assert.Contains(t, s, "=== Summary ===")
	assert.Contains(t, s, "Successfully processed: 2 papers")
	assert.Contains(t, s, "Failed: 1 papers")
	assert.Contains(t, s, "Output saved to: "+filepath.Join("out", "papers.csv"))
}

// --- GrobidExtractor ---

const minimalTEI = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><teiHeader><fileDesc>
<titleStmt><title>Plasma lipidomics</title></titleStmt></fileDesc></teiHeader>
<text><body><div><p>Body text.</p></div></body></text></TEI>`

func TestGrobidExtractor(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/isalive":
			io.WriteString(w, "true")
		case "/api/processFulltextDocument":
			io.WriteString(w, minimalTEI)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	ex := NewGrobidExtractor(grobid.NewClient(ts.URL, time.Second), nil)
	require.NoError(t, ex.Preflight(context.Background()))

	dir := makePDFTree(t, "p1/paper.pdf")
	content, err := ex.Extract(context.Background(), filepath.Join(dir, "p1", "paper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", content.Filename)
	assert.Equal(t, "Plasma lipidomics", content.Title)
	assert.Equal(t, "Body text.", content.FullText)
}

func TestGrobidExtractor_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	ex := NewGrobidExtractor(grobid.NewClient(ts.URL, time.Second), nil)
	assert.Error(t, ex.Preflight(context.Background()))

	dir := makePDFTree(t, "p1/paper.pdf")
	_, err := ex.Extract(context.Background(), filepath.Join(dir, "p1", "paper.pdf"))
	require.Error(t, err)
	assert.Equal(t, "GROBID returned status 400", err.Error())
}

// --- OpenAIExtractor ---

func TestOpenAIExtractor(t *testing.T) {
	api := &fakeAssistants{answer: "```json\n" + `{
		"title": "Serum metabolomics",
		"authors": ["Ada Lovelace", "Marie Curie"],
		"abstract": "Short.",
		"full_text": "Body.",
		"figure_captions": ["Fig 1", "Fig 2"],
		"table_captions": ""
	}` + "\n```"}

	content, err := NewOpenAIExtractor(api, nil).Extract(context.Background(), "/papers/p1/serum.pdf")
	require.NoError(t, err)

	assert.Equal(t, types.PaperContent{
		Filename:       "serum.pdf",
		Title:          "Serum metabolomics",
		Authors:        "Ada Lovelace; Marie Curie",
		Abstract:       "Short.",
		FullText:       "Body.",
		FigureCaptions: "Fig 1\n\nFig 2",
	}, content)

	assert.Equal(t, "PDF Extractor", api.spec.Name)
	assert.True(t, api.spec.FileSearch)
	assert.Equal(t, []string{"file-1"}, api.fileIDs)
	assert.Contains(t, api.prompt, "title, authors, abstract, full_text, figure_captions, table_captions")
	assert.Equal(t, []string{
		"upload:assistants",
		"create-assistant",
		"create-thread",
		"run:thread-1:asst-1",
		"messages:thread-1",
		"delete-assistant:asst-1",
		"delete-file:file-1",
	}, api.calls)
}

func TestOpenAIExtractor_NonJSONAnswer(t *testing.T) {
	api := &fakeAssistants{answer: "I could not format this, here is the text."}
	content, err := NewOpenAIExtractor(api, nil).Extract(context.Background(), "/papers/p1/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", content.Filename)
	assert.Equal(t, "I could not format this, here is the text.", content.FullText)
	assert.Empty(t, content.Title)
}

func TestOpenAIExtractor_RunFailedStillCleansUp(t *testing.T) {
	api := &fakeAssistants{status: "failed"}
	_, err := NewOpenAIExtractor(api, nil).Extract(context.Background(), "/papers/p1/x.pdf")
	require.Error(t, err)
	assert.Equal(t, "Run failed with status: failed", err.Error())
	assert.Contains(t, api.calls, "delete-assistant:asst-1")
	assert.Contains(t, api.calls, "delete-file:file-1")
}

func TestOpenAIExtractor_UploadFails(t *testing.T) {
	api := &fakeAssistants{failAt: "upload:assistants"}
	_, err := NewOpenAIExtractor(api, nil).Extract(context.Background(), "/papers/p1/x.pdf")
	require.Error(t, err)
	assert.Equal(t, []string{"upload:assistants"}, api.calls)
}

func TestOpenAIExtractor_ThreadFailsDeletesFileAndAssistant(t *testing.T) {
	api := &fakeAssistants{failAt: "create-thread"}
	_, err := NewOpenAIExtractor(api, nil).Extract(context.Background(), "/papers/p1/x.pdf")
	require.Error(t, err)
	assert.Equal(t, []string{
		"upload:assistants",
		"create-assistant",
		"create-thread",
		"delete-assistant:asst-1",
		"delete-file:file-1",
	}, api.calls)
}
