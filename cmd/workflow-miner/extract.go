// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/workflow-miner/internal/extract"
	"github.com/pdiddy/workflow-miner/internal/grobid"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured content from PDFs",
	Long: `Extract reads every PDF under pdf-dir (one subdirectory per paper) and
writes the title, authors, abstract, body text, and figure and table captions
of each to <output-dir>/<output-name>.csv. Papers that fail are listed in
<output-name>_failed.csv.

The grobid backend sends each PDF to a GROBID server (see "workflow-miner
grobid run"); the openai backend uploads it to an OpenAI assistant.`,
	RunE: runExtract,
}

func extractionConfig(cmd *cobra.Command, section string) types.ExtractionConfig {
	return types.ExtractionConfig{
		OutputConfig: outputConfig(cmd, section),
		PDFDir:       stringSetting(cmd, "pdf-dir", "pdf_dir"),
		MaxPDFs:      intSetting(cmd, "max-pdfs", section+".max_pdfs"),
		Backend:      types.ContentBackend(stringSetting(cmd, "backend", section+".backend")),
		Grobid:       grobidConfig(cmd),
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := extractionConfig(cmd, "extract")
	out := cmd.OutOrStdout()

	paths, err := extract.DiscoverPDFs(cfg.PDFDir, cfg.MaxPDFs)
	if err != nil {
		return err
	}

	ex, err := contentExtractor(ctx, cfg, stringSetting(cmd, "model", "ai.model"), out)
	if err != nil {
		return err
	}

	result, err := extract.ExtractBatch(ctx, ex, paths, cfg.Grobid.Concurrency, out)
	if err != nil {
		return err
	}
	if err := extract.SaveResults(cfg.OutputDir, cfg.OutputName, result); err != nil {
		return err
	}
	extract.PrintSummary(out, result, cfg.OutputDir, cfg.OutputName)

	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed extraction", len(result.Failures))
	}
	return nil
}

// contentExtractor builds the extractor for cfg.Backend. A GROBID server
// that fails the preflight check yields an extractor that fails every PDF.
func contentExtractor(ctx context.Context, cfg types.ExtractionConfig, model string, w io.Writer) (extract.Extractor, error) {
	switch cfg.Backend {
	case types.ContentGrobid, "":
		g := extract.NewGrobidExtractor(grobid.NewClient(cfg.Grobid.URL, cfg.Grobid.Timeout), slog.Default())
		if err := g.Preflight(ctx); err != nil {
			fmt.Fprintf(w, "Warning: %v\n", err)
			fmt.Fprintln(w, `Make sure GROBID is running: workflow-miner grobid run`)
			return extract.Unavailable(extract.ReasonGrobidUnavailable), nil
		}
		fmt.Fprintln(w, "GROBID server is running")
		return g, nil
	case types.ContentOpenAI:
		backend, err := newOpenAIBackend(model)
		if err != nil {
			return nil, err
		}
		return extract.NewOpenAIExtractor(backend, slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown content backend %q (use grobid or openai)", cfg.Backend)
	}
}

// addExtractionFlags registers the PDF discovery and backend flags on cmd.
func addExtractionFlags(cmd *cobra.Command, backend string) {
	cmd.Flags().String("pdf-dir", "PDF", "directory with one subdirectory per paper")
	cmd.Flags().Int("max-pdfs", 0, "maximum PDFs to process (0 = all)")
	cmd.Flags().String("backend", backend, "content backend: grobid or openai")
	addGrobidFlags(cmd)
}

func init() {
	addExtractionFlags(extractCmd, string(types.ContentGrobid))
	addOutputFlags(extractCmd, "grobid_outputs", "extracted_papers")
	extractCmd.Flags().String("model", "", "OpenAI model for the openai backend (default gpt-4o)")

	rootCmd.AddCommand(extractCmd)
}
