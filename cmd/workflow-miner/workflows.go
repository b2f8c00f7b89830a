// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/workflow-miner/internal/extract"
	"github.com/pdiddy/workflow-miner/internal/workflow"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Extract untargeted metabolomics workflows from papers",
	Long: `Workflows extracts each paper's content (as extract does) and then asks a
Generative AI model for the untargeted metabolomics workflow its full text
describes. Papers are processed one at a time.

Outputs in output-dir:
  <output-name>.csv               content columns plus workflow_json
  <output-name>_workflows.json    filename, title, and workflow per paper
  <output-name>_failed.csv        papers whose content could not be extracted

With --from-csv, content is read from a CSV written by extract and only the
workflow step runs.`,
	RunE: runWorkflows,
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg := types.WorkflowConfig{
		ExtractionConfig: extractionConfig(cmd, "workflows"),
		AIConfig:         aiConfig(cmd),
		InterPaperDelay:  durationSetting(cmd, "inter-paper-delay", "workflows.inter_paper_delay"),
		ContentCSV:       stringSetting(cmd, "from-csv", "workflows.content_csv"),
	}

	completer, err := newCompleter(cfg.AIConfig)
	if err != nil {
		return err
	}
	p := &workflow.Pipeline{
		Completer: completer,
		Config:    cfg,
		Out:       out,
		Log:       slog.Default(),
	}

	var result workflow.Result
	if cfg.ContentCSV != "" {
		result, err = p.FromCSV(ctx, cfg.ContentCSV)
	} else {
		var paths []string
		paths, err = extract.DiscoverPDFs(cfg.PDFDir, cfg.MaxPDFs)
		if err != nil {
			return err
		}
		// The assistant reading PDFs is always OpenAI's.
		model := ""
		if cfg.Provider == types.ProviderOpenAI {
			model = cfg.Model
		}
		p.Extractor, err = contentExtractor(ctx, cfg.ExtractionConfig, model, out)
		if err != nil {
			return err
		}
		result, err = p.RunBatch(ctx, paths)
	}
	if err != nil {
		return err
	}

	if err := workflow.Save(cfg.OutputDir, cfg.OutputName, result); err != nil {
		return err
	}
	workflow.PrintSummary(out, result, cfg.OutputDir, cfg.OutputName)

	if len(result.Failures) > 0 {
		return fmt.Errorf("%d paper(s) failed content extraction", len(result.Failures))
	}
	return nil
}

func init() {
	addExtractionFlags(workflowsCmd, string(types.ContentOpenAI))
	addOutputFlags(workflowsCmd, "openai_outputs", "metabolomics_complete")
	addAIFlags(workflowsCmd)
	workflowsCmd.Flags().Duration("inter-paper-delay", workflow.DefaultInterPaperDelay, "pause between papers")
	workflowsCmd.Flags().String("from-csv", "", "read content from this CSV instead of extracting it")

	rootCmd.AddCommand(workflowsCmd)
}
