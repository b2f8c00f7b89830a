// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/workflow-miner/internal/analysis"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Assess extracted workflows and tabulate the results",
	Long: `Analyze reads a workflows JSON file written by the workflows command and
asks a Generative AI model twenty questions about each workflow: platforms
(MS, LC-MS, GC-MS, MS/MS), sample type, preparation and statistics steps,
databases, counts of steps and tools, and a 1-5 completeness rating.

Results go to output-csv, one row per workflow. A workflow whose analysis
fails gets a row of defaults with the error recorded.`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg := types.AnalysisConfig{
		AIConfig:      aiConfig(cmd),
		WorkflowsJSON: stringSetting(cmd, "workflows-json", "analyze.workflows_json"),
		OutputCSV:     stringSetting(cmd, "output-csv", "analyze.output_csv"),
	}
	if cfg.WorkflowsJSON == "" {
		return fmt.Errorf("--workflows-json is required")
	}

	completer, err := newCompleter(cfg.AIConfig)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Loading workflows from: %s\n", cfg.WorkflowsJSON)
	items, err := analysis.LoadWorkflows(cfg.WorkflowsJSON)
	if err != nil {
		return err
	}

	rows, err := analysis.AnalyzeAll(ctx, completer, items, out)
	if err != nil {
		return err
	}
	if err := analysis.WriteCSV(cfg.OutputCSV, rows); err != nil {
		return err
	}
	analysis.Summarize(rows).Print(out, cfg.OutputCSV)
	return nil
}

func init() {
	addAIFlags(analyzeCmd)
	analyzeCmd.Flags().String("workflows-json", "", "workflows JSON written by the workflows command")
	analyzeCmd.Flags().String("output-csv", "workflow_analysis.csv", "analysis table to write")

	rootCmd.AddCommand(analyzeCmd)
}
