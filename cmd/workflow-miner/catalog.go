// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/workflow-miner/internal/catalog"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the SQLite catalog of pipeline outputs",
	Long: `Catalog keeps the outputs of extract, workflows, and analyze in one SQLite
database (<catalog-dir>/catalog.db). Use subcommands to ingest stage
outputs, search them, or export them.`,
}

func openCatalog(cmd *cobra.Command) (*catalog.Store, error) {
	return catalog.Open(types.CatalogConfig{
		Dir:        stringSetting(cmd, "catalog-dir", "catalog.dir"),
		MaxResults: intSetting(cmd, "max-results", "catalog.max_results"),
	})
}

// --- ingest subcommand ---

var catalogIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest content CSVs, workflows JSON, and analysis CSVs",
	Long: `Ingest upserts stage outputs keyed by PDF filename. Each file ingested is
recorded as a run with its own ID.`,
	RunE: runCatalogIngest,
}

func runCatalogIngest(cmd *cobra.Command, args []string) error {
	contentFiles, _ := cmd.Flags().GetStringSlice("content")
	workflowFiles, _ := cmd.Flags().GetStringSlice("workflows")
	analysisFiles, _ := cmd.Flags().GetStringSlice("analysis")
	if len(contentFiles)+len(workflowFiles)+len(analysisFiles) == 0 {
		return fmt.Errorf("nothing to ingest: provide --content, --workflows, or --analysis")
	}

	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	failed := 0
	ingest := func(paths []string, fn func(path string) (catalog.Run, error)) {
		for _, p := range paths {
			run, err := fn(p)
			if err != nil {
				fmt.Fprintf(out, "failed  %s: %v\n", p, err)
				failed++
				continue
			}
			catalog.PrintRun(out, run)
		}
	}
	ingest(contentFiles, func(p string) (catalog.Run, error) { return store.IngestContent(ctx, p) })
	ingest(workflowFiles, func(p string) (catalog.Run, error) { return store.IngestWorkflows(ctx, p) })
	ingest(analysisFiles, func(p string) (catalog.Run, error) { return store.IngestAnalysis(ctx, p) })

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed ingestion", failed)
	}
	return nil
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search papers by text, platform, and workflow properties",
	RunE:  runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Search(cmd.Context(), queryFromFlags(cmd, args))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(cmd, results, jsonOutput)
}

func formatSearchOutput(cmd *cobra.Command, results []catalog.Record, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "%-30s  %-50s  %-10s  %-5s  %s\n", "Filename", "Title", "Untargeted", "Steps", "Platform")
	fmt.Fprintln(out, strings.Repeat("-", 120))
	for _, r := range results {
		untargeted, steps, platform := "-", "-", "-"
		if r.Workflow != nil {
			untargeted = fmt.Sprint(r.Workflow.PaperHasUntargetedMetabolomics)
			steps = fmt.Sprint(len(r.Workflow.WorkflowSteps))
		}
		if r.Analysis != nil {
			platform = r.Analysis.MainAnalyticalPlatform
		}
		fmt.Fprintf(out, "%-30s  %-50s  %-10s  %-5s  %s\n",
			truncate(r.Filename, 30), truncate(r.Title, 50), untargeted, steps, platform)
	}
	fmt.Fprintf(out, "\n%d results\n", len(results))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to YAML or JSON",
	Long: `Export writes every catalog record (or a filtered subset) with its
workflow and analysis to --output, or to stdout when no output is given.`,
	RunE: runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := store.Export(cmd.Context(), format, queryFromFlags(cmd, args), w); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
	}
	return nil
}

func queryFromFlags(cmd *cobra.Command, args []string) catalog.Query {
	text, _ := cmd.Flags().GetString("query")
	if text == "" && len(args) > 0 {
		text = strings.Join(args, " ")
	}
	untargeted, _ := cmd.Flags().GetBool("untargeted")
	platform, _ := cmd.Flags().GetString("platform")
	minCompleteness, _ := cmd.Flags().GetInt("min-completeness")
	limit, _ := cmd.Flags().GetInt("limit")

	return catalog.Query{
		Text:            text,
		UntargetedOnly:  untargeted,
		Platform:        platform,
		MinCompleteness: minCompleteness,
		MaxResults:      limit,
	}
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "substring of title, abstract, or full text")
	cmd.Flags().Bool("untargeted", false, "only papers with an untargeted metabolomics workflow")
	cmd.Flags().String("platform", "", "substring of the main analytical platform")
	cmd.Flags().Int("min-completeness", 0, "minimum workflow completeness rating")
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	catalogCmd.PersistentFlags().String("catalog-dir", "catalog", "directory containing catalog.db")
	catalogCmd.PersistentFlags().Int("max-results", 20, "maximum number of search results")

	catalogIngestCmd.Flags().StringSlice("content", nil, "content CSV(s) written by extract or workflows")
	catalogIngestCmd.Flags().StringSlice("workflows", nil, "workflows JSON file(s) written by workflows")
	catalogIngestCmd.Flags().StringSlice("analysis", nil, "analysis CSV(s) written by analyze")

	addQueryFlags(catalogSearchCmd)
	catalogSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")

	addQueryFlags(catalogExportCmd)
	catalogExportCmd.Flags().String("format", catalog.FormatYAML, "export format: yaml or json")
	catalogExportCmd.Flags().String("output", "", "file to write (default stdout)")

	catalogCmd.AddCommand(catalogIngestCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
