// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the workflow-miner CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/workflow-miner/internal/logging"
	"github.com/pdiddy/workflow-miner/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logCloser releases the run log opened in PersistentPreRunE.
var logCloser io.Closer = io.NopCloser(nil)

// skipRunLog marks commands that do not open the run log.
const skipRunLog = "skip-run-log"

// rootCmd is the base command for the workflow-miner CLI.
var rootCmd = &cobra.Command{
	Use:   "workflow-miner",
	Short: "Mine untargeted metabolomics workflows from scientific papers",
	Long: `workflow-miner extracts the untargeted metabolomics workflows described in
scientific papers. It runs in stages, each a subcommand:

  grobid     pull and run the GROBID PDF-parsing container
  extract    extract title, authors, abstract, body text and captions from PDFs
  workflows  extract each paper's workflow with a Generative AI model
  analyze    assess extracted workflows and tabulate the results
  catalog    keep every stage's output in a searchable SQLite catalog`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.LoadDotenv(".env"); err != nil {
			return err
		}
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		return openRunLog(cmd)
	},
}

func openRunLog(cmd *cobra.Command) error {
	if _, ok := cmd.Annotations[skipRunLog]; ok {
		return nil
	}
	_, closer, err := logging.Open(
		stringSetting(cmd, "log-file", "log.file"),
		stringSetting(cmd, "log-level", "log.level"),
	)
	if err != nil {
		return err
	}
	logCloser = closer
	return nil
}

// closeRunLog runs after the command, whether or not it failed; cobra skips
// PersistentPostRunE when RunE returns an error.
func closeRunLog() error {
	err := logCloser.Close()
	logCloser = io.NopCloser(nil)
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./workflow-miner.yaml or ~/.config/workflow-miner/workflow-miner.yaml)")
	rootCmd.PersistentFlags().String("log-file", logging.DefaultFile, `run log file ("-" for stderr)`)
	rootCmd.PersistentFlags().String("log-level", "info", "run log level: debug, info, warn, or error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("workflow-miner")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "workflow-miner"))
		}
	}

	viper.SetEnvPrefix("WORKFLOW_MINER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cerr := closeRunLog(); cerr != nil {
		fmt.Fprintln(os.Stderr, "closing run log:", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
