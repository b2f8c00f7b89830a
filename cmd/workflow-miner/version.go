package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version of workflow-miner",
	Annotations: map[string]string{skipRunLog: ""},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "workflow-miner %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
