// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/workflow-miner/internal/container"
	"github.com/pdiddy/workflow-miner/internal/grobid"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

var grobidCmd = &cobra.Command{
	Use:   "grobid",
	Short: "Manage the GROBID PDF-parsing container",
	Long: `Grobid pulls and runs the pinned GROBID image (grobid/grobid:0.8.0) with
Docker or Podman. The container runs ephemeral (--rm) with an init process,
core dumps disabled, and port 8070 published on the host:

  docker pull grobid/grobid:0.8.0
  docker run --rm --init --ulimit core=0 -p 8070:8070 grobid/grobid:0.8.0`,
}

// --- shared helpers ---

func containerConfig(cmd *cobra.Command) types.ContainerConfig {
	return types.ContainerConfig{
		Image:    stringSetting(cmd, "image", "container.image"),
		Name:     stringSetting(cmd, "name", "container.name"),
		HostPort: intSetting(cmd, "port", "container.host_port"),
	}
}

func runSpec(cfg types.ContainerConfig) container.RunSpec {
	return container.RunSpec{
		Image:         cfg.Image,
		Name:          cfg.Name,
		HostPort:      cfg.HostPort,
		ContainerPort: container.GrobidPort,
	}
}

// --- pull subcommand ---

var grobidPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the GROBID image",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		image := containerConfig(cmd).Image
		fmt.Fprintf(cmd.OutOrStdout(), "Pulling %s with %s\n", image, rt.Name())
		return rt.Pull(image, cmd.OutOrStdout())
	},
}

// --- run subcommand ---

var grobidRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run GROBID in the foreground until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		cfg := containerConfig(cmd)
		if err := rt.ImageExists(cfg.Image); err != nil {
			return fmt.Errorf("%w (run: workflow-miner grobid pull)", err)
		}
		return rt.Run(runSpec(cfg), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// --- start subcommand ---

var grobidStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start GROBID detached and wait until it answers",
	RunE:  runGrobidStart,
}

func runGrobidStart(cmd *cobra.Command, args []string) error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	cfg := containerConfig(cmd)
	if err := rt.ImageExists(cfg.Image); err != nil {
		return fmt.Errorf("%w (run: workflow-miner grobid pull)", err)
	}

	id, err := rt.Start(runSpec(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started %s container %s\n", cfg.Image, id)

	wait, _ := cmd.Flags().GetDuration("wait")
	if wait <= 0 {
		return nil
	}
	url := grobid.DefaultURL
	if cfg.HostPort != 0 {
		url = fmt.Sprintf("http://localhost:%d", cfg.HostPort)
	}
	return waitAlive(cmd.Context(), grobid.NewClient(url, 0), wait, cmd)
}

// waitAlive polls the server until it answers or wait elapses.
func waitAlive(ctx context.Context, c *grobid.Client, wait time.Duration, cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		err := c.IsAlive(ctx)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "GROBID is alive at %s\n", c.BaseURL)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("GROBID did not answer within %s: %w", wait, err)
		case <-ticker.C:
		}
	}
}

// --- stop subcommand ---

var grobidStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the detached GROBID container",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := container.DetectRuntime()
		if err != nil {
			return err
		}
		name := containerConfig(cmd).Name
		if err := rt.Stop(name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", name)
		return nil
	},
}

// --- status subcommand ---

var grobidStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the GROBID server answers /api/isalive",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := grobid.NewClient(stringSetting(cmd, "grobid-url", "grobid.url"), 0)
		if err := c.IsAlive(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "GROBID is alive at %s\n", c.BaseURL)
		return nil
	},
}

func init() {
	grobidCmd.PersistentFlags().String("image", container.DefaultImage, "GROBID image")
	grobidCmd.PersistentFlags().String("name", container.DefaultName, "container name for start and stop")
	grobidCmd.PersistentFlags().Int("port", container.GrobidPort, "host port published to the container's 8070")

	grobidStartCmd.Flags().Duration("wait", 2*time.Minute, "wait this long for the server to answer (0 = do not wait)")
	grobidStatusCmd.Flags().String("grobid-url", grobid.DefaultURL, "GROBID server base URL")

	grobidCmd.AddCommand(grobidPullCmd)
	grobidCmd.AddCommand(grobidRunCmd)
	grobidCmd.AddCommand(grobidStartCmd)
	grobidCmd.AddCommand(grobidStopCmd)
	grobidCmd.AddCommand(grobidStatusCmd)

	rootCmd.AddCommand(grobidCmd)
}
