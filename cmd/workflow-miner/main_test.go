package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionSkipsRunLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	out, err := executeRoot(t, "--log-file", logPath, "version")
	require.NoError(t, err)
	require.NoError(t, closeRunLog())

	assert.Contains(t, out, "workflow-miner "+version)
	assert.NoFileExists(t, logPath)
}

func TestRunLogClosedAfterFailedCommand(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	_, err := executeRoot(t, "--log-file", logPath, "catalog", "ingest")
	require.ErrorContains(t, err, "nothing to ingest")
	assert.FileExists(t, logPath)

	f, ok := logCloser.(*os.File)
	require.True(t, ok, "run log left open after the failed command")
	require.NoError(t, closeRunLog())
	assert.ErrorIs(t, f.Close(), os.ErrClosed)
}
