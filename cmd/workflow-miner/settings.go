package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/workflow-miner/internal/grobid"
	"github.com/pdiddy/workflow-miner/internal/llm"
	"github.com/pdiddy/workflow-miner/internal/secrets"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// Settings resolve in order: an explicitly set flag, the environment or
// config file value under key, then the flag default.

func stringSetting(cmd *cobra.Command, flag, key string) string {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func durationSetting(cmd *cobra.Command, flag, key string) time.Duration {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}

// addGrobidFlags registers the GROBID connection flags on cmd.
func addGrobidFlags(cmd *cobra.Command) {
	cmd.Flags().String("grobid-url", grobid.DefaultURL, "GROBID server base URL")
	cmd.Flags().Duration("grobid-timeout", grobid.DefaultTimeout, "per-PDF GROBID request timeout")
	cmd.Flags().Int("concurrency", 1, "PDFs processed at once")
}

func grobidConfig(cmd *cobra.Command) types.GrobidConfig {
	return types.GrobidConfig{
		URL:         stringSetting(cmd, "grobid-url", "grobid.url"),
		Timeout:     durationSetting(cmd, "grobid-timeout", "grobid.timeout"),
		Concurrency: intSetting(cmd, "concurrency", "grobid.concurrency"),
	}
}

// addAIFlags registers the Generative AI flags on cmd.
func addAIFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", string(types.ProviderOpenAI), "AI provider: openai or claude")
	cmd.Flags().String("model", "", "AI model identifier (default gpt-4o for openai)")
	cmd.Flags().Int("max-retries", 3, "attempts per AI call")
	cmd.Flags().Duration("retry-delay", 5*time.Second, "pause between failed AI attempts")
}

func aiConfig(cmd *cobra.Command) types.AIConfig {
	provider := types.AIProvider(stringSetting(cmd, "provider", "ai.provider"))
	key := secrets.KeyOpenAI
	if provider == types.ProviderClaude {
		key = secrets.KeyAnthropic
	}
	return types.AIConfig{
		Provider:   provider,
		Model:      stringSetting(cmd, "model", "ai.model"),
		APIKey:     secrets.Resolve(loadedSecrets, key),
		MaxRetries: intSetting(cmd, "max-retries", "ai.max_retries"),
		RetryDelay: durationSetting(cmd, "retry-delay", "ai.retry_delay"),
	}
}

// newCompleter builds the chat-completion backend for cfg.
func newCompleter(cfg types.AIConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required: set OPENAI_API_KEY or .secrets/%s", secrets.KeyOpenAI)
		}
		return &llm.OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: &http.Client{}}, nil
	case types.ProviderClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required: set ANTHROPIC_API_KEY or .secrets/%s", secrets.KeyAnthropic)
		}
		return &llm.ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: &http.Client{}}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q (use openai or claude)", cfg.Provider)
	}
}

// newOpenAIBackend builds the backend used to read PDFs through the
// Assistants API, which only OpenAI provides.
func newOpenAIBackend(model string) (*llm.OpenAIBackend, error) {
	apiKey := secrets.Resolve(loadedSecrets, secrets.KeyOpenAI)
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required for the openai backend: set OPENAI_API_KEY or .secrets/%s", secrets.KeyOpenAI)
	}
	return &llm.OpenAIBackend{APIKey: apiKey, Model: model, Client: &http.Client{}}, nil
}

// addOutputFlags registers the output directory and name flags on cmd.
func addOutputFlags(cmd *cobra.Command, dir, name string) {
	cmd.Flags().String("output-dir", dir, "directory for output files")
	cmd.Flags().String("output-name", name, "base name of output files")
}

func outputConfig(cmd *cobra.Command, section string) types.OutputConfig {
	return types.OutputConfig{
		OutputDir:  stringSetting(cmd, "output-dir", section+".output_dir"),
		OutputName: stringSetting(cmd, "output-name", section+".output_name"),
	}
}
