package provider

import (
	"fmt"
	"log/slog"

	"github.com/AtlasMeridia/living-archive/internal/common"
)

// New constructs the configured provider from the closed backend set and
// wraps it with the shared retry policy. Selection happens exactly once at
// configuration time; nothing resolves providers from untrusted input at
// runtime.
func New(cfg common.ProviderConfig, logger *slog.Logger) (AnalysisProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner AnalysisProvider
	switch cfg.Name {
	case "claude-cli":
		inner = NewClaudeCLI(ClaudeCLIConfig{
			Binary:        cfg.ClaudeCLI,
			Model:         cfg.ClaudeModel,
			PromptVersion: cfg.PromptVersion,
		}, logger)
	case "codex-cli":
		inner = NewCodexCLI(CodexCLIConfig{
			Binary:        cfg.CodexCLI,
			Model:         cfg.CodexModel,
			PromptVersion: cfg.PromptVersion,
		}, logger)
	case "ollama":
		inner = NewOllama(OllamaConfig{
			BaseURL:       cfg.OllamaURL,
			Model:         cfg.OllamaModel,
			APIKey:        cfg.OllamaKey,
			PromptVersion: cfg.PromptVersion,
			Timeout:       cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q (choose claude-cli, codex-cli, or ollama)", cfg.Name)
	}

	return WithRetry(inner, RetryPolicy{
		Attempts:       cfg.RetryAttempts,
		BaseDelay:      cfg.RetryBase,
		MaxDelay:       cfg.RetryMax,
		AttemptTimeout: cfg.Timeout,
	}, logger), nil
}
