package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/policy"
)

// ClaudeCLIConfig for the claude CLI backend.
type ClaudeCLIConfig struct {
	Binary        string // binary name or absolute path; if empty -> "claude"
	Model         string
	PromptVersion string
}

// ClaudeCLI runs a local claude CLI subprocess with the schema passed
// inline and the result delivered in a JSON envelope on stdout.
type ClaudeCLI struct {
	cfg    ClaudeCLIConfig
	runner Runner
	logger *slog.Logger
}

func NewClaudeCLI(cfg ClaudeCLIConfig, logger *slog.Logger) *ClaudeCLI {
	if cfg.Binary == "" {
		cfg.Binary = "claude"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeCLI{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (c *ClaudeCLI) Name() string        { return "claude-cli" }
func (c *ClaudeCLI) Trust() policy.Trust { return policy.TrustLocal }

func (c *ClaudeCLI) Analyze(ctx context.Context, text string, docCtx DocumentContext) (analysis.PartialAnalysis, analysis.InferenceMetadata, error) {
	start := time.Now()

	prompt := BuildPrompt(docCtx, text)
	schema, err := json.Marshal(analysis.MakeStrict(analysis.BuildDocumentJSONSchema()))
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("marshal schema: %w", err)
	}

	args := []string{
		"-p", prompt,
		"--output-format", "json",
		"--json-schema", string(schema),
		"--no-session-persistence",
	}
	if c.cfg.Model != "" {
		args = append(args, "--model", c.cfg.Model)
	}

	out, errb, err := c.runner.Run(ctx, c.cfg.Binary, args...)
	if err != nil {
		msg := fmt.Sprintf("claude CLI: %v: %s", err, truncate(string(errb), 500))
		if isRateLimitMessage(string(errb)) || ctx.Err() == context.DeadlineExceeded {
			return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %s", common.ErrProviderTransient, msg)
		}
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %s", common.ErrProviderFatal, msg)
	}

	var envelope struct {
		StructuredOutput json.RawMessage `json:"structured_output"`
		Model            string          `json:"model"`
		Usage            struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(out, &envelope); err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: decode claude envelope: %v", common.ErrProviderFatal, err)
	}
	if len(envelope.StructuredOutput) == 0 {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: claude envelope missing structured_output", common.ErrProviderFatal)
	}

	parsed, err := analysis.ParseValidated(envelope.StructuredOutput)
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, err
	}

	model := envelope.Model
	if model == "" {
		model = c.cfg.Model
	}
	meta := analysis.InferenceMetadata{
		Provider:             c.Name(),
		Model:                model,
		PromptVersion:        c.cfg.PromptVersion,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		InputTokens:          envelope.Usage.InputTokens,
		OutputTokens:         envelope.Usage.OutputTokens,
		EstimatedInputTokens: estimateTokens(text),
		LatencyMS:            time.Since(start).Milliseconds(),
	}

	c.logger.Debug("provider.claude_cli.ok",
		"source", docCtx.SourceFile,
		"pages", fmt.Sprintf("%d-%d", docCtx.PageStart, docCtx.PageEnd),
		"input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens,
		"elapsed_ms", meta.LatencyMS,
	)
	return parsed, meta, nil
}
