package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/policy"
)

// CodexCLIConfig for the codex CLI backend.
type CodexCLIConfig struct {
	Binary        string // binary name or absolute path; if empty -> "codex"
	Model         string
	PromptVersion string
}

// CodexCLI runs a local codex CLI subprocess. Codex takes the schema via a
// side-channel file and writes its result to an output file; usage arrives
// as JSONL events on stdout.
type CodexCLI struct {
	cfg    CodexCLIConfig
	runner Runner
	logger *slog.Logger
}

func NewCodexCLI(cfg CodexCLIConfig, logger *slog.Logger) *CodexCLI {
	if cfg.Binary == "" {
		cfg.Binary = "codex"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CodexCLI{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (c *CodexCLI) Name() string        { return "codex-cli" }
func (c *CodexCLI) Trust() policy.Trust { return policy.TrustLocal }

func (c *CodexCLI) Analyze(ctx context.Context, text string, docCtx DocumentContext) (analysis.PartialAnalysis, analysis.InferenceMetadata, error) {
	start := time.Now()

	prompt := BuildPrompt(docCtx, text)
	schema, err := json.Marshal(analysis.MakeStrict(analysis.BuildDocumentJSONSchema()))
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("marshal schema: %w", err)
	}

	schemaFile, err := os.CreateTemp("", "codex-schema-*.json")
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: schema temp file: %v", common.ErrProviderFatal, err)
	}
	defer os.Remove(schemaFile.Name())
	if _, err := schemaFile.Write(schema); err != nil {
		schemaFile.Close()
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: write schema file: %v", common.ErrProviderFatal, err)
	}
	schemaFile.Close()

	outFile, err := os.CreateTemp("", "codex-out-*.json")
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: output temp file: %v", common.ErrProviderFatal, err)
	}
	outFile.Close()
	defer os.Remove(outFile.Name())

	args := []string{
		"exec", prompt,
		"--json",
		"--output-schema", schemaFile.Name(),
		"-o", outFile.Name(),
		"--skip-git-repo-check",
		"--ephemeral",
	}
	if c.cfg.Model != "" {
		args = append(args, "-m", c.cfg.Model)
	}

	stdout, errb, err := c.runner.Run(ctx, c.cfg.Binary, args...)
	if err != nil {
		msg := fmt.Sprintf("codex CLI: %v: %s", err, truncate(string(errb), 500))
		if isRateLimitMessage(string(errb)) || ctx.Err() == context.DeadlineExceeded {
			return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %s", common.ErrProviderTransient, msg)
		}
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %s", common.ErrProviderFatal, msg)
	}

	raw, err := os.ReadFile(outFile.Name())
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: read codex output: %v", common.ErrProviderFatal, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: codex wrote no output", common.ErrProviderFatal)
	}

	parsed, err := analysis.ParseValidated(raw)
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, err
	}

	inputTokens, outputTokens := parseUsageEvents(stdout)

	model := c.cfg.Model
	if model == "" {
		model = "codex-default"
	}
	meta := analysis.InferenceMetadata{
		Provider:             c.Name(),
		Model:                model,
		PromptVersion:        c.cfg.PromptVersion,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		InputTokens:          inputTokens,
		OutputTokens:         outputTokens,
		EstimatedInputTokens: estimateTokens(text),
		LatencyMS:            time.Since(start).Milliseconds(),
	}

	c.logger.Debug("provider.codex_cli.ok",
		"source", docCtx.SourceFile,
		"pages", fmt.Sprintf("%d-%d", docCtx.PageStart, docCtx.PageEnd),
		"input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens,
		"elapsed_ms", meta.LatencyMS,
	)
	return parsed, meta, nil
}

// parseUsageEvents scans codex's JSONL stdout for the turn.completed event
// carrying token usage. Unparseable lines are skipped.
func parseUsageEvents(stdout []byte) (inputTokens, outputTokens int) {
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var event struct {
			Type  string `json:"type"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Type == "turn.completed" {
			inputTokens = event.Usage.InputTokens
			outputTokens = event.Usage.OutputTokens
		}
	}
	return inputTokens, outputTokens
}
