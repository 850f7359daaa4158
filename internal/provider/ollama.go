package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/common"
	"github.com/AtlasMeridia/living-archive/internal/policy"
)

// OllamaConfig for the OpenAI-compatible chat-completions backend.
type OllamaConfig struct {
	BaseURL       string // e.g. http://localhost:11434/v1
	Model         string
	APIKey        string // optional bearer token for hosted endpoints
	PromptVersion string
	Timeout       time.Duration
}

// Ollama talks to an OpenAI-compatible /chat/completions endpoint with a
// strict json_schema response format. Trust follows the endpoint: loopback
// hosts are local, anything else is remote and subject to the policy gate's
// remote routing rules.
type Ollama struct {
	cfg        OllamaConfig
	httpClient *http.Client
	logger     *slog.Logger
	trust      policy.Trust
}

func NewOllama(cfg OllamaConfig, logger *slog.Logger) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ollama{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		trust:      trustForEndpoint(cfg.BaseURL),
	}
}

func (o *Ollama) Name() string        { return "ollama" }
func (o *Ollama) Trust() policy.Trust { return o.trust }

func trustForEndpoint(base string) policy.Trust {
	u, err := url.Parse(base)
	if err != nil {
		return policy.TrustRemote
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return policy.TrustLocal
	}
	return policy.TrustRemote
}

func (o *Ollama) Analyze(ctx context.Context, text string, docCtx DocumentContext) (analysis.PartialAnalysis, analysis.InferenceMetadata, error) {
	start := time.Now()

	prompt := BuildPrompt(docCtx, text)
	schema := analysis.MakeStrict(analysis.BuildDocumentJSONSchema())

	body := map[string]any{
		"model": o.cfg.Model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "document_analysis",
				"strict": true,
				"schema": schema,
			},
		},
		"stream": false,
	}

	headers := map[string]string{}
	if o.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.cfg.APIKey
	}

	endpoint := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := sendJSON(ctx, o.httpClient, endpoint, body, headers, o.logger)
	if err != nil {
		// Connection failures and timeouts are transient.
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %v", common.ErrProviderTransient, err)
	}
	if status/100 != 2 {
		msg := fmt.Sprintf("status %d: %s", status, truncate(string(raw), 500))
		if status == http.StatusTooManyRequests || status >= 500 || isRateLimitMessage(string(raw)) {
			return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %s", common.ErrProviderTransient, msg)
		}
		// 400/401/403: a config or request defect, retrying cannot help.
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: %s", common.ErrProviderFatal, msg)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: decode response: %v", common.ErrProviderFatal, err)
	}
	if len(cc.Choices) == 0 {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, fmt.Errorf("%w: no choices in response", common.ErrProviderFatal)
	}

	content := analysis.StripJSONFences(cc.Choices[0].Message.Content)
	parsed, err := analysis.ParseValidated([]byte(content))
	if err != nil {
		return analysis.PartialAnalysis{}, analysis.InferenceMetadata{}, err
	}

	meta := analysis.InferenceMetadata{
		Provider:             o.Name(),
		Model:                o.cfg.Model,
		PromptVersion:        o.cfg.PromptVersion,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		InputTokens:          cc.Usage.PromptTokens,
		OutputTokens:         cc.Usage.CompletionTokens,
		EstimatedInputTokens: estimateTokens(text),
		LatencyMS:            time.Since(start).Milliseconds(),
	}

	o.logger.Debug("provider.ollama.ok",
		"source", docCtx.SourceFile,
		"pages", fmt.Sprintf("%d-%d", docCtx.PageStart, docCtx.PageEnd),
		"input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens,
		"elapsed_ms", meta.LatencyMS,
	)
	return parsed, meta, nil
}
