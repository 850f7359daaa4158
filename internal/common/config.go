package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all pipeline configuration.
type Config struct {
	Archive  ArchiveConfig
	Chunking ChunkingConfig
	Policy   PolicyConfig
	Provider ProviderConfig
	Pipeline PipelineConfig
}

// ArchiveConfig holds filesystem layout for the archive.
type ArchiveConfig struct {
	DocumentsRoot string // root of the scanned-document tree
	SlicePath     string // subdirectory selected for this run
	AILayerDir    string // where runs/<id>/{manifests,extracted-text} live
	CatalogPath   string // sqlite catalog file ("" disables catalog updates)
}

// ChunkingConfig holds text extraction and chunking thresholds.
type ChunkingConfig struct {
	ChunkPages        int // pages per chunk for large documents
	SmallDocThreshold int // docs under this many chars are never split
}

// PolicyConfig holds the privacy gate's override flags.
type PolicyConfig struct {
	AllowRemoteHigh  bool // permit high-risk chunks to reach remote providers
	OverrideNoRedact bool // with AllowRemoteHigh, send raw instead of redacted text
}

// ProviderConfig holds provider selection and per-provider settings.
type ProviderConfig struct {
	Name          string // "claude-cli" | "codex-cli" | "ollama"
	Timeout       time.Duration
	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
	PromptVersion string

	ClaudeCLI   string // binary name or absolute path
	ClaudeModel string

	CodexCLI   string
	CodexModel string

	OllamaURL   string
	OllamaModel string
	OllamaKey   string // bearer token for OpenAI-compatible endpoints
}

// PipelineConfig holds batch scheduling and failure-mode settings.
type PipelineConfig struct {
	Workers          int           // concurrent documents
	ChunkConcurrency int           // concurrent provider calls per document
	DocDeadline      time.Duration // per-document deadline, 0 = none
	StrictChunks     bool          // fail the document on any chunk failure
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			DocumentsRoot: getEnv("DOCUMENTS_ROOT", ""),
			SlicePath:     getEnv("DOC_SLICE_PATH", ""),
			AILayerDir:    getEnv("DOC_AI_LAYER_DIR", ""),
			CatalogPath:   getEnv("CATALOG_PATH", ""),
		},
		Chunking: ChunkingConfig{
			ChunkPages:        getEnvAsInt("CHUNK_PAGES", 50),
			SmallDocThreshold: getEnvAsInt("SMALL_DOC_THRESHOLD", 100_000),
		},
		Policy: PolicyConfig{
			AllowRemoteHigh:  getEnvAsBool("POLICY_ALLOW_REMOTE_HIGH", false),
			OverrideNoRedact: getEnvAsBool("POLICY_OVERRIDE_NO_REDACT", false),
		},
		Provider: ProviderConfig{
			Name:          getEnv("DOC_PROVIDER", "ollama"),
			Timeout:       getEnvAsDuration("DOC_TIMEOUT", 5*time.Minute),
			RetryAttempts: getEnvAsInt("RETRY_ATTEMPTS", 3),
			RetryBase:     getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
			RetryMax:      getEnvAsDuration("RETRY_MAX_DELAY", 30*time.Second),
			PromptVersion: getEnv("DOC_PROMPT_VERSION", "document_analysis_v1"),
			ClaudeCLI:     getEnv("CLAUDE_CLI", "claude"),
			ClaudeModel:   getEnv("CLAUDE_MODEL", ""),
			CodexCLI:      getEnv("CODEX_CLI", "codex"),
			CodexModel:    getEnv("CODEX_MODEL", ""),
			OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434/v1"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "qwen2.5:14b"),
			OllamaKey:     getEnv("OLLAMA_API_KEY", ""),
		},
		Pipeline: PipelineConfig{
			Workers:          getEnvAsInt("PIPELINE_WORKERS", 2),
			ChunkConcurrency: getEnvAsInt("CHUNK_CONCURRENCY", 2),
			DocDeadline:      getEnvAsDuration("DOC_DEADLINE", 0),
			StrictChunks:     getEnvAsBool("STRICT_CHUNKS", false),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Archive.DocumentsRoot == "" {
		return NewAppError("CONFIG_ERROR", "DOCUMENTS_ROOT is required", ErrInvalidInput)
	}
	if c.Archive.AILayerDir == "" {
		return NewAppError("CONFIG_ERROR", "DOC_AI_LAYER_DIR is required", ErrInvalidInput)
	}
	switch c.Provider.Name {
	case "claude-cli", "codex-cli", "ollama":
	default:
		return NewAppError("CONFIG_ERROR", "unknown DOC_PROVIDER: "+c.Provider.Name, ErrInvalidInput)
	}
	if c.Chunking.ChunkPages <= 0 {
		return NewAppError("CONFIG_ERROR", "CHUNK_PAGES must be positive", ErrInvalidInput)
	}
	return nil
}
