package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIAddr           string
	TemporalAddress   string
	TemporalTaskQueue string
	// PostgresURL is optional; without it runs are only written to ReportDir.
	PostgresURL string
	DataInRoot  string
	ReportDir   string
	LogLevel    string

	DefaultProvider string
	Models          string
	EmbedProviders  string
	EmbedDim        int
	OllamaURL       string
	GroqBaseURL     string
	OpenAIBaseURL   string

	// Oracle is ninjas, embedding or lexical. Empty picks ninjas when a key
	// is set and lexical otherwise.
	Oracle         string
	NinjasAPIKey   string
	OracleMaxChars int

	DirectTokenLimit  int
	WindowChars       int
	DistillTokenLimit int
	DistillChars      int

	GenerationIntervalMS int
	OracleIntervalMS     int
	ModelGapSecs         int
	Concurrency          int

	GraphThreshold     float64
	ReferenceThreshold float64

	RosterFile string
}

// Load reads DOCQ_* settings from the environment, then applies the roster
// file when DOCQ_ROSTER names one.
func Load() (Config, error) {
	cfg := Config{
		APIAddr:           getenv("DOCQ_API_ADDR", ":8080"),
		TemporalAddress:   getenv("DOCQ_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getenv("DOCQ_TEMPORAL_TASK_QUEUE", "docquorum"),
		PostgresURL:       getenv("DOCQ_POSTGRES_URL", ""),
		DataInRoot:        getenv("DOCQ_DATA_IN", "./data/in"),
		ReportDir:         getenv("DOCQ_REPORT_DIR", "./logs"),
		LogLevel:          getenv("DOCQ_LOG_LEVEL", "info"),

		DefaultProvider: getenv("DOCQ_DEFAULT_PROVIDER", "groq"),
		Models:          getenv("DOCQ_MODELS", "groq:llama3-8b-8192|groq:gemma2-9b-it|groq:mixtral-8x7b-32768"),
		EmbedProviders:  getenv("DOCQ_EMBED_PROVIDERS", "mock"),
		EmbedDim:        getenvInt("DOCQ_EMBED_DIM", 768),
		OllamaURL:       getenv("DOCQ_OLLAMA_URL", "http://localhost:11434"),
		GroqBaseURL:     getenv("DOCQ_GROQ_BASE_URL", ""),
		OpenAIBaseURL:   getenv("DOCQ_OPENAI_BASE_URL", ""),

		Oracle:         strings.ToLower(getenv("DOCQ_ORACLE", "")),
		NinjasAPIKey:   getenv("DOCQ_NINJAS_API_KEY", os.Getenv("API_NINJAS_KEY")),
		OracleMaxChars: getenvInt("DOCQ_ORACLE_MAX_CHARS", 4900),

		DirectTokenLimit:  getenvInt("DOCQ_DIRECT_TOKEN_LIMIT", 4000),
		WindowChars:       getenvInt("DOCQ_WINDOW_CHARS", 8000),
		DistillTokenLimit: getenvInt("DOCQ_DISTILL_TOKEN_LIMIT", 4000),
		DistillChars:      getenvInt("DOCQ_DISTILL_CHARS", 16000),

		GenerationIntervalMS: getenvInt("DOCQ_GENERATION_INTERVAL_MS", 0),
		OracleIntervalMS:     getenvInt("DOCQ_ORACLE_INTERVAL_MS", 1100),
		ModelGapSecs:         getenvInt("DOCQ_MODEL_GAP_SECONDS", 10),
		Concurrency:          getenvInt("DOCQ_CONCURRENCY", 1),

		GraphThreshold:     getenvFloat("DOCQ_GRAPH_THRESHOLD", 0.5),
		ReferenceThreshold: getenvFloat("DOCQ_REFERENCE_THRESHOLD", 0.1),

		RosterFile: getenv("DOCQ_ROSTER", ""),
	}
	if cfg.RosterFile != "" {
		r, err := LoadRoster(cfg.RosterFile)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.ApplyRoster(r); err != nil {
			return Config{}, fmt.Errorf("roster %s: %w", cfg.RosterFile, err)
		}
	}
	return cfg, nil
}

func (c Config) GenerationInterval() time.Duration {
	return time.Duration(c.GenerationIntervalMS) * time.Millisecond
}

func (c Config) OracleInterval() time.Duration {
	return time.Duration(c.OracleIntervalMS) * time.Millisecond
}

func (c Config) ModelGap() time.Duration {
	return time.Duration(c.ModelGapSecs) * time.Second
}

// OracleKind resolves the configured oracle, defaulting on the key.
func (c Config) OracleKind() string {
	if c.Oracle != "" {
		return c.Oracle
	}
	if c.NinjasAPIKey != "" {
		return "ninjas"
	}
	return "lexical"
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(k string, fallback float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
