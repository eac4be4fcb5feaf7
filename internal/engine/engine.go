// Package engine assembles backends, oracles and evaluators from config.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"docquorum/internal/config"
	"docquorum/internal/consensus"
	"docquorum/internal/document"
	"docquorum/internal/pacing"
	"docquorum/internal/providers"
	"docquorum/internal/qa"
	"docquorum/internal/reduce"
	"docquorum/internal/refeval"
	"docquorum/internal/similarity"
)

// Options are the collaborators that differ between the CLI, API and
// worker.
type Options struct {
	Logger   *slog.Logger
	Calls    providers.CallLogger
	Clock    pacing.Clock
	Recorder interface {
		consensus.Recorder
		refeval.Recorder
	}
	// Router replaces the default provider router, mainly for tests.
	Router providers.Backend
	// Oracle replaces the configured oracle.
	Oracle similarity.Oracle
	// Unpaced drops the model gap and oracle interval. The durable
	// workflow does its own pacing in workflow time.
	Unpaced bool
}

type Engine struct {
	Config    config.Config
	Logger    *slog.Logger
	Backend   providers.Backend
	Oracle    similarity.Oracle
	Embedder  providers.EmbeddingProvider
	Consensus *consensus.Evaluator
	Reference *refeval.Evaluator
	Retriever *document.Retriever
}

func New(ctx context.Context, cfg config.Config, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	clock := opts.Clock
	if clock == nil {
		clock = pacing.Real()
	}

	var backend providers.Backend = opts.Router
	if backend == nil {
		r, err := providers.NewDefaultRouter(ctx, providers.RouterOptions{
			DefaultProvider: cfg.DefaultProvider,
			OllamaURL:       cfg.OllamaURL,
			GroqBaseURL:     cfg.GroqBaseURL,
			OpenAIBaseURL:   cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build provider router: %w", err)
		}
		backend = r
	}
	if cfg.GenerationIntervalMS > 0 {
		backend = providers.NewPaced(backend, pacing.NewLimiter(cfg.GenerationInterval(), clock))
	}
	backend = &providers.Audited{Backend: backend, Calls: opts.Calls, Logger: log}

	embedder, err := providers.NewEmbedderChain(cfg.EmbedProviders, cfg.OllamaURL, cfg.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("build embedders: %w", err)
	}

	oracle := opts.Oracle
	if oracle == nil {
		oracle, err = NewOracle(cfg, embedder)
		if err != nil {
			return nil, err
		}
	}
	if !opts.Unpaced && cfg.OracleIntervalMS > 0 {
		oracle = &similarity.Paced{Oracle: oracle, Limiter: pacing.NewLimiter(cfg.OracleInterval(), clock)}
	}

	red := reduce.New(backend)
	red.DirectTokenLimit = cfg.DirectTokenLimit
	red.WindowChars = cfg.WindowChars
	red.Logger = log

	ans := qa.New(backend)
	ans.DistillTokenLimit = cfg.DistillTokenLimit
	ans.DistillChars = cfg.DistillChars
	ans.Logger = log

	ev := &consensus.Evaluator{
		Reducer:     red,
		Answerer:    ans,
		Oracle:      oracle,
		Logger:      log,
		Concurrency: cfg.Concurrency,
	}
	ref := &refeval.Evaluator{
		Reducer:        red,
		Oracle:         oracle,
		GraphThreshold: cfg.ReferenceThreshold,
		Logger:         log,
	}
	if !opts.Unpaced && cfg.ModelGapSecs > 0 {
		gap := pacing.NewLimiter(cfg.ModelGap(), clock)
		ev.ModelLimiter = gap
		ref.ModelLimiter = gap
	}
	if opts.Recorder != nil {
		ev.Recorder = opts.Recorder
		ref.Recorder = opts.Recorder
	}

	return &Engine{
		Config:    cfg,
		Logger:    log,
		Backend:   backend,
		Oracle:    oracle,
		Embedder:  embedder,
		Consensus: ev,
		Reference: ref,
		Retriever: &document.Retriever{Embedder: embedder, Dimension: cfg.EmbedDim},
	}, nil
}

// NewOracle builds the similarity oracle cfg names.
func NewOracle(cfg config.Config, embedder providers.EmbeddingProvider) (similarity.Oracle, error) {
	switch kind := cfg.OracleKind(); kind {
	case "ninjas":
		return similarity.NewNinjas("", cfg.NinjasAPIKey, cfg.OracleMaxChars), nil
	case "embedding":
		return &similarity.Embedding{Embedder: embedder, Dimension: cfg.EmbedDim}, nil
	case "lexical":
		return similarity.Lexical{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity oracle %q", kind)
	}
}

// Models returns the configured model ids in order.
func (e *Engine) Models() []string {
	return providers.ModelIDs(providers.ParseModelList(e.Config.Models, e.Config.DefaultProvider))
}

// NewLogger returns a JSON slog logger at the named level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv}))
}
