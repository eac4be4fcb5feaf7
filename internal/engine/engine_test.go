package engine

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"docquorum/internal/config"
	"docquorum/internal/consensus"
	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/similarity"
	"docquorum/internal/util"

	"github.com/stretchr/testify/require"
)

type memCalls struct {
	mu   sync.Mutex
	recs []providers.CallRecord
}

func (m *memCalls) LogCall(_ context.Context, rec providers.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		DefaultProvider:   "mock",
		Models:            "mock:alpha|mock:beta|mock:fail-gamma",
		EmbedProviders:    "mock",
		EmbedDim:          32,
		Oracle:            "lexical",
		DirectTokenLimit:  4000,
		WindowChars:       8000,
		DistillTokenLimit: 4000,
		DistillChars:      16000,
		OracleIntervalMS:  1100,
		ModelGapSecs:      10,
		Concurrency:       1,
	}
}

func TestEngineRunsConsensusOffline(t *testing.T) {
	calls := &memCalls{}
	eng, err := New(context.Background(), testConfig(), Options{Calls: calls, Router: providers.NewMockBackend(), Unpaced: true})
	require.NoError(t, err)
	require.Equal(t, []string{"mock:alpha", "mock:beta", "mock:fail-gamma"}, eng.Models())
	require.Nil(t, eng.Consensus.ModelLimiter)

	res, err := eng.Consensus.Evaluate(context.Background(), consensus.Request{
		Task:   models.TaskSummarize,
		Models: eng.Models(),
		Text:   "The tenant must give thirty days notice before leaving the premises.",
		Label:  "Notice",
	})
	require.NoError(t, err)
	require.Equal(t, consensus.ReasonConsensus, res.Reason)
	require.Len(t, res.Candidates, 3)
	require.False(t, res.Candidates[2].Valid())
	require.Equal(t, 1, res.OracleCalls)

	require.Len(t, calls.recs, 3)
	require.Equal(t, "summarize_direct", calls.recs[0].Operation)
	require.Equal(t, res.RunID, calls.recs[0].RunID)
	require.Equal(t, "error", calls.recs[2].Status)
}

func TestEngineWithoutKeysFailsBeforeCalling(t *testing.T) {
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
	cfg := testConfig()
	cfg.DefaultProvider = "groq"
	cfg.Models = "groq:llama3-8b-8192|gemini:gemini-2.0-flash|openai:gpt-4o-mini"
	calls := &memCalls{}
	eng, err := New(context.Background(), cfg, Options{Calls: calls, Unpaced: true})
	require.NoError(t, err)

	_, err = eng.Consensus.Evaluate(context.Background(), consensus.Request{Task: models.TaskSummarize, Models: eng.Models(), Text: "t"})
	require.ErrorIs(t, err, util.ErrNotConfigured)
	require.Empty(t, calls.recs)
}

func TestEnginePacedByDefault(t *testing.T) {
	eng, err := New(context.Background(), testConfig(), Options{Router: providers.NewMockBackend()})
	require.NoError(t, err)
	require.NotNil(t, eng.Consensus.ModelLimiter)
	require.NotNil(t, eng.Reference.ModelLimiter)
	_, ok := eng.Oracle.(*similarity.Paced)
	require.True(t, ok)
}

func TestNewOracleKinds(t *testing.T) {
	emb := providers.NewMockEmbedder(8)
	cfg := testConfig()

	cfg.Oracle = "ninjas"
	o, err := NewOracle(cfg, emb)
	require.NoError(t, err)
	require.IsType(t, &similarity.Ninjas{}, o)

	cfg.Oracle = "embedding"
	o, err = NewOracle(cfg, emb)
	require.NoError(t, err)
	require.IsType(t, &similarity.Embedding{}, o)

	cfg.Oracle = "psychic"
	_, err = NewOracle(cfg, emb)
	require.Error(t, err)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}
