package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docquorum/internal/config"
	"docquorum/internal/models"
	"docquorum/internal/storage"
	"docquorum/internal/util"
	"docquorum/internal/workflows"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type fakeRun struct {
	tclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "temporal-run" }

type jsonValue struct{ v any }

func (j jsonValue) HasValue() bool { return j.v != nil }

func (j jsonValue) Get(ptr interface{}) error {
	b, err := json.Marshal(j.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ptr)
}

type fakeTemporal struct {
	started  []tclient.StartWorkflowOptions
	args     []any
	progress map[string]workflows.Progress
}

func (f *fakeTemporal) ExecuteWorkflow(_ context.Context, opts tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	f.started = append(f.started, opts)
	f.args = append(f.args, args...)
	return fakeRun{id: opts.ID}, nil
}

func (f *fakeTemporal) QueryWorkflow(_ context.Context, workflowID, _, _ string, _ ...interface{}) (converter.EncodedValue, error) {
	p, ok := f.progress[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow not found")
	}
	return jsonValue{v: p}, nil
}

type memDocs struct {
	sections map[string][]models.Section
	upserts  int
}

func (m *memDocs) UpsertDocument(_ context.Context, d models.Document, _ string) (string, error) {
	m.upserts++
	return d.DocumentID, nil
}

func (m *memDocs) GetDocument(_ context.Context, id string) (models.Document, error) {
	if _, ok := m.sections[id]; !ok {
		return models.Document{}, fmt.Errorf("get document: %w", util.ErrNotFound)
	}
	return models.Document{DocumentID: id, Status: "ready"}, nil
}

func (m *memDocs) ReplaceSections(_ context.Context, id string, secs []models.Section) error {
	m.sections[id] = secs
	return nil
}

func (m *memDocs) ListSections(_ context.Context, id string) ([]models.Section, error) {
	return m.sections[id], nil
}

type memRuns map[string]storage.RunRecord

func (m memRuns) GetRun(_ context.Context, id string) (storage.RunRecord, error) {
	rec, ok := m[id]
	if !ok {
		return storage.RunRecord{}, fmt.Errorf("get run: %w", util.ErrNotFound)
	}
	return rec, nil
}

func (m memRuns) ListRuns(_ context.Context, docID string, _ int) ([]storage.RunRecord, error) {
	var out []storage.RunRecord
	for _, rec := range m {
		if rec.DocumentID == docID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func testServer(t *testing.T, withStorage bool) (*Server, *fakeTemporal, *memDocs) {
	t.Helper()
	cfg := config.Config{
		TemporalTaskQueue: "docquorum-test",
		DefaultProvider:   "groq",
		Models:            "groq:llama3-8b-8192|groq:gemma2-9b-it",
		ModelGapSecs:      10,
		OracleIntervalMS:  1100,
	}
	tc := &fakeTemporal{progress: map[string]workflows.Progress{}}
	docs := &memDocs{sections: map[string][]models.Section{
		"doc-1": {
			{Index: 0, Title: "Scope", Text: "Applies to all buildings."},
			{Index: 1, Title: "Penalties", Text: "Fines apply."},
		},
	}}
	deps := Deps{Temporal: tc}
	if withStorage {
		deps.Documents = docs
		deps.Runs = memRuns{"r-1": {RunID: "r-1", Kind: "summarize", DocumentID: "doc-1", BestModelID: "groq:gemma2-9b-it"}}
	}
	return NewServer(cfg, deps), tc, docs
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error.Code
}

func TestHealthz(t *testing.T) {
	s, _, _ := testServer(t, false)
	rec := do(t, s.Routes(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"storage":false`)
}

func TestStartConsensusUsesConfiguredModels(t *testing.T) {
	s, tc, _ := testServer(t, true)
	rec := do(t, s.Routes(), http.MethodPost, "/consensus", `{"task":"summarize","text":"some text","label":"Scope"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out["run_id"])
	require.Equal(t, "consensus-"+out["run_id"], out["workflow_id"])

	require.Len(t, tc.started, 1)
	require.Equal(t, "docquorum-test", tc.started[0].TaskQueue)
	in, ok := tc.args[0].(workflows.ConsensusInput)
	require.True(t, ok)
	require.Equal(t, []string{"groq:llama3-8b-8192", "groq:gemma2-9b-it"}, in.Request.Models)
	require.Equal(t, models.TaskSummarize, in.Request.Task)
	require.Equal(t, 10, in.ModelGapSeconds)
	require.Equal(t, 1100, in.OracleGapMillis)
}

func TestStartConsensusResolvesSectionTitle(t *testing.T) {
	s, tc, _ := testServer(t, true)
	rec := do(t, s.Routes(), http.MethodPost, "/consensus", `{"task":"answer","document_id":"doc-1","section":"penalties","question":"What are the fines?","models":["a","b"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	in := tc.args[0].(workflows.ConsensusInput)
	require.NotNil(t, in.SectionIndex)
	require.Equal(t, 1, *in.SectionIndex)
	require.Equal(t, []string{"a", "b"}, in.Request.Models)
}

func TestStartConsensusValidation(t *testing.T) {
	s, tc, _ := testServer(t, true)
	cases := map[string]string{
		"unknown task":     `{"task":"translate","text":"x"}`,
		"duplicate models": `{"task":"summarize","text":"x","models":["a","a"]}`,
		"missing question": `{"task":"answer","text":"x"}`,
		"no input":         `{"task":"summarize"}`,
		"bad json":         `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s.Routes(), http.MethodPost, "/consensus", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "DQ-API-4001", errorCode(t, rec))
		})
	}
	require.Empty(t, tc.started)
}

func TestProgressFromQueryAndStoredRun(t *testing.T) {
	s, tc, _ := testServer(t, true)
	tc.progress["consensus-live"] = workflows.Progress{RunID: "live", Phase: workflows.PhaseScore, PairsTotal: 3, PairsDone: 1}

	rec := do(t, s.Routes(), http.MethodGet, "/consensus/live/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p workflows.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, workflows.PhaseScore, p.Phase)
	require.Equal(t, 1, p.PairsDone)

	rec = do(t, s.Routes(), http.MethodGet, "/consensus/r-1/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, workflows.PhaseDone, p.Phase)
	require.Equal(t, "groq:gemma2-9b-it", p.BestModelID)

	rec = do(t, s.Routes(), http.MethodGet, "/consensus/missing/progress", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRun(t *testing.T) {
	s, _, _ := testServer(t, true)
	rec := do(t, s.Routes(), http.MethodGet, "/consensus/r-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"best_model_id":"groq:gemma2-9b-it"`)

	rec = do(t, s.Routes(), http.MethodGet, "/consensus/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "DQ-API-4004", errorCode(t, rec))
}

func TestDocumentSectionsAndRuns(t *testing.T) {
	s, _, _ := testServer(t, true)
	rec := do(t, s.Routes(), http.MethodGet, "/documents/doc-1/sections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"title":"Penalties"`)

	rec = do(t, s.Routes(), http.MethodGet, "/documents/doc-1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"run_id":"r-1"`)

	rec = do(t, s.Routes(), http.MethodGet, "/documents/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageDisabled(t *testing.T) {
	s, _, _ := testServer(t, false)
	rec := do(t, s.Routes(), http.MethodGet, "/documents/doc-1/sections", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "DQ-API-5030", errorCode(t, rec))

	rec = do(t, s.Routes(), http.MethodGet, "/consensus/r-1", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadRejectsEmptyTOC(t *testing.T) {
	s, _, docs := testServer(t, true)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "code.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("toc", "no page numbers here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "table of contents")
	require.Zero(t, docs.upserts)
}

func TestStartReferenceFromStoredSection(t *testing.T) {
	s, tc, _ := testServer(t, true)
	rec := do(t, s.Routes(), http.MethodPost, "/evaluate/reference", `{"document_id":"doc-1","section_index":0,"reference":"Covers buildings.","models":["a"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	in := tc.args[0].(workflows.ReferenceInput)
	require.Equal(t, "Applies to all buildings.", in.Request.Text)
	require.Equal(t, "Scope", in.Request.Label)

	rec = do(t, s.Routes(), http.MethodPost, "/evaluate/reference", `{"text":"x","models":["a"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "reference summary is required")
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := testServer(t, false)
	rec := do(t, s.Routes(), http.MethodOptions, "/consensus", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
