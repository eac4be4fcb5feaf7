package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"docquorum/internal/config"
	"docquorum/internal/consensus"
	"docquorum/internal/document"
	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/refeval"
	"docquorum/internal/storage"
	"docquorum/internal/util"
	"docquorum/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

const maxUploadBytes = 64 << 20

var errStorageDisabled = errors.New("storage is not configured")

type Documents interface {
	UpsertDocument(ctx context.Context, d models.Document, contentHash string) (string, error)
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	ReplaceSections(ctx context.Context, documentID string, sections []models.Section) error
	ListSections(ctx context.Context, documentID string) ([]models.Section, error)
}

type Runs interface {
	GetRun(ctx context.Context, runID string) (storage.RunRecord, error)
	ListRuns(ctx context.Context, documentID string, limit int) ([]storage.RunRecord, error)
}

type CallAudit interface {
	StatsForRun(ctx context.Context, runID string) ([]storage.CallStats, error)
}

// Starter is the part of the Temporal client the API uses.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Deps are the collaborators of a Server. Documents, Runs and Calls are nil
// when no database is configured.
type Deps struct {
	Documents Documents
	Runs      Runs
	Calls     CallAudit
	Temporal  Starter
	Logger    *slog.Logger
}

type Server struct {
	cfg      config.Config
	docs     Documents
	runs     Runs
	calls    CallAudit
	temporal Starter
	log      *slog.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:      cfg,
		docs:     deps.Documents,
		runs:     deps.Runs,
		calls:    deps.Calls,
		temporal: deps.Temporal,
		log:      log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/consensus", s.handleConsensus)
	mux.HandleFunc("/consensus/", s.handleConsensusScoped)
	mux.HandleFunc("/evaluate/reference", s.handleReference)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "storage": s.docs != nil})
}

// handleDocuments takes a multipart upload with a "file" PDF, a "toc"
// text field and an optional page "offset", and stores the sections.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.docs == nil {
		writeErr(w, http.StatusServiceUnavailable, errStorageDisabled)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	defer f.Close()
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf uploads are supported"))
		return
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	offset := 0
	if v := strings.TrimSpace(r.FormValue("offset")); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("offset must be an integer"))
			return
		}
	}
	entries := document.ParseTOC(r.FormValue("toc"))
	if len(entries) == 0 {
		writeErr(w, http.StatusBadRequest, util.ErrEmptyTOC)
		return
	}

	pages, err := document.ExtractPagesFromBytes(raw)
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}
	sections, err := document.Segment(pages, entries, offset)
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}

	doc := models.Document{
		DocumentID: uuid.NewString(),
		Filename:   filepath.Base(fh.Filename),
		Title:      strings.TrimSpace(r.FormValue("title")),
		PageCount:  len(pages),
		PageOffset: offset,
		Status:     "ready",
	}
	id, err := s.docs.UpsertDocument(r.Context(), doc, util.ContentHash(raw))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.docs.ReplaceSections(r.Context(), id, sections); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if s.cfg.DataInRoot != "" {
		path, err := util.SafeJoin(s.cfg.DataInRoot, id+".pdf")
		if err == nil {
			err = util.WriteBytesAtomic(path, raw)
		}
		if err != nil {
			s.log.Warn("keeping uploaded pdf failed", "document_id", id, "error", err)
		}
	}
	s.log.Info("document stored", "document_id", id, "pages", len(pages), "sections", len(sections))

	titles := make([]string, 0, len(sections))
	for _, sec := range sections {
		titles = append(titles, sec.Title)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document_id": id, "pages": len(pages), "sections": titles})
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.docs == nil {
		writeErr(w, http.StatusServiceUnavailable, errStorageDisabled)
		return
	}
	docID := parts[0]

	switch {
	case len(parts) == 1:
		d, err := s.docs.GetDocument(r.Context(), docID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case len(parts) == 2 && parts[1] == "sections":
		secs, err := s.docs.ListSections(r.Context(), docID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if len(secs) == 0 {
			writeErr(w, http.StatusNotFound, fmt.Errorf("document %s has no sections", docID))
			return
		}
		type sectionView struct {
			Index     int    `json:"index"`
			Title     string `json:"title"`
			StartPage int    `json:"start_page"`
			EndPage   int    `json:"end_page"`
			Snippet   string `json:"snippet"`
		}
		out := make([]sectionView, 0, len(secs))
		for _, sec := range secs {
			out = append(out, sectionView{Index: sec.Index, Title: sec.Title, StartPage: sec.StartPage, EndPage: sec.EndPage, Snippet: util.Snippet(sec.Text, 200)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sections": out})
	case len(parts) == 2 && parts[1] == "runs":
		if s.runs == nil {
			writeErr(w, http.StatusServiceUnavailable, errStorageDisabled)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := s.runs.ListRuns(r.Context(), docID, limit)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

type consensusRequest struct {
	Task         string   `json:"task"`
	Models       []string `json:"models"`
	DocumentID   string   `json:"document_id"`
	SectionIndex *int     `json:"section_index"`
	Section      string   `json:"section"`
	Text         string   `json:"text"`
	Label        string   `json:"label"`
	Question     string   `json:"question"`
}

func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req consensusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	task, ok := models.ParseTaskType(req.Task)
	if !ok || task == models.TaskReference {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: %q", util.ErrUnknownTask, req.Task))
		return
	}
	in := workflows.ConsensusInput{
		Request: consensus.Request{
			RunID:      uuid.NewString(),
			DocumentID: strings.TrimSpace(req.DocumentID),
			Task:       task,
			Models:     s.models(req.Models),
			Text:       req.Text,
			Label:      req.Label,
			Question:   strings.TrimSpace(req.Question),
		},
		SectionIndex:    req.SectionIndex,
		ModelGapSeconds: gapSetting(s.cfg.ModelGapSecs),
		OracleGapMillis: gapSetting(s.cfg.OracleIntervalMS),
	}
	if task == models.TaskAnswer {
		// Inline text is the context to answer from.
		in.Request.Context, in.Request.Text = in.Request.Text, ""
		if in.Request.DocumentID == "" {
			in.Request.Section = req.Section
		}
	}
	if err := consensus.ValidateModels(in.Request.Models); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if task == models.TaskAnswer && in.Request.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}
	if in.Request.DocumentID == "" && strings.TrimSpace(req.Text) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("document_id or text is required"))
		return
	}
	if req.Section != "" && in.SectionIndex == nil && in.Request.DocumentID != "" {
		idx, err := s.sectionByTitle(r.Context(), in.Request.DocumentID, req.Section)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		in.SectionIndex = &idx
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    consensusWorkflowID(in.Request.RunID),
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.ConsensusWorkflow, in)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": in.Request.RunID, "workflow_id": we.GetID()})
}

func (s *Server) handleConsensusScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/consensus/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	runID := parts[0]

	switch {
	case len(parts) == 1:
		if s.runs == nil {
			writeErr(w, http.StatusServiceUnavailable, errStorageDisabled)
			return
		}
		rec, err := s.runs.GetRun(r.Context(), runID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case len(parts) == 2 && parts[1] == "progress":
		s.handleProgress(w, r, runID)
	case len(parts) == 2 && parts[1] == "calls":
		if s.calls == nil {
			writeErr(w, http.StatusServiceUnavailable, errStorageDisabled)
			return
		}
		stats, err := s.calls.StatsForRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"calls": stats})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, runID string) {
	resp, err := s.temporal.QueryWorkflow(r.Context(), consensusWorkflowID(runID), "", workflows.QueryGetProgress)
	if err != nil {
		// A finished run whose history is gone still has its stored record.
		if s.runs != nil {
			if rec, rErr := s.runs.GetRun(r.Context(), runID); rErr == nil {
				writeJSON(w, http.StatusOK, workflows.Progress{RunID: runID, Phase: workflows.PhaseDone, BestModelID: rec.BestModelID})
				return
			}
		}
		writeErr(w, http.StatusNotFound, fmt.Errorf("run %s: %w", runID, util.ErrNotFound))
		return
	}
	var prog workflows.Progress
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

type referenceRequest struct {
	Models       []string `json:"models"`
	DocumentID   string   `json:"document_id"`
	SectionIndex *int     `json:"section_index"`
	Text         string   `json:"text"`
	Label        string   `json:"label"`
	Reference    string   `json:"reference"`
	UseOracle    bool     `json:"use_oracle"`
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req referenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeErr(w, http.StatusBadRequest, refeval.ErrNoReference)
		return
	}
	in := workflows.ReferenceInput{
		Request: refeval.Request{
			RunID:      uuid.NewString(),
			DocumentID: strings.TrimSpace(req.DocumentID),
			Models:     s.models(req.Models),
			Text:       req.Text,
			Label:      req.Label,
			Reference:  req.Reference,
		},
		UseOracle:       req.UseOracle,
		GraphThreshold:  s.cfg.ReferenceThreshold,
		ModelGapSeconds: gapSetting(s.cfg.ModelGapSecs),
		OracleGapMillis: gapSetting(s.cfg.OracleIntervalMS),
	}
	if err := consensus.ValidateModels(in.Request.Models); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(in.Request.Text) == "" {
		if in.Request.DocumentID == "" || req.SectionIndex == nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("text or document_id with section_index is required"))
			return
		}
		sec, err := s.section(r.Context(), in.Request.DocumentID, *req.SectionIndex)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		in.Request.Text = sec.Text
		if in.Request.Label == "" {
			in.Request.Label = sec.Title
		}
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    consensusWorkflowID(in.Request.RunID),
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.ReferenceEvalWorkflow, in)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": in.Request.RunID, "workflow_id": we.GetID()})
}

func (s *Server) models(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return providers.ModelIDs(providers.ParseModelList(s.cfg.Models, s.cfg.DefaultProvider))
}

func (s *Server) sectionByTitle(ctx context.Context, documentID, title string) (int, error) {
	if s.docs == nil {
		return 0, errStorageDisabled
	}
	secs, err := s.docs.ListSections(ctx, documentID)
	if err != nil {
		return 0, err
	}
	sec, ok := document.FindByTitle(secs, title)
	if !ok {
		return 0, fmt.Errorf("section %q: %w", title, util.ErrNotFound)
	}
	return sec.Index, nil
}

func (s *Server) section(ctx context.Context, documentID string, index int) (models.Section, error) {
	if s.docs == nil {
		return models.Section{}, errStorageDisabled
	}
	secs, err := s.docs.ListSections(ctx, documentID)
	if err != nil {
		return models.Section{}, err
	}
	for _, sec := range secs {
		if sec.Index == index {
			return sec, nil
		}
	}
	return models.Section{}, fmt.Errorf("section %d: %w", index, util.ErrNotFound)
}

func consensusWorkflowID(runID string) string { return "consensus-" + runID }

// gapSetting turns a configured pause into the workflow convention where
// zero means default and negative means none.
func gapSetting(v int) int {
	if v <= 0 {
		return -1
	}
	return v
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errStorageDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "DQ-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "DQ-API-5030",
			Message: "Storage is not configured. Set DOCQ_POSTGRES_URL and restart.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "DQ-DB-5001",
				Message: "Database schema is not initialized. Restart the service and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "DQ-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "DQ-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "DQ-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "DQ-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "DQ-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "DQ-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusUnprocessableEntity:
		code = "DQ-API-4022"
		msg = "The document could not be split into sections."
	}

	// 4xx replies carry only validation context that is safe to show.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "no extractable text"):
			msg = "The PDF has no extractable text."
		case strings.Contains(raw, "table of contents"):
			msg = "The table of contents has no usable entries."
		case strings.Contains(raw, "no models"):
			msg = "At least one model is required."
		case strings.Contains(raw, "duplicate model"):
			msg = "Model ids must be unique."
		case strings.Contains(raw, "unknown task"):
			msg = "Task must be summarize or answer."
		case strings.Contains(raw, "question is required"):
			msg = "A question is required for answer tasks."
		case strings.Contains(raw, "reference"):
			msg = "A reference summary is required."
		case strings.Contains(raw, "no files provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
