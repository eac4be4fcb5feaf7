package workflows

import (
	"fmt"
	"strings"
	"time"

	"docquorum/internal/activities"
	"docquorum/internal/consensus"
	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/refeval"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

const (
	defaultModelGap  = 10 * time.Second
	defaultOracleGap = 1100 * time.Millisecond
)

func activityOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
}

// ConsensusWorkflow runs every model on the task one after another, scores
// each pair of usable outputs, and returns the output the others agree
// with most. Pauses between calls happen in workflow time, so a worker
// restart does not repeat finished calls.
func ConsensusWorkflow(ctx workflow.Context, input ConsensusInput) (consensus.Result, error) {
	req := input.Request
	if req.RunID == "" {
		req.RunID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	progress := Progress{RunID: req.RunID, Phase: PhasePrepare, ModelsTotal: len(req.Models), PerModel: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (Progress, error) {
		return progress, nil
	}); err != nil {
		return consensus.Result{}, err
	}
	log := workflow.GetLogger(ctx)

	if err := consensus.ValidateTask(req.Task); err != nil {
		return consensus.Result{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRequest", err)
	}
	if err := consensus.ValidateModels(req.Models); err != nil {
		return consensus.Result{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRequest", err)
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions(2*time.Minute))
	if req.DocumentID != "" && req.Text == "" && req.Context == "" {
		var prep activities.PrepareRequestOutput
		if err := workflow.ExecuteActivity(ctx, "PrepareRequestActivity", activities.PrepareRequestInput{Request: req, SectionIndex: input.SectionIndex}).Get(ctx, &prep); err != nil {
			return consensus.Result{}, err
		}
		req = prep.Request
	}
	if req.Task == models.TaskAnswer && strings.TrimSpace(req.Question) == "" {
		return consensus.Result{}, temporal.NewNonRetryableApplicationError("answer: question is required", "InvalidRequest", nil)
	}

	res := consensus.Result{
		RunID:      req.RunID,
		DocumentID: req.DocumentID,
		Task:       req.Task,
		Prompt:     req.Prompt(),
		Models:     append([]string(nil), req.Models...),
		StartedAt:  workflow.Now(ctx),
	}

	progress.Phase = PhaseGenerate
	genCtx := workflow.WithActivityOptions(ctx, activityOptions(15*time.Minute))
	modelGap := gapOr(time.Duration(input.ModelGapSeconds)*time.Second, defaultModelGap)
	cands := make([]models.Candidate, len(req.Models))
	for i, id := range req.Models {
		if i > 0 && modelGap > 0 {
			if err := workflow.Sleep(ctx, modelGap); err != nil {
				return consensus.Result{}, err
			}
		}
		progress.PerModel[id] = "running"
		var out activities.GenerateCandidateOutput
		if err := workflow.ExecuteActivity(genCtx, "GenerateCandidateActivity", activities.GenerateCandidateInput{Request: req, ModelID: id}).Get(ctx, &out); err != nil {
			out.Candidate = failedCandidate(id, err)
		}
		cands[i] = out.Candidate
		progress.PerModel[id] = string(cands[i].Status)
		progress.ModelsDone++
	}
	res.Candidates = cands

	progress.Phase = PhaseScore
	valid := len(consensus.Valid(cands))
	progress.PairsTotal = valid * (valid - 1) / 2
	simCtx := workflow.WithActivityOptions(ctx, activityOptions(time.Minute))
	oracleGap := gapOr(time.Duration(input.OracleGapMillis)*time.Millisecond, defaultOracleGap)
	var sleepErr error
	outcome := consensus.Resolve(cands, func(a, b models.Candidate) float64 {
		if sleepErr != nil {
			return 0
		}
		if res.OracleCalls > 0 && oracleGap > 0 {
			if err := workflow.Sleep(ctx, oracleGap); err != nil {
				sleepErr = err
				return 0
			}
		}
		res.OracleCalls++
		defer func() { progress.PairsDone++ }()
		var out activities.SimilarityOutput
		if err := workflow.ExecuteActivity(simCtx, "SimilarityActivity", activities.SimilarityInput{A: a.Text, B: b.Text}).Get(ctx, &out); err != nil {
			res.OracleFails++
			log.Warn("similarity failed, scoring pair as 0", "a", a.ModelID, "b", b.ModelID, "error", err)
			return 0
		}
		return out.Score
	})
	if sleepErr != nil {
		return consensus.Result{}, sleepErr
	}
	res.BestModelID = outcome.BestModelID
	res.BestText = outcome.BestText
	res.Reason = outcome.Reason
	res.Scores = outcome.Scores
	res.Matrix = outcome.Matrix
	res.Ranking = consensus.Ranking(outcome.Valid, outcome.Scores)
	res.FinishedAt = workflow.Now(ctx)

	progress.Phase = PhaseRecord
	if err := workflow.ExecuteActivity(ctx, "RecordRunActivity", activities.RecordRunInput{Result: res}).Get(ctx, nil); err != nil {
		log.Warn("recording consensus run failed", "run_id", res.RunID, "error", err)
	}
	progress.Phase = PhaseDone
	progress.BestModelID = res.BestModelID
	log.Info("consensus run finished", "run_id", res.RunID, "best_model", res.BestModelID, "reason", res.Reason)
	return res, nil
}

// ReferenceEvalWorkflow summarizes with every model and ranks the
// summaries by ROUGE-L against a human reference.
func ReferenceEvalWorkflow(ctx workflow.Context, input ReferenceInput) (refeval.Result, error) {
	req := input.Request
	if req.RunID == "" {
		req.RunID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	progress := Progress{RunID: req.RunID, Phase: PhaseGenerate, ModelsTotal: len(req.Models), PerModel: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (Progress, error) {
		return progress, nil
	}); err != nil {
		return refeval.Result{}, err
	}
	log := workflow.GetLogger(ctx)
	if strings.TrimSpace(req.Reference) == "" {
		return refeval.Result{}, temporal.NewNonRetryableApplicationError(refeval.ErrNoReference.Error(), "InvalidRequest", refeval.ErrNoReference)
	}
	if err := consensus.ValidateModels(req.Models); err != nil {
		return refeval.Result{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRequest", err)
	}

	res := refeval.Result{
		RunID:      req.RunID,
		DocumentID: req.DocumentID,
		Label:      req.Label,
		Reference:  req.Reference,
		Models:     append([]string(nil), req.Models...),
		StartedAt:  workflow.Now(ctx),
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions(2*time.Minute))
	genCtx := workflow.WithActivityOptions(ctx, activityOptions(15*time.Minute))
	modelGap := gapOr(time.Duration(input.ModelGapSeconds)*time.Second, defaultModelGap)
	for i, id := range req.Models {
		if i > 0 && modelGap > 0 {
			if err := workflow.Sleep(ctx, modelGap); err != nil {
				return refeval.Result{}, err
			}
		}
		var out activities.SummarizeForReferenceOutput
		if err := workflow.ExecuteActivity(genCtx, "SummarizeForReferenceActivity", activities.SummarizeForReferenceInput{Request: req, ModelID: id}).Get(ctx, &out); err != nil {
			c := failedCandidate(id, err)
			out.Result = refeval.ModelResult{ModelID: id, Status: c.Status, ErrorKind: c.ErrorKind, Detail: c.Detail}
		}
		res.Results = append(res.Results, out.Result)
		progress.PerModel[id] = string(out.Result.Status)
		progress.ModelsDone++
	}

	if input.UseOracle {
		progress.Phase = PhaseScore
		progress.PairsTotal = len(res.Scored())
		oracleGap := gapOr(time.Duration(input.OracleGapMillis)*time.Millisecond, defaultOracleGap)
		calls := 0
		for i := range res.Results {
			m := &res.Results[i]
			if !m.Valid() {
				continue
			}
			if calls > 0 && oracleGap > 0 {
				if err := workflow.Sleep(ctx, oracleGap); err != nil {
					return refeval.Result{}, err
				}
			}
			calls++
			var out activities.SimilarityOutput
			err := workflow.ExecuteActivity(ctx, "SimilarityActivity", activities.SimilarityInput{A: m.Summary, B: req.Reference}).Get(ctx, &out)
			progress.PairsDone++
			if err != nil {
				log.Warn("reference similarity failed", "model", m.ModelID, "error", err)
				continue
			}
			s := out.Score
			m.Similarity = &s
		}
		threshold := input.GraphThreshold
		if threshold <= 0 {
			threshold = consensus.DefaultReferenceThreshold
		}
		g := refeval.ReferenceGraph(res.Results, threshold)
		res.Graph = &g
	}

	res.BestModelID = refeval.Best(res.Results)
	res.FinishedAt = workflow.Now(ctx)
	progress.Phase = PhaseRecord
	if err := workflow.ExecuteActivity(ctx, "RecordReferenceActivity", activities.RecordReferenceInput{Result: res}).Get(ctx, nil); err != nil {
		log.Warn("recording reference run failed", "run_id", res.RunID, "error", err)
	}
	progress.Phase = PhaseDone
	progress.BestModelID = res.BestModelID
	return res, nil
}

// failedCandidate records a model whose activity failed after retries.
func failedCandidate(modelID string, err error) models.Candidate {
	return models.Candidate{
		ModelID:   modelID,
		Status:    models.StatusError,
		ErrorKind: string(providers.ClassifyError(err)),
		Text:      fmt.Sprintf("Model %s failed: %v", modelID, err),
		Detail:    err.Error(),
	}
}

func gapOr(d, fallback time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d == 0:
		return fallback
	}
	return d
}
