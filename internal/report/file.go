package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"docquorum/internal/consensus"
	"docquorum/internal/refeval"
	"docquorum/internal/util"
)

// Paths lists the files written for one run.
type Paths struct {
	Report string `json:"report"`
	JSON   string `json:"json"`
	Graph  string `json:"graph,omitempty"`
}

// FileRecorder writes a text report, its JSON twin and a DOT graph for
// every run into Dir.
type FileRecorder struct {
	Dir            string
	GraphThreshold float64
	Now            func() time.Time
	Logger         *slog.Logger
}

func NewFileRecorder(dir string) *FileRecorder {
	return &FileRecorder{Dir: dir, GraphThreshold: consensus.DefaultGraphThreshold}
}

func (f *FileRecorder) Record(ctx context.Context, res consensus.Result) error {
	_, err := f.Write(ctx, res)
	return err
}

func (f *FileRecorder) RecordReference(ctx context.Context, res refeval.Result) error {
	_, err := f.WriteReference(ctx, res)
	return err
}

// Write persists a consensus run and returns where it went.
func (f *FileRecorder) Write(ctx context.Context, res consensus.Result) (Paths, error) {
	if err := ctx.Err(); err != nil {
		return Paths{}, err
	}
	ts := f.now()
	p := f.paths(string(res.Task), ts, res.RunID)
	if err := util.WriteTextAtomic(p.Report, Render(res, ts)); err != nil {
		return Paths{}, fmt.Errorf("write report: %w", err)
	}
	if err := util.WriteJSONAtomic(p.JSON, res); err != nil {
		return Paths{}, fmt.Errorf("write report json: %w", err)
	}
	if res.Matrix.Len() > 1 {
		t := f.GraphThreshold
		if t <= 0 {
			t = consensus.DefaultGraphThreshold
		}
		g := consensus.ConsensusGraph(res.Matrix, res.BestModelID, t)
		if err := util.WriteTextAtomic(p.Graph, g.DOT()); err != nil {
			return Paths{}, fmt.Errorf("write graph: %w", err)
		}
	} else {
		p.Graph = ""
	}
	f.logger().Info("consensus report written", "run_id", res.RunID, "path", p.Report)
	return p, nil
}

// WriteReference persists a reference evaluation.
func (f *FileRecorder) WriteReference(ctx context.Context, res refeval.Result) (Paths, error) {
	if err := ctx.Err(); err != nil {
		return Paths{}, err
	}
	ts := f.now()
	p := f.paths("reference", ts, res.RunID)
	if err := util.WriteTextAtomic(p.Report, RenderReference(res, ts)); err != nil {
		return Paths{}, fmt.Errorf("write reference report: %w", err)
	}
	if err := util.WriteJSONAtomic(p.JSON, res); err != nil {
		return Paths{}, fmt.Errorf("write reference json: %w", err)
	}
	if res.Graph != nil {
		if err := util.WriteTextAtomic(p.Graph, res.Graph.DOT()); err != nil {
			return Paths{}, fmt.Errorf("write reference graph: %w", err)
		}
	} else {
		p.Graph = ""
	}
	f.logger().Info("reference report written", "run_id", res.RunID, "path", p.Report)
	return p, nil
}

// paths names files report_<task>_<timestamp>. When a run in the same
// second already took that name, the run id is appended.
func (f *FileRecorder) paths(task string, ts time.Time, runID string) Paths {
	stem := fmt.Sprintf("%s_%s", task, ts.Format(timestampLayout))
	if _, err := os.Stat(filepath.Join(f.Dir, "report_"+stem+".txt")); !errors.Is(err, os.ErrNotExist) && runID != "" {
		stem += "_" + shortID(runID)
	}
	return Paths{
		Report: filepath.Join(f.Dir, "report_"+stem+".txt"),
		JSON:   filepath.Join(f.Dir, "report_"+stem+".json"),
		Graph:  filepath.Join(f.Dir, "graph_"+stem+".dot"),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (f *FileRecorder) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *FileRecorder) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}
