package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"docquorum/internal/config"
	"docquorum/internal/consensus"
	"docquorum/internal/document"
	"docquorum/internal/engine"
	"docquorum/internal/models"
	"docquorum/internal/report"

	"github.com/spf13/cobra"
)

type globals struct {
	models    string
	reportDir string
	oracle    string
	roster    string
	verbose   bool
}

// docFlags select a section of a PDF segmented by a ToC file.
type docFlags struct {
	toc     string
	offset  int
	section string
	index   int
}

func (d *docFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.toc, "toc", "", "table of contents file, one \"Title ... page\" entry per line")
	cmd.Flags().IntVar(&d.offset, "offset", 0, "pages before printed page 1")
	cmd.Flags().StringVar(&d.section, "section", "", "section title")
	cmd.Flags().IntVar(&d.index, "index", -1, "section index, as listed by the sections command")
}

// pick returns the requested section, or nil when none was named.
func (d *docFlags) pick(secs []models.Section) (*models.Section, error) {
	if d.section != "" {
		s, ok := document.FindByTitle(secs, d.section)
		if !ok {
			return nil, fmt.Errorf("no section titled %q", d.section)
		}
		return &s, nil
	}
	if d.index >= 0 {
		if d.index >= len(secs) {
			return nil, fmt.Errorf("section index %d out of range (%d sections)", d.index, len(secs))
		}
		return &secs[d.index], nil
	}
	return nil, nil
}

func loadSections(pdfPath, tocPath string, offset int) ([]models.Section, error) {
	if tocPath == "" {
		return nil, fmt.Errorf("--toc is required")
	}
	raw, err := os.ReadFile(tocPath)
	if err != nil {
		return nil, fmt.Errorf("read toc: %w", err)
	}
	pages, err := document.ExtractPages(pdfPath)
	if err != nil {
		return nil, err
	}
	return document.Segment(pages, document.ParseTOC(string(raw)), offset)
}

func (g *globals) config() (config.Config, error) {
	if g.roster != "" {
		_ = os.Setenv("DOCQ_ROSTER", g.roster)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if g.models != "" {
		cfg.Models = g.models
	}
	if g.reportDir != "" {
		cfg.ReportDir = g.reportDir
	}
	if g.oracle != "" {
		cfg.Oracle = strings.ToLower(g.oracle)
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newEngine builds an in-process engine whose progress goes to stderr.
func (g *globals) newEngine(ctx context.Context, stderr io.Writer) (*engine.Engine, *report.FileRecorder, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	logger := engine.NewLogger(io.Discard, cfg.LogLevel)
	if g.verbose {
		logger = engine.NewLogger(stderr, cfg.LogLevel)
	}
	eng, err := engine.New(ctx, cfg, engine.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	eng.Consensus.Observer = progressPrinter(stderr)

	files := report.NewFileRecorder(cfg.ReportDir)
	files.GraphThreshold = cfg.GraphThreshold
	files.Logger = logger
	return eng, files, nil
}

// progressPrinter writes one line per event. Event indexes are already 1-based.
func progressPrinter(w io.Writer) consensus.Observer {
	return func(ev consensus.Event) {
		switch ev.Kind {
		case consensus.EventModelStarted:
			fmt.Fprintf(w, "[%d/%d] %s ...\n", ev.Index, ev.Total, ev.ModelID)
		case consensus.EventModelFinished:
			fmt.Fprintf(w, "[%d/%d] %s %s\n", ev.Index, ev.Total, ev.ModelID, ev.Status)
		case consensus.EventPairScored:
			fmt.Fprintf(w, "  similarity %s ~ %s = %.4f\n", ev.ModelID, ev.Other, ev.Score)
		case consensus.EventDone:
			fmt.Fprintln(w, "done")
		}
	}
}

func printConsensus(w io.Writer, res consensus.Result, paths report.Paths) {
	fmt.Fprintf(w, "Best model: %s (%s)\n\n%s\n\n", orNone(res.BestModelID), res.Reason, res.BestText)
	for _, s := range res.Ranking {
		fmt.Fprintf(w, "  %-32s %.4f\n", s.ModelID, s.Score)
	}
	printPaths(w, paths)
}

func printPaths(w io.Writer, p report.Paths) {
	fmt.Fprintf(w, "\nReport: %s\n", p.Report)
	if p.Graph != "" {
		fmt.Fprintf(w, "Graph:  %s\n", p.Graph)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
