package main

import (
	"fmt"
	"os"

	"docquorum/internal/consensus"
	"docquorum/internal/models"

	"github.com/spf13/cobra"
)

func summarizeCmd(g *globals) *cobra.Command {
	var doc docFlags
	var textFile string

	cmd := &cobra.Command{
		Use:   "summarize [pdf]",
		Short: "Summarize a section with every model and keep the consensus summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := consensus.Request{Task: models.TaskSummarize}
			switch {
			case textFile != "":
				b, err := os.ReadFile(textFile)
				if err != nil {
					return err
				}
				req.Text, req.Label = string(b), "the provided text"
			case len(args) == 1:
				secs, err := loadSections(args[0], doc.toc, doc.offset)
				if err != nil {
					return err
				}
				sec, err := doc.pick(secs)
				if err != nil {
					return err
				}
				if sec == nil {
					return fmt.Errorf("--section or --index is required")
				}
				req.Text, req.Label = sec.Text, fmt.Sprintf("the section '%s'", sec.Title)
			default:
				return fmt.Errorf("a pdf or --text-file is required")
			}

			eng, files, err := g.newEngine(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			req.Models = eng.Models()
			res, err := eng.Consensus.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}
			paths, err := files.Write(cmd.Context(), res)
			if err != nil {
				return err
			}
			printConsensus(cmd.OutOrStdout(), res, paths)
			return nil
		},
	}
	doc.register(cmd)
	cmd.Flags().StringVar(&textFile, "text-file", "", "summarize a plain text file instead of a PDF section")
	return cmd
}
