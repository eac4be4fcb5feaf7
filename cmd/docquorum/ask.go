package main

import (
	"fmt"
	"strings"

	"docquorum/internal/consensus"
	"docquorum/internal/models"

	"github.com/spf13/cobra"
)

func askCmd(g *globals) *cobra.Command {
	var doc docFlags

	cmd := &cobra.Command{
		Use:   "ask <pdf> <question>",
		Short: "Answer a question from a document section with every model and keep the consensus answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(args[1])
			secs, err := loadSections(args[0], doc.toc, doc.offset)
			if err != nil {
				return err
			}
			sec, err := doc.pick(secs)
			if err != nil {
				return err
			}

			eng, files, err := g.newEngine(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			req := consensus.Request{Task: models.TaskAnswer, Question: question, Models: eng.Models()}
			if sec != nil {
				req.Context, req.Section = sec.Text, sec.Title
			} else {
				p, err := eng.Retriever.FindContext(cmd.Context(), question, secs)
				if err != nil {
					return err
				}
				req.Context, req.Section = p.Text, p.Section.Title
				fmt.Fprintf(cmd.ErrOrStderr(), "using section %q\n", p.Section.Title)
			}

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
	return cmd
}
