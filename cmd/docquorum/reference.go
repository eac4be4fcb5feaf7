package main

import (
	"fmt"
	"os"

	"docquorum/internal/refeval"

	"github.com/spf13/cobra"
)

func referenceCmd(g *globals) *cobra.Command {
	var doc docFlags
	var refFile string
	var noOracle bool

	cmd := &cobra.Command{
		Use:   "reference <pdf>",
		Short: "Score each model's summary of a section against a reference summary with ROUGE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if refFile == "" {
				return fmt.Errorf("--reference is required")
			}
			ref, err := os.ReadFile(refFile)
			if err != nil {
				return err
			}
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

			eng, files, err := g.newEngine(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if noOracle {
				eng.Reference.Oracle = nil
			}
			res, err := eng.Reference.Evaluate(cmd.Context(), refeval.Request{
				Models:    eng.Models(),
				Text:      sec.Text,
				Label:     fmt.Sprintf("the section '%s'", sec.Title),
				Reference: string(ref),
			})
			if err != nil {
				return err
			}
			paths, err := files.WriteReference(cmd.Context(), res)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Best model by ROUGE-L: %s\n\n", orNone(res.BestModelID))
			fmt.Fprintf(out, "  %-32s %8s %8s %8s\n", "model", "rouge-1", "rouge-2", "rouge-l")
			for _, m := range res.Results {
				if !m.Valid() {
					fmt.Fprintf(out, "  %-32s skipped (%s)\n", m.ModelID, m.ErrorKind)
					continue
				}
				fmt.Fprintf(out, "  %-32s %8.4f %8.4f %8.4f\n", m.ModelID, m.Rouge.Rouge1.F, m.Rouge.Rouge2.F, m.Rouge.RougeL.F)
			}
			printPaths(out, paths)
			return nil
		},
	}
	doc.register(cmd)
	cmd.Flags().StringVar(&refFile, "reference", "", "file holding the human reference summary")
	cmd.Flags().BoolVar(&noOracle, "no-oracle", false, "skip oracle similarity to the reference")
	return cmd
}
