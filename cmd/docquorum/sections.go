package main

import (
	"fmt"

	"docquorum/internal/util"

	"github.com/spf13/cobra"
)

func sectionsCmd() *cobra.Command {
	var toc string
	var offset int

	cmd := &cobra.Command{
		Use:   "sections <pdf>",
		Short: "List the sections a table of contents splits the PDF into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := loadSections(args[0], toc, offset)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range secs {
				fmt.Fprintf(out, "%3d  %-40s pp. %d-%d  %s\n", s.Index, s.Title, s.StartPage, s.EndPage, util.Snippet(s.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&toc, "toc", "", "table of contents file, one \"Title ... page\" entry per line")
	cmd.Flags().IntVar(&offset, "offset", 0, "pages before printed page 1")
	return cmd
}
