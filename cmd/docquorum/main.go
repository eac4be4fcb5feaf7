package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")

	var g globals
	root := &cobra.Command{
		Use:           "docquorum",
		Short:         "Ask several language models the same question about a document and keep the answer they agree on",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.models, "models", "", "model list, e.g. groq:llama3-8b-8192|openai:gpt-4o-mini (default: DOCQ_MODELS)")
	root.PersistentFlags().StringVar(&g.reportDir, "report-dir", "", "directory for reports (default: DOCQ_REPORT_DIR)")
	root.PersistentFlags().StringVar(&g.oracle, "oracle", "", "similarity oracle: ninjas|embedding|lexical")
	root.PersistentFlags().StringVar(&g.roster, "roster", "", "YAML roster file overriding models and pacing")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(sectionsCmd())
	root.AddCommand(summarizeCmd(&g))
	root.AddCommand(askCmd(&g))
	root.AddCommand(referenceCmd(&g))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
