package main

import (
	"encoding/json"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/command"
	"github.com/nidhogg/nuka-academy/internal/intent"
	"github.com/spf13/cobra"
)

var (
	analyzeContext string
	analyzeJSON    bool
	suggestLevel   string
)

// analyzeCmd runs the intent analyzer locally; no server is needed.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <request>",
	Short: "Show which agents would handle a request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := intent.Default().Analyze(strings.Join(args, " "), analyzeContext)
		if !analyzeJSON {
			cmd.Print(command.FormatAnalysis(a))
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Print example requests for a skill level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		level, err := intent.ParseComplexity(suggestLevel)
		if err != nil {
			return err
		}
		for _, s := range intent.Default().QuickStart(level) {
			cmd.Printf("• %s  [%s]\n", s.Text, s.Intent)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeContext, "context", "", "context to analyze alongside the request")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", true, "print the analysis as JSON")
	suggestCmd.Flags().StringVarP(&suggestLevel, "level", "l", string(intent.Beginner), "beginner, intermediate, advanced or expert")
}
