package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/pipeline"
)

var (
	analyzeAsOf     string
	analyzeEvidence string
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <ticker>",
	Short: "Build and persist the dossier for one ticker",
	Long:  "Runs normalization, calculators, reverse-DCF, gates, verifier, deltas, and triggers over the stored quarters, then atomically replaces the ticker's dossier.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		input := pipeline.AnalyzeInput{Ticker: args[0]}

		if analyzeAsOf != "" {
			asOf, err := parseDateFlag("--as-of", analyzeAsOf)
			if err != nil {
				return err
			}
			input.AsOf = asOf
		}

		if analyzeEvidence != "" {
			evidence, err := loadEvidence(analyzeEvidence)
			if err != nil {
				return err
			}
			input.Evidence = evidence
		}

		p := pipeline.New(cfg, st)

		report, err := p.Analyze(ctx, input)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if err := st.SaveReport(ctx, report); err != nil {
			return eris.Wrap(err, "save report")
		}

		zap.L().Info("dossier persisted",
			zap.String("ticker", report.Ticker),
			zap.String("run_id", report.RunID),
			zap.String("qa", string(report.Verifier.Status)),
		)

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Println(report.Analyst.Headline)
		for _, reason := range report.Verifier.Reasons {
			fmt.Printf("  blocker: %s\n", reason)
		}
		return nil
	},
}

// loadEvidence reads a JSON array of quoted snippets for the qualitative
// gate rows.
func loadEvidence(path string) ([]model.EvidenceSnippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read evidence file")
	}
	var snippets []model.EvidenceSnippet
	if err := json.Unmarshal(data, &snippets); err != nil {
		return nil, eris.Wrapf(err, "parse evidence file %s", path)
	}
	return snippets, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAsOf, "as-of", "", "run date YYYY-MM-DD (default today)")
	analyzeCmd.Flags().StringVar(&analyzeEvidence, "evidence", "", "path to JSON evidence snippets for judgment gates")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full dossier JSON to stdout")
	rootCmd.AddCommand(analyzeCmd)
}
