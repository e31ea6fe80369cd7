package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/export"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect and export stored dossiers",
}

// -- report show --

var reportShowCmd = &cobra.Command{
	Use:   "show <ticker>",
	Short: "Print the stored dossier as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "report show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// -- report export --

var reportExportOut string

var reportExportCmd = &cobra.Command{
	Use:   "export <ticker>",
	Short: "Export the stored dossier as an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "report export")
		}

		if err := export.Write(report, reportExportOut); err != nil {
			return err
		}

		zap.L().Info("dossier exported",
			zap.String("ticker", report.Ticker),
			zap.String("path", reportExportOut),
		)
		return nil
	},
}

func init() {
	reportExportCmd.Flags().StringVar(&reportExportOut, "out", "", "output xlsx path (required)")
	_ = reportExportCmd.MarkFlagRequired("out")

	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportExportCmd)
	rootCmd.AddCommand(reportCmd)
}
