package main

import (
	"context"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dossier-cli/internal/pipeline"
)

var batchAsOf string

var batchCmd = &cobra.Command{
	Use:   "batch <tickers...>",
	Short: "Analyze several tickers concurrently",
	Long:  "Runs the full dossier pipeline for each ticker with bounded parallelism. A failed ticker is logged and skipped; it never aborts the rest of the batch.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var asOf time.Time
		if batchAsOf != "" {
			asOf, err = parseDateFlag("--as-of", batchAsOf)
			if err != nil {
				return err
			}
		}

		p := pipeline.New(cfg, st)

		run := func(ctx context.Context, ticker string) error {
			report, err := p.Analyze(ctx, pipeline.AnalyzeInput{
				Ticker: ticker,
				AsOf:   asOf,
			})
			if err != nil {
				return err
			}
			return st.SaveReport(ctx, report)
		}

		succeeded, failed := analyzeTickers(ctx, args, cfg.Batch.MaxConcurrentTickers, run)

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded),
			zap.Int64("failed", failed),
		)

		if failed > 0 {
			return eris.Errorf("batch: %d of %d tickers failed", failed, succeeded+failed)
		}
		return nil
	},
}

// analyzeTickers fans the run function out over the deduplicated ticker
// list. Individual failures are logged and counted, never propagated, so
// one bad ticker cannot starve the rest.
func analyzeTickers(ctx context.Context, tickers []string, concurrency int, run func(ctx context.Context, ticker string) error) (succeeded, failed int64) {
	tickers = dedupeTickers(tickers)
	if len(tickers) == 0 {
		return 0, 0
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("tickers", len(tickers)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var ok, bad atomic.Int64

	for _, ticker := range tickers {
		g.Go(func() error {
			log := zap.L().With(zap.String("ticker", ticker))

			if err := run(gctx, ticker); err != nil {
				bad.Add(1)
				log.Error("analysis failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			ok.Add(1)
			log.Info("analysis complete")
			return nil
		})
	}

	_ = g.Wait()
	return ok.Load(), bad.Load()
}

// dedupeTickers canonicalizes to uppercase and drops repeats, preserving
// first-seen order.
func dedupeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func init() {
	batchCmd.Flags().StringVar(&batchAsOf, "as-of", "", "run date YYYY-MM-DD for every ticker (default today)")
	rootCmd.AddCommand(batchCmd)
}
