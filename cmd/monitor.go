package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/notify"
	"github.com/sells-group/dossier-cli/internal/store"
)

var (
	monitorSchedule string
	monitorOnce     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <tickers...>",
	Short: "Evaluate triggers on a cron schedule",
	Long:  "Periodically projects each ticker's triggers against its latest dossier metrics and logs the resulting alerts. Runs until interrupted.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tickers := dedupeTickers(args)
		notifier := notify.NewWebhook(cfg.Monitor)

		if monitorOnce {
			monitorTick(ctx, st, notifier, tickers)
			return nil
		}

		schedule := monitorSchedule
		if schedule == "" {
			schedule = cfg.Monitor.Schedule
		}

		// Six-field expressions, so sub-minute schedules work in tests.
		c := cron.New(cron.WithSeconds())
		if _, err := c.AddFunc(schedule, func() { monitorTick(ctx, st, notifier, tickers) }); err != nil {
			return eris.Wrapf(err, "parse schedule %q", schedule)
		}

		c.Start()
		zap.L().Info("monitor started",
			zap.String("schedule", schedule),
			zap.Int("tickers", len(tickers)),
		)

		<-ctx.Done()

		// Let an in-flight tick finish before exiting.
		<-c.Stop().Done()
		zap.L().Info("monitor stopped")
		return nil
	},
}

// monitorTick is one scheduled pass: evaluate every ticker, log every alert,
// forward breaches to the webhook. Evaluation failures are logged per ticker
// and never stop the pass.
func monitorTick(ctx context.Context, st store.Store, notifier *notify.Webhook, tickers []string) {
	now := time.Now().UTC()
	for _, ticker := range tickers {
		alerts, err := evaluateTickerTriggers(ctx, st, ticker, now)
		if err != nil {
			zap.L().Error("trigger evaluation failed",
				zap.String("ticker", ticker),
				zap.Error(err),
			)
			continue
		}
		for _, alert := range alerts {
			logAlert(ticker, alert)
		}
		notifier.Notify(ctx, alerts)
	}
}

// logAlert writes one alert to the log, breaches at warn level.
func logAlert(ticker string, alert model.TriggerAlert) {
	fields := []zap.Field{
		zap.String("ticker", ticker),
		zap.String("metric", alert.Trigger.Metric),
		zap.String("status", string(alert.Status)),
		zap.Int("days_remaining", alert.DaysRemaining),
	}
	if alert.Status == model.AlertBreach {
		zap.L().Warn(alert.Message, fields...)
		return
	}
	zap.L().Info(alert.Message, fields...)
}

func init() {
	monitorCmd.Flags().StringVar(&monitorSchedule, "schedule", "", "six-field cron expression (default from config)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single evaluation pass and exit")
	rootCmd.AddCommand(monitorCmd)
}
