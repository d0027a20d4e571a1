package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/batch"
)

var (
	batchProfile        string
	batchProfileVersion int
	batchDryRun         bool
	batchForce          bool
	batchConcurrency    int
	batchLimit          int
	batchEmployers      []string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recalculate ratings across many employers",
	Long:  "Runs the per-employer pipeline concurrently with failure isolation. --dry-run previews the effect of a profile change without persisting anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := resolveProfile(ctx, e, batchProfile, batchProfileVersion)
		if err != nil {
			return err
		}

		ids := batchEmployers
		if len(ids) == 0 {
			ids, err = e.Store.ListEmployerIDs(ctx)
			if err != nil {
				return err
			}
		}
		if batchLimit > 0 && len(ids) > batchLimit {
			ids = ids[:batchLimit]
		}
		if len(ids) == 0 {
			zap.L().Info("no employers to process")
			return nil
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		result, err := e.Batch.Run(ctx, ids, p, batch.Options{
			DryRun:           batchDryRun,
			ForceRecalculate: batchForce,
			Concurrency:      concurrency,
			EmployerTimeout:  time.Duration(cfg.Batch.EmployerTimeoutSecs) * time.Second,
			FreshnessWindow:  time.Duration(cfg.Batch.FreshnessHours) * time.Hour,
			Actor:            cfg.Engine.Actor,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchProfile, "profile", "", "weighting profile name (default from config)")
	batchCmd.Flags().IntVar(&batchProfileVersion, "profile-version", 0, "pin a profile version (0 = latest)")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "compute without persisting; report would-be band changes")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "recompute even when a fresh rating exists")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "worker pool size (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max employers to process (0 = all)")
	batchCmd.Flags().StringSliceVar(&batchEmployers, "employer", nil, "restrict to specific employer IDs (repeatable)")
	rootCmd.AddCommand(batchCmd)
}
