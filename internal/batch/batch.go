// Package batch recomputes ratings across many employers with bounded
// concurrency. Employers are isolated: one failure never aborts the run,
// and a cancelled run returns its partial results marked incomplete.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/R3v3ill3/rating-engine/internal/engine"
	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/resilience"
)

// Options controls a batch run.
type Options struct {
	// DryRun computes ratings without persisting them, reporting how many
	// bands would change. Used to preview a profile change before adopting
	// it broadly.
	DryRun bool

	// ForceRecalculate recomputes even when a rating newer than
	// FreshnessWindow already exists.
	ForceRecalculate bool

	// Concurrency bounds the worker pool. Defaults to 4: conservative, to
	// protect the shared assessment store from read amplification.
	Concurrency int

	// EmployerTimeout bounds each single-employer computation. A timeout
	// is an isolated per-employer failure, not a system fault.
	EmployerTimeout time.Duration

	// FreshnessWindow is how recent a stored rating must be to skip an
	// employer when ForceRecalculate is off.
	FreshnessWindow time.Duration

	// Actor is recorded on audit entries for persisted ratings.
	Actor string

	// BatchID overrides the generated run identifier. Set by Start so
	// asynchronous callers know the ID before the run finishes.
	BatchID string
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.EmployerTimeout <= 0 {
		o.EmployerTimeout = 30 * time.Second
	}
	if o.FreshnessWindow <= 0 {
		o.FreshnessWindow = 24 * time.Hour
	}
	if o.Actor == "" {
		o.Actor = "batch"
	}
	if o.BatchID == "" {
		o.BatchID = uuid.New().String()
	}
	return o
}

// progressEvery controls how often batch progress is logged.
const progressEvery = 100

// Calculator orchestrates per-employer computations. It owns no state of
// its own; workers produce independent results merged under a mutex, never
// mutating a shared collection during iteration.
type Calculator struct {
	svc *engine.Service
}

// NewCalculator creates a Calculator over the given service.
func NewCalculator(svc *engine.Service) *Calculator {
	return &Calculator{svc: svc}
}

// Run processes the given employers against one profile snapshot.
// Cancellation is cooperative: it stops scheduling new employers, lets
// in-flight computations finish, and returns the partial result set marked
// incomplete rather than discarding it. The returned error is nil in all
// of those cases; per-employer problems live in the result.
func (c *Calculator) Run(ctx context.Context, employerIDs []string, p *model.WeightingProfile, opts Options) (*model.BatchResult, error) {
	opts = opts.withDefaults()
	asOf := time.Now().UTC()

	result := &model.BatchResult{
		BatchID:   opts.BatchID,
		StartedAt: asOf,
		DryRun:    opts.DryRun,
	}

	log := zap.L().With(
		zap.String("batch_id", result.BatchID),
		zap.String("profile", p.Name),
		zap.Int("profile_version", p.Version),
	)
	log.Info("batch: starting",
		zap.Int("employers", len(employerIDs)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force", opts.ForceRecalculate),
	)

	var mu sync.Mutex
	var done int

	// The group context is deliberately not used for workers: one
	// employer's failure must not cancel its siblings. Concurrency is
	// bounded by a semaphore instead of SetLimit so a cancel that arrives
	// while scheduling blocks on a free slot still stops the run.
	g := new(errgroup.Group)
	sem := make(chan struct{}, opts.Concurrency)

scheduling:
	for _, id := range employerIDs {
		// Slot acquisition is cancellation-aware: a cancel stops scheduling
		// immediately, whether the loop is between employers or waiting on
		// a worker slot. In-flight employers finish on their own budget.
		select {
		case <-ctx.Done():
			result.Incomplete = true
			log.Warn("batch: cancelled, stopping scheduling")
			break scheduling
		case sem <- struct{}{}:
			// A free slot and a cancel can be ready at once; the cancel wins.
			if ctx.Err() != nil {
				<-sem
				result.Incomplete = true
				log.Warn("batch: cancelled, stopping scheduling")
				break scheduling
			}
		}

		employerID := id
		g.Go(func() error {
			defer func() { <-sem }()
			er := c.processOne(ctx, employerID, p, asOf, opts)

			mu.Lock()
			result.Results = append(result.Results, er)
			switch er.Status {
			case model.EmployerOK:
				result.Succeeded++
			case model.EmployerFailed:
				result.Failed++
			case model.EmployerSkipped:
				result.Skipped++
			}
			if er.BandChanged {
				result.BandsChanged++
			}
			done++
			if done%progressEvery == 0 {
				log.Info("batch: progress",
					zap.Int("done", done),
					zap.Int("total", len(employerIDs)),
					zap.Int("failed", result.Failed),
				)
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	result.FinishedAt = time.Now().UTC()

	log.Info("batch: complete",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("bands_changed", result.BandsChanged),
		zap.Bool("incomplete", result.Incomplete),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// processOne runs the single-employer pipeline with its own time budget and
// converts any failure into a per-employer status.
func (c *Calculator) processOne(parent context.Context, employerID string, p *model.WeightingProfile, asOf time.Time, opts Options) model.EmployerResult {
	er := model.EmployerResult{EmployerID: employerID}

	// The run context gates scheduling only. Once an employer is in flight
	// its computation runs to completion on its own timeout, so a cancelled
	// run never turns a half-done employer into a spurious failure.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), opts.EmployerTimeout)
	defer cancel()

	prev, _ := c.svc.LatestRating(ctx, employerID)
	if prev != nil {
		er.PrevBand = prev.FinalBand
		if !opts.ForceRecalculate && !opts.DryRun && asOf.Sub(prev.CalculationDate) < opts.FreshnessWindow {
			er.Status = model.EmployerSkipped
			return er
		}
	}

	// Retry covers computation only: it is deterministic given the same
	// inputs, so a retry after a transient store read failure recomputes
	// the identical rating. The persist below is a non-idempotent write and
	// is attempted exactly once; retrying it could duplicate rating rows.
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("calculate_rating")
	rating, err := resilience.Do(ctx, retryCfg, func(ctx context.Context) (*model.FinalRating, error) {
		return c.svc.CalculateDry(ctx, employerID, p, asOf)
	})
	if err != nil {
		er.Status = model.EmployerFailed
		er.Error = err.Error()
		zap.L().Error("batch: employer failed",
			zap.String("employer_id", employerID),
			zap.Error(err),
		)
		return er
	}

	if !opts.DryRun {
		if err := c.svc.PersistRating(ctx, opts.Actor, p, rating); err != nil {
			er.Status = model.EmployerFailed
			er.Error = err.Error()
			zap.L().Error("batch: employer failed",
				zap.String("employer_id", employerID),
				zap.Error(err),
			)
			return er
		}
	}

	er.Status = model.EmployerOK
	er.Rating = rating
	if prev != nil && prev.FinalBand != rating.FinalBand {
		er.BandChanged = true
	}
	return er
}
