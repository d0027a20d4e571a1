package batch

import (
	"context"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// Handle tracks an asynchronously running batch. Callers poll Done or block
// on Result; Cancel requests cooperative cancellation, after which the
// partial result is still returned.
type Handle struct {
	batchID string
	done    chan struct{}
	cancel  context.CancelFunc

	result *model.BatchResult
	err    error
}

// Start launches a batch in the background and returns its handle.
func (c *Calculator) Start(ctx context.Context, employerIDs []string, p *model.WeightingProfile, opts Options) *Handle {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		batchID: opts.BatchID,
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	go func() {
		defer close(h.done)
		defer cancel()
		h.result, h.err = c.Run(runCtx, employerIDs, p, opts)
	}()

	return h
}

// BatchID identifies the run. Available immediately, before completion.
func (h *Handle) BatchID() string {
	return h.batchID
}

// Done is closed when the batch has finished, including after cancellation.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel stops scheduling new employer computations. In-flight computations
// complete and their results are kept.
func (h *Handle) Cancel() {
	h.cancel()
}

// Result blocks until the batch finishes and returns its outcome.
func (h *Handle) Result() (*model.BatchResult, error) {
	<-h.done
	return h.result, h.err
}
