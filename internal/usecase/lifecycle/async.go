package lifecycle

import (
	"context"
	"log/slog"

	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
)

// dispatch runs a follow-up step inline, or on the bounded background pool
// when lifecycle.async is on. Background steps outlive the request context.
func (o *Orchestrator) dispatch(ctx context.Context, name string, fn func(ctx context.Context)) {
	if !o.cfg.Async {
		fn(ctx)
		return
	}

	runCtx := logging.WithAttrs(context.WithoutCancel(ctx), slog.String("step", name))
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		if err := o.inFlight.Acquire(runCtx, 1); err != nil {
			logging.Warn(runCtx, "background step not started", slog.Any("err", errs.Loggable(err)))
			return
		}
		defer o.inFlight.Release(1)
		fn(runCtx)
	}()
}

// Drain waits for background steps to finish or ctx to end.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "drain lifecycle steps")
	}
}
