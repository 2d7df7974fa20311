package engine

import (
	"context"
	"errors"
	"time"

	"github.com/alignworks/corridord/pkg/store"
)

// AutoRebuilder runs a background rebuild once edits settle. Every accepted
// command signals it; the pass starts after the debounce window elapses with
// no further edits. Edits racing an in-flight pass are handled by the
// engine's snapshot-generation discard, so the rebuild only ever commits a
// consistent state.
type AutoRebuilder struct {
	eng      *Engine
	debounce time.Duration
}

// NewAutoRebuilder wires an auto-rebuilder to the engine's dirty signals.
func NewAutoRebuilder(eng *Engine, debounce time.Duration) *AutoRebuilder {
	return &AutoRebuilder{eng: eng, debounce: debounce}
}

// Run blocks until ctx is canceled, rebuilding after each settled burst of
// edits. Aborted passes are logged and left for the user to repair; the
// next edit schedules a retry.
func (r *AutoRebuilder) Run(ctx context.Context) {
	signals := r.eng.DirtySignals()
	timer := time.NewTimer(r.debounce)
	stopTimer(timer)

	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
		}
		timer.Reset(r.debounce)

	settle:
		for {
			select {
			case <-ctx.Done():
				stopTimer(timer)
				return
			case <-signals:
				stopTimer(timer)
				timer.Reset(r.debounce)
			case <-timer.C:
				break settle
			}
		}

		out := <-r.eng.RebuildAsync(ctx)
		switch {
		case out.Err == nil:
			if n := len(out.Result.Committed); n > 0 {
				r.eng.log.Infow("auto rebuild committed", "entities", n, "discards", out.Result.Discards)
			}
		case errors.Is(out.Err, store.ErrTransactionAborted):
			r.eng.log.Warnw("auto rebuild aborted", "failures", len(out.Result.Failures))
		case errors.Is(out.Err, context.Canceled):
			return
		default:
			r.eng.log.Errorw("auto rebuild failed", "err", out.Err)
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
