package classify

import (
	"context"
	"log/slog"
	"sort"
)

// compensationLog records the inverse of each persisted step of a
// classification pass so a late failure can unwind the earlier steps.
type compensationLog struct {
	steps []compensation
}

type compensation struct {
	label string
	fn    func(ctx context.Context) error
}

func (l *compensationLog) add(label string, fn func(ctx context.Context) error) {
	l.steps = append(l.steps, compensation{label: label, fn: fn})
}

// run executes the compensations newest-first. Undo happens on a fresh
// context: the original one may already be cancelled. Failures are logged
// and do not stop the remaining compensations.
func (l *compensationLog) run(logger *slog.Logger) {
	ctx := context.Background()
	for i := len(l.steps) - 1; i >= 0; i-- {
		step := l.steps[i]
		if err := step.fn(ctx); err != nil {
			logger.Error("compensation failed", "step", step.label, "error", err)
		}
	}
	l.steps = nil
}

func sortStrings(s []string) { sort.Strings(s) }
