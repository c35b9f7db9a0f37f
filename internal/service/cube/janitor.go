package cube

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"statcube/internal/engine"
)

// scratchPrefixes are the table-name prefixes of session-scoped work tables.
// Sessions drop their own tables on Close; the janitor only catches tables
// leaked by a crashed process.
var scratchPrefixes = []string{"fact_", "detect_", "dateref_", "lookup_", "preview_"}

// Janitor periodically drops leaked scratch tables from the engine.
type Janitor struct {
	eng    *engine.Engine
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor schedules Sweep on the given cron spec (e.g. "@every 1h").
func NewJanitor(eng *engine.Engine, schedule string, logger *slog.Logger) (*Janitor, error) {
	j := &Janitor{
		eng:    eng,
		cron:   cron.New(),
		logger: logger.With("component", "janitor"),
	}
	if _, err := j.cron.AddFunc(schedule, func() {
		if err := j.Sweep(context.Background()); err != nil {
			j.logger.Error("sweep failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep drops every scratch table currently in the engine.
func (j *Janitor) Sweep(ctx context.Context) error {
	tables, err := j.eng.ListTables(ctx)
	if err != nil {
		return err
	}
	dropped := 0
	for _, table := range tables {
		if !isScratchTable(table) {
			continue
		}
		if err := j.eng.DropTable(ctx, table); err != nil {
			return err
		}
		dropped++
	}
	if dropped > 0 {
		j.logger.Info("dropped leaked scratch tables", "count", dropped)
	}
	return nil
}

func isScratchTable(name string) bool {
	for _, p := range scratchPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
