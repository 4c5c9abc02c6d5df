package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"zapmenu/pkg/logger"
	"zapmenu/pkg/observability"
	"zapmenu/pkg/session"
)

// Sessions terminated by lifetime expiry are forgotten after this much extra
// time; escalated ones are kept for the process lifetime.
const pruneRetention = time.Hour

// Janitor periodically sweeps the session table: it terminates active
// sessions whose lifetime timer was lost and prunes expired entries so the
// table does not grow without bound. It also keeps the active-sessions gauge
// fresh.
type Janitor struct {
	sessions *session.Store
	metrics  *observability.Metrics
	cron     *cron.Cron
	every    time.Duration
}

func NewJanitor(sessions *session.Store, metrics *observability.Metrics, every time.Duration) *Janitor {
	if every <= 0 {
		every = 5 * time.Minute
	}
	return &Janitor{
		sessions: sessions,
		metrics:  metrics,
		cron:     cron.New(),
		every:    every,
	}
}

// Start schedules the sweep and returns immediately.
func (j *Janitor) Start() error {
	spec := fmt.Sprintf("@every %s", j.every)
	if _, err := j.cron.AddFunc(spec, j.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	j.cron.Start()
	logger.InfoCF("janitor", "Sweep scheduled", map[string]interface{}{
		"interval": j.every.String(),
	})
	return nil
}

// Stop cancels the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	logger.InfoC("janitor", "Stopped")
}

// Sweep runs one pass immediately. Exposed for tests and the run command's
// startup pass.
func (j *Janitor) Sweep() {
	j.sweep()
}

func (j *Janitor) sweep() {
	now := time.Now()

	overdue := j.sessions.SweepOverdue(now)
	if len(overdue) > 0 {
		logger.WarnCF("janitor", "Terminated overdue sessions missed by their timers", map[string]interface{}{
			"count": len(overdue),
		})
	}

	pruned := j.sessions.PruneExpired(now, pruneRetention)
	if pruned > 0 {
		logger.InfoCF("janitor", "Pruned expired sessions", map[string]interface{}{
			"count": pruned,
		})
	}

	if j.metrics != nil {
		j.metrics.ActiveSessions.Set(float64(j.sessions.ActiveCount()))
	}
}

// Run is a convenience wrapper that starts the janitor and blocks until ctx
// is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	if err := j.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	j.Stop()
	return ctx.Err()
}
