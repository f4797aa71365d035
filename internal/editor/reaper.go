package editor

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"cvbuilder-backend/internal/shared/telemetry"
)

// Reaper wraps robfig/cron and periodically sweeps idle sessions out of the
// registry, flushing their pending edits first.
type Reaper struct {
	cron     *cron.Cron
	registry *Registry
	spec     string
}

// NewReaper builds a reaper sweeping every intervalMinutes minutes.
func NewReaper(registry *Registry, intervalMinutes int) *Reaper {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	return &Reaper{
		cron:     cron.New(),
		registry: registry,
		spec:     fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the sweep job and starts the scheduler.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc(r.spec, r.sweep)
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	r.cron.Start()
	telemetry.Info("editor.reaper_started", map[string]any{"spec": r.spec})
	return nil
}

// Stop shuts the scheduler down.
func (r *Reaper) Stop() {
	r.cron.Stop()
}

func (r *Reaper) sweep() {
	reaped := r.registry.Reap()
	if reaped > 0 {
		telemetry.Info("editor.sessions_reaped", map[string]any{
			"reaped": reaped,
			"open":   r.registry.Len(),
		})
	}
}
