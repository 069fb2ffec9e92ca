package render

import (
	"context"
	"fmt"
	"time"

	"umlrender/internal/domain"
	"umlrender/internal/infra/logging"
)

const unknownVersion = "unknown"

// Versioner reports the engine version.
type Versioner interface {
	EngineVersion(ctx context.Context) (string, error)
}

// StatusReporter derives ServiceStatus from the engine and the coordinator.
type StatusReporter struct {
	engine  Versioner
	coord   *Coordinator
	timeout time.Duration
	now     func() time.Time
}

// NewStatusReporter creates a reporter. timeout bounds the version lookup.
func NewStatusReporter(engine Versioner, coord *Coordinator, timeout time.Duration) *StatusReporter {
	return &StatusReporter{engine: engine, coord: coord, timeout: timeout, now: time.Now}
}

// Status never fails: a failed version lookup yields an unhealthy status with
// version "unknown" and zeroed counters.
func (r *StatusReporter) Status(ctx context.Context) (st domain.ServiceStatus) {
	unhealthy := domain.ServiceStatus{Healthy: false, EngineVersion: unknownVersion}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("Status query panicked", "panic", fmt.Sprint(rec))
			st = unhealthy
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	version, err := r.engine.EngineVersion(ctx)
	if err != nil {
		logging.Warn("Engine version lookup failed", "error", err)
		return unhealthy
	}

	uptime := r.now().Sub(r.coord.StartedAt()).Milliseconds()
	if uptime < 0 {
		uptime = 0
	}
	active := r.coord.Active()
	if active < 0 {
		active = 0
	}
	return domain.ServiceStatus{
		Healthy:          true,
		EngineVersion:    version,
		UptimeMs:         uptime,
		ActiveOperations: active,
	}
}
