package app

import (
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health reports whether a graph is loaded and history is reachable. It
// backs the /health endpoint in watch mode.
func (a *App) Health() HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if g := a.Graph(); g == nil {
		status.Status = "degraded"
		status.Components["graph"] = "not loaded"
	} else {
		status.Components["graph"] = fmt.Sprintf("ok (%d units, %d dependencies)", g.UnitCount(), g.EdgeCount())
	}

	if rep := a.LastReport(); rep != nil {
		status.Components["last_check"] = fmt.Sprintf("%d violations, passed=%t", rep.TotalViolations, rep.Passed)
	}

	cfg, _, _, store := a.snapshot()
	switch {
	case store != nil:
		status.Components["history"] = "ok"
	case cfg.DB.Enabled:
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	}
	return status
}
