package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/servomount/internal/bus"
)

// componentCheckTimeout bounds each subsystem health check.
const componentCheckTimeout = 2 * time.Second

// HealthReport is the /health response.
type HealthReport struct {
	Status        string                     `json:"status"`
	Timestamp     string                     `json:"timestamp"`
	Version       string                     `json:"version"`
	Thing         string                     `json:"thing"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Runtime       RuntimeMetrics             `json:"runtime"`
	WebSocket     WSMetrics                  `json:"websocket"`
	Bus           *BusHealth                 `json:"bus,omitempty"`
	Components    map[string]ComponentHealth `json:"components,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BusHealth is the bus handle's state and counters.
type BusHealth struct {
	Healthy bool `json:"healthy"`
	bus.Stats
}

// ComponentHealth reports one optional subsystem.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// handleHealth reports server, bus and subsystem health. The status is
// "degraded" (still 200) when the last bus transaction failed or an optional
// subsystem is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	report := HealthReport{
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		Thing:         s.thing.ID(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	if s.bus != nil {
		healthy := s.bus.HealthCheck() == nil
		report.Bus = &BusHealth{Healthy: healthy, Stats: s.bus.Stats()}
		if !healthy {
			report.Status = "degraded"
		}
	}

	if len(s.components) > 0 {
		report.Components = make(map[string]ComponentHealth, len(s.components))
		for name, c := range s.components {
			ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
			err := c.HealthCheck(ctx)
			cancel()

			h := ComponentHealth{Healthy: err == nil}
			if err != nil {
				h.Error = err.Error()
				report.Status = "degraded"
			}
			report.Components[name] = h
		}
	}

	writeJSON(w, http.StatusOK, report)
}
