package server

import (
	"context"
	"net/http"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// componentHealth reports one dependency of the service.
type componentHealth struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type healthReport struct {
	Status   string          `json:"status"`
	RPC      componentHealth `json:"rpc"`
	Database componentHealth `json:"database"`
	Sessions int             `json:"sessions"`
}

// probe runs check under a short deadline. A nil check counts as healthy.
func probe(ctx context.Context, check func(context.Context) error) componentHealth {
	if check == nil {
		return componentHealth{Connected: true}
	}
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	if err := check(ctx); err != nil {
		return componentHealth{Error: err.Error()}
	}
	return componentHealth{
		Connected: true,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:   "healthy",
		RPC:      probe(r.Context(), s.chainHealthFn),
		Database: probe(r.Context(), s.dbHealthFn),
		Sessions: s.sessions.size(),
	}

	status := http.StatusOK
	if !report.RPC.Connected || !report.Database.Connected {
		report.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
