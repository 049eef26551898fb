// Package http provides the guarded operator endpoints
package http

import (
	stdctx "context"
	stdhttp "net/http"
	"time"

	"mailroom/internal/core/version"
	"mailroom/internal/modkit/httpkit"
)

// Pinger is satisfied by adapters that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any
}

type handlers struct {
	deps Deps
}

// Register mounts the ops routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	httpkit.Get(r, "/ping", h.ping)
	httpkit.Get(r, "/ready", h.ready)
}

// PingResponse is the ping payload
type PingResponse struct {
	OK      bool              `json:"ok"`
	Service string            `json:"service"`
	Build   version.BuildInfo `json:"build"`
	Started string            `json:"started"`
	Now     string            `json:"now"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse aggregates dependency checks
type ReadyResponse struct {
	OK     bool         `json:"ok"`
	Checks []ReadyCheck `json:"checks"`
}

func (h *handlers) ping(_ *stdhttp.Request) (any, error) {
	now := time.Now().UTC()
	return PingResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Build:   version.Info(),
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     now.Format(time.RFC3339),
	}, nil
}

func (h *handlers) ready(r *stdhttp.Request) (any, error) {
	out := ReadyResponse{OK: true}
	out.Checks = append(out.Checks, h.check(r.Context(), "pg", h.deps.PG))
	out.Checks = append(out.Checks, h.check(r.Context(), "ch", h.deps.CH))
	for _, c := range out.Checks {
		if c.Status == "fail" {
			out.OK = false
		}
	}
	return out, nil
}

func (h *handlers) check(ctx stdctx.Context, name string, dep any) ReadyCheck {
	p, ok := dep.(Pinger)
	if !ok || p == nil {
		return ReadyCheck{Name: name, Status: "skipped"}
	}
	cctx, cancel := stdctx.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Ping(cctx); err != nil {
		return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
	}
	return ReadyCheck{Name: name, Status: "ok"}
}
