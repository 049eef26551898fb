// Package module wires gmail intake into the API using modkit
package module

import (
	"net/http"

	"mailroom/internal/adapters/act"
	"mailroom/internal/adapters/classify"
	modkit "mailroom/internal/modkit"
	"mailroom/internal/modkit/httpkit"
	"mailroom/internal/services/audit"
	"mailroom/internal/services/decide"

	ihttp "mailroom/internal/services/ingest/http"
	irepo "mailroom/internal/services/ingest/repo"
	isvc "mailroom/internal/services/ingest/service"
)

// Module implements the gmail intake module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws []func(http.Handler) http.Handler

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc *isvc.Svc
}

// New constructs the intake module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("ingest"),
		modkit.WithPrefix("/ingest"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var attempts audit.AttemptSink
	if deps.CH != nil {
		attempts = &audit.CHAttemptSink{CH: deps.CH}
	} else {
		attempts = &audit.LogAttemptSink{Log: deps.Log}
	}
	failures := audit.FailureSinkFromConfig(deps.Cfg.Prefix("FAILURE_SINK_"), deps.Log)

	svc := isvc.New(
		deps.PG,
		irepo.NewPG(),
		irepo.NewCursorPG(),
		decide.New(cfg.Routing),
		classify.New(classify.Options{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			Allowlist:           cfg.Allowlist,
		}),
		act.New(cfg.ArtifactsDir),
		attempts,
		failures,
		isvc.Options{
			LeaseTTL:   cfg.LeaseTTL,
			WorkerID:   cfg.WorkerID,
			ShadowMode: cfg.ShadowMode,
		},
	)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ihttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// Ports returns nothing; intake exposes no cross-module ports
func (m *Module) Ports() any { return nil }
