// Package api provides the HTTP API for the intake control plane
package api

import (
	"mailroom/internal/platform/config"
	"mailroom/internal/platform/logger"
	phttp "mailroom/internal/platform/net/http"
	"mailroom/internal/platform/store"

	"mailroom/internal/modkit"
	"mailroom/internal/modkit/httpkit"

	opsmod "mailroom/internal/services/api/ops/module"
	ingestmod "mailroom/internal/services/ingest/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store
	Logger *logger.Logger
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Log: *opt.Logger,
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	// common stack on the root so /health answers outside /api/v1 too
	r.Use(httpkit.CommonStack()...)

	mods := []modkit.Module{
		ingestmod.New(deps),
	}

	// versioned API
	httpkit.MountAPIV1(r, nil, func(api httpkit.Router) {
		for _, m := range mods {
			m.MountRoutes(api)
		}
	})

	// operator surface outside /api/v1, guarded by a shared key
	opsKey := opt.Config.MayString("OPS_API_KEY", "")
	ops := opsmod.New(deps, modkit.WithMiddlewares(httpkit.APIKey(opsKey)))
	ops.MountRoutes(r)
}
