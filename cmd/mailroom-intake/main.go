package main

import (
	"context"

	"mailroom/internal/platform/config"
	"mailroom/internal/platform/logger"
	phttp "mailroom/internal/platform/net/http"
	"mailroom/internal/platform/store"

	"mailroom/internal/services/api"
)

func main() {
	// service-scoped config for HTTP etc (CORE_INTAKE_*)
	root := config.New()
	intakeCfg := root.Prefix("CORE_INTAKE_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*

	// bring up logging early
	l := logger.Get()

	// open the platform store (postgres + clickhouse adapter)
	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "mailroom-intake",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", true),
			},
			CH: store.CHConfig{
				Enabled: chCfg.MayBool("ENABLED", false),
				URL:     chCfg.MayString("DBURL", ""),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := st.Guard(context.Background()); err != nil {
		l.Panic().Err(err).Msg("store readiness check failed")
	}

	// http server (reads CORE_INTAKE_API_PORT)
	srv := phttp.NewServer(intakeCfg)

	// mount the intake API
	api.Mount(
		srv.Router(),
		api.Options{
			Config: root,
			Store:  st,
			Logger: l,
		},
	)

	// run
	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
