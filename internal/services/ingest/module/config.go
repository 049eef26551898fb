package module

import (
	"time"

	"mailroom/internal/platform/config"
	"mailroom/internal/platform/logger"
	"mailroom/internal/services/decide"
)

// Config collects the intake knobs from their env scopes.
// INGEST_* tunes the pipeline, ROUTER_* the decision layer,
// FAILURE_SINK_* the dead-letter trail
type Config struct {
	LeaseTTL     time.Duration
	WorkerID     string
	ShadowMode   bool
	ArtifactsDir string

	Routing             decide.Config
	ConfidenceThreshold float64
	Allowlist           []string
}

// FromConfig reads module configuration from the environment
func FromConfig(root config.Conf) Config {
	ing := root.Prefix("INGEST_")
	rtr := root.Prefix("ROUTER_")

	routing := decide.DefaultConfig()
	if path := rtr.MayString("CONFIG_PATH", ""); path != "" {
		loaded, err := decide.LoadConfig(path)
		if err != nil {
			logger.Get().Panic().Err(err).Str("path", path).Msg("routing config rejected")
		}
		routing = loaded
	}
	if t := rtr.MayFloat64("CONFIDENCE_THRESHOLD", routing.ConfidenceThreshold); t >= 0 && t <= 1 {
		routing.ConfidenceThreshold = t
	}

	return Config{
		LeaseTTL:            ing.MayDuration("LEASE_TTL", 120*time.Second),
		WorkerID:            ing.MayString("WORKER_ID", ""),
		ShadowMode:          ing.MayBool("SHADOW_MODE", false),
		ArtifactsDir:        ing.MayString("ARTIFACTS_DIR", "data/artifacts"),
		Routing:             routing,
		ConfidenceThreshold: routing.ConfidenceThreshold,
		Allowlist:           rtr.MayCSV("ALLOWLIST", nil),
	}
}
