package domain

import "context"

// IngestPort is the service surface the http layer mounts
type IngestPort interface {
	// IngestGmail runs the full pipeline for one envelope
	IngestGmail(ctx context.Context, req GmailIngestRequest) (IngestResponse, error)

	// Lookup returns the idempotency record for a derived key
	Lookup(ctx context.Context, key string) (StatusResponse, error)
}

// ClassifierPort produces a deterministic classification for a non-late event.
// A classifier failure must not fail the pipeline; the router has a safe default
type ClassifierPort interface {
	Classify(ctx context.Context, ev Event) (Classification, error)
}

// ActuatorPort executes the side effect a decision calls for.
// Implementations must be idempotent per event id so replays overwrite
type ActuatorPort interface {
	Execute(ctx context.Context, ev Event, d Decision) (ActionResult, error)
}
