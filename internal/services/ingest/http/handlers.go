// Package http provides http transport for gmail intake
package http

import (
	stdhttp "net/http"

	"mailroom/internal/modkit/httpkit"
	"mailroom/internal/services/ingest/domain"
)

// Register mounts the router
func Register(r httpkit.Router, s domain.IngestPort) {
	h := &handlers{svc: s}
	httpkit.PostJSON[domain.GmailIngestRequest](r, "/gmail", h.ingest)
	httpkit.Get(r, "/status", h.status)
}

type handlers struct{ svc domain.IngestPort }

func (h *handlers) ingest(r *stdhttp.Request, in domain.GmailIngestRequest) (any, error) {
	return h.svc.IngestGmail(r.Context(), in)
}

func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Lookup(r.Context(), r.URL.Query().Get("key"))
}
