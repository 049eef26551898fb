// Package act executes the side effect a decision calls for. Only
// CREATE_DRAFT_TICKET has a real effect today; every other route is a
// recorded noop. Artifact paths derive from the event id so replays
// overwrite instead of duplicating
package act

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"mailroom/internal/services/decide"
	"mailroom/internal/services/ingest/domain"

	"github.com/google/uuid"
)

// Actuator implements domain.ActuatorPort with a local artifact store
type Actuator struct {
	// ArtifactsDir is where draft artifacts land; created on demand
	ArtifactsDir string
}

// New builds an Actuator
func New(artifactsDir string) *Actuator {
	return &Actuator{ArtifactsDir: artifactsDir}
}

// draftTicket is the artifact written for CREATE_DRAFT_TICKET decisions
type draftTicket struct {
	EventID        string         `json:"event_id"`
	DecisionID     string         `json:"decision_id"`
	Mailbox        string         `json:"mailbox"`
	Summary        string         `json:"summary,omitempty"`
	ProposedAction map[string]any `json:"proposed_action,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Execute implements domain.ActuatorPort
func (a *Actuator) Execute(_ context.Context, ev domain.Event, d domain.Decision) (domain.ActionResult, error) {
	res := domain.ActionResult{
		ActionID:   uuid.NewString(),
		EventID:    ev.EventID,
		DecisionID: d.DecisionID,
	}

	if d.Route != decide.RouteCreateDraftTicket {
		res.ActionType = "noop"
		res.Status = "noop"
		res.Reason = "route has no side effect"
		return res, nil
	}

	res.ActionType = "create_ticket_draft"

	summary := ""
	if v, ok := d.ProposedAction["summary"].(string); ok {
		summary = v
	}
	artifact := draftTicket{
		EventID:        ev.EventID,
		DecisionID:     d.DecisionID,
		Mailbox:        ev.Mailbox,
		Summary:        summary,
		ProposedAction: d.ProposedAction,
		CreatedAt:      time.Now().UTC(),
	}

	path, err := a.writeJSON(ev.EventID+".draft_ticket.json", artifact)
	if err != nil {
		res.Status = "failed"
		res.ErrorCode = "ACT_FAILED"
		res.ErrorDetail = err.Error()
		return res, err
	}

	res.Status = "executed"
	res.ArtifactPath = path
	return res, nil
}

// writeJSON writes the artifact atomically (tmp + rename) under ArtifactsDir
func (a *Actuator) writeJSON(name string, v any) (string, error) {
	dir := a.ArtifactsDir
	if dir == "" {
		dir = "data/artifacts"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}
