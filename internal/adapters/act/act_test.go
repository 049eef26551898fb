package act

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mailroom/internal/services/decide"
	"mailroom/internal/services/ingest/domain"
)

func TestExecuteNoopRoutes(t *testing.T) {
	t.Parallel()

	a := New(t.TempDir())
	ctx := context.Background()

	for _, route := range []string{
		decide.RouteNoopLateEvent,
		decide.RouteEscalateHuman,
		decide.RouteRequestMoreInfo,
		decide.RouteNeedsReview,
	} {
		res, err := a.Execute(ctx, domain.Event{EventID: "e1"}, domain.Decision{DecisionID: "d1", Route: route})
		if err != nil {
			t.Fatalf("%s: %v", route, err)
		}
		if res.Status != "noop" || res.ArtifactPath != "" {
			t.Errorf("%s: %#v", route, res)
		}
	}
}

func TestExecuteDraftTicketWritesArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := New(dir)

	ev := domain.Event{EventID: "e2", Mailbox: "ops@b.co"}
	d := domain.Decision{
		DecisionID:     "d2",
		Route:          decide.RouteCreateDraftTicket,
		ProposedAction: map[string]any{"summary": "monitor flickers", "queue": "IT"},
	}

	res, err := a.Execute(context.Background(), ev, d)
	if err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if res.Status != "executed" || res.ActionType != "create_ticket_draft" {
		t.Fatalf("result: %#v", res)
	}
	want := filepath.Join(dir, "e2.draft_ticket.json")
	if res.ArtifactPath != want {
		t.Fatalf("artifact path = %q, want %q", res.ArtifactPath, want)
	}

	b, err := os.ReadFile(res.ArtifactPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got draftTicket
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("artifact not json: %v", err)
	}
	if got.EventID != "e2" || got.Summary != "monitor flickers" {
		t.Fatalf("artifact: %#v", got)
	}

	// no stray tmp file left behind
	if _, err := os.Stat(want + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("tmp file left behind")
	}
}

func TestExecuteReplayOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := New(dir)
	ev := domain.Event{EventID: "e3"}
	d := domain.Decision{DecisionID: "d3", Route: decide.RouteCreateDraftTicket}

	first, err := a.Execute(context.Background(), ev, d)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := a.Execute(context.Background(), ev, d)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ArtifactPath != second.ArtifactPath {
		t.Fatalf("replay produced a second artifact: %q vs %q", first.ArtifactPath, second.ArtifactPath)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("artifact count = %d", len(entries))
	}
}

func TestExecuteFailureSurfacesError(t *testing.T) {
	t.Parallel()

	// a file where the artifacts dir should be forces MkdirAll to fail
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	a := New(blocked)

	res, err := a.Execute(context.Background(), domain.Event{EventID: "e4"}, domain.Decision{Route: decide.RouteCreateDraftTicket})
	if err == nil {
		t.Fatal("want error")
	}
	if res.Status != "failed" || res.ErrorCode != "ACT_FAILED" || res.ErrorDetail == "" {
		t.Fatalf("result: %#v", res)
	}
}
