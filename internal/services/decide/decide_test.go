package decide

import (
	"strings"
	"testing"

	perr "mailroom/internal/platform/errors"
	"mailroom/internal/services/ingest/domain"
)

func f(v float64) *float64 { return &v }

func TestLateEventAlwaysNoop(t *testing.T) {
	t.Parallel()

	r := New(DefaultConfig())

	// even a security keyword cannot override the late gate
	ev := domain.Event{EventID: "e1", IsLate: true, LateReason: "BEHIND_CURSOR", Text: "password breach!!"}
	d := r.Decide(ev, domain.Classification{Category: "billing", Confidence: f(0.99)})

	if d.Route != RouteNoopLateEvent {
		t.Fatalf("route = %q, want %q", d.Route, RouteNoopLateEvent)
	}
	if d.DecisionSource != "fallback" {
		t.Fatalf("decision_source = %q, want fallback", d.DecisionSource)
	}
	if d.ProposedAction["late_reason"] != "BEHIND_CURSOR" {
		t.Fatalf("proposed action missing late reason: %#v", d.ProposedAction)
	}
}

func TestDecidePrecedence(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Rules = []Rule{
		{RuleID: "r-billing", Match: MatchCategory, Value: "billing", Route: RouteCreateDraftTicket, RiskLevel: "low"},
	}
	r := New(cfg)

	cases := []struct {
		name string
		ev   domain.Event
		cl   domain.Classification
		want string
	}{
		{
			"security keyword escalates",
			domain.Event{Text: "I think my password leaked", Urgency: "high"},
			domain.Classification{Category: "billing", Confidence: f(0.99)},
			RouteEscalateHuman,
		},
		{
			"allowlist denial needs review",
			domain.Event{Text: "invoice overcharge", Urgency: "high"},
			domain.Classification{Category: "billing", Confidence: f(0.99), AllowlistVerdict: "denied"},
			RouteNeedsReview,
		},
		{
			"confident mapped category takes its route",
			domain.Event{Text: "invoice overcharge"},
			domain.Classification{Category: "billing", Confidence: f(0.9)},
			RouteCreateDraftTicket,
		},
		{
			"low confidence needs review",
			domain.Event{Text: "invoice overcharge", Urgency: "high"},
			domain.Classification{Category: "billing", Confidence: f(0.5)},
			RouteNeedsReview,
		},
		{
			"unmapped category needs review",
			domain.Event{Text: "anything", Urgency: "high"},
			domain.Classification{Category: "hardware", Confidence: f(0.9)},
			RouteNeedsReview,
		},
		{
			"missing urgency asks for more info",
			domain.Event{Text: "hello there"},
			domain.Classification{},
			RouteRequestMoreInfo,
		},
		{
			"default drafts a ticket",
			domain.Event{Text: "my monitor flickers", Urgency: "low"},
			domain.Classification{},
			RouteCreateDraftTicket,
		},
	}

	for _, c := range cases {
		d := r.Decide(c.ev, c.cl)
		if d.Route != c.want {
			t.Errorf("%s: route = %q, want %q", c.name, d.Route, c.want)
		}
		if d.DecisionID == "" {
			t.Errorf("%s: missing decision id", c.name)
		}
	}
}

func TestDecideThresholdUsedOverridesConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 0.9
	cfg.Rules = []Rule{
		{RuleID: "r1", Match: MatchCategory, Value: "billing", Route: RouteCreateDraftTicket, RiskLevel: "low"},
	}
	r := New(cfg)

	// the classifier recorded the threshold in force at classify time
	cl := domain.Classification{Category: "billing", Confidence: f(0.8), ThresholdUsed: f(0.75)}
	d := r.Decide(domain.Event{Text: "x"}, cl)
	if d.Route != RouteCreateDraftTicket {
		t.Fatalf("route = %q, want snapshot threshold to win", d.Route)
	}
}

func TestDecideDraftSummaryTruncated(t *testing.T) {
	t.Parallel()

	r := New(DefaultConfig())
	long := strings.Repeat("a", 200)
	d := r.Decide(domain.Event{Text: long, Urgency: "low"}, domain.Classification{})
	if d.Route != RouteCreateDraftTicket {
		t.Fatalf("route = %q", d.Route)
	}
	sum, _ := d.ProposedAction["summary"].(string)
	if len(sum) != 80 {
		t.Fatalf("summary len = %d, want 80", len(sum))
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	good := DefaultConfig()
	good.Rules = []Rule{
		{RuleID: "r1", Match: MatchCategory, Value: "billing", Route: RouteCreateDraftTicket, RiskLevel: "low"},
	}
	if err := Validate(good); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	undef := good
	undef.Rules = []Rule{
		{RuleID: "r1", Match: MatchCategory, Value: "billing", Route: "NO_SUCH_ROUTE", RiskLevel: "low"},
	}
	if err := Validate(undef); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("undefined route accepted: %v", err)
	}

	dup := good
	dup.Rules = []Rule{
		{RuleID: "r1", Match: MatchCategory, Value: "billing", Route: RouteCreateDraftTicket, RiskLevel: "low"},
		{RuleID: "r1", Match: MatchCategory, Value: "hardware", Route: RouteNeedsReview, RiskLevel: "low"},
	}
	if err := Validate(dup); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("duplicate rule id accepted: %v", err)
	}

	bad := good
	bad.ConfidenceThreshold = 1.5
	if err := Validate(bad); err == nil {
		t.Fatal("out-of-range threshold accepted")
	}
}
