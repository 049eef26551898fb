// Package decide turns a normalized event plus its classification into a
// routing Decision. Routing is pure and total: it never errors and never
// touches a store, so a decision can always be produced for audit
package decide

import (
	"fmt"
	"strings"

	"mailroom/internal/services/ingest/domain"

	"github.com/google/uuid"
)

// Route names are part of the audit contract; do not rename
const (
	RouteNoopLateEvent     = "NOOP_LATE_EVENT"
	RouteEscalateHuman     = "ESCALATE_HUMAN"
	RouteRequestMoreInfo   = "REQUEST_MORE_INFO"
	RouteCreateDraftTicket = "CREATE_DRAFT_TICKET"
	RouteNeedsReview       = "NEEDS_REVIEW"
)

// Router applies the deterministic routing stack
type Router struct {
	cfg Config
}

// New builds a Router from a validated config
func New(cfg Config) *Router {
	return &Router{cfg: cfg}
}

// Decide produces the routing plan for one event.
//
// Precedence:
//
//	0) late event -> NOOP_LATE_EVENT, always, regardless of content
//	1) security keyword in text -> ESCALATE_HUMAN
//	2) allowlist-denied sender -> NEEDS_REVIEW
//	3) confident classification mapped by a category rule -> that route
//	   (unmapped category or low confidence -> NEEDS_REVIEW)
//	4) missing urgency -> REQUEST_MORE_INFO
//	5) default -> CREATE_DRAFT_TICKET
func (r *Router) Decide(ev domain.Event, cl domain.Classification) domain.Decision {
	d := domain.Decision{
		DecisionID:     uuid.NewString(),
		EventID:        ev.EventID,
		Classification: cl,
	}

	// D0: governance no-op for late events (ordering enforcement)
	if ev.IsLate {
		late := ev.LateReason
		if late == "" {
			late = "UNKNOWN"
		}
		d.Route = RouteNoopLateEvent
		d.Reason = fmt.Sprintf("late/out-of-order event: %s", late)
		d.RiskLevel = "low"
		d.DecisionSource = "fallback"
		d.ProposedAction = map[string]any{
			"type":        "noop",
			"reason":      "late_event",
			"late_reason": late,
		}
		return d
	}

	text := strings.ToLower(ev.Text)

	// Rule 1: high-risk / security keywords escalate to a human
	for _, kw := range r.cfg.SecurityKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			d.Route = RouteEscalateHuman
			d.Reason = "security-related keyword detected"
			d.RiskLevel = "high"
			d.ProposedAction = map[string]any{}
			return d
		}
	}

	// Rule 2: sender failed the allowlist check
	if cl.AllowlistVerdict == "denied" {
		d.Route = RouteNeedsReview
		d.Reason = "sender not on mailbox allowlist"
		d.RiskLevel = "medium"
		d.ProposedAction = map[string]any{}
		return d
	}

	// Rule 3: confident classification takes its mapped route
	if cl.Category != "" && cl.Confidence != nil {
		threshold := r.cfg.ConfidenceThreshold
		if cl.ThresholdUsed != nil {
			threshold = *cl.ThresholdUsed
		}
		if *cl.Confidence < threshold {
			d.Route = RouteNeedsReview
			d.Reason = fmt.Sprintf("classification below confidence threshold (%.2f < %.2f)", *cl.Confidence, threshold)
			d.RiskLevel = "medium"
			d.ProposedAction = map[string]any{}
			return d
		}
		if rule, ok := r.categoryRule(cl.Category); ok {
			d.Route = rule.Route
			d.Reason = fmt.Sprintf("classified as %s by rule %s", cl.Category, rule.RuleID)
			d.RiskLevel = rule.RiskLevel
			d.RuleID = rule.RuleID
			d.ProposedAction = map[string]any{}
			return d
		}
		d.Route = RouteNeedsReview
		d.Reason = fmt.Sprintf("no route mapped for category %q", cl.Category)
		d.RiskLevel = "medium"
		d.ProposedAction = map[string]any{}
		return d
	}

	// Rule 4: missing required info
	if ev.Urgency == "" {
		d.Route = RouteRequestMoreInfo
		d.Reason = "missing required field: urgency"
		d.RiskLevel = "medium"
		d.ProposedAction = map[string]any{
			"question":       "How urgent is this? (low / medium / high)",
			"missing_fields": []string{"urgency"},
		}
		return d
	}

	// Rule 5: default, still reversible / reviewable
	summary := "Support request"
	if text != "" {
		if len(text) > 80 {
			summary = text[:80]
		} else {
			summary = text
		}
	}
	d.Route = RouteCreateDraftTicket
	d.Reason = "standard support request"
	d.RiskLevel = "low"
	d.ProposedAction = map[string]any{
		"type":     "create_ticket_draft",
		"queue":    "IT",
		"priority": strings.ToLower(ev.Urgency),
		"summary":  summary,
	}
	return d
}

func (r *Router) categoryRule(category string) (Rule, bool) {
	for _, rule := range r.cfg.Rules {
		if rule.Match == MatchCategory && strings.EqualFold(rule.Value, category) {
			return rule, true
		}
	}
	return Rule{}, false
}
