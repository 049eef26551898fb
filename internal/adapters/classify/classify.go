// Package classify is the deterministic rule classifier used until a real
// model-backed collaborator exists. Same event in, same classification out
package classify

import (
	"context"
	"strings"

	"mailroom/internal/services/ingest/domain"
)

// Options tunes the rule classifier
type Options struct {
	// ConfidenceThreshold is recorded on every classification so the router
	// applies the exact threshold that was in force at classify time
	ConfidenceThreshold float64

	// Allowlist is the set of mailboxes allowed to skip review; empty disables the check
	Allowlist []string
}

// Classifier implements domain.ClassifierPort with keyword rules
type Classifier struct {
	opts  Options
	allow map[string]bool
}

// New builds a Classifier
func New(opts Options) *Classifier {
	allow := make(map[string]bool, len(opts.Allowlist))
	for _, m := range opts.Allowlist {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			allow[m] = true
		}
	}
	return &Classifier{opts: opts, allow: allow}
}

// keywordRule maps text fragments to a category with a fixed confidence
type keywordRule struct {
	id         string
	keywords   []string
	category   string
	confidence float64
}

var rules = []keywordRule{
	{id: "kw-billing", keywords: []string{"invoice", "billing", "refund", "charge"}, category: "billing", confidence: 0.85},
	{id: "kw-access", keywords: []string{"login", "locked out", "reset", "access"}, category: "account_access", confidence: 0.80},
	{id: "kw-hardware", keywords: []string{"laptop", "monitor", "keyboard", "printer"}, category: "hardware", confidence: 0.70},
}

// Classify implements domain.ClassifierPort
func (c *Classifier) Classify(_ context.Context, ev domain.Event) (domain.Classification, error) {
	cl := domain.Classification{
		AllowlistVerdict: c.allowlistVerdict(ev.Mailbox),
	}

	text := strings.ToLower(ev.Text)
	if text == "" {
		cl.DecisionSource = "none"
		return cl, nil
	}

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				conf := r.confidence
				threshold := c.opts.ConfidenceThreshold
				cl.Category = r.category
				cl.Confidence = &conf
				cl.ThresholdUsed = &threshold
				cl.DecisionSource = "rule"
				cl.RuleID = r.id
				return cl, nil
			}
		}
	}

	cl.DecisionSource = "none"
	return cl, nil
}

func (c *Classifier) allowlistVerdict(mailbox string) string {
	if len(c.allow) == 0 {
		return "skipped"
	}
	if c.allow[strings.ToLower(strings.TrimSpace(mailbox))] {
		return "allowed"
	}
	return "denied"
}
