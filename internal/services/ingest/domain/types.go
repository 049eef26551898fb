// Package domain holds the ingest service types shared by repo, service, and http layers
package domain

import "time"

// Status is the idempotency record lifecycle state
type Status string

// Status values are stored verbatim; do not rename
const (
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one idempotency row keyed by the derived event key
type Record struct {
	Key            string     `db:"key"`
	Status         Status     `db:"status"`
	LeaseOwner     string     `db:"lease_owner"`
	LeaseExpiresAt *time.Time `db:"lease_expires_at"`
	AttemptCount   int        `db:"attempt_count"`
	LastError      string     `db:"last_error"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// ClaimOutcome reports what happened when a worker tried to claim a key
type ClaimOutcome struct {
	Acquired   bool
	Status     Status
	Owner      string
	LeaseUntil *time.Time
}

// CursorReason classifies an incoming history id against the mailbox cursor
type CursorReason string

// CursorReason values are part of the audit contract; do not rename
const (
	ReasonOK                  CursorReason = "OK"
	ReasonNoCursor            CursorReason = "NO_CURSOR"
	ReasonNoIncomingHistoryID CursorReason = "NO_INCOMING_HISTORY_ID"
	ReasonInvalidHistoryID    CursorReason = "INVALID_HISTORY_ID"
	ReasonBehindCursor        CursorReason = "BEHIND_CURSOR"
	ReasonAtCursor            CursorReason = "AT_CURSOR"
)

// CursorVerdict is the read-only ordering check done early in ingest.
// Only BEHIND_CURSOR marks an event late; a malformed or missing history id
// degrades to not-late so the event still processes, just without ordering proof
type CursorVerdict struct {
	Mailbox  string
	Incoming *int64
	Current  *int64
	IsLate   bool
	Reason   CursorReason
}

// Event is the normalized intake envelope after identity derivation
type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Mailbox   string         `json:"mailbox"`
	MessageID string         `json:"message_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	HistoryID string         `json:"history_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Urgency   string         `json:"urgency,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`

	TriggerReceivedAt time.Time  `json:"trigger_received_at"`
	EventObservedAt   *time.Time `json:"event_observed_at,omitempty"`

	// ordering flags snapshotted from the cursor verdict
	IsLate                bool   `json:"is_late"`
	LateReason            string `json:"late_reason,omitempty"`
	OrderingSignalMissing bool   `json:"ordering_signal_missing"`
}

// Classification is the collaborator output consumed by the decision router
type Classification struct {
	Category         string   `json:"category,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	ThresholdUsed    *float64 `json:"threshold_used,omitempty"`
	DecisionSource   string   `json:"decision_source,omitempty"`
	RuleID           string   `json:"rule_id,omitempty"`
	AllowlistVerdict string   `json:"allowlist_verdict,omitempty"`
}

// Decision is a reviewable routing plan; producing one has no side effects
type Decision struct {
	DecisionID     string         `json:"decision_id"`
	EventID        string         `json:"event_id"`
	Route          string         `json:"route"`
	Reason         string         `json:"reason"`
	RiskLevel      string         `json:"risk_level"`
	ProposedAction map[string]any `json:"proposed_action,omitempty"`
	Classification
}

// ActionResult records what the actuator did for a decision
type ActionResult struct {
	ActionID     string `json:"action_id"`
	EventID      string `json:"event_id"`
	DecisionID   string `json:"decision_id"`
	ActionType   string `json:"action_type"`
	Status       string `json:"status"` // executed | noop | failed
	Reason       string `json:"reason,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorDetail  string `json:"error_detail,omitempty"`
}
