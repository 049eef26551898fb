// Package audit provides the best-effort observability sinks for intake:
// a failure sink (every rejection or processing failure emits one record)
// and an append-only attempt trail. Neither sink may block or fail the
// correctness path; callers log sink errors and move on
package audit

import (
	"context"
	"time"
)

// FailureRecord describes one rejection or processing failure
type FailureRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Stage     string         `json:"stage"` // ingest | classify | decide | act | complete | cursor
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// FailureSink receives failure records
type FailureSink interface {
	Notify(ctx context.Context, rec FailureRecord) error
}

// Attempt is one row in the append-only intake attempt trail
type Attempt struct {
	EventID        string
	Key            string
	Mailbox        string
	TriggerType    string
	MessageID      string
	HistoryID      string
	TraceID        string
	CursorReason   string
	IsLate         bool
	Route          string
	DecisionSource string
	Category       string
	ClaimStatus    string
	ActionStatus   string
	Duplicate      bool
	Shadow         bool
	WorkerID       string
	ErrorCode      string

	// Stage timing. TriggerReceivedAt and IngestedAt are always set; the
	// optional stamps stay nil for stages the attempt never reached
	TriggerReceivedAt time.Time
	IngestedAt        time.Time
	DecidedAt         *time.Time
	ActedAt           *time.Time
	CompletedAt       *time.Time
	ProcessedAt       time.Time
	ElapsedMs         int64
}

// AttemptSink records attempt rows
type AttemptSink interface {
	Record(ctx context.Context, a Attempt) error
}

// Stage names used across the pipeline
const (
	StageIngest   = "ingest"
	StageClassify = "classify"
	StageDecide   = "decide"
	StageAct      = "act"
	StageComplete = "complete"
	StageCursor   = "cursor"
)

// Well-known failure codes
const (
	CodeMissingIdentifiers = "INGEST_REJECTED_MISSING_GMAIL_IDS"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeClaimConflict      = "CLAIM_CONFLICT"
	CodeStaleLease         = "STALE_LEASE"
	CodeActFailed          = "ACT_FAILED"
	CodeClassifyFailed     = "CLASSIFY_FAILED"
)
