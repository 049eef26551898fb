package audit

import (
	"context"
	"errors"

	"mailroom/internal/platform/logger"
	"mailroom/internal/platform/store"
)

// AttemptsTable is the clickhouse destination for the attempt trail
const AttemptsTable = "mailroom.intake_attempts"

// CHAttemptSink writes attempt rows to clickhouse.
// Column order must match db/clickhouse.sql
type CHAttemptSink struct {
	CH store.Clickhouse
}

// Record implements AttemptSink
func (s *CHAttemptSink) Record(ctx context.Context, a Attempt) error {
	if s == nil || s.CH == nil {
		return errors.New("audit: no clickhouse seam")
	}
	rows := [][]any{{
		a.EventID,
		a.Key,
		a.Mailbox,
		a.TriggerType,
		a.MessageID,
		a.HistoryID,
		a.TraceID,
		a.CursorReason,
		boolU8(a.IsLate),
		a.Route,
		a.DecisionSource,
		a.Category,
		a.ClaimStatus,
		a.ActionStatus,
		boolU8(a.Duplicate),
		boolU8(a.Shadow),
		a.WorkerID,
		a.ErrorCode,
		a.TriggerReceivedAt,
		a.IngestedAt,
		a.DecidedAt,
		a.ActedAt,
		a.CompletedAt,
		a.ProcessedAt,
		a.ElapsedMs,
	}}
	return s.CH.Insert(ctx, AttemptsTable, rows)
}

func boolU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// LogAttemptSink is the fallback when clickhouse is disabled
type LogAttemptSink struct {
	Log logger.Logger
}

// Record implements AttemptSink
func (s *LogAttemptSink) Record(_ context.Context, a Attempt) error {
	s.Log.Info().
		Str("event_id", a.EventID).
		Str("key", a.Key).
		Str("mailbox", a.Mailbox).
		Str("cursor_reason", a.CursorReason).
		Bool("is_late", a.IsLate).
		Str("route", a.Route).
		Str("claim_status", a.ClaimStatus).
		Str("action_status", a.ActionStatus).
		Bool("duplicate", a.Duplicate).
		Bool("shadow", a.Shadow).
		Str("worker_id", a.WorkerID).
		Int64("elapsed_ms", a.ElapsedMs).
		Msg("intake attempt")
	return nil
}
