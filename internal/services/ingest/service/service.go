// Package service contains the gmail intake pipeline workflows
package service

import (
	"context"
	"strings"
	"time"

	"mailroom/internal/core/identity"
	"mailroom/internal/modkit/repokit"
	perr "mailroom/internal/platform/errors"
	"mailroom/internal/platform/logger"
	"mailroom/internal/services/audit"
	"mailroom/internal/services/decide"
	"mailroom/internal/services/ingest/domain"
	"mailroom/internal/services/ingest/repo"

	"github.com/google/uuid"
)

// Service is the public service port
type Service interface{ domain.IngestPort }

// Options control pipeline behavior
type Options struct {
	// LeaseTTL bounds how long a crashed worker blocks a key
	LeaseTTL time.Duration

	// WorkerID identifies this process as a lease owner
	WorkerID string

	// ShadowMode claims and decides but never acts; records still complete.
	// The cursor never advances in shadow because no action ran
	ShadowMode bool
}

// Svc implements the service port
type Svc struct {
	recs       repo.IdempotencyRepo
	curs       repo.CursorRepo
	db         repokit.TxRunner
	router     *decide.Router
	classifier domain.ClassifierPort
	actuator   domain.ActuatorPort
	attempts   audit.AttemptSink
	failures   audit.FailureSink
	opts       Options
}

// New constructs the service
func New(
	db repokit.TxRunner,
	recBinder repokit.Binder[repo.IdempotencyRepo],
	curBinder repokit.Binder[repo.CursorRepo],
	router *decide.Router,
	classifier domain.ClassifierPort,
	actuator domain.ActuatorPort,
	attempts audit.AttemptSink,
	failures audit.FailureSink,
	opts Options,
) *Svc {
	if db == nil {
		panic("ingest.Service requires a non nil TxRunner")
	}
	if router == nil {
		panic("ingest.Service requires a router")
	}
	if classifier == nil || actuator == nil {
		panic("ingest.Service requires classifier and actuator ports")
	}
	if attempts == nil || failures == nil {
		panic("ingest.Service requires audit sinks")
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 120 * time.Second
	}
	if opts.WorkerID == "" {
		opts.WorkerID = "worker-" + uuid.NewString()[:8]
	}
	return &Svc{
		recs:       repokit.MustBind(recBinder, db),
		curs:       repokit.MustBind(curBinder, db),
		db:         db,
		router:     router,
		classifier: classifier,
		actuator:   actuator,
		attempts:   attempts,
		failures:   failures,
		opts:       opts,
	}
}

// IngestGmail implements domain.IngestPort.
//
// Pipeline order matters: identity and the read-only cursor check run before
// the claim so rejected events never touch the store; the cursor only advances
// after a successful, non-late completion
func (s *Svc) IngestGmail(ctx context.Context, req domain.GmailIngestRequest) (domain.IngestResponse, error) {
	start := time.Now().UTC()

	mailbox, err := identity.NormalizeMailbox(req.Mailbox)
	if err != nil {
		s.notifyFailure(ctx, audit.StageIngest, audit.CodeMissingIdentifiers, "empty mailbox", map[string]any{
			"trace_id": req.TraceID,
		})
		return domain.IngestResponse{}, perr.Validationf("mailbox is required")
	}
	ctx = logger.WithRequest(ctx, "", mailbox)
	ctx = logger.WithTrace(ctx, req.TraceID)
	log := logger.C(ctx)

	key, err := identity.Derive(mailbox, req.MessageID, req.HistoryID)
	if err != nil {
		log.Warn().Str("trace_id", req.TraceID).Msg("ingest_rejected")
		s.notifyFailure(ctx, audit.StageIngest, audit.CodeMissingIdentifiers,
			"event carries neither message_id nor a valid history_id", map[string]any{
				"mailbox":    mailbox,
				"history_id": req.HistoryID,
				"trace_id":   req.TraceID,
			})
		return domain.IngestResponse{}, perr.Validationf("event has no stable identity: message_id or numeric history_id required")
	}

	verdict, err := s.checkCursor(ctx, mailbox, req.HistoryID)
	if err != nil {
		s.notifyFailure(ctx, audit.StageCursor, audit.CodeStoreUnavailable, err.Error(), map[string]any{"key": key.String()})
		return domain.IngestResponse{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "cursor check for %s", mailbox)
	}

	ev := s.buildEvent(req, mailbox, verdict)

	claim, err := s.recs.Claim(ctx, key.String(), s.opts.WorkerID, s.opts.LeaseTTL)
	if err != nil {
		s.notifyFailure(ctx, audit.StageIngest, audit.CodeStoreUnavailable, err.Error(), map[string]any{"key": key.String()})
		return domain.IngestResponse{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "claim %s", key)
	}

	if !claim.Acquired {
		if claim.Status == domain.StatusCompleted {
			// Duplicate delivery: decide again for audit parity but never act,
			// never touch the record, never move the cursor
			cl := s.classify(ctx, ev)
			d := s.router.Decide(ev, cl)
			decidedAt := time.Now().UTC()
			log.Info().Str("key", key.String()).Str("route", d.Route).Msg("duplicate_delivery")
			s.recordAttempt(ctx, ev, key.String(), verdict, d.Route, cl, req.TriggerType, "completed", "skipped", true,
				stamps{ingested: start, decided: &decidedAt})
			return domain.IngestResponse{
				Key:          key.String(),
				Status:       "duplicate",
				Duplicate:    true,
				Event:        &ev,
				Decision:     &d,
				CursorReason: verdict.Reason,
			}, nil
		}
		log.Info().Str("key", key.String()).Str("owner", claim.Owner).Msg("claim_conflict")
		s.notifyFailure(ctx, audit.StageIngest, audit.CodeClaimConflict, "key already claimed", map[string]any{
			"key":   key.String(),
			"owner": claim.Owner,
		})
		return domain.IngestResponse{}, perr.Conflictf("event %s is being processed by %s", key, claim.Owner)
	}

	log.Info().Str("key", key.String()).Str("worker_id", s.opts.WorkerID).
		Str("cursor_reason", string(verdict.Reason)).Bool("is_late", verdict.IsLate).
		Msg("ingest_claimed")

	cl := s.classify(ctx, ev)
	d := s.router.Decide(ev, cl)
	decidedAt := time.Now().UTC()
	log.Info().Str("decision_id", d.DecisionID).Str("route", d.Route).Str("risk", d.RiskLevel).Msg("decision_created")

	// Late events complete without side effects; the decision stays auditable
	if d.Route == decide.RouteNoopLateEvent {
		if err := s.complete(ctx, key.String(), log); err != nil {
			return domain.IngestResponse{}, err
		}
		completedAt := time.Now().UTC()
		log.Info().Str("key", key.String()).Str("late_reason", ev.LateReason).Msg("late_event_noop")
		s.recordAttempt(ctx, ev, key.String(), verdict, d.Route, cl, req.TriggerType, "completed", "noop", false,
			stamps{ingested: start, decided: &decidedAt, completed: &completedAt})
		return domain.IngestResponse{
			Key:          key.String(),
			Status:       "late_noop",
			Event:        &ev,
			Decision:     &d,
			CursorReason: verdict.Reason,
		}, nil
	}

	// Shadow completes the record but leaves the cursor alone: the high-water
	// mark only moves for deliveries whose action actually ran
	if s.opts.ShadowMode {
		if err := s.complete(ctx, key.String(), log); err != nil {
			return domain.IngestResponse{}, err
		}
		completedAt := time.Now().UTC()
		log.Info().Str("key", key.String()).Str("route", d.Route).Msg("shadow_mode_noop")
		s.recordAttempt(ctx, ev, key.String(), verdict, d.Route, cl, req.TriggerType, "completed", "shadow", false,
			stamps{ingested: start, decided: &decidedAt, completed: &completedAt})
		return domain.IngestResponse{
			Key:          key.String(),
			Status:       "shadow_noop",
			Event:        &ev,
			Decision:     &d,
			CursorReason: verdict.Reason,
		}, nil
	}

	res, actErr := s.actuator.Execute(ctx, ev, d)
	if actErr != nil {
		if ferr := s.recs.Fail(ctx, key.String(), s.opts.WorkerID, actErr.Error()); ferr != nil {
			log.Warn().Err(ferr).Str("key", key.String()).Msg("mark_failed_lost_lease")
		}
		s.notifyFailure(ctx, audit.StageAct, audit.CodeActFailed, actErr.Error(), map[string]any{
			"key":   key.String(),
			"route": d.Route,
		})
		s.recordAttempt(ctx, ev, key.String(), verdict, d.Route, cl, req.TriggerType, "failed", "failed", false,
			stamps{ingested: start, decided: &decidedAt})
		return domain.IngestResponse{}, perr.Wrapf(actErr, perr.ErrorCodeUnavailable, "action failed for %s", key)
	}
	actedAt := time.Now().UTC()
	log.Info().Str("action_id", res.ActionID).Str("action_type", res.ActionType).
		Str("action_status", res.Status).Str("artifact", res.ArtifactPath).
		Msg("action_executed")

	if err := s.complete(ctx, key.String(), log); err != nil {
		return domain.IngestResponse{}, err
	}
	completedAt := time.Now().UTC()

	advanced := s.tryAdvance(ctx, verdict, log)

	log.Info().Str("key", key.String()).Bool("cursor_advanced", advanced).
		Dur("elapsed", time.Since(start)).Msg("ingest_completed")
	s.recordAttempt(ctx, ev, key.String(), verdict, d.Route, cl, req.TriggerType, "completed", res.Status, false,
		stamps{ingested: start, decided: &decidedAt, acted: &actedAt, completed: &completedAt})

	return domain.IngestResponse{
		Key:           key.String(),
		Status:        "processed",
		Event:         &ev,
		Decision:      &d,
		CursorReason:  verdict.Reason,
		CursorAdvance: advanced,
		Action:        &res,
	}, nil
}

// Lookup implements domain.IngestPort
func (s *Svc) Lookup(ctx context.Context, key string) (domain.StatusResponse, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.StatusResponse{}, perr.InvalidArgf("key is required")
	}
	rec, err := s.recs.Get(ctx, key)
	if err != nil {
		return domain.StatusResponse{}, err
	}
	return domain.StatusResponse{
		Key:            rec.Key,
		Status:         rec.Status,
		LeaseOwner:     rec.LeaseOwner,
		LeaseExpiresAt: rec.LeaseExpiresAt,
		AttemptCount:   rec.AttemptCount,
		LastError:      rec.LastError,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}

// complete finishes the record and maps a lost lease to a conflict the caller
// must surface; success is never reported for work we no longer own
func (s *Svc) complete(ctx context.Context, key string, log *logger.Logger) error {
	err := s.recs.Complete(ctx, key, s.opts.WorkerID)
	if err == nil {
		return nil
	}
	if repo.IsStaleLease(err) {
		log.Warn().Str("key", key).Msg("complete_stale_lease")
		s.notifyFailure(ctx, audit.StageComplete, audit.CodeStaleLease, "lease lost before completion", map[string]any{"key": key})
		return err
	}
	s.notifyFailure(ctx, audit.StageComplete, audit.CodeStoreUnavailable, err.Error(), map[string]any{"key": key})
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "complete %s", key)
}

// checkCursor is the read-only late check done before claiming.
// A malformed or missing history id degrades to not-late; only an id strictly
// behind the stored cursor marks the event late.
// Presence is judged on the raw value: any non-empty id that fails to parse,
// whitespace included, is INVALID rather than absent
func (s *Svc) checkCursor(ctx context.Context, mailbox, rawHistoryID string) (domain.CursorVerdict, error) {
	v := domain.CursorVerdict{Mailbox: mailbox}

	current, err := s.curs.Get(ctx, mailbox)
	if err != nil {
		return v, err
	}
	v.Current = current

	incoming, ok := identity.ParseHistoryID(rawHistoryID)

	switch {
	case rawHistoryID != "" && !ok:
		v.Reason = domain.ReasonInvalidHistoryID
	case rawHistoryID == "":
		v.Reason = domain.ReasonNoIncomingHistoryID
	case current == nil:
		v.Incoming = &incoming
		v.Reason = domain.ReasonNoCursor
	case incoming < *current:
		v.Incoming = &incoming
		v.IsLate = true
		v.Reason = domain.ReasonBehindCursor
	case incoming == *current:
		v.Incoming = &incoming
		v.Reason = domain.ReasonAtCursor
	default:
		v.Incoming = &incoming
		v.Reason = domain.ReasonOK
	}
	return v, nil
}

// tryAdvance moves the cursor after success. Only a present, valid, non-late
// history id can advance; failures here never un-complete the record
func (s *Svc) tryAdvance(ctx context.Context, v domain.CursorVerdict, log *logger.Logger) bool {
	if v.Incoming == nil || v.IsLate {
		return false
	}
	advanced, err := s.curs.Advance(ctx, v.Mailbox, *v.Incoming)
	if err != nil {
		log.Error().Err(err).Str("mailbox", v.Mailbox).Msg("cursor_advance_failed")
		s.notifyFailure(ctx, audit.StageCursor, audit.CodeStoreUnavailable, err.Error(), map[string]any{
			"mailbox":    v.Mailbox,
			"history_id": *v.Incoming,
		})
		return false
	}
	if advanced {
		log.Info().Str("mailbox", v.Mailbox).Int64("history_id", *v.Incoming).Msg("cursor_advanced")
	}
	return advanced
}

// classify wraps the collaborator; a classifier failure downgrades to the
// router's safe default instead of failing the pipeline
func (s *Svc) classify(ctx context.Context, ev domain.Event) domain.Classification {
	cl, err := s.classifier.Classify(ctx, ev)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("event_id", ev.EventID).Msg("classify_failed")
		s.notifyFailure(ctx, audit.StageClassify, audit.CodeClassifyFailed, err.Error(), map[string]any{
			"event_id": ev.EventID,
		})
		return domain.Classification{DecisionSource: "fallback"}
	}
	return cl
}

func (s *Svc) buildEvent(req domain.GmailIngestRequest, mailbox string, v domain.CursorVerdict) domain.Event {
	ev := domain.Event{
		EventID:           uuid.NewString(),
		EventType:         "gmail_ingest",
		Source:            "gmail",
		Mailbox:           mailbox,
		MessageID:         strings.TrimSpace(req.MessageID),
		ThreadID:          strings.TrimSpace(req.ThreadID),
		HistoryID:         strings.TrimSpace(req.HistoryID),
		TraceID:           req.TraceID,
		Payload:           req.RawTrigger,
		TriggerReceivedAt: req.TriggerReceivedAt,
		EventObservedAt:   req.EventObservedAt,
		IsLate:            v.IsLate,
		OrderingSignalMissing: v.Reason == domain.ReasonNoIncomingHistoryID ||
			v.Reason == domain.ReasonInvalidHistoryID,
	}
	if v.IsLate {
		ev.LateReason = string(v.Reason)
	}
	if raw := req.RawTrigger; raw != nil {
		if t, ok := raw["text"].(string); ok {
			ev.Text = t
		} else if t, ok := raw["snippet"].(string); ok {
			ev.Text = t
		}
		if u, ok := raw["urgency"].(string); ok {
			ev.Urgency = u
		}
	}
	return ev
}

// notifyFailure is best-effort; the sink must never take down the pipeline
func (s *Svc) notifyFailure(ctx context.Context, stage, code, msg string, fctx map[string]any) {
	rec := audit.FailureRecord{
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		ErrorCode: code,
		Message:   msg,
		Context:   fctx,
	}
	if err := s.failures.Notify(ctx, rec); err != nil {
		logger.C(ctx).Error().Err(err).Str("stage", stage).Str("error_code", code).Msg("failure_sink_error")
	}
}

// stamps carries per-stage timing for one attempt; a nil pointer means the
// stage never ran
type stamps struct {
	ingested  time.Time
	decided   *time.Time
	acted     *time.Time
	completed *time.Time
}

// recordAttempt appends one audit row; errors are logged and swallowed
func (s *Svc) recordAttempt(
	ctx context.Context,
	ev domain.Event,
	key string,
	v domain.CursorVerdict,
	route string,
	cl domain.Classification,
	triggerType, claimStatus, actionStatus string,
	duplicate bool,
	ts stamps,
) {
	a := audit.Attempt{
		EventID:        ev.EventID,
		Key:            key,
		Mailbox:        ev.Mailbox,
		TriggerType:    triggerType,
		MessageID:      ev.MessageID,
		HistoryID:      ev.HistoryID,
		TraceID:        ev.TraceID,
		CursorReason:   string(v.Reason),
		IsLate:         v.IsLate,
		Route:          route,
		DecisionSource: cl.DecisionSource,
		Category:       cl.Category,
		ClaimStatus:    claimStatus,
		ActionStatus:   actionStatus,
		Duplicate:      duplicate,
		Shadow:         s.opts.ShadowMode,
		WorkerID:       s.opts.WorkerID,

		TriggerReceivedAt: ev.TriggerReceivedAt,
		IngestedAt:        ts.ingested,
		DecidedAt:         ts.decided,
		ActedAt:           ts.acted,
		CompletedAt:       ts.completed,
		ProcessedAt:       time.Now().UTC(),
		ElapsedMs:         time.Since(ts.ingested).Milliseconds(),
	}
	if err := s.attempts.Record(ctx, a); err != nil {
		logger.C(ctx).Warn().Err(err).Str("key", key).Msg("attempt_sink_error")
	}
}
