// Package repo provides the ingest persistence surface: the idempotency
// record store and the mailbox cursor store, both on Postgres
package repo

import (
	"context"
	"errors"
	"time"

	"mailroom/internal/modkit/repokit"
	perr "mailroom/internal/platform/errors"
	str "mailroom/internal/platform/strings"
	"mailroom/internal/services/ingest/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo is the claim/complete/fail surface used by the service layer.
// Claim is the only mutating entry point that can create a record; Complete and
// Fail are owner-guarded so a worker that lost its lease cannot finish the work
type IdempotencyRepo interface {
	// Claim attempts first-writer-wins acquisition of key for owner with a lease ttl.
	// The compare-and-set happens in a single statement; losing the race never mutates
	Claim(ctx context.Context, key, owner string, ttl time.Duration) (domain.ClaimOutcome, error)

	// Complete transitions claimed -> completed for the owning worker
	Complete(ctx context.Context, key, owner string) error

	// Fail transitions claimed -> failed for the owning worker, recording the error
	Fail(ctx context.Context, key, owner, lastError string) error

	// Get returns the record for key, or perr.ErrNotFound
	Get(ctx context.Context, key string) (domain.Record, error)
}

// CursorRepo is the mailbox cursor surface
type CursorRepo interface {
	// Get returns the last processed history id for mailbox, nil when no cursor exists
	Get(ctx context.Context, mailbox string) (*int64, error)

	// Advance moves the cursor to historyID iff it is strictly greater than the
	// stored value (max-merge). Reports whether the cursor actually moved
	Advance(ctx context.Context, mailbox string, historyID int64) (bool, error)
}

type (
	queries       struct{ q repokit.Queryer }
	cursorQueries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres idempotency repo
func NewPG() repokit.Binder[IdempotencyRepo] {
	return repokit.BindFunc[IdempotencyRepo](func(q repokit.Queryer) IdempotencyRepo { return &queries{q: q} })
}

// NewCursorPG returns a binder for the Postgres cursor repo
func NewCursorPG() repokit.Binder[CursorRepo] {
	return repokit.BindFunc[CursorRepo](func(q repokit.Queryer) CursorRepo { return &cursorQueries{q: q} })
}

// opStaleLease tags lease-ownership conflicts so callers can tell them apart
// from claim-time contention
const opStaleLease = "stale_lease"

// IsStaleLease reports whether err means the worker no longer owns the lease
func IsStaleLease(err error) bool {
	return perr.IsCode(err, perr.ErrorCodeConflict) && perr.OpOf(err) == opStaleLease
}

// Claim implements the single-statement CAS. The guard admits exactly four
// transitions to claimed: absent row, failed row, expired lease, and the
// current owner refreshing its own live lease. Everything else leaves the
// row untouched and the follow-up read only labels the loss
func (r *queries) Claim(ctx context.Context, key, owner string, ttl time.Duration) (domain.ClaimOutcome, error) {
	const cas = `
		INSERT INTO idempotency_records AS ir (
			key, status, lease_owner, lease_expires_at, attempt_count, created_at, updated_at
		) VALUES (
			$1, 'claimed', $2, now() + make_interval(secs => $3), 1, now(), now()
		)
		ON CONFLICT (key) DO UPDATE
		SET status           = 'claimed',
		    lease_owner      = EXCLUDED.lease_owner,
		    lease_expires_at = EXCLUDED.lease_expires_at,
		    attempt_count    = ir.attempt_count + 1,
		    last_error       = NULL,
		    updated_at       = now()
		WHERE ir.status = 'failed'
		   OR (ir.status = 'claimed' AND ir.lease_expires_at <= now())
		   OR (ir.status = 'claimed' AND ir.lease_owner = EXCLUDED.lease_owner)
		RETURNING lease_owner, lease_expires_at
	`
	var (
		gotOwner string
		until    time.Time
	)
	err := r.q.QueryRow(ctx, cas, key, owner, ttl.Seconds()).Scan(&gotOwner, &until)
	if err == nil {
		return domain.ClaimOutcome{
			Acquired:   true,
			Status:     domain.StatusClaimed,
			Owner:      gotOwner,
			LeaseUntil: &until,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ClaimOutcome{}, perr.FromPostgresf(err, "claim %s", key)
	}

	// CAS lost: read the current row to label the outcome. This read never mutates
	rec, gerr := r.Get(ctx, key)
	if gerr != nil {
		if perr.IsCode(gerr, perr.ErrorCodeNotFound) {
			// row vanished between CAS and read; treat as contention and let the caller retry
			return domain.ClaimOutcome{Acquired: false, Status: domain.StatusClaimed}, nil
		}
		return domain.ClaimOutcome{}, gerr
	}
	return domain.ClaimOutcome{
		Acquired:   false,
		Status:     rec.Status,
		Owner:      rec.LeaseOwner,
		LeaseUntil: rec.LeaseExpiresAt,
	}, nil
}

// Complete implements IdempotencyRepo
func (r *queries) Complete(ctx context.Context, key, owner string) error {
	const sql = `
		UPDATE idempotency_records
		SET status = 'completed', last_error = NULL, updated_at = now()
		WHERE key = $1 AND lease_owner = $2 AND status = 'claimed'
	`
	tag, err := r.q.Exec(ctx, sql, key, owner)
	if err != nil {
		return perr.FromPostgresf(err, "complete %s", key)
	}
	if tag.RowsAffected() == 0 {
		return perr.WithOp(perr.Conflictf("lease for %s no longer held by %s", key, owner), opStaleLease)
	}
	return nil
}

// Fail implements IdempotencyRepo
func (r *queries) Fail(ctx context.Context, key, owner, lastError string) error {
	const sql = `
		UPDATE idempotency_records
		SET status = 'failed', last_error = $3, updated_at = now()
		WHERE key = $1 AND lease_owner = $2 AND status = 'claimed'
	`
	tag, err := r.q.Exec(ctx, sql, key, owner, str.SQLNull(lastError))
	if err != nil {
		return perr.FromPostgresf(err, "fail %s", key)
	}
	if tag.RowsAffected() == 0 {
		return perr.WithOp(perr.Conflictf("lease for %s no longer held by %s", key, owner), opStaleLease)
	}
	return nil
}

// Get implements IdempotencyRepo
func (r *queries) Get(ctx context.Context, key string) (domain.Record, error) {
	const sql = `
		SELECT key, status, lease_owner, lease_expires_at, attempt_count,
		       COALESCE(last_error, ''), created_at, updated_at
		FROM idempotency_records
		WHERE key = $1
	`
	var rec domain.Record
	err := r.q.QueryRow(ctx, sql, key).Scan(
		&rec.Key, &rec.Status, &rec.LeaseOwner, &rec.LeaseExpiresAt,
		&rec.AttemptCount, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, perr.ErrNotFound
		}
		return domain.Record{}, perr.FromPostgresf(err, "get %s", key)
	}
	return rec, nil
}

// Get implements CursorRepo
func (r *cursorQueries) Get(ctx context.Context, mailbox string) (*int64, error) {
	const sql = `SELECT last_history_id FROM mailbox_cursors WHERE mailbox = $1`
	var v int64
	err := r.q.QueryRow(ctx, sql, mailbox).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, perr.FromPostgresf(err, "cursor %s", mailbox)
	}
	return &v, nil
}

// Advance implements CursorRepo with a max-merge upsert; the cursor can only
// move forward no matter how requests interleave
func (r *cursorQueries) Advance(ctx context.Context, mailbox string, historyID int64) (bool, error) {
	const sql = `
		INSERT INTO mailbox_cursors AS mc (mailbox, last_history_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (mailbox) DO UPDATE
		SET last_history_id = GREATEST(mc.last_history_id, EXCLUDED.last_history_id),
		    updated_at      = now()
		WHERE EXCLUDED.last_history_id > mc.last_history_id
		RETURNING last_history_id
	`
	var v int64
	err := r.q.QueryRow(ctx, sql, mailbox, historyID).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, perr.FromPostgresf(err, "advance cursor %s", mailbox)
	}
	return true, nil
}
