//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"mailroom/internal/modkit/repokit"
	perr "mailroom/internal/platform/errors"
	"mailroom/internal/platform/store"
	"mailroom/internal/services/ingest/domain"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

const schema = `
CREATE TABLE IF NOT EXISTS idempotency_records (
    key              TEXT PRIMARY KEY,
    status           TEXT NOT NULL CHECK (status IN ('claimed', 'completed', 'failed')),
    lease_owner      TEXT NOT NULL DEFAULT '',
    lease_expires_at TIMESTAMPTZ,
    attempt_count    INTEGER NOT NULL DEFAULT 0,
    last_error       TEXT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS mailbox_cursors (
    mailbox         TEXT PRIMARY KEY,
    last_history_id BIGINT NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// poolQueryer adapts a raw pgxpool to the repo queryer seam for tests
type poolQueryer struct{ p *pgxpool.Pool }

func (q poolQueryer) Exec(ctx context.Context, sql string, args ...any) (store.CommandTag, error) {
	tag, err := q.p.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return cmdTag{tag.String(), tag.RowsAffected()}, nil
}

func (q poolQueryer) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return nil, fmt.Errorf("not used")
}

func (q poolQueryer) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	return q.p.QueryRow(ctx, sql, args...)
}

type cmdTag struct {
	s string
	n int64
}

func (t cmdTag) String() string      { return t.s }
func (t cmdTag) RowsAffected() int64 { return t.n }

func setup(t *testing.T) (IdempotencyRepo, CursorRepo, func()) {
	t.Helper()

	dsn, stop := startPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		stop()
		cancel()
		t.Fatalf("pool: %v", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		stop()
		cancel()
		t.Fatalf("schema: %v", err)
	}

	q := poolQueryer{p: pool}
	recs := repokit.MustBind(NewPG(), q)
	curs := repokit.MustBind(NewCursorPG(), q)
	return recs, curs, func() {
		pool.Close()
		stop()
		cancel()
	}
}

func TestClaimRaceSingleWinner(t *testing.T) {
	recs, _, done := setup(t)
	defer done()
	ctx := context.Background()

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := recs.Claim(ctx, "k-race", fmt.Sprintf("w%d", n), time.Minute)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if out.Acquired {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
	rec, err := recs.Get(ctx, "k-race")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.StatusClaimed || rec.AttemptCount != 1 {
		t.Fatalf("record: %#v", rec)
	}
}

func TestLeaseLifecycle(t *testing.T) {
	recs, _, done := setup(t)
	defer done()
	ctx := context.Background()

	// live lease blocks other workers
	if out, _ := recs.Claim(ctx, "k-lease", "w1", time.Minute); !out.Acquired {
		t.Fatal("first claim should win")
	}
	out, err := recs.Claim(ctx, "k-lease", "w2", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if out.Acquired || out.Owner != "w1" {
		t.Fatalf("live lease not respected: %#v", out)
	}

	// same owner may refresh its own lease
	if out, _ := recs.Claim(ctx, "k-lease", "w1", time.Minute); !out.Acquired {
		t.Fatal("owner refresh should win")
	}

	// expired lease is taken over and the attempt count grows
	if out, _ := recs.Claim(ctx, "k-exp", "w1", time.Second); !out.Acquired {
		t.Fatal("claim k-exp")
	}
	time.Sleep(1500 * time.Millisecond)
	out, err = recs.Claim(ctx, "k-exp", "w2", time.Minute)
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if !out.Acquired {
		t.Fatalf("expired lease not taken over: %#v", out)
	}
	rec, _ := recs.Get(ctx, "k-exp")
	if rec.LeaseOwner != "w2" || rec.AttemptCount != 2 {
		t.Fatalf("takeover record: %#v", rec)
	}
}

func TestCompleteAndFailOwnerGuards(t *testing.T) {
	recs, _, done := setup(t)
	defer done()
	ctx := context.Background()

	if out, _ := recs.Claim(ctx, "k-own", "w1", time.Minute); !out.Acquired {
		t.Fatal("claim")
	}

	// a non-owner cannot finish the work
	if err := recs.Complete(ctx, "k-own", "intruder"); !IsStaleLease(err) {
		t.Fatalf("want stale lease, got %v", err)
	}
	if err := recs.Fail(ctx, "k-own", "intruder", "x"); !IsStaleLease(err) {
		t.Fatalf("want stale lease, got %v", err)
	}

	if err := recs.Complete(ctx, "k-own", "w1"); err != nil {
		t.Fatalf("owner complete: %v", err)
	}
	rec, _ := recs.Get(ctx, "k-own")
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %q", rec.Status)
	}

	// completed records are terminal for claims
	out, err := recs.Claim(ctx, "k-own", "w2", time.Minute)
	if err != nil {
		t.Fatalf("claim after complete: %v", err)
	}
	if out.Acquired || out.Status != domain.StatusCompleted {
		t.Fatalf("completed record reclaimed: %#v", out)
	}

	// failed records may be retried
	if out, _ := recs.Claim(ctx, "k-fail", "w1", time.Minute); !out.Acquired {
		t.Fatal("claim k-fail")
	}
	if err := recs.Fail(ctx, "k-fail", "w1", "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	out, err = recs.Claim(ctx, "k-fail", "w2", time.Minute)
	if err != nil || !out.Acquired {
		t.Fatalf("retry claim: %v %#v", err, out)
	}
	rec, _ = recs.Get(ctx, "k-fail")
	if rec.LastError != "" {
		t.Fatalf("last_error not cleared on reclaim: %q", rec.LastError)
	}
}

func TestGetMissing(t *testing.T) {
	recs, _, done := setup(t)
	defer done()

	_, err := recs.Get(context.Background(), "nope")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestCursorMonotonic(t *testing.T) {
	_, curs, done := setup(t)
	defer done()
	ctx := context.Background()

	// no cursor yet
	v, err := curs.Get(ctx, "a@b.co")
	if err != nil || v != nil {
		t.Fatalf("fresh cursor: %v %v", v, err)
	}

	adv, err := curs.Advance(ctx, "a@b.co", 100)
	if err != nil || !adv {
		t.Fatalf("first advance: %v %v", adv, err)
	}

	// equal and lower ids never move it
	if adv, _ := curs.Advance(ctx, "a@b.co", 100); adv {
		t.Fatal("equal id advanced the cursor")
	}
	if adv, _ := curs.Advance(ctx, "a@b.co", 42); adv {
		t.Fatal("lower id advanced the cursor")
	}
	if v, _ := curs.Get(ctx, "a@b.co"); v == nil || *v != 100 {
		t.Fatalf("cursor = %v", v)
	}

	// strictly greater moves it
	if adv, _ := curs.Advance(ctx, "a@b.co", 101); !adv {
		t.Fatal("greater id did not advance")
	}
	if v, _ := curs.Get(ctx, "a@b.co"); *v != 101 {
		t.Fatalf("cursor = %d", *v)
	}
}
