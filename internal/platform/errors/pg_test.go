package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pg(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code}
}

func TestDBErrorCodeMappings(t *testing.T) {
	cases := []struct {
		code string
		want ErrorCode
	}{
		{"23505", ErrorCodeDuplicateKey},    // unique violation
		{"23503", ErrorCodeInvalidArgument}, // fk violation -> invalid input
		{"23502", ErrorCodeValidation},      // not null
		{"23514", ErrorCodeValidation},      // check
		{"22001", ErrorCodeInvalidArgument}, // string truncation
		{"22P02", ErrorCodeInvalidArgument}, // invalid text representation
		{"40001", ErrorCodeDB},              // serialization failure (retryable) mapped to DB
		{"40P01", ErrorCodeDB},              // deadlock
		{"55P03", ErrorCodeDB},              // lock not available
		{"25006", ErrorCodeUnavailable},     // read-only
		{"57P03", ErrorCodeUnavailable},     // cannot connect now
		{"XXXXX", ErrorCodeDB},              // default branch
	}
	for _, c := range cases {
		got, ok := DBErrorCode(pg(c.code))
		if !ok {
			t.Fatalf("expected ok for PgError code %s", c.code)
		}
		if got != c.want {
			t.Fatalf("DBErrorCode(%s) = %v, want %v", c.code, got, c.want)
		}
	}

	// Non-pg error path
	if _, ok := DBErrorCode(stderrs.New("nope")); ok {
		t.Fatalf("DBErrorCode should return ok=false for non-pg error")
	}
}

func TestFromPostgresVariants(t *testing.T) {
	// nil passthrough
	if FromPostgres(nil, "x") != nil {
		t.Fatalf("FromPostgres(nil) should be nil")
	}
	if FromPostgresf(nil, "x %d", 1) != nil {
		t.Fatalf("FromPostgresf(nil) should be nil")
	}

	dup := FromPostgresf(pg("23505"), "claim %s", "k1")
	if CodeOf(dup) != ErrorCodeDuplicateKey {
		t.Fatalf("CodeOf = %v", CodeOf(dup))
	}
	if !IsDuplicateKey(dup) {
		t.Fatal("IsDuplicateKey miss through the wrap")
	}

	// non-pg errors become generic DB errors
	generic := FromPostgres(stderrs.New("socket closed"), "query")
	if CodeOf(generic) != ErrorCodeDB {
		t.Fatalf("CodeOf = %v", CodeOf(generic))
	}
}

func TestIsSQLStateHelpers(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", pg("40001"))
	if !IsSerializationFailure(wrapped) {
		t.Fatal("serialization failure not detected through wrap")
	}
	if !IsDeadlock(fmt.Errorf("x: %w", pg("40P01"))) {
		t.Fatal("deadlock not detected")
	}
	if !IsConnectionUnavailable(pg("57P03")) {
		t.Fatal("cannot-connect not detected")
	}
	if IsDuplicateKey(pg("40001")) {
		t.Fatal("wrong SQLSTATE matched")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil retryable")
	}
	// local cancellation is never retried here
	if IsRetryable(context.Canceled) || IsRetryable(context.DeadlineExceeded) {
		t.Fatal("context errors should not be retryable")
	}
	if !IsRetryable(pg("40001")) || !IsRetryable(pg("40P01")) || !IsRetryable(pg("55P03")) {
		t.Fatal("contention SQLSTATEs should be retryable")
	}
	if IsRetryable(pg("23505")) {
		t.Fatal("unique violation should not be retryable")
	}
	// commit text fallback
	if !IsRetryable(stderrs.New("commit unexpectedly resulted in rollback")) {
		t.Fatal("commit rollback text should be retryable")
	}
	if IsRetryable(stderrs.New("permission denied")) {
		t.Fatal("unrelated text should not be retryable")
	}
}
