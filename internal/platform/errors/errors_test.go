package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeUnauthorized, http.StatusUnauthorized},
		{ErrorCodeForbidden, http.StatusForbidden},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodePanic, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{ErrorCode(999), http.StatusInternalServerError}, // default branch
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestWrapAndCodeOf(t *testing.T) {
	cause := stderrs.New("boom")
	err := Wrapf(cause, ErrorCodeUnavailable, "claim %s", "k1")

	if CodeOf(err) != ErrorCodeUnavailable {
		t.Fatalf("CodeOf = %v", CodeOf(err))
	}
	if !IsCode(err, ErrorCodeUnavailable) {
		t.Fatal("IsCode miss")
	}
	if !stderrs.Is(err, cause) {
		t.Fatal("wrapped cause lost")
	}
	if Root(err) != cause {
		t.Fatalf("Root = %v", Root(err))
	}
	if err.Error() != "claim k1: boom" {
		t.Fatalf("Error() = %q", err.Error())
	}

	// plain errors default to Unknown
	if CodeOf(cause) != ErrorCodeUnknown {
		t.Fatalf("plain CodeOf = %v", CodeOf(cause))
	}
}

func TestWithOpAndField(t *testing.T) {
	base := Conflictf("lease lost")

	tagged := WithOp(base, "stale_lease")
	if OpOf(tagged) != "stale_lease" {
		t.Fatalf("OpOf = %q", OpOf(tagged))
	}
	// copy-on-write leaves the original untouched
	if OpOf(base) != "" {
		t.Fatalf("base mutated: %q", OpOf(base))
	}

	withField := WithField(Validationf("bad input"), "mailbox")
	e, ok := As(withField)
	if !ok || e.Field() != "mailbox" {
		t.Fatalf("field: %v %v", ok, e)
	}

	// non-project errors pass through unchanged
	plain := stderrs.New("x")
	if WithOp(plain, "op") != plain {
		t.Fatal("WithOp wrapped a foreign error")
	}
}

func TestWireFrom(t *testing.T) {
	if w := WireFrom(nil); w.Code != ErrorCodeUnknown || w.Message != "" {
		t.Fatalf("nil wire: %#v", w)
	}

	w := WireFrom(WithField(Validationf("mailbox is required"), "mailbox"))
	if w.Code != ErrorCodeValidation || w.Field != "mailbox" || w.Message == "" {
		t.Fatalf("wire: %#v", w)
	}

	// foreign errors degrade to Unknown with their message
	w = WireFrom(fmt.Errorf("plain"))
	if w.Code != ErrorCodeUnknown || w.Message != "plain" {
		t.Fatalf("foreign wire: %#v", w)
	}
}

func TestWrapIf(t *testing.T) {
	if WrapIf(nil, ErrorCodeDB, "x") != nil {
		t.Fatal("WrapIf(nil) should be nil")
	}
	err := WrapIf(stderrs.New("y"), ErrorCodeDB, "ctx")
	if CodeOf(err) != ErrorCodeDB {
		t.Fatalf("CodeOf = %v", CodeOf(err))
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Unavailablef("try later")) {
		t.Fatal("Unavailable should be retryable")
	}
	if Retryable(Validationf("bad")) {
		t.Fatal("Validation should not be retryable")
	}
	if Retryable(nil) {
		t.Fatal("nil should not be retryable")
	}
}

func TestHTTP(t *testing.T) {
	status, w := HTTP(nil)
	if status != http.StatusOK || w.Message != "" {
		t.Fatalf("HTTP(nil) = %d %#v", status, w)
	}
	status, w = HTTP(NotFoundf("record %s", "k1"))
	if status != http.StatusNotFound || w.Code != ErrorCodeNotFound {
		t.Fatalf("HTTP = %d %#v", status, w)
	}
}
