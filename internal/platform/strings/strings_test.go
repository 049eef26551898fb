package strings

import (
	"testing"

	kit "mailroom/internal/platform/testkit"
)

func TestIfEmpty(t *testing.T) {
	t.Parallel()

	def := []string{"GET"}
	if got := IfEmpty(nil, def); len(got) != 1 || got[0] != "GET" {
		t.Fatalf("nil slice: %v", got)
	}
	if got := IfEmpty([]string{"PUT"}, def); len(got) != 1 || got[0] != "PUT" {
		t.Fatalf("non-empty slice: %v", got)
	}
}

func TestMustPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"/ingest", "/ingest"},
		{"ingest", "/ingest"},
		{" /ops/ ", "/ops"},
		{"//ops", "/ops"},
	}
	for _, c := range cases {
		if got := MustPrefix(c.in); got != c.want {
			t.Errorf("MustPrefix(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	kit.MustPanic(t, func() { MustPrefix("  ") })
	kit.MustPanic(t, func() { MustPrefix("/") })
}

func TestSQLNull(t *testing.T) {
	t.Parallel()

	if got := SQLNull("  "); got != nil {
		t.Fatalf("blank should be nil, got %v", got)
	}
	if got := SQLNull("boom"); got != "boom" {
		t.Fatalf("non-blank should pass through, got %v", got)
	}
}
