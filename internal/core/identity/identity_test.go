package identity

import (
	"errors"
	"testing"
)

func TestNormalizeMailbox(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Support@Example.COM", "support@example.com"},
		{"  ops@example.com  ", "ops@example.com"}, // whitespace trimmed
		{"ÅSA@example.com", "åsa@example.com"},     // unicode case folding
	}
	for _, c := range cases {
		got, err := NormalizeMailbox(c.in)
		if err != nil {
			t.Fatalf("NormalizeMailbox(%q) err: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("NormalizeMailbox(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	if _, err := NormalizeMailbox("   "); !errors.Is(err, ErrEmptyMailbox) {
		t.Fatalf("want ErrEmptyMailbox, got %v", err)
	}
}

func TestParseHistoryID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12345", 12345, true},
		{"  987 ", 987, true}, // whitespace tolerated
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12.5", 0, false},
		{"-1", 0, false}, // negative ids are invalid
	}
	for _, c := range cases {
		got, ok := ParseHistoryID(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseHistoryID(%q) = (%d,%v), want (%d,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDeriveMessageIDWins(t *testing.T) {
	t.Parallel()

	// message_id takes precedence even when a valid history_id is present
	k, err := Derive("Support@Example.com", "msg-123", "4567")
	if err != nil {
		t.Fatalf("Derive err: %v", err)
	}
	if k.String() != "gmail:mailbox=support@example.com:message_id=msg-123" {
		t.Fatalf("unexpected key %q", k)
	}
}

func TestDeriveHistoryIDFallback(t *testing.T) {
	t.Parallel()

	k, err := Derive("ops@example.com", "", " 0042 ")
	if err != nil {
		t.Fatalf("Derive err: %v", err)
	}
	// history id is re-serialized in canonical decimal form
	if k.String() != "gmail:mailbox=ops@example.com:history_id=42" {
		t.Fatalf("unexpected key %q", k)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	t.Parallel()

	a, _ := Derive("A@b.co", "m1", "")
	b, _ := Derive("a@B.CO", " m1 ", "99")
	if a != b {
		t.Fatalf("same logical event produced different keys: %q vs %q", a, b)
	}
}

func TestDeriveRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mailbox, messageID, historyID string
		want                          error
	}{
		{"", "m1", "1", ErrEmptyMailbox},
		{"a@b.co", "", "", ErrNoIdentifiers},
		{"a@b.co", "", "not-a-number", ErrNoIdentifiers}, // malformed history id alone is not an identity
		{"a@b.co", "", "-5", ErrNoIdentifiers},
	}
	for _, c := range cases {
		_, err := Derive(c.mailbox, c.messageID, c.historyID)
		if !errors.Is(err, c.want) {
			t.Errorf("Derive(%q,%q,%q) err = %v, want %v", c.mailbox, c.messageID, c.historyID, err, c.want)
		}
	}
}
