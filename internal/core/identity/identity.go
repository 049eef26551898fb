// Package identity derives stable idempotency keys for gmail intake events.
// Derivation is pure: the same envelope always yields the same key
package identity

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/secure/precis"
)

// Key is a stable idempotency key with a frozen wire format.
// Changing the format silently re-opens processing for historical events
type Key string

// String returns the key as a plain string
func (k Key) String() string { return string(k) }

var (
	// ErrEmptyMailbox means the envelope carried no usable mailbox
	ErrEmptyMailbox = errors.New("identity: empty mailbox")

	// ErrNoIdentifiers means neither message id nor a valid history id was present
	ErrNoIdentifiers = errors.New("identity: no message_id or history_id")
)

// NormalizeMailbox lowercases and canonicalizes a mailbox address.
// PRECIS UsernameCaseMapped handles unicode case folding; plain ASCII
// lowercasing is the fallback when the profile rejects the input
func NormalizeMailbox(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyMailbox
	}
	out, err := precis.UsernameCaseMapped.String(s)
	if err != nil {
		return strings.ToLower(s), nil
	}
	return out, nil
}

// ParseHistoryID parses a gmail history id as a non-negative base-10 int64
func ParseHistoryID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Derive builds the idempotency key for an envelope.
// message_id wins when present; otherwise a valid history_id is used.
// Neither present (or only a malformed history id) means the event has no
// stable identity and must be rejected upstream
func Derive(mailbox, messageID, historyID string) (Key, error) {
	mb, err := NormalizeMailbox(mailbox)
	if err != nil {
		return "", err
	}

	if id := strings.TrimSpace(messageID); id != "" {
		return Key("gmail:mailbox=" + mb + ":message_id=" + id), nil
	}

	if hid, ok := ParseHistoryID(historyID); ok {
		return Key("gmail:mailbox=" + mb + ":history_id=" + strconv.FormatInt(hid, 10)), nil
	}

	return "", ErrNoIdentifiers
}
