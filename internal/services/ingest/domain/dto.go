package domain

import "time"

// GmailIngestRequest is the webhook envelope posted by the gmail trigger.
// The transport validates shape only; ordering and identity rules live in the service
type GmailIngestRequest struct {
	Mailbox     string `json:"mailbox"      validate:"required,min=3,max=320"`
	TriggerType string `json:"trigger_type" validate:"required,oneof=push_notification polling"`
	MessageID   string `json:"message_id,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
	HistoryID   string `json:"history_id,omitempty"  validate:"omitempty,max=20"`

	TriggerReceivedAt time.Time  `json:"trigger_received_at" validate:"required"`
	EventObservedAt   *time.Time `json:"event_observed_at,omitempty"`

	TraceID    string         `json:"trace_id" validate:"required,max=128"`
	RawTrigger map[string]any `json:"raw_trigger,omitempty"`
}

// IngestResponse is returned for every accepted envelope, duplicates included
type IngestResponse struct {
	Key       string    `json:"key"`
	Status    string    `json:"status"` // processed | duplicate | late_noop | shadow_noop
	Duplicate bool      `json:"duplicate"`
	Event     *Event    `json:"event,omitempty"`
	Decision  *Decision `json:"decision,omitempty"`

	CursorReason  CursorReason  `json:"cursor_reason"`
	CursorAdvance bool          `json:"cursor_advanced"`
	Action        *ActionResult `json:"action,omitempty"`
}

// StatusResponse is the read-only record view for operators
type StatusResponse struct {
	Key            string     `json:"key"`
	Status         Status     `json:"status"`
	LeaseOwner     string     `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	AttemptCount   int        `json:"attempt_count"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
