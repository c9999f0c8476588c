package model

import (
	"time"

	"github.com/lib/pq"
)

// Campaign status values. Terminal states are completed, failed, cancelled.
const (
	StatusDraft      = "draft"
	StatusScheduled  = "scheduled"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusPaused     = "paused"
)

// Schedule types accepted by the resolver.
const (
	ScheduleImmediate = "immediate"
	ScheduleScheduled = "scheduled"
	ScheduleRecurring = "recurring"
	ScheduleSmart     = "smart"
)

type Campaign struct {
	ID         int    `db:"id" json:"id"`
	UserID     int    `db:"user_id" json:"user_id"`
	InstanceID string `db:"instance_id" json:"instance_id"`
	Name       string `db:"name" json:"name"`

	// Message is the primary template body. Templates carries the full
	// selection (up to three, Message included first) for multi-template runs.
	Message   string         `db:"message" json:"message"`
	Templates pq.StringArray `db:"templates" json:"templates,omitempty"`
	MediaRef  string         `db:"media_ref" json:"media_ref,omitempty"`
	LinkURL   string         `db:"link_url" json:"link_url,omitempty"`
	Buttons   string         `db:"buttons" json:"buttons,omitempty"` // JSON array of {label,url}

	Status          string `db:"status" json:"status"`
	TotalRecipients int    `db:"total_recipients" json:"total_recipients"`
	SentCount       int    `db:"sent_count" json:"sent_count"`
	FailedCount     int    `db:"failed_count" json:"failed_count"`

	MinDelay int `db:"min_delay" json:"min_delay"`
	MaxDelay int `db:"max_delay" json:"max_delay"`

	ScheduleType      string     `db:"schedule_type" json:"schedule_type"`
	ScheduledAt       *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Timezone          string     `db:"timezone" json:"timezone"`
	RecurrencePattern *string    `db:"recurrence_pattern" json:"recurrence_pattern,omitempty"` // JSON, nil when one-shot
	ThrottleEnabled   bool       `db:"throttle_enabled" json:"throttle_enabled"`
	ThrottleRate      int        `db:"throttle_rate" json:"throttle_rate"`
	ThrottleDelay     int        `db:"throttle_delay" json:"throttle_delay"`
	SmartTiming       bool       `db:"smart_timing" json:"smart_timing"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Terminal reports whether the campaign can no longer be dispatched.
func (c *Campaign) Terminal() bool {
	switch c.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TemplateBodies returns the bodies to fan out over, always at least Message.
func (c *Campaign) TemplateBodies() []string {
	if len(c.Templates) > 0 {
		return c.Templates
	}
	return []string{c.Message}
}
