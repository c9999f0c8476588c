package model

import "time"

// CampaignItem status values written by the dispatch core. The read model
// additionally allows delivered/read from provider webhooks.
const (
	ItemPending   = "pending"
	ItemSent      = "sent"
	ItemFailed    = "failed"
	ItemDelivered = "delivered"
	ItemRead      = "read"
)

// CampaignItem is one (campaign, recipient) send unit. The set of items for a
// campaign is fixed at creation time; items are never added or removed during
// a run.
type CampaignItem struct {
	ID           int       `db:"id" json:"id"`
	CampaignID   int       `db:"campaign_id" json:"campaign_id"`
	Recipient    string    `db:"recipient" json:"recipient"`
	DisplayName  string    `db:"display_name" json:"display_name,omitempty"`
	Status       string    `db:"status" json:"status"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
