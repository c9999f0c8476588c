package model

import "time"

// Contact is an addressable recipient belonging to a user's contact book.
// Contact management itself (import, groups) lives outside the dispatch core;
// the service only reads contacts to expand recipient lists.
type Contact struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Phone     string    `db:"phone" json:"phone"`
	Name      string    `db:"name" json:"name"`
	Company   string    `db:"company" json:"company,omitempty"`
	Country   string    `db:"country" json:"country,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
