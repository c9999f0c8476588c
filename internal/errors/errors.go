// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrInvalidTransition is returned when an operation is not legal in the
// campaign's current status.
type ErrInvalidTransition struct {
	CampaignID int
	From       string
	To         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot move from %s to %s", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(id int, from, to string) error {
	return &ErrInvalidTransition{CampaignID: id, From: from, To: to}
}

// ErrInsufficientCredits is returned by the pre-flight credit check.
type ErrInsufficientCredits struct {
	Required  int
	Available int
}

func (e *ErrInsufficientCredits) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

func NewInsufficientCredits(required, available int) error {
	return &ErrInsufficientCredits{Required: required, Available: available}
}

// Validation errors reported before a campaign is created or armed.
var (
	ErrNoRecipients     = errors.New("campaign has no recipients")
	ErrNoMessage        = errors.New("campaign message is empty")
	ErrTooManyTemplates = errors.New("at most three templates per campaign")
)
