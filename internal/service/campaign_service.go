// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightsend/wablast-backend/internal/config"
	"github.com/brightsend/wablast-backend/internal/dispatch"
	appErrors "github.com/brightsend/wablast-backend/internal/errors"
	"github.com/brightsend/wablast-backend/internal/model"
	"github.com/brightsend/wablast-backend/internal/queue"
	"github.com/brightsend/wablast-backend/internal/repository"
	"github.com/brightsend/wablast-backend/internal/schedule"
)

type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Items     repository.CampaignItemRepositoryInterface
	Contacts  repository.ContactRepositoryInterface
	Credits   repository.CreditRepositoryInterface
	Queue     queue.Queue
	Dispatch  config.DispatchConfig
	Log       *zap.SugaredLogger

	// Now is a seam for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateCampaignInput is the full campaign form.
type CreateCampaignInput struct {
	UserID     int
	InstanceID string
	Name       string

	Message   string
	Templates []string // optional, up to three; Message alone when empty
	MediaRef  string
	LinkURL   string
	Buttons   string

	ContactIDs []int
	Recipients []string // raw addresses, merged with the contact list

	MinDelay int
	MaxDelay int
	Throttle dispatch.ThrottleConfig

	ScheduleType string
	Date         string
	Time         string
	Timezone     string
	Pattern      *schedule.RecurrencePattern
}

// CampaignDetails is a campaign plus its per-item stats.
type CampaignDetails struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
}

// Create validates the form, resolves the schedule, runs the credit
// pre-flight and persists the campaign with its fixed, deduplicated item set.
// Immediate campaigns are handed straight to the dispatch queue.
func (s *CampaignService) Create(ctx context.Context, input CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, appErrors.ErrNoMessage
	}
	templates := input.Templates
	if len(templates) == 0 {
		templates = []string{input.Message}
	}
	if len(templates) > dispatch.MaxTemplates {
		return nil, appErrors.ErrTooManyTemplates
	}

	recipients, err := s.expandRecipients(input.UserID, input.ContactIDs, input.Recipients)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.ErrNoRecipients
	}

	minDelay, maxDelay := input.MinDelay, input.MaxDelay
	if minDelay == 0 && maxDelay == 0 {
		minDelay, maxDelay = s.Dispatch.DefaultMinDelay, s.Dispatch.DefaultMaxDelay
	}
	throttle := input.Throttle
	if throttle.Preset != "" {
		// naming a preset selects its rate/delay and turns throttling on;
		// custom values clear the preset client-side before submission
		preset, ok := dispatch.Preset(throttle.Preset)
		if !ok {
			return nil, fmt.Errorf("%w %q", dispatch.ErrUnknownPreset, throttle.Preset)
		}
		throttle = preset
	}
	policy := dispatch.DelayPolicy{MinDelay: minDelay, MaxDelay: maxDelay, Throttle: throttle}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	mode, err := schedule.ModeFromString(input.ScheduleType)
	if err != nil {
		return nil, err
	}
	resolved, err := schedule.Resolve(schedule.Request{
		Mode:     mode,
		Date:     input.Date,
		Time:     input.Time,
		Timezone: input.Timezone,
		Pattern:  input.Pattern,
	}, s.now())
	if err != nil {
		return nil, err
	}

	cost := dispatch.CreditCost(len(recipients), len(templates))
	available, err := s.Credits.Available(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("credit pre-flight: %w", err)
	}
	if available < cost {
		return nil, appErrors.NewInsufficientCredits(cost, available)
	}
	if err := s.Credits.Deduct(input.UserID, cost); err != nil {
		return nil, fmt.Errorf("deduct credits: %w", err)
	}

	c := &model.Campaign{
		UserID:          input.UserID,
		InstanceID:      input.InstanceID,
		Name:            input.Name,
		Message:         input.Message,
		Templates:       templates,
		MediaRef:        input.MediaRef,
		LinkURL:         input.LinkURL,
		Buttons:         input.Buttons,
		Status:          model.StatusDraft,
		TotalRecipients: len(recipients) * len(templates),
		MinDelay:        minDelay,
		MaxDelay:        maxDelay,
		ScheduleType:    mode.String(),
		Timezone:        input.Timezone,
		ThrottleEnabled: throttle.Enabled,
		ThrottleRate:    throttle.Rate,
		ThrottleDelay:   throttle.DelaySeconds,
		SmartTiming:     mode == schedule.Smart,
	}
	if mode != schedule.Immediate {
		c.Status = model.StatusScheduled
		runAt := resolved.RunAt
		c.ScheduledAt = &runAt
	}
	if resolved.Recurrence != nil {
		raw := resolved.Recurrence.JSON()
		c.RecurrencePattern = &raw
	}

	if err := s.Campaigns.Create(c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	if _, err := s.Items.BulkCreate(c.ID, recipients); err != nil {
		return nil, fmt.Errorf("create campaign items: %w", err)
	}

	s.Log.Infow("campaign created",
		"campaign_id", c.ID, "user_id", c.UserID, "schedule", c.ScheduleType,
		"recipients", len(recipients), "templates", len(templates), "credits", cost)

	if mode == schedule.Immediate {
		if err := s.Queue.Publish(ctx, queue.Job{CampaignID: c.ID}); err != nil {
			return nil, fmt.Errorf("enqueue dispatch: %w", err)
		}
	}
	return c, nil
}

// expandRecipients merges the selected contact lists with raw addresses and
// deduplicates, keeping the first display name seen per address.
func (s *CampaignService) expandRecipients(userID int, contactIDs []int, raw []string) ([]repository.RecipientInput, error) {
	seen := map[string]bool{}
	var out []repository.RecipientInput

	contacts, err := s.Contacts.ListByIDs(userID, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("expand contacts: %w", err)
	}
	for _, c := range contacts {
		if c.Phone == "" || seen[c.Phone] {
			continue
		}
		seen[c.Phone] = true
		out = append(out, repository.RecipientInput{Recipient: c.Phone, DisplayName: c.Name})
	}
	for _, phone := range raw {
		phone = strings.TrimSpace(phone)
		if phone == "" || seen[phone] {
			continue
		}
		seen[phone] = true
		out = append(out, repository.RecipientInput{Recipient: phone})
	}
	return out, nil
}

// Cancel moves a campaign to cancelled from any non-terminal state. A running
// dispatch observes the new status between sends and stops cooperatively.
func (s *CampaignService) Cancel(id int) error {
	from := []string{model.StatusDraft, model.StatusScheduled, model.StatusProcessing, model.StatusPaused}
	return s.transition(id, from, model.StatusCancelled)
}

// Pause suspends a scheduled or running campaign; remaining items stay
// pending until Resume.
func (s *CampaignService) Pause(id int) error {
	from := []string{model.StatusScheduled, model.StatusProcessing}
	return s.transition(id, from, model.StatusPaused)
}

// Resume re-dispatches the remaining pending items of a paused campaign.
func (s *CampaignService) Resume(ctx context.Context, id int) error {
	if err := s.transition(id, []string{model.StatusPaused}, model.StatusProcessing); err != nil {
		return err
	}
	return s.Queue.Publish(ctx, queue.Job{CampaignID: id})
}

// DispatchNow enqueues a draft or scheduled campaign ahead of its slot.
func (s *CampaignService) DispatchNow(ctx context.Context, id int) error {
	if err := s.transition(id, []string{model.StatusDraft, model.StatusScheduled}, model.StatusProcessing); err != nil {
		return err
	}
	return s.Queue.Publish(ctx, queue.Job{CampaignID: id})
}

func (s *CampaignService) transition(id int, from []string, to string) error {
	ok, err := s.Campaigns.UpdateStatusFrom(id, from, to)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.Campaigns.GetStatus(id)
		if err != nil {
			return err
		}
		return appErrors.NewInvalidTransition(id, current, to)
	}
	s.Log.Infow("campaign transition", "campaign_id", id, "to", to)
	return nil
}

// ListCampaigns fetches a user's campaigns with pagination.
func (s *CampaignService) ListCampaigns(page, pageSize, userID int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Campaigns.ListCampaigns(offset, pageSize, userID, status)
	if err != nil {
		return nil, nil, err
	}
	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// Details returns a campaign with its per-item status counts.
func (s *CampaignService) Details(id int) (*CampaignDetails, error) {
	c, err := s.Campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.Items.CountByStatus(id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

// Items lists a campaign's items, optionally filtered by status. The failed
// subset with its error strings backs the manual-resend flow.
func (s *CampaignService) CampaignItems(id int, status string) ([]model.CampaignItem, error) {
	if _, err := s.Campaigns.GetByID(id); err != nil {
		return nil, err
	}
	return s.Items.ListByCampaign(id, status)
}

// Preview renders the campaign message against one contact's fields.
func (s *CampaignService) Preview(campaignID, contactID int, overrideTemplate *string) (string, error) {
	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return "", err
	}
	contact, err := s.Contacts.GetByID(contactID)
	if err != nil {
		return "", err
	}
	if contact == nil {
		return "", fmt.Errorf("contact %d not found", contactID)
	}

	template := campaign.Message
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", appErrors.ErrNoMessage
	}
	return RenderTemplate(template, FullContactVars(contact)), nil
}

// SuggestSmartTime exposes the smart-mode suggestion to the form.
func (s *CampaignService) SuggestSmartTime(timezone string) (time.Time, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	return schedule.SuggestSmartTime(s.now().In(loc)), nil
}
