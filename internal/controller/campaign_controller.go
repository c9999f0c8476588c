// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brightsend/wablast-backend/internal/dispatch"
	appErrors "github.com/brightsend/wablast-backend/internal/errors"
	"github.com/brightsend/wablast-backend/internal/schedule"
	"github.com/brightsend/wablast-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

// writeError maps domain errors onto HTTP status codes. Anything not
// recognized is a 500.
func writeError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var badTransition *appErrors.ErrInvalidTransition
	var noCredits *appErrors.ErrInsufficientCredits

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &badTransition):
		status = http.StatusConflict
	case errors.As(err, &noCredits):
		status = http.StatusPaymentRequired
	case errors.Is(err, appErrors.ErrNoRecipients),
		errors.Is(err, appErrors.ErrNoMessage),
		errors.Is(err, appErrors.ErrTooManyTemplates),
		errors.Is(err, dispatch.ErrDelayRange),
		errors.Is(err, dispatch.ErrThrottleRate),
		errors.Is(err, dispatch.ErrThrottleDelay),
		errors.Is(err, dispatch.ErrUnknownPreset),
		errors.Is(err, schedule.ErrMissingDate),
		errors.Is(err, schedule.ErrMissingPattern),
		errors.Is(err, schedule.ErrPastSchedule):
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID     int    `json:"user_id"`
		InstanceID string `json:"instance_id"`
		Name       string `json:"name"`

		Message   string   `json:"message"`
		Templates []string `json:"templates"`
		MediaRef  string   `json:"media_ref"`
		LinkURL   string   `json:"link_url"`
		Buttons   string   `json:"buttons"`

		ContactIDs []int    `json:"contact_ids"`
		Recipients []string `json:"recipients"`

		MinDelay int                     `json:"min_delay"`
		MaxDelay int                     `json:"max_delay"`
		Throttle dispatch.ThrottleConfig `json:"throttle"`

		ScheduleType string                      `json:"schedule_type"`
		Date         string                      `json:"date"`
		Time         string                      `json:"time"`
		Timezone     string                      `json:"timezone"`
		Pattern      *schedule.RecurrencePattern `json:"recurrence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Create(r.Context(), service.CreateCampaignInput{
		UserID:       body.UserID,
		InstanceID:   body.InstanceID,
		Name:         body.Name,
		Message:      body.Message,
		Templates:    body.Templates,
		MediaRef:     body.MediaRef,
		LinkURL:      body.LinkURL,
		Buttons:      body.Buttons,
		ContactIDs:   body.ContactIDs,
		Recipients:   body.Recipients,
		MinDelay:     body.MinDelay,
		MaxDelay:     body.MaxDelay,
		Throttle:     body.Throttle,
		ScheduleType: body.ScheduleType,
		Date:         body.Date,
		Time:         body.Time,
		Timezone:     body.Timezone,
		Pattern:      body.Pattern,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, userID, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.Details(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) ListCampaignItems(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	items, err := c.CampaignService.CampaignItems(id, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": items})
}

func (c *CampaignController) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.DispatchNow)
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Resume)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := c.CampaignService.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	c.writeStatus(w, id)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := c.CampaignService.Pause(id); err != nil {
		writeError(w, err)
		return
	}
	c.writeStatus(w, id)
}

func (c *CampaignController) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int) error) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := op(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	c.writeStatus(w, id)
}

func (c *CampaignController) writeStatus(w http.ResponseWriter, id int) {
	status, err := c.CampaignService.Campaigns.GetStatus(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"status":      status,
	})
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ContactID        int     `json:"contact_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.Preview(id, body.ContactID, body.OverrideTemplate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rendered_message": rendered,
		"contact_id":       body.ContactID,
	})
}

func (c *CampaignController) SuggestSmartTime(w http.ResponseWriter, r *http.Request) {
	suggestion, err := c.CampaignService.SuggestSmartTime(r.URL.Query().Get("timezone"))
	if err != nil {
		http.Error(w, "unknown timezone", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggested_at": suggestion,
	})
}
