package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brightsend/wablast-backend/internal/config"
	"github.com/brightsend/wablast-backend/internal/controller"
	"github.com/brightsend/wablast-backend/internal/logging"
	"github.com/brightsend/wablast-backend/internal/model"
	"github.com/brightsend/wablast-backend/internal/queue"
	"github.com/brightsend/wablast-backend/internal/repository"
	"github.com/brightsend/wablast-backend/internal/service"
)

// --- Mock Repositories ---

type mockCampaignRepo struct {
	campaigns []*model.Campaign
	status    string
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	c.ID = len(m.campaigns) + 1
	m.campaigns = append(m.campaigns, c)
	return nil
}

func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errNotFound(id)
}

func (m *mockCampaignRepo) GetStatus(id int) (string, error) {
	return m.status, nil
}

func (m *mockCampaignRepo) ListCampaigns(offset, limit, userID int, status string) ([]*model.Campaign, int, error) {
	var filtered []*model.Campaign
	for _, c := range m.campaigns {
		if c.UserID != userID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		filtered = append(filtered, c)
	}
	total := len(filtered)
	start, end := offset, offset+limit
	if start > total {
		return []*model.Campaign{}, total, nil
	}
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func (m *mockCampaignRepo) UpdateStatus(id int, status string) error {
	m.status = status
	return nil
}

func (m *mockCampaignRepo) UpdateStatusFrom(id int, from []string, to string) (bool, error) {
	for _, f := range from {
		if f == m.status {
			m.status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCampaignRepo) UpdateSchedule(id int, at time.Time, status string) error { return nil }
func (m *mockCampaignRepo) IncrementCounters(id, sent, failed int) error            { return nil }
func (m *mockCampaignRepo) ResetCounters(id int) error                              { return nil }
func (m *mockCampaignRepo) ClaimDue(now time.Time, limit int) ([]int, error)        { return nil, nil }

type mockItemRepo struct{}

func (m *mockItemRepo) BulkCreate(campaignID int, recipients []repository.RecipientInput) (int, error) {
	return len(recipients), nil
}
func (m *mockItemRepo) ListByCampaign(campaignID int, status string) ([]model.CampaignItem, error) {
	return []model.CampaignItem{}, nil
}
func (m *mockItemRepo) ListPending(campaignID int) ([]model.CampaignItem, error) {
	return []model.CampaignItem{}, nil
}
func (m *mockItemRepo) UpdateStatus(itemID int, status, errorMessage string) error { return nil }
func (m *mockItemRepo) ResetToPending(campaignID int) error                        { return nil }
func (m *mockItemRepo) CountByStatus(campaignID int) (map[string]int, error) {
	return map[string]int{"pending": 2, "sent": 0, "failed": 0}, nil
}

type mockContactRepo struct{}

func (m *mockContactRepo) GetByID(id int) (*model.Contact, error) {
	return &model.Contact{
		ID:      id,
		Phone:   "5511999990001",
		Name:    "Alice Smith",
		Company: "Acme",
		Country: "BR",
	}, nil
}

func (m *mockContactRepo) ListByIDs(userID int, ids []int) ([]model.Contact, error) {
	contacts := make([]model.Contact, 0, len(ids))
	for _, id := range ids {
		contacts = append(contacts, model.Contact{
			ID:    id,
			Phone: "551199999" + strconv.Itoa(1000+id),
			Name:  "Contact " + strconv.Itoa(id),
		})
	}
	return contacts, nil
}

type mockCreditRepo struct {
	available int
}

func (m *mockCreditRepo) Available(userID int) (int, error) { return m.available, nil }
func (m *mockCreditRepo) Deduct(userID, amount int) error {
	m.available -= amount
	return nil
}

type mockQueue struct {
	jobs []queue.Job
}

func (m *mockQueue) Publish(ctx context.Context, job queue.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}
func (m *mockQueue) Consume(ctx context.Context, handler func(context.Context, queue.Job) error) error {
	return nil
}

func errNotFound(id int) error {
	return &notFoundErr{id}
}

type notFoundErr struct{ id int }

func (e *notFoundErr) Error() string { return "campaign " + strconv.Itoa(e.id) + " not found" }

// --- Helpers ---

func newRouter(campaigns *mockCampaignRepo, credits *mockCreditRepo) (*chi.Mux, *mockQueue) {
	q := &mockQueue{}
	svc := &service.CampaignService{
		Campaigns: campaigns,
		Items:     &mockItemRepo{},
		Contacts:  &mockContactRepo{},
		Credits:   credits,
		Queue:     q,
		Dispatch:  config.DispatchConfig{DefaultMinDelay: 3, DefaultMaxDelay: 8},
		Log:       logging.NewNop(),
	}
	ctrl := &controller.CampaignController{CampaignService: svc}

	r := chi.NewRouter()
	r.Post("/campaigns", ctrl.CreateCampaign)
	r.Get("/campaigns", ctrl.ListCampaigns)
	r.Get("/campaigns/{id}", ctrl.GetCampaignDetails)
	r.Get("/campaigns/{id}/items", ctrl.ListCampaignItems)
	r.Post("/campaigns/{id}/dispatch", ctrl.DispatchCampaign)
	r.Post("/campaigns/{id}/cancel", ctrl.CancelCampaign)
	r.Post("/campaigns/{id}/pause", ctrl.PauseCampaign)
	r.Post("/campaigns/{id}/resume", ctrl.ResumeCampaign)
	r.Post("/campaigns/{id}/preview", ctrl.PersonalizedPreview)
	return r, q
}

// --- Test Functions ---

func TestCreateCampaignImmediate(t *testing.T) {
	campaigns := &mockCampaignRepo{status: "draft"}
	router, q := newRouter(campaigns, &mockCreditRepo{available: 100})

	body := map[string]interface{}{
		"user_id":       1,
		"instance_id":   "wa-1",
		"name":          "launch",
		"message":       "Hi {name}, we are live!",
		"recipients":    []string{"5511999990001", "5511999990002"},
		"schedule_type": "immediate",
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(q.jobs) != 1 {
		t.Fatalf("expected one dispatch job, got %d", len(q.jobs))
	}

	var created model.Campaign
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.TotalRecipients != 2 {
		t.Errorf("expected 2 total recipients, got %d", created.TotalRecipients)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	router, _ := newRouter(&mockCampaignRepo{}, &mockCreditRepo{available: 100})

	body := map[string]interface{}{
		"user_id":       1,
		"message":       "",
		"recipients":    []string{"5511999990001"},
		"schedule_type": "immediate",
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateCampaignInsufficientCredits(t *testing.T) {
	router, _ := newRouter(&mockCampaignRepo{}, &mockCreditRepo{available: 1})

	body := map[string]interface{}{
		"user_id":       1,
		"message":       "sale starts now",
		"recipients":    []string{"5511999990001", "5511999990002"},
		"schedule_type": "immediate",
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCancelFromTerminalConflicts(t *testing.T) {
	campaigns := &mockCampaignRepo{status: "completed"}
	router, _ := newRouter(campaigns, &mockCreditRepo{})

	req := httptest.NewRequest("POST", "/campaigns/1/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPauseThenResume(t *testing.T) {
	campaigns := &mockCampaignRepo{status: "processing"}
	router, q := newRouter(campaigns, &mockCreditRepo{})

	req := httptest.NewRequest("POST", "/campaigns/7/pause", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if campaigns.status != "paused" {
		t.Fatalf("expected paused, got %s", campaigns.status)
	}

	req = httptest.NewRequest("POST", "/campaigns/7/resume", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if campaigns.status != "processing" {
		t.Fatalf("expected processing, got %s", campaigns.status)
	}
	if len(q.jobs) != 1 || q.jobs[0].CampaignID != 7 {
		t.Fatalf("expected resume to enqueue campaign 7, got %+v", q.jobs)
	}
}

func TestPersonalizedPreviewHandler(t *testing.T) {
	campaigns := &mockCampaignRepo{
		campaigns: []*model.Campaign{{
			ID:      1,
			Message: "Hi {first_name}, new stock at {company}!",
		}},
	}
	router, _ := newRouter(campaigns, &mockCreditRepo{})

	body := map[string]interface{}{"contact_id": 3}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns/1/preview", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	msg, ok := res["rendered_message"].(string)
	if !ok {
		t.Fatalf("rendered_message not found or not a string")
	}
	if !strings.Contains(msg, "Alice") {
		t.Errorf("expected 'Alice' in message, got %q", msg)
	}
}

func TestListCampaignsPagination(t *testing.T) {
	totalCampaigns := 25
	campaigns := &mockCampaignRepo{}
	for i := 1; i <= totalCampaigns; i++ {
		campaigns.campaigns = append(campaigns.campaigns, &model.Campaign{
			ID:     i,
			UserID: 1,
			Name:   "Campaign " + strconv.Itoa(i),
			Status: "draft",
		})
	}
	router, _ := newRouter(campaigns, &mockCreditRepo{})

	pageSize := 10
	seen := map[int]bool{}
	totalPages := (totalCampaigns + pageSize - 1) / pageSize

	for page := 1; page <= totalPages; page++ {
		req := httptest.NewRequest(
			"GET",
			"/campaigns?page="+strconv.Itoa(page)+
				"&page_size="+strconv.Itoa(pageSize)+
				"&user_id=1&status=draft",
			nil,
		)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var res struct {
			Data       []model.Campaign `json:"data"`
			Pagination struct {
				Page       int `json:"page"`
				PageSize   int `json:"page_size"`
				TotalCount int `json:"total_count"`
			} `json:"pagination"`
		}
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if res.Pagination.Page != page {
			t.Errorf("expected page %d, got %d", page, res.Pagination.Page)
		}
		if res.Pagination.TotalCount != totalCampaigns {
			t.Errorf("expected total count %d, got %d", totalCampaigns, res.Pagination.TotalCount)
		}

		for _, c := range res.Data {
			if seen[c.ID] {
				t.Errorf("duplicate campaign ID %d across pages", c.ID)
			}
			seen[c.ID] = true
			if c.Status != "draft" {
				t.Errorf("expected status draft, got %s", c.Status)
			}
		}
	}

	if len(seen) != totalCampaigns {
		t.Errorf("expected %d unique campaigns, got %d", totalCampaigns, len(seen))
	}
}
