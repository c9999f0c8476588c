package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/brightsend/wablast-backend/internal/errors"
	"github.com/brightsend/wablast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	GetStatus(id int) (string, error)
	ListCampaigns(offset, limit, userID int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error
	UpdateStatusFrom(campaignID int, from []string, to string) (bool, error)
	UpdateSchedule(campaignID int, scheduledAt time.Time, status string) error
	IncrementCounters(campaignID, sent, failed int) error
	ResetCounters(campaignID int) error
	ClaimDue(now time.Time, limit int) ([]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, instance_id, name, message, templates, media_ref, link_url, buttons,
	status, total_recipients, sent_count, failed_count, min_delay, max_delay,
	schedule_type, scheduled_at, timezone, recurrence_pattern,
	throttle_enabled, throttle_rate, throttle_delay, smart_timing, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	query := `
        INSERT INTO campaigns
            (user_id, instance_id, name, message, templates, media_ref, link_url, buttons,
             status, total_recipients, min_delay, max_delay,
             schedule_type, scheduled_at, timezone, recurrence_pattern,
             throttle_enabled, throttle_rate, throttle_delay, smart_timing, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.UserID, c.InstanceID, c.Name, c.Message, pq.Array([]string(c.Templates)),
		c.MediaRef, c.LinkURL, c.Buttons,
		c.Status, c.TotalRecipients, c.MinDelay, c.MaxDelay,
		c.ScheduleType, c.ScheduledAt, c.Timezone, c.RecurrencePattern,
		c.ThrottleEnabled, c.ThrottleRate, c.ThrottleDelay, c.SmartTiming, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id=$1`, campaignColumns)
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) GetStatus(id int) (string, error) {
	var status string
	err := r.DB.QueryRow(`SELECT status FROM campaigns WHERE id=$1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", appErrors.NewCampaignNotFound(id)
	}
	return status, err
}

func (r *CampaignRepository) ListCampaigns(offset, limit, userID int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE user_id=$1`, campaignColumns)
	args := []interface{}{userID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE user_id=$1`
	countArgs := []interface{}{userID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

// UpdateStatusFrom transitions only when the current status is one of from,
// reporting whether a row changed. This keeps the state machine honest under
// concurrent cancel/dispatch.
func (r *CampaignRepository) UpdateStatusFrom(campaignID int, from []string, to string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3 AND status = ANY($4)`
	res, err := r.DB.Exec(query, to, time.Now(), campaignID, pq.Array(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) UpdateSchedule(campaignID int, scheduledAt time.Time, status string) error {
	query := `UPDATE campaigns SET scheduled_at=$1, status=$2, updated_at=$3 WHERE id=$4`
	_, err := r.DB.Exec(query, scheduledAt, status, time.Now(), campaignID)
	return err
}

// IncrementCounters bumps the durable aggregate counters as a run progresses,
// so a crash mid-run leaves accurate partial totals behind.
func (r *CampaignRepository) IncrementCounters(campaignID, sent, failed int) error {
	query := `UPDATE campaigns
              SET sent_count = sent_count + $1, failed_count = failed_count + $2, updated_at = $3
              WHERE id = $4`
	_, err := r.DB.Exec(query, sent, failed, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) ResetCounters(campaignID int) error {
	query := `UPDATE campaigns SET sent_count=0, failed_count=0, updated_at=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, time.Now(), campaignID)
	return err
}

// ClaimDue atomically moves due scheduled campaigns to processing and returns
// their ids. SKIP LOCKED keeps concurrent scheduler instances from claiming
// the same campaign twice.
func (r *CampaignRepository) ClaimDue(now time.Time, limit int) ([]int, error) {
	query := `
        UPDATE campaigns SET status=$1, updated_at=$2
        WHERE id IN (
            SELECT id FROM campaigns
            WHERE status=$3 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
            ORDER BY scheduled_at
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id
    `
	rows, err := r.DB.Query(query, model.StatusProcessing, now, model.StatusScheduled, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	c := &model.Campaign{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.InstanceID, &c.Name, &c.Message, pq.Array(&c.Templates),
		&c.MediaRef, &c.LinkURL, &c.Buttons,
		&c.Status, &c.TotalRecipients, &c.SentCount, &c.FailedCount,
		&c.MinDelay, &c.MaxDelay,
		&c.ScheduleType, &c.ScheduledAt, &c.Timezone, &c.RecurrencePattern,
		&c.ThrottleEnabled, &c.ThrottleRate, &c.ThrottleDelay, &c.SmartTiming,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
