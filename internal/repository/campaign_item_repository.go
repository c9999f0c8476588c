package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/brightsend/wablast-backend/internal/model"
)

// RecipientInput is one entry of a recipient list before item creation.
type RecipientInput struct {
	Recipient   string
	DisplayName string
}

type CampaignItemRepositoryInterface interface {
	BulkCreate(campaignID int, recipients []RecipientInput) (int, error)
	ListByCampaign(campaignID int, status string) ([]model.CampaignItem, error)
	ListPending(campaignID int) ([]model.CampaignItem, error)
	UpdateStatus(itemID int, status, errorMessage string) error
	ResetToPending(campaignID int) error
	CountByStatus(campaignID int) (map[string]int, error)
}

type CampaignItemRepository struct {
	DB *sql.DB
}

// BulkCreate inserts the deduplicated recipient set for a campaign. The item
// set is fixed here; nothing adds or removes items during a run. Returns the
// number of distinct items created.
func (r *CampaignItemRepository) BulkCreate(campaignID int, recipients []RecipientInput) (int, error) {
	seen := make(map[string]bool, len(recipients))
	now := time.Now()

	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO campaign_items (campaign_id, recipient, display_name, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (campaign_id, recipient) DO NOTHING
    `)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	created := 0
	for _, rec := range recipients {
		if rec.Recipient == "" || seen[rec.Recipient] {
			continue
		}
		seen[rec.Recipient] = true
		if _, err := stmt.Exec(campaignID, rec.Recipient, rec.DisplayName, model.ItemPending, now); err != nil {
			return 0, fmt.Errorf("insert item for %s: %w", rec.Recipient, err)
		}
		created++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

func (r *CampaignItemRepository) ListByCampaign(campaignID int, status string) ([]model.CampaignItem, error) {
	query := `
        SELECT id, campaign_id, recipient, display_name, status, error_message, created_at, updated_at
        FROM campaign_items WHERE campaign_id=$1
    `
	args := []interface{}{campaignID}
	if status != "" {
		query += " AND status=$2"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.CampaignItem{}
	for rows.Next() {
		var it model.CampaignItem
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.Recipient, &it.DisplayName,
			&it.Status, &it.ErrorMessage, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *CampaignItemRepository) ListPending(campaignID int) ([]model.CampaignItem, error) {
	return r.ListByCampaign(campaignID, model.ItemPending)
}

func (r *CampaignItemRepository) UpdateStatus(itemID int, status, errorMessage string) error {
	query := `UPDATE campaign_items SET status=$1, error_message=$2, updated_at=$3 WHERE id=$4`
	_, err := r.DB.Exec(query, status, errorMessage, time.Now(), itemID)
	return err
}

// ResetToPending re-arms every item for the next recurring run.
func (r *CampaignItemRepository) ResetToPending(campaignID int) error {
	query := `UPDATE campaign_items SET status=$1, error_message='', updated_at=$2 WHERE campaign_id=$3`
	_, err := r.DB.Exec(query, model.ItemPending, time.Now(), campaignID)
	return err
}

func (r *CampaignItemRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_items WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.ItemPending: 0,
		model.ItemSent:    0,
		model.ItemFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ CampaignItemRepositoryInterface = (*CampaignItemRepository)(nil)
