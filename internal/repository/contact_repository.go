package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/brightsend/wablast-backend/internal/model"
)

type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	ListByIDs(userID int, ids []int) ([]model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `SELECT id, user_id, phone, name, company, country, created_at FROM contacts WHERE id=$1`
	var c model.Contact
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.UserID, &c.Phone, &c.Name, &c.Company, &c.Country, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) ListByIDs(userID int, ids []int) ([]model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, user_id, phone, name, company, country, created_at
              FROM contacts WHERE user_id=$1 AND id = ANY($2) ORDER BY id`
	rows, err := r.DB.Query(query, userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Phone, &c.Name, &c.Company, &c.Country, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
