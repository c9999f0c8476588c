package repository

import (
	"database/sql"
	"fmt"
)

// CreditRepositoryInterface is the pre-flight sufficiency check the dispatch
// core needs. Full credit accounting lives outside this service.
type CreditRepositoryInterface interface {
	Available(userID int) (int, error)
	Deduct(userID, amount int) error
}

type CreditRepository struct {
	DB *sql.DB
}

func (r *CreditRepository) Available(userID int) (int, error) {
	var credits int
	err := r.DB.QueryRow(`SELECT credits FROM users WHERE id=$1`, userID).Scan(&credits)
	if err != nil {
		return 0, fmt.Errorf("read credits for user %d: %w", userID, err)
	}
	return credits, nil
}

// Deduct consumes credits up front. The charge is not refunded when a later
// template run is skipped by a cancellation.
func (r *CreditRepository) Deduct(userID, amount int) error {
	res, err := r.DB.Exec(`UPDATE users SET credits = credits - $1 WHERE id=$2 AND credits >= $1`, amount, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d has fewer than %d credits", userID, amount)
	}
	return nil
}

var _ CreditRepositoryInterface = (*CreditRepository)(nil)
