package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	appErrors "github.com/brightsend/wablast-backend/internal/errors"
	"github.com/brightsend/wablast-backend/internal/model"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestUpdateStatusFromGuardsTransitions(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.UpdateStatusFrom(1, []string{model.StatusDraft}, model.StatusProcessing)
	if err != nil {
		t.Fatalf("UpdateStatusFrom() error: %v", err)
	}
	if !ok {
		t.Error("expected transition to apply when status matches")
	}

	// no row matched: the campaign was in some other status
	mock.ExpectExec("UPDATE campaigns SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.UpdateStatusFrom(1, []string{model.StatusDraft}, model.StatusProcessing)
	if err != nil {
		t.Fatalf("UpdateStatusFrom() error: %v", err)
	}
	if ok {
		t.Error("expected transition to be rejected when no row matches")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := &CampaignRepository{DB: db}

	mock.ExpectQuery("SELECT status FROM campaigns").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetStatus(99)
	var notFound *appErrors.ErrCampaignNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
	if notFound.CampaignID != 99 {
		t.Errorf("expected id 99 in error, got %d", notFound.CampaignID)
	}
}

func TestClaimDueReturnsClaimedIDs(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := &CampaignRepository{DB: db}

	rows := sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(7)
	mock.ExpectQuery("UPDATE campaigns SET status").
		WillReturnRows(rows)

	ids, err := repo.ClaimDue(time.Now(), 50)
	if err != nil {
		t.Fatalf("ClaimDue() error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Errorf("expected [3 7], got %v", ids)
	}
}

func TestIncrementCounters(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementCounters(1, 1, 0); err != nil {
		t.Fatalf("IncrementCounters() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBulkCreateSkipsDuplicates(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := &CampaignItemRepository{DB: db}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO campaign_items")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	created, err := repo.BulkCreate(1, []RecipientInput{
		{Recipient: "5511999990001", DisplayName: "Alice"},
		{Recipient: "5511999990001"},
		{Recipient: ""},
		{Recipient: "5511999990002"},
	})
	if err != nil {
		t.Fatalf("BulkCreate() error: %v", err)
	}
	if created != 2 {
		t.Errorf("expected 2 created, got %d", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
