package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trestlehq/bidlevel/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS takeoff_items").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TakeoffItems(t *testing.T) {
	s, mock := newMockStore(t)

	cost := 48.5
	mock.ExpectQuery("SELECT id, job_id, category, description, quantity, unit, unit_cost, trade").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "job_id", "category", "description", "quantity", "unit", "unit_cost", "trade"}).
			AddRow("t1", "job-1", "Concrete", "footings", 100.0, "CY", &cost, "Concrete").
			AddRow("t2", "job-1", "Concrete", "slab", 200.0, "", (*float64)(nil), ""))

	items, err := s.TakeoffItems(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].UnitCost)
	assert.Equal(t, 48.5, *items[0].UnitCost)
	assert.Nil(t, items[1].UnitCost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutTakeoffItems(t *testing.T) {
	s, mock := newMockStore(t)

	items := []model.TakeoffItem{
		{ID: "t1", JobID: "job-1", Category: "Concrete", Description: "footings", Quantity: 100, Unit: "CY", Trade: "Concrete"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM takeoff_items").
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO takeoff_items").
		WithArgs("t1", "job-1", "Concrete", "footings", 100.0, "CY", (*float64)(nil), "Concrete").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	require.NoError(t, s.PutTakeoffItems(context.Background(), "job-1", items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func bidColumns() []string {
	return []string{"id", "job_id", "subcontractor", "bid_amount", "sub_trade", "contact_trade", "package_trade",
		"status", "decline_reason", "accepted_at", "declined_at"}
}

func lineItemColumns() []string {
	return []string{"id", "bid_id", "item_number", "description", "category", "quantity", "unit", "unit_price", "amount", "notes"}
}

func TestPostgres_GetBid(t *testing.T) {
	s, mock := newMockStore(t)

	amount := 7000.0
	qty := 100.0
	price := 50.0
	mock.ExpectQuery("SELECT id, job_id, subcontractor").
		WithArgs("bid-1").
		WillReturnRows(pgxmock.NewRows(bidColumns()).
			AddRow("bid-1", "job-1", "Acme", &amount, "Concrete", "", "", "pending", "", (*time.Time)(nil), (*time.Time)(nil)))
	mock.ExpectQuery("SELECT id, bid_id, item_number").
		WithArgs("bid-1").
		WillReturnRows(pgxmock.NewRows(lineItemColumns()).
			AddRow("li-1", "bid-1", 1, "footings", "", &qty, "CY", &price, 5000.0, ""))

	bid, err := s.GetBid(context.Background(), "bid-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", bid.Subcontractor)
	assert.Equal(t, model.BidStatusPending, bid.Status)
	require.Len(t, bid.LineItems, 1)
	assert.Equal(t, 5000.0, bid.LineItems[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBidNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, job_id, subcontractor").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(bidColumns()))

	_, err := s.GetBid(context.Background(), "ghost")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateBidStatus(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	bid := &model.Bid{ID: "bid-1", Status: model.BidStatusAccepted, AcceptedAt: &now}

	mock.ExpectExec("UPDATE bids SET status").
		WithArgs("accepted", "", &now, (*time.Time)(nil), "bid-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateBidStatus(context.Background(), bid))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateBidStatusMissingBid(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE bids SET status").
		WithArgs("pending", "", (*time.Time)(nil), (*time.Time)(nil), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBidStatus(context.Background(), &model.Bid{ID: "ghost", Status: model.BidStatusPending})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CacheEntry(t *testing.T) {
	s, mock := newMockStore(t)

	entry := &model.CacheEntry{
		Summary:    model.Summary{SelectedCount: 2, MatchedCount: 1, MatchPercentage: 50},
		ComputedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO recon_cache").
		WithArgs("k1", raw, entry.ComputedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.PutCacheEntry(context.Background(), "k1", entry))

	mock.ExpectQuery("SELECT entry FROM recon_cache").
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"entry"}).AddRow(raw))
	got, err := s.GetCacheEntry(context.Background(), "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 50, got.Summary.MatchPercentage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CacheEntryMiss(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT entry FROM recon_cache").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"entry"}))

	got, err := s.GetCacheEntry(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
