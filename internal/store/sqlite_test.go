package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trestlehq/bidlevel/internal/model"
)

func f(v float64) *float64 { return &v }

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_TakeoffItemsRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	items := []model.TakeoffItem{
		{ID: "t1", JobID: "job-1", Category: "Concrete", Description: "footings", Quantity: 100, Unit: "CY", UnitCost: f(48.5), Trade: "Concrete"},
		{ID: "t2", JobID: "job-1", Category: "Concrete", Description: "slab", Quantity: 200},
	}
	require.NoError(t, s.PutTakeoffItems(ctx, "job-1", items))

	got, err := s.TakeoffItems(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "footings", got[0].Description)
	require.NotNil(t, got[0].UnitCost)
	assert.Equal(t, 48.5, *got[0].UnitCost)
	assert.Nil(t, got[1].UnitCost)

	// A second put replaces the job's snapshot wholesale.
	require.NoError(t, s.PutTakeoffItems(ctx, "job-1", items[:1]))
	got, err = s.TakeoffItems(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Other jobs stay invisible.
	got, err = s.TakeoffItems(ctx, "job-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_BidRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	bid := &model.Bid{
		ID: "bid-1", JobID: "job-1", Subcontractor: "Acme", BidAmount: f(7000),
		SubcontractorTrade: "Concrete", Status: model.BidStatusPending,
		LineItems: []model.BidLineItem{
			{ID: "li-2", BidID: "bid-1", ItemNumber: 2, Description: "slab", Quantity: f(200), UnitPrice: f(10), Amount: 2000},
			{ID: "li-1", BidID: "bid-1", ItemNumber: 1, Description: "footings", Amount: 5000, Notes: "includes rebar"},
		},
	}
	require.NoError(t, s.PutBid(ctx, bid))

	got, err := s.GetBid(ctx, "bid-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Subcontractor)
	require.NotNil(t, got.BidAmount)
	assert.Equal(t, 7000.0, *got.BidAmount)

	// Line items come back in item-number order.
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "li-1", got.LineItems[0].ID)
	assert.Nil(t, got.LineItems[0].Quantity)
	assert.Equal(t, "includes rebar", got.LineItems[0].Notes)
	require.NotNil(t, got.LineItems[1].UnitPrice)
	assert.Equal(t, 10.0, *got.LineItems[1].UnitPrice)
}

func TestSQLite_PutBidReplacesLineItems(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	bid := &model.Bid{
		ID: "bid-1", JobID: "job-1", Status: model.BidStatusPending,
		LineItems: []model.BidLineItem{{ID: "li-1", BidID: "bid-1", Description: "old", Amount: 1}},
	}
	require.NoError(t, s.PutBid(ctx, bid))

	bid.LineItems = []model.BidLineItem{{ID: "li-2", BidID: "bid-1", Description: "new", Amount: 2}}
	require.NoError(t, s.PutBid(ctx, bid))

	got, err := s.GetBid(ctx, "bid-1")
	require.NoError(t, err)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "li-2", got.LineItems[0].ID)
}

func TestSQLite_GetBidNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetBid(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLite_UpdateBidStatus(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	bid := &model.Bid{ID: "bid-1", JobID: "job-1", Status: model.BidStatusPending}
	require.NoError(t, s.PutBid(ctx, bid))

	now := time.Now().UTC().Truncate(time.Second)
	bid.Status = model.BidStatusDeclined
	bid.DeclinedAt = &now
	bid.DeclineReason = "too high"
	require.NoError(t, s.UpdateBidStatus(ctx, bid))

	got, err := s.GetBid(ctx, "bid-1")
	require.NoError(t, err)
	assert.Equal(t, model.BidStatusDeclined, got.Status)
	assert.Equal(t, "too high", got.DeclineReason)
	require.NotNil(t, got.DeclinedAt)
	assert.WithinDuration(t, now, *got.DeclinedAt, time.Second)
	assert.Nil(t, got.AcceptedAt)
}

func TestSQLite_UpdateBidStatusMissingBid(t *testing.T) {
	s := newTestSQLite(t)
	err := s.UpdateBidStatus(context.Background(), &model.Bid{ID: "ghost", Status: model.BidStatusAccepted})
	assert.Error(t, err)
}

func TestSQLite_BidsListsJob(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutBid(ctx, &model.Bid{ID: "bid-1", JobID: "job-1", Status: model.BidStatusPending,
		LineItems: []model.BidLineItem{{ID: "li-1", BidID: "bid-1", Description: "x", Amount: 10}}}))
	require.NoError(t, s.PutBid(ctx, &model.Bid{ID: "bid-2", JobID: "job-1", Status: model.BidStatusPending}))
	require.NoError(t, s.PutBid(ctx, &model.Bid{ID: "bid-3", JobID: "job-2", Status: model.BidStatusPending}))

	bids, err := s.Bids(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Len(t, bids[0].LineItems, 1)
	assert.Empty(t, bids[1].LineItems)
}

func TestSQLite_CacheEntryRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// Miss returns nil, nil.
	got, err := s.GetCacheEntry(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := &model.CacheEntry{
		Matches:    []model.MatchResult{{SourceID: "t1", MatchedID: "li-1", Confidence: 60, Type: model.MatchTypeFuzzy}},
		Summary:    model.Summary{SelectedCount: 1, MatchedCount: 1, MatchPercentage: 100},
		Advisory:   "AI analysis unavailable, showing basic matching",
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.PutCacheEntry(ctx, "k1", entry))

	got, err = s.GetCacheEntry(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Matches, got.Matches)
	assert.Equal(t, entry.Summary, got.Summary)
	assert.Equal(t, entry.Advisory, got.Advisory)

	// Overwrite wins.
	entry.Advisory = ""
	entry.Summary.MatchPercentage = 50
	require.NoError(t, s.PutCacheEntry(ctx, "k1", entry))
	got, err = s.GetCacheEntry(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Summary.MatchPercentage)
	assert.Empty(t, got.Advisory)
}
