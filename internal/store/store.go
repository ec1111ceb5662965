// Package store persists job snapshots (takeoff items, bids with line
// items), bid status, and reconciliation cache entries. The reconciliation
// core itself never issues queries; it operates on snapshots fetched here.
package store

import (
	"context"

	"github.com/trestlehq/bidlevel/internal/model"
)

// Store is the persistence interface for the bidding platform core.
type Store interface {
	// Takeoff snapshots (read-only from the core's perspective).
	TakeoffItems(ctx context.Context, jobID string) ([]model.TakeoffItem, error)
	PutTakeoffItems(ctx context.Context, jobID string, items []model.TakeoffItem) error

	// Bids, joined with their line items.
	Bids(ctx context.Context, jobID string) ([]model.Bid, error)
	GetBid(ctx context.Context, bidID string) (*model.Bid, error)
	PutBid(ctx context.Context, bid *model.Bid) error
	UpdateBidStatus(ctx context.Context, bid *model.Bid) error

	// Reconciliation cache entries, keyed by the engine's canonical key.
	GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	PutCacheEntry(ctx context.Context, key string, entry *model.CacheEntry) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
