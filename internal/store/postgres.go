package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/trestlehq/bidlevel/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS takeoff_items (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	quantity    DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit        TEXT NOT NULL DEFAULT '',
	unit_cost   DOUBLE PRECISION,
	trade       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bids (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL,
	subcontractor  TEXT NOT NULL DEFAULT '',
	bid_amount     DOUBLE PRECISION,
	sub_trade      TEXT NOT NULL DEFAULT '',
	contact_trade  TEXT NOT NULL DEFAULT '',
	package_trade  TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	decline_reason TEXT NOT NULL DEFAULT '',
	accepted_at    TIMESTAMPTZ,
	declined_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS bid_line_items (
	id          TEXT PRIMARY KEY,
	bid_id      TEXT NOT NULL REFERENCES bids(id),
	item_number INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	quantity    DOUBLE PRECISION,
	unit        TEXT NOT NULL DEFAULT '',
	unit_price  DOUBLE PRECISION,
	amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
	notes       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recon_cache (
	cache_key   TEXT PRIMARY KEY,
	entry       JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_takeoff_items_job_id ON takeoff_items(job_id);
CREATE INDEX IF NOT EXISTS idx_bids_job_id ON bids(job_id);
CREATE INDEX IF NOT EXISTS idx_bid_line_items_bid_id ON bid_line_items(bid_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) TakeoffItems(ctx context.Context, jobID string) ([]model.TakeoffItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, category, description, quantity, unit, unit_cost, trade
		FROM takeoff_items WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query takeoff items")
	}
	defer rows.Close()

	var items []model.TakeoffItem
	for rows.Next() {
		var it model.TakeoffItem
		if err := rows.Scan(&it.ID, &it.JobID, &it.Category, &it.Description, &it.Quantity, &it.Unit, &it.UnitCost, &it.Trade); err != nil {
			return nil, eris.Wrap(err, "postgres: scan takeoff item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) PutTakeoffItems(ctx context.Context, jobID string, items []model.TakeoffItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin put takeoff items")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM takeoff_items WHERE job_id = $1`, jobID); err != nil {
		return eris.Wrap(err, "postgres: clear takeoff items")
	}
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO takeoff_items (id, job_id, category, description, quantity, unit, unit_cost, trade)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, jobID, it.Category, it.Description, it.Quantity, it.Unit, it.UnitCost, it.Trade,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert takeoff item %s", it.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit takeoff items")
}

func (s *PostgresStore) Bids(ctx context.Context, jobID string) ([]model.Bid, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, subcontractor, bid_amount, sub_trade, contact_trade, package_trade,
		       status, decline_reason, accepted_at, declined_at
		FROM bids WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query bids")
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		var status string
		if err := rows.Scan(&b.ID, &b.JobID, &b.Subcontractor, &b.BidAmount,
			&b.SubcontractorTrade, &b.ContactTrade, &b.PackageTrade,
			&status, &b.DeclineReason, &b.AcceptedAt, &b.DeclinedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bid")
		}
		b.Status = model.BidStatus(status)
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate bids")
	}
	rows.Close()

	for i := range bids {
		lineItems, err := s.lineItems(ctx, bids[i].ID)
		if err != nil {
			return nil, err
		}
		bids[i].LineItems = lineItems
	}
	return bids, nil
}

func (s *PostgresStore) GetBid(ctx context.Context, bidID string) (*model.Bid, error) {
	var b model.Bid
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, job_id, subcontractor, bid_amount, sub_trade, contact_trade, package_trade,
		       status, decline_reason, accepted_at, declined_at
		FROM bids WHERE id = $1`, bidID).
		Scan(&b.ID, &b.JobID, &b.Subcontractor, &b.BidAmount,
			&b.SubcontractorTrade, &b.ContactTrade, &b.PackageTrade,
			&status, &b.DeclineReason, &b.AcceptedAt, &b.DeclinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: bid %s not found", bidID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query bid")
	}
	b.Status = model.BidStatus(status)

	b.LineItems, err = s.lineItems(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) PutBid(ctx context.Context, bid *model.Bid) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin put bid")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO bids (id, job_id, subcontractor, bid_amount, sub_trade, contact_trade, package_trade,
		                  status, decline_reason, accepted_at, declined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			subcontractor = EXCLUDED.subcontractor,
			bid_amount = EXCLUDED.bid_amount,
			sub_trade = EXCLUDED.sub_trade,
			contact_trade = EXCLUDED.contact_trade,
			package_trade = EXCLUDED.package_trade,
			status = EXCLUDED.status,
			decline_reason = EXCLUDED.decline_reason,
			accepted_at = EXCLUDED.accepted_at,
			declined_at = EXCLUDED.declined_at`,
		bid.ID, bid.JobID, bid.Subcontractor, bid.BidAmount,
		bid.SubcontractorTrade, bid.ContactTrade, bid.PackageTrade,
		string(bid.Status), bid.DeclineReason, bid.AcceptedAt, bid.DeclinedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: upsert bid %s", bid.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bid_line_items WHERE bid_id = $1`, bid.ID); err != nil {
		return eris.Wrap(err, "postgres: clear bid line items")
	}
	for _, li := range bid.LineItems {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bid_line_items (id, bid_id, item_number, description, category, quantity, unit, unit_price, amount, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			li.ID, bid.ID, li.ItemNumber, li.Description, li.Category,
			li.Quantity, li.Unit, li.UnitPrice, li.Amount, li.Notes,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert line item %s", li.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit bid")
}

func (s *PostgresStore) UpdateBidStatus(ctx context.Context, bid *model.Bid) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bids SET status = $1, decline_reason = $2, accepted_at = $3, declined_at = $4
		WHERE id = $5`,
		string(bid.Status), bid.DeclineReason, bid.AcceptedAt, bid.DeclinedAt, bid.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update bid status %s", bid.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: bid %s not found", bid.ID)
	}
	return nil
}

func (s *PostgresStore) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT entry FROM recon_cache WHERE cache_key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query cache entry")
	}
	var entry model.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, eris.Wrap(err, "postgres: decode cache entry")
	}
	return &entry, nil
}

func (s *PostgresStore) PutCacheEntry(ctx context.Context, key string, entry *model.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "postgres: encode cache entry")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO recon_cache (cache_key, entry, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET entry = EXCLUDED.entry, computed_at = EXCLUDED.computed_at`,
		key, raw, entry.ComputedAt,
	)
	return eris.Wrap(err, "postgres: put cache entry")
}

func (s *PostgresStore) lineItems(ctx context.Context, bidID string) ([]model.BidLineItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, bid_id, item_number, description, category, quantity, unit, unit_price, amount, notes
		FROM bid_line_items WHERE bid_id = $1 ORDER BY item_number, id`, bidID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query line items")
	}
	defer rows.Close()

	var items []model.BidLineItem
	for rows.Next() {
		var li model.BidLineItem
		if err := rows.Scan(&li.ID, &li.BidID, &li.ItemNumber, &li.Description, &li.Category,
			&li.Quantity, &li.Unit, &li.UnitPrice, &li.Amount, &li.Notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan line item")
		}
		items = append(items, li)
	}
	return items, rows.Err()
}
