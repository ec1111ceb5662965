package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trestlehq/bidlevel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS takeoff_items (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	quantity    REAL NOT NULL DEFAULT 0,
	unit        TEXT NOT NULL DEFAULT '',
	unit_cost   REAL,
	trade       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bids (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL,
	subcontractor  TEXT NOT NULL DEFAULT '',
	bid_amount     REAL,
	sub_trade      TEXT NOT NULL DEFAULT '',
	contact_trade  TEXT NOT NULL DEFAULT '',
	package_trade  TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	decline_reason TEXT NOT NULL DEFAULT '',
	accepted_at    DATETIME,
	declined_at    DATETIME
);

CREATE TABLE IF NOT EXISTS bid_line_items (
	id          TEXT PRIMARY KEY,
	bid_id      TEXT NOT NULL REFERENCES bids(id),
	item_number INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	quantity    REAL,
	unit        TEXT NOT NULL DEFAULT '',
	unit_price  REAL,
	amount      REAL NOT NULL DEFAULT 0,
	notes       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recon_cache (
	cache_key   TEXT PRIMARY KEY,
	entry       TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_takeoff_items_job_id ON takeoff_items(job_id);
CREATE INDEX IF NOT EXISTS idx_bids_job_id ON bids(job_id);
CREATE INDEX IF NOT EXISTS idx_bid_line_items_bid_id ON bid_line_items(bid_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) TakeoffItems(ctx context.Context, jobID string) ([]model.TakeoffItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, category, description, quantity, unit, unit_cost, trade
		FROM takeoff_items WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query takeoff items")
	}
	defer rows.Close()

	var items []model.TakeoffItem
	for rows.Next() {
		var it model.TakeoffItem
		var unitCost sql.NullFloat64
		if err := rows.Scan(&it.ID, &it.JobID, &it.Category, &it.Description, &it.Quantity, &it.Unit, &unitCost, &it.Trade); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan takeoff item")
		}
		if unitCost.Valid {
			it.UnitCost = &unitCost.Float64
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) PutTakeoffItems(ctx context.Context, jobID string, items []model.TakeoffItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin put takeoff items")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM takeoff_items WHERE job_id = ?`, jobID); err != nil {
		return eris.Wrap(err, "sqlite: clear takeoff items")
	}
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO takeoff_items (id, job_id, category, description, quantity, unit, unit_cost, trade)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, jobID, it.Category, it.Description, it.Quantity, it.Unit, nullFloat(it.UnitCost), it.Trade,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert takeoff item %s", it.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit takeoff items")
}

func (s *SQLiteStore) Bids(ctx context.Context, jobID string) ([]model.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, subcontractor, bid_amount, sub_trade, contact_trade, package_trade,
		       status, decline_reason, accepted_at, declined_at
		FROM bids WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query bids")
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate bids")
	}

	for i := range bids {
		lineItems, err := s.lineItems(ctx, bids[i].ID)
		if err != nil {
			return nil, err
		}
		bids[i].LineItems = lineItems
	}
	return bids, nil
}

func (s *SQLiteStore) GetBid(ctx context.Context, bidID string) (*model.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, subcontractor, bid_amount, sub_trade, contact_trade, package_trade,
		       status, decline_reason, accepted_at, declined_at
		FROM bids WHERE id = ?`, bidID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query bid")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "sqlite: query bid")
		}
		return nil, eris.Errorf("sqlite: bid %s not found", bidID)
	}
	b, err := scanBid(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	b.LineItems, err = s.lineItems(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) PutBid(ctx context.Context, bid *model.Bid) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin put bid")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bids (id, job_id, subcontractor, bid_amount, sub_trade, contact_trade, package_trade,
		                  status, decline_reason, accepted_at, declined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			job_id = excluded.job_id,
			subcontractor = excluded.subcontractor,
			bid_amount = excluded.bid_amount,
			sub_trade = excluded.sub_trade,
			contact_trade = excluded.contact_trade,
			package_trade = excluded.package_trade,
			status = excluded.status,
			decline_reason = excluded.decline_reason,
			accepted_at = excluded.accepted_at,
			declined_at = excluded.declined_at`,
		bid.ID, bid.JobID, bid.Subcontractor, nullFloat(bid.BidAmount),
		bid.SubcontractorTrade, bid.ContactTrade, bid.PackageTrade,
		string(bid.Status), bid.DeclineReason, nullTime(bid.AcceptedAt), nullTime(bid.DeclinedAt),
	); err != nil {
		return eris.Wrapf(err, "sqlite: upsert bid %s", bid.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bid_line_items WHERE bid_id = ?`, bid.ID); err != nil {
		return eris.Wrap(err, "sqlite: clear bid line items")
	}
	for _, li := range bid.LineItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bid_line_items (id, bid_id, item_number, description, category, quantity, unit, unit_price, amount, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			li.ID, bid.ID, li.ItemNumber, li.Description, li.Category,
			nullFloat(li.Quantity), li.Unit, nullFloat(li.UnitPrice), li.Amount, li.Notes,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert line item %s", li.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit bid")
}

func (s *SQLiteStore) UpdateBidStatus(ctx context.Context, bid *model.Bid) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bids SET status = ?, decline_reason = ?, accepted_at = ?, declined_at = ?
		WHERE id = ?`,
		string(bid.Status), bid.DeclineReason, nullTime(bid.AcceptedAt), nullTime(bid.DeclinedAt), bid.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update bid status %s", bid.ID)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return eris.Errorf("sqlite: bid %s not found", bid.ID)
	}
	return nil
}

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT entry FROM recon_cache WHERE cache_key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query cache entry")
	}
	var entry model.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode cache entry")
	}
	return &entry, nil
}

func (s *SQLiteStore) PutCacheEntry(ctx context.Context, key string, entry *model.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode cache entry")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recon_cache (cache_key, entry, computed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET entry = excluded.entry, computed_at = excluded.computed_at`,
		key, string(raw), entry.ComputedAt,
	)
	return eris.Wrap(err, "sqlite: put cache entry")
}

// rowScanner covers both *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBid(r rowScanner) (*model.Bid, error) {
	var b model.Bid
	var bidAmount sql.NullFloat64
	var status string
	var acceptedAt, declinedAt sql.NullTime
	if err := r.Scan(&b.ID, &b.JobID, &b.Subcontractor, &bidAmount,
		&b.SubcontractorTrade, &b.ContactTrade, &b.PackageTrade,
		&status, &b.DeclineReason, &acceptedAt, &declinedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan bid")
	}
	b.Status = model.BidStatus(status)
	if bidAmount.Valid {
		b.BidAmount = &bidAmount.Float64
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		b.AcceptedAt = &t
	}
	if declinedAt.Valid {
		t := declinedAt.Time
		b.DeclinedAt = &t
	}
	return &b, nil
}

func (s *SQLiteStore) lineItems(ctx context.Context, bidID string) ([]model.BidLineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bid_id, item_number, description, category, quantity, unit, unit_price, amount, notes
		FROM bid_line_items WHERE bid_id = ? ORDER BY item_number, id`, bidID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query line items")
	}
	defer rows.Close()

	var items []model.BidLineItem
	for rows.Next() {
		var li model.BidLineItem
		var quantity, unitPrice sql.NullFloat64
		if err := rows.Scan(&li.ID, &li.BidID, &li.ItemNumber, &li.Description, &li.Category,
			&quantity, &li.Unit, &unitPrice, &li.Amount, &li.Notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan line item")
		}
		if quantity.Valid {
			li.Quantity = &quantity.Float64
		}
		if unitPrice.Valid {
			li.UnitPrice = &unitPrice.Float64
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
