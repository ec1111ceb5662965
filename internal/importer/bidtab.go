package importer

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/model"
)

// Bid tab column layout:
// Item # | Description | Category | Quantity | Unit | Unit Price | Amount | Notes
const (
	bidColItemNumber = iota
	bidColDescription
	bidColCategory
	bidColQuantity
	bidColUnit
	bidColUnitPrice
	bidColAmount
	bidColNotes
)

// BidInfo carries the bid-level fields the spreadsheet cannot supply.
type BidInfo struct {
	JobID         string
	Subcontractor string
	Trade         string   // stored as the explicit subcontractor trade
	BidAmount     *float64 // nil falls back to the line item total
}

// ReadBidTab loads a subcontractor bid tab into a pending bid with line
// items. The first row is a header. Amount is required on every line: it is
// the authoritative line total and is never recomputed from quantity and
// unit price.
func ReadBidTab(path string, info BidInfo) (*model.Bid, error) {
	rows, err := readSheet(path, 1)
	if err != nil {
		return nil, err
	}

	bid := &model.Bid{
		ID:                 uuid.NewString(),
		JobID:              info.JobID,
		Subcontractor:      info.Subcontractor,
		SubcontractorTrade: info.Trade,
		BidAmount:          info.BidAmount,
		Status:             model.BidStatusPending,
	}

	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		desc := cell(row, bidColDescription)
		if desc == "" {
			zap.L().Warn("importer: skipping bid row without description", zap.Int("row", i+2))
			continue
		}

		amount, err := parseFloat(cell(row, bidColAmount))
		if err != nil {
			return nil, eris.Wrapf(err, "importer: bid row %d amount", i+2)
		}
		if amount == nil {
			return nil, eris.Errorf("importer: bid row %d has no amount", i+2)
		}
		if *amount < 0 {
			return nil, eris.Errorf("importer: bid row %d has negative amount", i+2)
		}

		qty, err := parseFloat(cell(row, bidColQuantity))
		if err != nil {
			return nil, eris.Wrapf(err, "importer: bid row %d quantity", i+2)
		}
		unitPrice, err := parseFloat(cell(row, bidColUnitPrice))
		if err != nil {
			return nil, eris.Wrapf(err, "importer: bid row %d unit price", i+2)
		}

		itemNumber := len(bid.LineItems) + 1
		if n, err := parseFloat(cell(row, bidColItemNumber)); err == nil && n != nil {
			itemNumber = int(*n)
		}

		bid.LineItems = append(bid.LineItems, model.BidLineItem{
			ID:          uuid.NewString(),
			BidID:       bid.ID,
			ItemNumber:  itemNumber,
			Description: desc,
			Category:    cell(row, bidColCategory),
			Quantity:    qty,
			Unit:        cell(row, bidColUnit),
			UnitPrice:   unitPrice,
			Amount:      *amount,
			Notes:       cell(row, bidColNotes),
		})
	}

	if len(bid.LineItems) == 0 {
		return nil, eris.Errorf("importer: %s contains no bid line items", path)
	}

	zap.L().Info("importer: bid tab loaded",
		zap.String("path", path),
		zap.String("job_id", info.JobID),
		zap.String("subcontractor", info.Subcontractor),
		zap.Int("line_items", len(bid.LineItems)),
	)
	return bid, nil
}
