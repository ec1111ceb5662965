package model

import "time"

// BidStatus represents the lifecycle state of a bid.
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusDeclined BidStatus = "declined"
)

// Valid reports whether s is one of the known bid statuses.
func (s BidStatus) Valid() bool {
	switch s {
	case BidStatusPending, BidStatusAccepted, BidStatusDeclined:
		return true
	}
	return false
}

// Bid is a subcontractor's response to a bid package, supplied to the core
// as an already-joined snapshot (bid + line items + trade-derivation fields).
// Status fields are mutated only through the lifecycle service.
type Bid struct {
	ID            string   `json:"id"`
	JobID         string   `json:"job_id"`
	Subcontractor string   `json:"subcontractor,omitempty"`
	BidAmount     *float64 `json:"bid_amount,omitempty"` // authoritative overall total when present

	// Trade derivation inputs, in priority order. See trade.Derive.
	SubcontractorTrade string `json:"subcontractor_trade,omitempty"`
	ContactTrade       string `json:"contact_trade,omitempty"`
	PackageTrade       string `json:"package_trade,omitempty"`

	Status        BidStatus  `json:"status"`
	DeclineReason string     `json:"decline_reason,omitempty"` // set iff declined
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt    *time.Time `json:"declined_at,omitempty"`

	LineItems []BidLineItem `json:"line_items,omitempty"`
}

// BidLineItem is one priced line of a bid. Amount is the authoritative line
// total even when quantity times unit price disagrees; the core never
// recomputes it.
type BidLineItem struct {
	ID          string   `json:"id"`
	BidID       string   `json:"bid_id"`
	ItemNumber  int      `json:"item_number"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      float64  `json:"amount"`
	Notes       string   `json:"notes,omitempty"`
}

// LineItemTotal sums the line item amounts. It is a display figure; BidAmount
// remains authoritative for the overall total when present.
func (b *Bid) LineItemTotal() float64 {
	var total float64
	for _, li := range b.LineItems {
		total += li.Amount
	}
	return total
}
