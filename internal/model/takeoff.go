package model

// TakeoffItem is one line of the internal quantity/cost estimate for a job.
// Takeoff items are produced by an external analysis process and are
// immutable from the core's perspective.
type TakeoffItem struct {
	ID          string   `json:"id"`
	JobID       string   `json:"job_id"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	Unit        string   `json:"unit,omitempty"`
	UnitCost    *float64 `json:"unit_cost,omitempty"`
	Trade       string   `json:"trade,omitempty"` // defaults to Category when empty
}

// TradeCategory returns the item's trade, falling back to its category.
func (t TakeoffItem) TradeCategory() string {
	if t.Trade != "" {
		return t.Trade
	}
	return t.Category
}

// ExtendedCost returns quantity times unit cost, treating a missing unit
// cost as zero.
func (t TakeoffItem) ExtendedCost() float64 {
	if t.UnitCost == nil {
		return 0
	}
	return t.Quantity * *t.UnitCost
}
