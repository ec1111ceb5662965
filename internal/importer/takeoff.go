package importer

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/model"
)

// Takeoff sheet column layout:
// Category | Description | Quantity | Unit | Unit Cost | Trade
const (
	takeoffColCategory = iota
	takeoffColDescription
	takeoffColQuantity
	takeoffColUnit
	takeoffColUnitCost
	takeoffColTrade
)

// ReadTakeoff loads a takeoff sheet for a job. The first row is assumed to
// be a header. Rows without a description are skipped; a malformed quantity
// or cost fails the import, nothing is partially returned.
func ReadTakeoff(path, jobID string) ([]model.TakeoffItem, error) {
	rows, err := readSheet(path, 1)
	if err != nil {
		return nil, err
	}

	var items []model.TakeoffItem
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		desc := cell(row, takeoffColDescription)
		if desc == "" {
			zap.L().Warn("importer: skipping takeoff row without description", zap.Int("row", i+2))
			continue
		}

		qty, err := parseFloat(cell(row, takeoffColQuantity))
		if err != nil {
			return nil, eris.Wrapf(err, "importer: takeoff row %d quantity", i+2)
		}
		unitCost, err := parseFloat(cell(row, takeoffColUnitCost))
		if err != nil {
			return nil, eris.Wrapf(err, "importer: takeoff row %d unit cost", i+2)
		}

		item := model.TakeoffItem{
			ID:          uuid.NewString(),
			JobID:       jobID,
			Category:    cell(row, takeoffColCategory),
			Description: desc,
			Unit:        cell(row, takeoffColUnit),
			UnitCost:    unitCost,
			Trade:       cell(row, takeoffColTrade),
		}
		if qty != nil {
			item.Quantity = *qty
		}
		items = append(items, item)
	}

	zap.L().Info("importer: takeoff sheet loaded",
		zap.String("path", path),
		zap.String("job_id", jobID),
		zap.Int("items", len(items)),
	)
	return items, nil
}
