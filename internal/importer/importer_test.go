package importer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadTakeoff(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Category", "Description", "Quantity", "Unit", "Unit Cost", "Trade"},
		{"Concrete", "Footings", "100", "CY", "$48.50", "Concrete"},
		{"Concrete", "Slab on grade", "1,200", "SF", "", ""},
		{"", "", "", "", "", ""}, // blank row skipped
	})

	items, err := ReadTakeoff(path, "job-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "job-1", items[0].JobID)
	assert.Equal(t, "Footings", items[0].Description)
	assert.Equal(t, 100.0, items[0].Quantity)
	require.NotNil(t, items[0].UnitCost)
	assert.Equal(t, 48.5, *items[0].UnitCost)
	assert.Equal(t, "Concrete", items[0].Trade)
	assert.NotEmpty(t, items[0].ID)

	assert.Equal(t, 1200.0, items[1].Quantity)
	assert.Nil(t, items[1].UnitCost)
}

func TestReadTakeoff_SkipsRowsWithoutDescription(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Category", "Description", "Quantity", "Unit", "Unit Cost", "Trade"},
		{"Concrete", "", "100", "", "", ""},
		{"Concrete", "Footings", "100", "", "", ""},
	})

	items, err := ReadTakeoff(path, "job-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Footings", items[0].Description)
}

func TestReadTakeoff_MalformedNumberFailsImport(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Category", "Description", "Quantity", "Unit", "Unit Cost", "Trade"},
		{"Concrete", "Footings", "lots", "", "", ""},
	})

	_, err := ReadTakeoff(path, "job-1")
	assert.Error(t, err)
}

func TestReadTakeoff_MissingFile(t *testing.T) {
	_, err := ReadTakeoff(filepath.Join(t.TempDir(), "nope.xlsx"), "job-1")
	assert.Error(t, err)
}

func TestReadBidTab(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Item #", "Description", "Category", "Quantity", "Unit", "Unit Price", "Amount", "Notes"},
		{"1", "Footings", "Concrete", "100", "CY", "$50.00", "$5,000.00", "includes rebar"},
		{"", "Slab on grade", "Concrete", "", "", "", "2000", ""},
	})

	amount := 7000.0
	bid, err := ReadBidTab(path, BidInfo{
		JobID:         "job-1",
		Subcontractor: "Acme Concrete",
		Trade:         "Concrete",
		BidAmount:     &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", bid.JobID)
	assert.Equal(t, "Acme Concrete", bid.Subcontractor)
	assert.Equal(t, "Concrete", bid.SubcontractorTrade)
	assert.Equal(t, model.BidStatusPending, bid.Status)
	require.NotNil(t, bid.BidAmount)
	assert.Equal(t, 7000.0, *bid.BidAmount)

	require.Len(t, bid.LineItems, 2)
	li := bid.LineItems[0]
	assert.Equal(t, 1, li.ItemNumber)
	assert.Equal(t, bid.ID, li.BidID)
	require.NotNil(t, li.UnitPrice)
	assert.Equal(t, 50.0, *li.UnitPrice)
	assert.Equal(t, 5000.0, li.Amount)
	assert.Equal(t, "includes rebar", li.Notes)

	// Missing item number falls back to position.
	assert.Equal(t, 2, bid.LineItems[1].ItemNumber)
	assert.Nil(t, bid.LineItems[1].Quantity)
}

func TestReadBidTab_AmountRequired(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Item #", "Description", "Category", "Quantity", "Unit", "Unit Price", "Amount", "Notes"},
		{"1", "Footings", "", "", "", "", "", ""},
	})

	_, err := ReadBidTab(path, BidInfo{JobID: "job-1"})
	assert.Error(t, err)
}

func TestReadBidTab_NegativeAmountRejected(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Item #", "Description", "Category", "Quantity", "Unit", "Unit Price", "Amount", "Notes"},
		{"1", "Credit line", "", "", "", "", "-500", ""},
	})

	_, err := ReadBidTab(path, BidInfo{JobID: "job-1"})
	assert.Error(t, err)
}

func TestReadBidTab_NoLineItems(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Item #", "Description", "Category", "Quantity", "Unit", "Unit Price", "Amount", "Notes"},
	})

	_, err := ReadBidTab(path, BidInfo{JobID: "job-1"})
	assert.Error(t, err)
}

func TestParseFloat(t *testing.T) {
	got, err := parseFloat("$1,234.56")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1234.56, *got)

	got, err = parseFloat("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseFloat("n/a")
	assert.Error(t, err)
}
