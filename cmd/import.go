package main

import (
	"github.com/spf13/cobra"

	"github.com/trestlehq/bidlevel/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import takeoff sheets and bid tabs from XLSX",
}

var importTakeoffCmd = &cobra.Command{
	Use:   "takeoff <job-id> <file.xlsx>",
	Short: "Import a takeoff sheet for a job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		items, err := importer.ReadTakeoff(args[1], args[0])
		if err != nil {
			return err
		}
		if err := e.Store.PutTakeoffItems(cmd.Context(), args[0], items); err != nil {
			return err
		}
		cmd.Printf("imported %d takeoff items for job %s\n", len(items), args[0])
		return nil
	},
}

var (
	importSub    string
	importTrade  string
	importAmount float64
)

var importBidCmd = &cobra.Command{
	Use:   "bid <job-id> <file.xlsx>",
	Short: "Import a subcontractor bid tab",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		info := importer.BidInfo{
			JobID:         args[0],
			Subcontractor: importSub,
			Trade:         importTrade,
		}
		if cmd.Flags().Changed("amount") {
			info.BidAmount = &importAmount
		}

		bid, err := importer.ReadBidTab(args[1], info)
		if err != nil {
			return err
		}
		if err := e.Store.PutBid(cmd.Context(), bid); err != nil {
			return err
		}
		cmd.Printf("imported bid %s (%d line items) for job %s\n", bid.ID, len(bid.LineItems), args[0])
		return nil
	},
}

func init() {
	importBidCmd.Flags().StringVar(&importSub, "subcontractor", "", "subcontractor name")
	importBidCmd.Flags().StringVar(&importTrade, "trade", "", "subcontractor trade category")
	importBidCmd.Flags().Float64Var(&importAmount, "amount", 0, "overall bid amount (default: sum of line items)")
	importCmd.AddCommand(importTakeoffCmd, importBidCmd)
	rootCmd.AddCommand(importCmd)
}
