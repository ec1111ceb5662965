package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/trestlehq/bidlevel/internal/lifecycle"
)

var bidsCmd = &cobra.Command{
	Use:   "bids",
	Short: "Manage bid status",
}

var bidsListCmd = &cobra.Command{
	Use:   "list <job-id>",
	Short: "List bids for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		bids, err := e.Store.Bids(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		for _, b := range bids {
			total := b.LineItemTotal()
			if b.BidAmount != nil {
				total = *b.BidAmount
			}
			p.Printf("%-12s  %-20s  %-9s  $%.2f  (%d line items)\n",
				b.ID, b.Subcontractor, b.Status, total, len(b.LineItems))
			if b.Status == "declined" && b.DeclineReason != "" {
				p.Printf("%14s reason: %s\n", "", b.DeclineReason)
			}
		}
		return nil
	},
}

var bidsAcceptCmd = &cobra.Command{
	Use:   "accept <bid-id>",
	Short: "Accept a bid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		status, err := e.Lifecycle.Accept(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("bid %s is now %s\n", args[0], status)
		return nil
	},
}

var declineReason string

var bidsDeclineCmd = &cobra.Command{
	Use:   "decline <bid-id>",
	Short: "Decline a bid (requires --reason)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		status, err := e.Lifecycle.Decline(cmd.Context(), args[0], declineReason)
		if err != nil {
			if lifecycle.IsInputError(err) {
				return eris.Wrap(err, "invalid request")
			}
			return err
		}
		cmd.Printf("bid %s is now %s\n", args[0], status)
		return nil
	},
}

var bidsPendingCmd = &cobra.Command{
	Use:   "pending <bid-id>",
	Short: "Return a bid to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		status, err := e.Lifecycle.SetPending(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("bid %s is now %s\n", args[0], status)
		return nil
	},
}

func init() {
	bidsDeclineCmd.Flags().StringVar(&declineReason, "reason", "", "reason for declining (required)")
	bidsCmd.AddCommand(bidsListCmd, bidsAcceptCmd, bidsDeclineCmd, bidsPendingCmd)
	rootCmd.AddCommand(bidsCmd)
}
