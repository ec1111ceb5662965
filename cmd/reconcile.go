package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/trestlehq/bidlevel/internal/model"
	"github.com/trestlehq/bidlevel/internal/reconcile"
)

var (
	reconcileMode     string
	reconcileForce    bool
	reconcileSelected []string
	reconcileAll      bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <job-id> [bid-id]",
	Short: "Reconcile a bid against the takeoff or sibling bids",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		jobID := args[0]
		mode := model.ComparisonMode(reconcileMode)
		if !mode.Valid() {
			return eris.Errorf("invalid mode %q (use %q or %q)", reconcileMode, model.ModeTakeoff, model.ModeBids)
		}

		takeoff, err := e.Store.TakeoffItems(ctx, jobID)
		if err != nil {
			return err
		}
		bids, err := e.Store.Bids(ctx, jobID)
		if err != nil {
			return err
		}

		if reconcileAll {
			return reconcileAllBids(ctx, e, mode, takeoff, bids)
		}

		if len(args) < 2 {
			return eris.New("bid-id is required unless --all is set")
		}
		subject := findBid(bids, args[1])
		if subject == nil {
			return eris.Errorf("bid %s not found on job %s", args[1], jobID)
		}

		var selected []string
		if cmd.Flags().Changed("selected") {
			selected = reconcileSelected
		}

		result, err := e.Engine.Reconcile(ctx, reconcile.Request{
			Bid:          *subject,
			TakeoffItems: takeoff,
			Bids:         bids,
			SelectedIDs:  selected,
			Mode:         mode,
			ForceRefresh: reconcileForce,
		})
		if err != nil {
			return err
		}

		printResult(subject, result)
		return nil
	},
}

// reconcileAllBids reconciles every bid on the job concurrently.
func reconcileAllBids(ctx context.Context, e *env, mode model.ComparisonMode, takeoff []model.TakeoffItem, bids []model.Bid) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	results := make([]*model.ReconcileResult, len(bids))
	for i, b := range bids {
		g.Go(func() error {
			r, err := e.Engine.Reconcile(ctx, reconcile.Request{
				Bid:          b,
				TakeoffItems: takeoff,
				Bids:         bids,
				Mode:         mode,
				ForceRefresh: reconcileForce,
			})
			if err != nil {
				if eris.Is(err, reconcile.ErrUnknownTrade) {
					return nil // nothing to compare for this bid
				}
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	for i, r := range results {
		if r == nil {
			p.Printf("%-12s  (trade unknown, skipped)\n", bids[i].ID)
			continue
		}
		p.Printf("%-12s  %-14s  matched %3d%%  %2d discrepancies  bid $%.2f\n",
			bids[i].ID, bids[i].Subcontractor, r.Summary.MatchPercentage,
			r.Summary.DiscrepancyCount, r.Summary.BidTotal)
	}
	return nil
}

// printResult renders one reconciliation for the terminal.
func printResult(bid *model.Bid, r *model.ReconcileResult) {
	p := message.NewPrinter(language.English)

	source := "computed"
	if r.Cached {
		source = "cached, use --force-refresh to recompute"
	}
	p.Printf("Reconciliation for bid %s (%s), %s mode (%s)\n", r.BidID, bid.Subcontractor, r.Mode, source)
	if r.Advisory != "" {
		p.Printf("  note: %s\n", r.Advisory)
	}
	p.Printf("  takeoff total: $%.2f\n", r.Summary.TakeoffTotal)
	p.Printf("  bid total:     $%.2f\n", r.Summary.BidTotal)
	p.Printf("  matched:       %d of %d (%d%%)\n", r.Summary.MatchedCount, r.Summary.SelectedCount, r.Summary.MatchPercentage)
	p.Printf("  discrepancies: %d\n", r.Summary.DiscrepancyCount)

	if len(r.Discrepancies) > 0 {
		p.Printf("\n")
		for _, d := range r.Discrepancies {
			switch d.Kind {
			case model.DiscrepancyMissing:
				p.Printf("  MISSING   %s: no counterpart in bid\n", d.SourceID)
			default:
				p.Printf("  %-9s %s: off by %.2f (%.1f%%)\n", strings.ToUpper(string(d.Kind)), d.SourceID, d.Difference, d.PercentDiff)
			}
		}
	}
}

func findBid(bids []model.Bid, id string) *model.Bid {
	for i := range bids {
		if bids[i].ID == id {
			return &bids[i]
		}
	}
	return nil
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileMode, "mode", string(model.ModeTakeoff), "comparison mode: takeoff or bids")
	reconcileCmd.Flags().BoolVar(&reconcileForce, "force-refresh", false, "recompute even if a cached result exists")
	reconcileCmd.Flags().StringSliceVar(&reconcileSelected, "selected", nil, "takeoff item ids to include (default: all comparable)")
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "reconcile every bid on the job")
	rootCmd.AddCommand(reconcileCmd)
}
