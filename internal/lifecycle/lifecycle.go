// Package lifecycle implements the bid status state machine: pending,
// accepted, declined. Transitions are externally triggered, any state may
// move to any other, and none of them consult reconciliation state.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/model"
	"github.com/trestlehq/bidlevel/internal/trade"
)

// InputError marks a rejected request: malformed or missing required fields.
// The operation is never partially applied.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

// IsInputError reports whether the error chain contains an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// BidStore is the persistence surface the lifecycle needs: fetch a bid,
// persist its status fields, and list job siblings.
type BidStore interface {
	GetBid(ctx context.Context, bidID string) (*model.Bid, error)
	UpdateBidStatus(ctx context.Context, bid *model.Bid) error
	Bids(ctx context.Context, jobID string) ([]model.Bid, error)
}

// Service mutates bid status through the three lifecycle operations.
type Service struct {
	store BidStore
	now   func() time.Time
}

// New creates a lifecycle service.
func New(store BidStore) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow fixes the clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Accept moves the bid to accepted: sets accepted_at, clears declined_at and
// the decline reason. Nothing prevents two bids in the same trade from both
// being accepted; a second acceptance is logged, not rejected.
func (s *Service) Accept(ctx context.Context, bidID string) (model.BidStatus, error) {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	bid.Status = model.BidStatusAccepted
	bid.AcceptedAt = &now
	bid.DeclinedAt = nil
	bid.DeclineReason = ""

	if err := s.store.UpdateBidStatus(ctx, bid); err != nil {
		return "", err
	}

	s.logMultiAward(ctx, bid)

	zap.L().Info("lifecycle: bid accepted",
		zap.String("bid_id", bid.ID),
		zap.String("job_id", bid.JobID),
	)
	return bid.Status, nil
}

// Decline moves the bid to declined. A non-empty reason is required; an
// empty one is rejected with an InputError and nothing is applied.
func (s *Service) Decline(ctx context.Context, bidID, reason string) (model.BidStatus, error) {
	if strings.TrimSpace(reason) == "" {
		return "", &InputError{Msg: "lifecycle: decline requires a reason"}
	}

	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	bid.Status = model.BidStatusDeclined
	bid.DeclinedAt = &now
	bid.DeclineReason = reason
	bid.AcceptedAt = nil

	if err := s.store.UpdateBidStatus(ctx, bid); err != nil {
		return "", err
	}

	zap.L().Info("lifecycle: bid declined",
		zap.String("bid_id", bid.ID),
		zap.String("job_id", bid.JobID),
		zap.String("reason", reason),
	)
	return bid.Status, nil
}

// SetPending returns the bid to pending, clearing both timestamps and the
// decline reason.
func (s *Service) SetPending(ctx context.Context, bidID string) (model.BidStatus, error) {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return "", err
	}

	bid.Status = model.BidStatusPending
	bid.AcceptedAt = nil
	bid.DeclinedAt = nil
	bid.DeclineReason = ""

	if err := s.store.UpdateBidStatus(ctx, bid); err != nil {
		return "", err
	}

	zap.L().Info("lifecycle: bid reset to pending",
		zap.String("bid_id", bid.ID),
		zap.String("job_id", bid.JobID),
	)
	return bid.Status, nil
}

// logMultiAward notes when a second bid in the same trade holds accepted
// status. Multi-award is allowed; whether it should stay allowed is an open
// product question, so it is observed rather than enforced.
func (s *Service) logMultiAward(ctx context.Context, accepted *model.Bid) {
	siblings, err := s.store.Bids(ctx, accepted.JobID)
	if err != nil {
		return // observability only, never blocks the accept
	}
	t := trade.Derive(*accepted)
	for _, b := range siblings {
		if b.ID == accepted.ID || b.Status != model.BidStatusAccepted {
			continue
		}
		if trade.Derive(b) == t {
			zap.L().Info("lifecycle: multiple accepted bids in trade",
				zap.String("job_id", accepted.JobID),
				zap.String("trade", t),
				zap.String("bid_id", accepted.ID),
				zap.String("other_bid_id", b.ID),
			)
		}
	}
}
