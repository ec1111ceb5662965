package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/model"
	"github.com/trestlehq/bidlevel/internal/trade"
	"github.com/trestlehq/bidlevel/pkg/matchai"
)

// AdvisoryHeuristicOnly is surfaced on results computed without the AI
// matcher. A non-fatal degradation, never a hard failure.
const AdvisoryHeuristicOnly = "AI analysis unavailable, showing basic matching"

// defaultAITimeout bounds one matching service call. Generous: the service
// is slow, and on expiry the whole batch falls back to heuristic matching.
const defaultAITimeout = 45 * time.Second

// ErrUnknownTrade is returned when a subject bid's trade cannot be derived;
// no comparison is possible for such a bid.
var ErrUnknownTrade = eris.New("reconcile: bid trade is unknown, no comparison possible")

// Engine runs reconciliations: candidate selection, matching (AI with
// per-item heuristic fallback), discrepancy detection, aggregation, and
// caching. One Engine is safe for concurrent use.
type Engine struct {
	cache     *Cache
	matcher   matchai.Client // nil disables AI matching entirely
	policy    *Policy
	aiTimeout time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMatcher sets the AI matching client.
func WithMatcher(c matchai.Client) EngineOption {
	return func(e *Engine) { e.matcher = c }
}

// WithPolicy sets the variance threshold policy.
func WithPolicy(p *Policy) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithAITimeout overrides the matching service call timeout.
func WithAITimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.aiTimeout = d
		}
	}
}

// NewEngine creates an engine around a cache. Without WithMatcher the engine
// is heuristic-only and every result carries the degradation advisory.
func NewEngine(cache *Cache, opts ...EngineOption) *Engine {
	e := &Engine{
		cache:     cache,
		policy:    DefaultPolicy(),
		aiTimeout: defaultAITimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes one reconciliation invocation. The caller supplies full
// job snapshots; the engine filters them down to comparable candidates.
// SelectedIDs is the takeoff subset the user has checked on (takeoff mode
// only); nil selects every comparable item.
type Request struct {
	Bid          model.Bid
	TakeoffItems []model.TakeoffItem
	Bids         []model.Bid
	SelectedIDs  []string
	Mode         model.ComparisonMode
	ForceRefresh bool
}

// Reconcile runs or serves one reconciliation. Cached results are returned
// unless ForceRefresh is set; concurrent computations for the same key are
// coalesced.
func (e *Engine) Reconcile(ctx context.Context, req Request) (*model.ReconcileResult, error) {
	if !req.Mode.Valid() {
		return nil, eris.Errorf("reconcile: invalid comparison mode %q", req.Mode)
	}
	if trade.Derive(req.Bid) == trade.Unknown {
		return nil, ErrUnknownTrade
	}

	var (
		key     Key
		compute func(ctx context.Context) (model.CacheEntry, error)
	)

	switch req.Mode {
	case model.ModeTakeoff:
		comparable := FilterTakeoffItems(req.TakeoffItems, req.Bid)
		selected := applySelection(comparable, req.SelectedIDs)
		key = NewKey(req.Bid.ID, req.Bid.JobID, req.Mode, takeoffIDs(selected))
		compute = func(ctx context.Context) (model.CacheEntry, error) {
			return e.computeTakeoff(ctx, req.Bid, selected), nil
		}

	case model.ModeBids:
		siblings := FilterSiblingBids(req.Bids, req.Bid)
		key = NewKey(req.Bid.ID, req.Bid.JobID, req.Mode, bidIDs(siblings))
		compute = func(ctx context.Context) (model.CacheEntry, error) {
			return e.computeBids(ctx, req.Bid, siblings), nil
		}
	}

	entry, cached, err := e.cache.Resolve(ctx, key, req.ForceRefresh, compute)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("reconcile: result ready",
		zap.String("bid_id", req.Bid.ID),
		zap.String("mode", string(req.Mode)),
		zap.Bool("cached", cached),
		zap.Int("matches", len(entry.Matches)),
		zap.Int("discrepancies", len(entry.Discrepancies)),
	)

	return &model.ReconcileResult{
		BidID:      req.Bid.ID,
		JobID:      req.Bid.JobID,
		Mode:       req.Mode,
		Cached:     cached,
		CacheEntry: entry,
	}, nil
}

// computeTakeoff matches selected takeoff items against the bid's line items.
func (e *Engine) computeTakeoff(ctx context.Context, bid model.Bid, selected []model.TakeoffItem) model.CacheEntry {
	subjects := make([]matchai.Item, 0, len(selected))
	for _, it := range selected {
		subjects = append(subjects, matchai.Item{
			ID:          it.ID,
			Description: it.Description,
			Category:    it.TradeCategory(),
			Quantity:    ptr(it.Quantity),
			Unit:        it.Unit,
			UnitCost:    it.UnitCost,
		})
	}
	candidates := make([]matchai.Item, 0, len(bid.LineItems))
	for _, li := range bid.LineItems {
		candidates = append(candidates, lineItemToMatchItem(li))
	}

	matches, advisory := e.match(ctx, subjects, candidates, matchai.ModeTakeoff, lineItemCandidates(bid.LineItems))

	lines := lineItemsByID(bid.LineItems)
	pairs := make([]Pair, 0, len(matches))
	for i, m := range matches {
		p := Pair{
			SourceID:     m.SourceID,
			Matched:      m.Matched(),
			BaseQuantity: ptr(selected[i].Quantity),
			BaseUnitCost: selected[i].UnitCost,
		}
		if li, ok := lines[m.MatchedID]; ok {
			p.BidQuantity = li.Quantity
			p.BidUnitPrice = li.UnitPrice
		}
		pairs = append(pairs, p)
	}

	discrepancies := DetectDiscrepancies(pairs, e.policy.For(trade.Derive(bid)))
	summary := Summarize(TakeoffTotal(selected), bid.LineItemTotal(), matches, discrepancies)

	return model.CacheEntry{
		Matches:       matches,
		Discrepancies: discrepancies,
		Summary:       summary,
		Advisory:      advisory,
		ComputedAt:    time.Now().UTC(),
	}
}

// computeBids matches the subject bid's line items against every line item
// of its same-trade siblings. The subject side is the variance baseline.
func (e *Engine) computeBids(ctx context.Context, bid model.Bid, siblings []model.Bid) model.CacheEntry {
	subjects := make([]matchai.Item, 0, len(bid.LineItems))
	for _, li := range bid.LineItems {
		subjects = append(subjects, lineItemToMatchItem(li))
	}

	var siblingLines []model.BidLineItem
	for _, s := range siblings {
		siblingLines = append(siblingLines, s.LineItems...)
	}
	candidates := make([]matchai.Item, 0, len(siblingLines))
	for _, li := range siblingLines {
		candidates = append(candidates, lineItemToMatchItem(li))
	}

	matches, advisory := e.match(ctx, subjects, candidates, matchai.ModeBids, lineItemCandidates(siblingLines))

	counterparts := lineItemsByID(siblingLines)
	pairs := make([]Pair, 0, len(matches))
	for i, m := range matches {
		p := Pair{
			SourceID:     m.SourceID,
			Matched:      m.Matched(),
			BaseQuantity: bid.LineItems[i].Quantity,
			BaseUnitCost: bid.LineItems[i].UnitPrice,
		}
		if li, ok := counterparts[m.MatchedID]; ok {
			p.BidQuantity = li.Quantity
			p.BidUnitPrice = li.UnitPrice
		}
		pairs = append(pairs, p)
	}

	discrepancies := DetectDiscrepancies(pairs, e.policy.For(trade.Derive(bid)))
	summary := Summarize(0, bid.LineItemTotal(), matches, discrepancies)

	return model.CacheEntry{
		Matches:       matches,
		Discrepancies: discrepancies,
		Summary:       summary,
		Advisory:      advisory,
		ComputedAt:    time.Now().UTC(),
	}
}

// match produces one MatchResult per subject, in subject order. When the AI
// matcher is configured it is asked first; subjects it does not cover fall
// back to the heuristic individually. A wholesale AI failure or timeout
// degrades the entire batch to heuristic matching and sets the advisory;
// the batch is still a fully valid result.
func (e *Engine) match(ctx context.Context, subjects, candidates []matchai.Item, mode matchai.Mode, heuristicCands []Candidate) ([]model.MatchResult, string) {
	var advisory string
	aiByID := make(map[string]matchai.ItemMatch)

	if e.matcher == nil {
		advisory = AdvisoryHeuristicOnly
	} else if len(subjects) > 0 {
		aiCtx, cancel := context.WithTimeout(ctx, e.aiTimeout)
		aiMatches, err := e.matcher.MatchItems(aiCtx, matchai.MatchRequest{
			SubjectItems:   subjects,
			CandidateItems: candidates,
			Mode:           mode,
		})
		cancel()
		if err != nil {
			advisory = AdvisoryHeuristicOnly
			zap.L().Warn("reconcile: AI matching unavailable, falling back to heuristic",
				zap.String("mode", string(mode)),
				zap.Int("subjects", len(subjects)),
				zap.Error(err),
			)
		}
		for _, m := range aiMatches {
			aiByID[m.SourceID] = m
		}
	}

	results := make([]model.MatchResult, 0, len(subjects))
	for _, s := range subjects {
		if m, ok := aiByID[s.ID]; ok {
			results = append(results, fromItemMatch(m))
			continue
		}
		results = append(results, HeuristicMatch(s.ID, s.Description, heuristicCands))
	}
	return results, advisory
}

// fromItemMatch converts a service pairing to a MatchResult, normalizing the
// match type tag.
func fromItemMatch(m matchai.ItemMatch) model.MatchResult {
	mt := model.MatchType(m.MatchType)
	switch mt {
	case model.MatchTypeExact, model.MatchTypeFuzzy, model.MatchTypeAI:
	default:
		mt = model.MatchTypeAI
	}
	if m.MatchedID == "" {
		mt = model.MatchTypeNone
	}
	return model.MatchResult{
		SourceID:            m.SourceID,
		MatchedID:           m.MatchedID,
		Confidence:          m.Confidence,
		Type:                mt,
		Notes:               m.Notes,
		QuantityVariancePct: m.QuantityVariancePct,
		PriceVariancePct:    m.PriceVariancePct,
	}
}

// applySelection filters comparable items down to the caller's selection.
// A nil selection means everything comparable.
func applySelection(items []model.TakeoffItem, selectedIDs []string) []model.TakeoffItem {
	if selectedIDs == nil {
		return items
	}
	want := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		want[id] = true
	}
	var out []model.TakeoffItem
	for _, it := range items {
		if want[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

func takeoffIDs(items []model.TakeoffItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func bidIDs(bids []model.Bid) []string {
	ids := make([]string, 0, len(bids))
	for _, b := range bids {
		ids = append(ids, b.ID)
	}
	return ids
}

func lineItemsByID(items []model.BidLineItem) map[string]model.BidLineItem {
	out := make(map[string]model.BidLineItem, len(items))
	for _, li := range items {
		out[li.ID] = li
	}
	return out
}

func lineItemToMatchItem(li model.BidLineItem) matchai.Item {
	return matchai.Item{
		ID:          li.ID,
		Description: li.Description,
		Category:    li.Category,
		Quantity:    li.Quantity,
		Unit:        li.Unit,
		UnitCost:    li.UnitPrice,
		Amount:      ptr(li.Amount),
	}
}

func ptr(f float64) *float64 {
	return &f
}
