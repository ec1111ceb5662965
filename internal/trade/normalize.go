// Package trade provides trade-category normalization and derivation used by
// every reconciliation comparison.
package trade

import (
	"strings"

	"github.com/trestlehq/bidlevel/internal/model"
)

// Unknown is the sentinel returned when no trade can be derived for a bid.
// Callers must treat it as "no comparison possible", never as a wildcard.
const Unknown = "unknown"

// NormalizeCategory standardizes a trade category for equality checks:
// trimmed, ASCII lower-cased. Both sides of every comparison must pass
// through this to avoid asymmetric matching.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeText standardizes free-text descriptions for comparison. Same
// folding as NormalizeCategory; kept separate so the two uses can diverge
// without touching category equality.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Derive returns the normalized trade category for a bid, preferring the
// explicit subcontractor trade, then the requester-contact trade, then the
// bid-package trade. Returns Unknown when none is present.
func Derive(b model.Bid) string {
	for _, c := range []string{b.SubcontractorTrade, b.ContactTrade, b.PackageTrade} {
		if n := NormalizeCategory(c); n != "" {
			return n
		}
	}
	return Unknown
}
