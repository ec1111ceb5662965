package reconcile

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/trestlehq/bidlevel/internal/trade"
)

// Policy holds the variance thresholds in effect, with optional per-trade
// overrides. Trades are keyed by normalized category.
type Policy struct {
	Default Thresholds            `yaml:"default"`
	Trades  map[string]Thresholds `yaml:"trades"`
}

// DefaultPolicy returns a policy with stock thresholds and no overrides.
func DefaultPolicy() *Policy {
	return &Policy{Default: DefaultThresholds()}
}

// LoadPolicy reads a threshold policy from a YAML file. Trades missing a
// threshold inherit the default for that check; an absent default inherits
// the stock values.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read policy %s", path)
	}

	var wrapper struct {
		Thresholds Policy `yaml:"thresholds"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse policy")
	}

	p := &wrapper.Thresholds
	stock := DefaultThresholds()
	if p.Default.QuantityPct == 0 {
		p.Default.QuantityPct = stock.QuantityPct
	}
	if p.Default.PricePct == 0 {
		p.Default.PricePct = stock.PricePct
	}

	normalized := make(map[string]Thresholds, len(p.Trades))
	for key, th := range p.Trades {
		if th.QuantityPct == 0 {
			th.QuantityPct = p.Default.QuantityPct
		}
		if th.PricePct == 0 {
			th.PricePct = p.Default.PricePct
		}
		normalized[trade.NormalizeCategory(key)] = th
	}
	p.Trades = normalized

	return p, nil
}

// For returns the thresholds for a normalized trade category.
func (p *Policy) For(tradeCategory string) Thresholds {
	if th, ok := p.Trades[trade.NormalizeCategory(tradeCategory)]; ok {
		return th
	}
	return p.Default
}
