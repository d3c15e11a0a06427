package engine

// Portfolio is the engine-internal mutable state: cash and per-symbol share
// counts. The equity curve is recorded by Run, not here. Total value =
// cash + Σ shares·price.
// Cash may transiently go negative during a rebalance (simplified margin,
// no explicit check).
type Portfolio struct {
	Cash      float64
	Positions map[string]float64
}

// NewPortfolio starts fully in cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{Cash: initialCapital, Positions: map[string]float64{}}
}

// Value returns cash + Σ shares·price using the supplied per-symbol prices;
// symbols without a known price are valued at 0 for this snapshot (it is
// the caller's job to ensure every held symbol has a price each bar).
func (p *Portfolio) Value(prices map[string]float64) float64 {
	total := p.Cash
	for sym, shares := range p.Positions {
		total += shares * prices[sym]
	}
	return total
}

// Weights returns each held symbol's fraction of total portfolio value.
func (p *Portfolio) Weights(prices map[string]float64) map[string]float64 {
	total := p.Value(prices)
	out := make(map[string]float64, len(p.Positions))
	if total == 0 {
		return out
	}
	for sym, shares := range p.Positions {
		out[sym] = shares * prices[sym] / total
	}
	return out
}
