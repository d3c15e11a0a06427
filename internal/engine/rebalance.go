package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// dustThreshold is the minimum dollar change below which a rebalance order
// is suppressed.
const dustThreshold = 1.0

// RebalanceOptions carries the optional execution-friction knobs a
// rebalance may apply.
type RebalanceOptions struct {
	Commission    float64            // fraction of notional charged per trade
	SlippageBps   float64            // basis points applied against the trader
	MaxVolumePct  float64            // 0 disables the cap
	BarVolume     map[string]float64 // per-symbol volume for the bar being traded
	AllowShorting bool
}

// Rebalance brings the portfolio's positions to targetWeights, producing
// the minimum set of trades. It mutates p in place and returns the trades
// generated, in a deterministic (sorted-by-symbol) order to satisfy the
// "ties broken by iteration order over the universe" ordering guarantee.
//
// valuationPrices prices the portfolio's current holdings and converts
// each target weight into a target share count; fillPrices is where the
// resulting trade actually executes (before slippage). For CLOSE_TO_CLOSE
// and OPEN_TO_OPEN the two are the same bar's prices; for
// CLOSE_TO_NEXT_OPEN the caller passes the decision bar's closes as
// valuationPrices and the next bar's opens as fillPrices, so the
// weight->shares conversion reflects what the strategy actually saw.
//
// Rejects (returns an error) when Σ weights > 1.0001 — callers must
// translate that into an Execution error, per the design document.
func Rebalance(p *Portfolio, targetWeights map[string]float64, valuationPrices, fillPrices map[string]float64, ts time.Time, opts RebalanceOptions, nextTradeID func() string) ([]domain.Trade, error) {
	sum := 0.0
	for _, w := range targetWeights {
		sum += w
	}
	if sum > 1.0001 {
		return nil, fmt.Errorf("target weights sum to %.6f, exceeding 1.0001", sum)
	}

	total := p.Value(valuationPrices)

	symbols := make(map[string]bool, len(p.Positions)+len(targetWeights))
	for s := range p.Positions {
		symbols[s] = true
	}
	for s := range targetWeights {
		symbols[s] = true
	}
	ordered := make([]string, 0, len(symbols))
	for s := range symbols {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	var trades []domain.Trade
	for _, sym := range ordered {
		valuationPrice, vok := valuationPrices[sym]
		fillPrice, fok := fillPrices[sym]
		if !vok || valuationPrice <= 0 || !fok || fillPrice <= 0 {
			continue
		}
		weight := targetWeights[sym]
		targetShares := total * weight / valuationPrice
		current := p.Positions[sym]
		delta := targetShares - current

		if math.Abs(delta*fillPrice) < dustThreshold {
			continue
		}

		if opts.MaxVolumePct > 0 {
			if vol, ok := opts.BarVolume[sym]; ok && vol > 0 {
				maxShares := opts.MaxVolumePct * vol
				if math.Abs(delta) > maxShares {
					if delta > 0 {
						delta = maxShares
					} else {
						delta = -maxShares
					}
				}
			}
		}

		if !opts.AllowShorting && delta < 0 && -delta > current {
			delta = -current
		}

		if delta == 0 || math.Abs(delta*fillPrice) < dustThreshold {
			continue
		}

		execPrice := fillPrice
		if opts.SlippageBps > 0 {
			if delta > 0 {
				execPrice = fillPrice * (1 + opts.SlippageBps/1e4)
			} else {
				execPrice = fillPrice * (1 - opts.SlippageBps/1e4)
			}
		}

		fee := math.Abs(delta) * execPrice * opts.Commission
		p.Cash -= delta*execPrice + fee
		p.Positions[sym] = current + delta
		if p.Positions[sym] == 0 {
			delete(p.Positions, sym)
		}

		tradeType := domain.Buy
		if delta < 0 {
			tradeType = domain.Sell
		}
		trades = append(trades, domain.Trade{
			ID:        nextTradeID(),
			Timestamp: ts,
			Ticker:    sym,
			Type:      tradeType,
			Price:     execPrice,
			Amount:    math.Abs(delta),
			Fee:       fee,
		})
	}
	return trades, nil
}

// Liquidate sells every remaining non-zero position at the given prices,
// used for the forced final-bar liquidation.
func Liquidate(p *Portfolio, prices map[string]float64, ts time.Time, opts RebalanceOptions, nextTradeID func() string) []domain.Trade {
	symbols := make([]string, 0, len(p.Positions))
	for sym := range p.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var trades []domain.Trade
	for _, sym := range symbols {
		shares := p.Positions[sym]
		if shares == 0 {
			continue
		}
		price, ok := prices[sym]
		if !ok || price <= 0 {
			continue
		}
		execPrice := price
		if opts.SlippageBps > 0 {
			if shares > 0 {
				execPrice = price * (1 - opts.SlippageBps/1e4)
			} else {
				execPrice = price * (1 + opts.SlippageBps/1e4)
			}
		}
		fee := math.Abs(shares) * execPrice * opts.Commission
		p.Cash += shares*execPrice - fee
		delete(p.Positions, sym)

		tradeType := domain.Sell
		if shares < 0 {
			tradeType = domain.Buy
		}
		trades = append(trades, domain.Trade{
			ID:        nextTradeID(),
			Timestamp: ts,
			Ticker:    sym,
			Type:      tradeType,
			Price:     execPrice,
			Amount:    math.Abs(shares),
			Fee:       fee,
		})
	}
	return trades
}
