package engine

import (
	"fmt"
	"time"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/strategyrt"
)

// pendingOrder holds a decided-but-not-yet-filled rebalance, used by the
// CLOSE_TO_NEXT_OPEN and OPEN_TO_OPEN execution timings. valuationPrices is
// nil for OPEN_TO_OPEN, where the weight->shares conversion is deferred to
// the next bar's open along with the fill; CLOSE_TO_NEXT_OPEN populates it
// with the decision bar's closes, so target shares reflect what the
// strategy saw when it decided, while the fill still executes at the next
// bar's open.
type pendingOrder struct {
	weights         map[string]float64
	valuationPrices map[string]float64
}

// Run executes a strategy's AST against the market data in payload and
// returns the raw, unvalidated backtest result. It is the only function
// that runs user code; a panic or error from the strategy aborts with no
// partial result, matching the design document's failure policy.
func Run(payload domain.ExecutionPayload) (res *domain.RawExecutionResult, err error) {
	start := time.Now()

	mod, perr := pyast.Parse(payload.StrategyCode)
	if perr != nil {
		return nil, fmt.Errorf("parse strategy code: %w", perr)
	}
	interp, perr := strategyrt.Load(mod)
	if perr != nil {
		return nil, fmt.Errorf("load strategy: %w", perr)
	}

	series := make(map[string][]domain.Bar, len(payload.MarketData))
	for sym, sp := range payload.MarketData {
		bars, berr := barsFromSeries(sp)
		if berr != nil {
			return nil, fmt.Errorf("decode market data for %s: %w", sym, berr)
		}
		series[sym] = bars
	}

	timeline := CanonicalTimeline(series)
	if len(timeline) == 0 {
		return nil, fmt.Errorf("empty canonical timeline")
	}
	bySymbol := indexBySymbol(series)
	symbols := sortedSymbols(series)

	portfolio := NewPortfolio(payload.InitialCapital)
	equityCurve := make(map[string]float64, len(timeline))
	ohlc := make(map[string]domain.Candle, len(timeline))
	lastPrice := make(map[string]float64, len(symbols))
	var allTrades []domain.Trade

	tradeCounter := 0
	nextTradeID := func() string {
		tradeCounter++
		return fmt.Sprintf("t-%d", tradeCounter)
	}

	opts := RebalanceOptions{
		Commission:  payload.Commission,
		SlippageBps: payload.Slippage * 1e4,
	}

	var pending *pendingOrder

	for i, t := range timeline {
		barsToday := make(map[string]strategyrt.SymbolBar, len(symbols))
		closes := make(map[string]float64, len(symbols))
		opens := make(map[string]float64, len(symbols))
		barVolume := make(map[string]float64, len(symbols))

		for _, sym := range symbols {
			if bar, ok := bySymbol[sym][t.Unix()]; ok {
				barsToday[sym] = strategyrt.SymbolBar{Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close, Volume: bar.Volume}
				closes[sym] = bar.Close
				opens[sym] = bar.Open
				barVolume[sym] = bar.Volume
				lastPrice[sym] = bar.Close
			} else if p, ok := lastPrice[sym]; ok {
				closes[sym] = p
				opens[sym] = p
			}
		}

		if pending != nil {
			opts.BarVolume = barVolume
			valuationPrices := pending.valuationPrices
			if valuationPrices == nil {
				valuationPrices = opens
			}
			trades, rerr := Rebalance(portfolio, pending.weights, valuationPrices, opens, t, opts, nextTradeID)
			if rerr != nil {
				return nil, fmt.Errorf("pending rebalance at %s: %w", t.Format(time.RFC3339), rerr)
			}
			allTrades = append(allTrades, trades...)
			pending = nil
		}

		equity := portfolio.Value(closes)
		equityCurve[t.Format(time.RFC3339)] = equity

		candle := barOHLC(portfolio, opens, barsToday)
		candle.Time = t
		ohlc[t.Format(time.RFC3339)] = candle

		slice := strategyrt.NewSlice(barsToday, presentSymbols(barsToday, symbols))
		view := &strategyrt.PortfolioView{
			Equity:    equity,
			Cash:      portfolio.Cash,
			Positions: positionsOverUniverse(portfolio.Positions, symbols),
			Weights:   portfolio.Weights(closes),
		}

		signal, serr := interp.CallOnData(slice, view)
		if serr != nil {
			return nil, fmt.Errorf("on_data at %s: %w", t.Format(time.RFC3339), serr)
		}

		weights := signalWeights(signal)
		if weights == nil {
			continue // Hold: do nothing
		}

		switch payload.Execution {
		case domain.CloseToClose:
			opts.BarVolume = barVolume
			trades, rerr := Rebalance(portfolio, weights, closes, closes, t, opts, nextTradeID)
			if rerr != nil {
				return nil, fmt.Errorf("rebalance at %s: %w", t.Format(time.RFC3339), rerr)
			}
			allTrades = append(allTrades, trades...)
		case domain.CloseToNextOpen:
			if i < len(timeline)-1 {
				pending = &pendingOrder{weights: weights, valuationPrices: closes}
			}
			// On the final bar there is no next open to fill against; the
			// pending order is simply dropped and final liquidation below
			// closes whatever is still held.
		case domain.OpenToOpen:
			if i < len(timeline)-1 {
				pending = &pendingOrder{weights: weights}
			}
		default:
			return nil, fmt.Errorf("unknown execution timing %q", payload.Execution)
		}
	}

	lastT := timeline[len(timeline)-1]
	finalPrices := make(map[string]float64, len(lastPrice))
	for sym, p := range lastPrice {
		finalPrices[sym] = p
	}
	opts.BarVolume = nil
	liquidation := Liquidate(portfolio, finalPrices, lastT, opts, nextTradeID)
	allTrades = append(allTrades, liquidation...)
	equityCurve[lastT.Format(time.RFC3339)] = portfolio.Value(finalPrices)

	finalPositions := make(map[string]float64, len(portfolio.Positions))
	for sym, shares := range portfolio.Positions {
		finalPositions[sym] = shares
	}

	return &domain.RawExecutionResult{
		Trades:          allTrades,
		EquityCurve:     equityCurve,
		OHLC:            ohlc,
		FinalValue:      portfolio.Value(finalPrices),
		FinalCash:       portfolio.Cash,
		FinalPositions:  finalPositions,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		BarSize:         payload.BarSize,
		Errors:          nil,
	}, nil
}

func signalWeights(sig *strategyrt.Signal) map[string]float64 {
	switch sig.Kind {
	case strategyrt.SignalTargetWeights:
		return sig.Weights
	case strategyrt.SignalLiquidate:
		return map[string]float64{}
	default: // Hold
		return nil
	}
}

func barOHLC(p *Portfolio, opens map[string]float64, bars map[string]strategyrt.SymbolBar) domain.Candle {
	c := domain.Candle{}
	for sym, shares := range p.Positions {
		bar, ok := bars[sym]
		if !ok {
			continue
		}
		c.Open += shares * opens[sym]
		c.High += shares * bar.High
		c.Low += shares * bar.Low
		c.Close += shares * bar.Close
	}
	c.Open += p.Cash
	c.High += p.Cash
	c.Low += p.Cash
	c.Close += p.Cash
	return c
}

func presentSymbols(bars map[string]strategyrt.SymbolBar, universe []string) []string {
	out := make([]string, 0, len(bars))
	for _, sym := range universe {
		if _, ok := bars[sym]; ok {
			out = append(out, sym)
		}
	}
	return out
}

// positionsOverUniverse zero-fills every symbol in the universe so that a
// strategy can safely index view.positions["TICKER"] even before any
// position has been opened, matching dict.get-with-default semantics a
// strategy author would expect.
func positionsOverUniverse(held map[string]float64, universe []string) map[string]float64 {
	out := make(map[string]float64, len(universe))
	for _, sym := range universe {
		out[sym] = 0
	}
	for sym, shares := range held {
		out[sym] = shares
	}
	return out
}

func barsFromSeries(sp domain.SeriesPayload) ([]domain.Bar, error) {
	bars := make([]domain.Bar, 0, len(sp.Date))
	for i, d := range sp.Date {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			t, err = time.Parse(time.RFC3339, d)
			if err != nil {
				return nil, fmt.Errorf("parse date %q: %w", d, err)
			}
		}
		bars = append(bars, domain.Bar{
			Time:   t.UTC(),
			Open:   valueAt(sp.Open, i),
			High:   valueAt(sp.High, i),
			Low:    valueAt(sp.Low, i),
			Close:  valueAt(sp.Close, i),
			Volume: valueAt(sp.Volume, i),
		})
	}
	return bars, nil
}

func valueAt(s []float64, i int) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}
