package domain

import (
	"sort"
	"time"
)

// SeriesPayload is one symbol's OHLCV arrays as they cross the sandbox
// boundary, column-oriented to keep the JSON payload compact.
type SeriesPayload struct {
	Date   []string  `json:"date"`
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume"`
}

// ExecutionPayload is the single JSON document written to the isolate
// child's stdin.
type ExecutionPayload struct {
	StrategyCode   string                   `json:"strategy_code"`
	Name           string                   `json:"name,omitempty"`
	StartDate      time.Time                `json:"start_date"`
	EndDate        time.Time                `json:"end_date"`
	InitialCapital float64                  `json:"initial_capital"`
	Commission     float64                  `json:"commission"`
	Slippage       float64                  `json:"slippage"`
	BarSize        BarSize                  `json:"bar_size"`
	Execution      ExecutionTiming          `json:"execution"`
	MarketData     map[string]SeriesPayload `json:"market_data"`
}

// TradeType distinguishes buys from sells.
type TradeType string

const (
	Buy  TradeType = "Buy"
	Sell TradeType = "Sell"
)

// Trade is one executed order.
type Trade struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Ticker    string    `json:"ticker"`
	Type      TradeType `json:"type"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Fee       float64   `json:"fee"`
}

// Candle is one bar of the portfolio's own OHLC series (cash + positions
// valued at each bar's O/H/L/C), used for charting.
type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// RawExecutionResult is the single JSON document written to the isolate
// child's stdout.
type RawExecutionResult struct {
	Trades          []Trade              `json:"trades"`
	EquityCurve     map[string]float64   `json:"equity_curve"` // ISO-8601 timestamp -> equity
	OHLC            map[string]Candle    `json:"ohlc"`         // ISO-8601 timestamp -> portfolio OHLC
	FinalValue      float64              `json:"final_value"`
	FinalCash       float64              `json:"final_cash"`
	FinalPositions  map[string]float64   `json:"final_positions"`
	ExecutionTimeMS int64                `json:"execution_time_ms"`
	BarSize         BarSize              `json:"bar_size"`
	Errors          []string             `json:"errors"`
}

// EquityCurveSorted returns the equity curve as timestamp-ordered points.
func (r *RawExecutionResult) EquityCurveSorted() ([]time.Time, []float64, error) {
	times := make([]time.Time, 0, len(r.EquityCurve))
	for k := range r.EquityCurve {
		t, err := time.Parse(time.RFC3339, k)
		if err != nil {
			return nil, nil, err
		}
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	values := make([]float64, len(times))
	for i, t := range times {
		values[i] = r.EquityCurve[t.Format(time.RFC3339)]
	}
	return times, values, nil
}
