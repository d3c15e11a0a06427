package domain

import "time"

// JobStatus is a JobRecord's lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// JobRecord tracks one submitted backtest from admission to a terminal
// state. COMPLETED/FAILED records persist for later polling; a PENDING record
// that is cancelled stays in the store with status CANCELLED, while its
// queued request is evicted from the scheduler's KV store.
type JobRecord struct {
	JobID       string           `json:"job_id"`
	Status      JobStatus        `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *BacktestResult  `json:"result,omitempty"`
	Error       *JobError        `json:"error,omitempty"`
}

// JobError carries the structured error shown to the user when a job fails.
type JobError struct {
	Kind     string   `json:"kind"` // "validation" | "execution" | "internal"
	Messages []string `json:"messages"`
}

// Metrics is the computed statistics block of the response shape.
type Metrics struct {
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	PSR              float64 `json:"psr"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	TotalOrders      int     `json:"total_orders"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
}

// EquityStats is the equity_stats block of the response shape.
type EquityStats struct {
	Equity    float64 `json:"equity"`
	Fees      float64 `json:"fees"`
	NetProfit float64 `json:"net_profit"`
	ReturnPct float64 `json:"return_pct"`
	Volume    float64 `json:"volume"`
}

// Parameters echoes the request parameters back in the response.
type Parameters struct {
	Name           string    `json:"name,omitempty"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	StartingEquity float64   `json:"starting_equity"`
}

// ResponseCandle is one candle in the API response shape (unix seconds).
type ResponseCandle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// ResponseOrder is one order in the API response shape.
type ResponseOrder struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Ticker    string    `json:"ticker"`
	Type      TradeType `json:"type"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
}

// BacktestResult is the fully shaped response for a completed backtest.
type BacktestResult struct {
	JobID       string           `json:"job_id,omitempty"`
	Parameters  Parameters       `json:"parameters"`
	Metrics     Metrics          `json:"metrics"`
	EquityStats EquityStats      `json:"equity_stats"`
	Candles     []ResponseCandle `json:"candles"`
	Orders      []ResponseOrder  `json:"orders"`
}
