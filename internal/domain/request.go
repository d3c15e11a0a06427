package domain

import "time"

// BacktestRequest is submitted by the client.
type BacktestRequest struct {
	StrategyCode    string    `json:"strategy_code"`
	Name            string    `json:"name,omitempty"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	InitialCapital  float64   `json:"initial_capital"`
	Commission      float64   `json:"commission"`
	Slippage        float64   `json:"slippage"`

	// Errors accumulates validation/execution findings as the request moves
	// through the pipeline. It is transient: never serialized outbound.
	Errors *ErrorList `json:"-"`
}

// MaxStrategyCodeBytes is the maximum encoded size of strategy_code.
const MaxStrategyCodeBytes = 1 << 20 // 1 MiB

// Validate checks the structural invariants of a BacktestRequest that do not
// require parsing the strategy code: field presence, date ordering, and
// numeric ranges. It returns a ValidationError (never partial/wrapped) on the
// first batch of violations found, or nil if the request is well-formed.
func (r *BacktestRequest) Validate() error {
	errs := &ErrorList{}

	if len(r.StrategyCode) == 0 {
		errs.Add("strategy_code must not be empty")
	}
	if len(r.StrategyCode) > MaxStrategyCodeBytes {
		errs.Add("strategy_code exceeds 1 MiB")
	}
	if !r.EndDate.After(r.StartDate) {
		errs.Add("end_date must be after start_date")
	}
	if r.InitialCapital <= 0 {
		errs.Add("initial_capital must be positive")
	}
	if r.Commission < 0 {
		errs.Add("commission must be non-negative")
	}
	if r.Slippage < 0 || r.Slippage > 1 {
		errs.Add("slippage must be in [0, 1]")
	}

	if !errs.Empty() {
		return &ValidationError{Errors: errs, Structural: true}
	}
	return nil
}

// EnsureErrors lazily initializes the Errors accumulator so every stage can
// append without a nil check.
func (r *BacktestRequest) EnsureErrors() *ErrorList {
	if r.Errors == nil {
		r.Errors = &ErrorList{}
	}
	return r.Errors
}
