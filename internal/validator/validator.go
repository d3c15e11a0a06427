// Package validator checks a completed backtest's raw output for the
// invariants the engine itself promises but cannot fully guarantee across
// every strategy (NaN/Inf can leak in through user arithmetic the static
// analyzer cannot reject).
package validator

import (
	"math"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// Validate appends one error per violation found in result and returns an
// ExecutionError wrapping all of them, or nil if result is clean.
func Validate(result *domain.RawExecutionResult) error {
	errs := &domain.ErrorList{}

	if !isFinite(result.FinalValue) || result.FinalValue < 0 {
		errs.Add("final_value must be finite and non-negative")
	}

	if len(result.EquityCurve) == 0 {
		errs.Add("equity curve must not be empty")
	}
	for ts, v := range result.EquityCurve {
		if !isFinite(v) {
			errs.Add("equity curve value at " + ts + " is not finite")
		}
	}

	for _, tr := range result.Trades {
		if tr.Price <= 0 {
			errs.Add("trade " + tr.ID + " has non-positive price")
		}
		if tr.Amount <= 0 {
			errs.Add("trade " + tr.ID + " has non-positive amount")
		}
	}

	if !errs.Empty() {
		return &domain.ExecutionError{Errors: errs}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
