package validator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

func TestValidateAcceptsCleanResult(t *testing.T) {
	result := &domain.RawExecutionResult{
		FinalValue:  10500,
		EquityCurve: map[string]float64{"t0": 10000, "t1": 10500},
		Trades:      []domain.Trade{{ID: "t1", Price: 100, Amount: 5}},
	}
	require.NoError(t, Validate(result))
}

func TestValidateRejectsNonFiniteEquity(t *testing.T) {
	result := &domain.RawExecutionResult{
		FinalValue:  10500,
		EquityCurve: map[string]float64{"t0": math.NaN()},
	}
	err := Validate(result)
	require.Error(t, err)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestValidateRejectsNonPositiveTrade(t *testing.T) {
	result := &domain.RawExecutionResult{
		FinalValue:  10500,
		EquityCurve: map[string]float64{"t0": 10000},
		Trades:      []domain.Trade{{ID: "bad", Price: 0, Amount: 5}},
	}
	require.Error(t, Validate(result))
}

func TestValidateRejectsEmptyEquityCurve(t *testing.T) {
	result := &domain.RawExecutionResult{FinalValue: 10000}
	require.Error(t, Validate(result))
}
