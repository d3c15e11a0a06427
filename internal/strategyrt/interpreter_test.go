package strategyrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

func load(t *testing.T, code string) *Interpreter {
	t.Helper()
	mod, err := pyast.Parse(code)
	require.NoError(t, err)
	interp, err := Load(mod)
	require.NoError(t, err)
	return interp
}

func TestBuyAndHoldReturnsTargetWeights(t *testing.T) {
	code := `class S(Strategy):
    def on_data(self, data, view):
        if view.positions["AAPL"] == 0:
            return TargetWeights({"AAPL": 1.0})
        return Hold()
`
	interp := load(t, code)
	slice := NewSlice(map[string]SymbolBar{"AAPL": {Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}}, []string{"AAPL"})
	view := &PortfolioView{Equity: 10000, Cash: 10000, Positions: map[string]float64{"AAPL": 0}, Weights: map[string]float64{}}

	sig, err := interp.CallOnData(slice, view)
	require.NoError(t, err)
	require.Equal(t, SignalTargetWeights, sig.Kind)
	require.Equal(t, 1.0, sig.Weights["AAPL"])
}

func TestInitializeSetsFieldsVisibleInOnData(t *testing.T) {
	code := `class S(Strategy):
    def initialize(self):
        self.threshold = 50

    def on_data(self, data, view):
        if data["AAPL"].close > self.threshold:
            return TargetWeights({"AAPL": 0.5})
        return Liquidate()
`
	interp := load(t, code)
	slice := NewSlice(map[string]SymbolBar{"AAPL": {Close: 100}}, []string{"AAPL"})
	view := &PortfolioView{Positions: map[string]float64{}, Weights: map[string]float64{}}

	sig, err := interp.CallOnData(slice, view)
	require.NoError(t, err)
	require.Equal(t, SignalTargetWeights, sig.Kind)
	require.Equal(t, 0.5, sig.Weights["AAPL"])
}

func TestOnDataDivisionByZeroIsReportedAsError(t *testing.T) {
	code := `class S(Strategy):
    def on_data(self, data, view):
        x = 1 / 0
        return Hold()
`
	interp := load(t, code)
	slice := NewSlice(map[string]SymbolBar{}, nil)
	view := &PortfolioView{Positions: map[string]float64{}, Weights: map[string]float64{}}

	_, err := interp.CallOnData(slice, view)
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")
}

func TestListCompAndBuiltinsEvaluate(t *testing.T) {
	code := `class S(Strategy):
    def on_data(self, data, view):
        symbols = [s for s in data.symbols]
        n = len(symbols)
        weight = 1.0 / n if n > 0 else 0
        weights = {}
        for s in symbols:
            weights[s] = weight
        return TargetWeights(weights)
`
	interp := load(t, code)
	slice := NewSlice(map[string]SymbolBar{"AAPL": {Close: 1}, "MSFT": {Close: 2}}, []string{"AAPL", "MSFT"})
	view := &PortfolioView{Positions: map[string]float64{}, Weights: map[string]float64{}}

	sig, err := interp.CallOnData(slice, view)
	require.NoError(t, err)
	require.InDelta(t, 0.5, sig.Weights["AAPL"], 1e-9)
	require.InDelta(t, 0.5, sig.Weights["MSFT"], 1e-9)
}

func TestMatchStatementDispatchesOnCaptureAndGuard(t *testing.T) {
	code := `class S(Strategy):
    def on_data(self, data, view):
        price = data["AAPL"].close
        match price:
            case p if p > 100:
                return TargetWeights({"AAPL": 1.0})
            case p if p > 50:
                return TargetWeights({"AAPL": 0.5})
            case _:
                return Liquidate()
`
	interp := load(t, code)
	view := &PortfolioView{Positions: map[string]float64{}, Weights: map[string]float64{}}

	high := NewSlice(map[string]SymbolBar{"AAPL": {Close: 150}}, []string{"AAPL"})
	sig, err := interp.CallOnData(high, view)
	require.NoError(t, err)
	require.Equal(t, SignalTargetWeights, sig.Kind)
	require.InDelta(t, 1.0, sig.Weights["AAPL"], 1e-9)

	low := NewSlice(map[string]SymbolBar{"AAPL": {Close: 10}}, []string{"AAPL"})
	sig, err = interp.CallOnData(low, view)
	require.NoError(t, err)
	require.Equal(t, SignalLiquidate, sig.Kind)
}

func TestMatchStatementLiteralAndOrPattern(t *testing.T) {
	code := `class S(Strategy):
    def initialize(self):
        self.action = "hold"

    def on_data(self, data, view):
        match self.action:
            case "buy" | "cover":
                return TargetWeights({"AAPL": 1.0})
            case "hold":
                return Hold()
            case _:
                return Liquidate()
`
	interp := load(t, code)
	slice := NewSlice(map[string]SymbolBar{}, nil)
	view := &PortfolioView{Positions: map[string]float64{}, Weights: map[string]float64{}}

	sig, err := interp.CallOnData(slice, view)
	require.NoError(t, err)
	require.Equal(t, SignalHold, sig.Kind)
}
