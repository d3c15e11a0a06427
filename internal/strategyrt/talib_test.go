package strategyrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

func TestTalibRSIReachableFromStrategyCode(t *testing.T) {
	code := `class S(Strategy):
    def initialize(self):
        closes = [100.0, 101.0, 102.0, 101.5, 103.0, 104.0, 103.5, 105.0, 106.0, 107.0,
                  108.0, 107.5, 109.0, 110.0, 111.0]
        self.rsi = talib.RSI(closes, timeperiod=14)

    def on_data(self, data, view):
        return Hold()
`
	interp := load(t, code)
	rsi, ok := interp.instance.Fields["rsi"].([]Value)
	require.True(t, ok)
	require.Len(t, rsi, 15)
}

func TestTalibMACDReturnsThreeSeriesTuple(t *testing.T) {
	code := `class S(Strategy):
    def initialize(self):
        closes = list(range(1, 40))
        macd, signal, hist = talib.MACD(closes)
        self.macd = macd
        self.signal = signal
        self.hist = hist

    def on_data(self, data, view):
        return Hold()
`
	interp := load(t, code)
	macd, ok := interp.instance.Fields["macd"].([]Value)
	require.True(t, ok)
	require.Len(t, macd, 39)
	_, ok = interp.instance.Fields["signal"].([]Value)
	require.True(t, ok)
	_, ok = interp.instance.Fields["hist"].([]Value)
	require.True(t, ok)
}

func TestTalibUnknownAttributeFailsAtCallTimeNotParseTime(t *testing.T) {
	code := `class S(Strategy):
    def initialize(self):
        self.bad = talib.NOT_A_REAL_INDICATOR([1.0, 2.0])

    def on_data(self, data, view):
        return Hold()
`
	mod, err := pyast.Parse(code)
	require.NoError(t, err)
	_, loadErr := Load(mod)
	require.Error(t, loadErr)
}
