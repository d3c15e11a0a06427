package strategyrt

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// nativeModule is a minimal Attributable backing a `module.func(...)`
// namespace — the only host object shape an imported module's functions
// need, since an Import/ImportFrom statement is otherwise a no-op and the
// name it binds must already resolve in the global environment.
type nativeModule struct {
	name string
	fns  map[string]*NativeFunc
}

func newNativeModule(name string) *nativeModule {
	return &nativeModule{name: name, fns: map[string]*NativeFunc{}}
}

func (m *nativeModule) reg(name string, fn func([]Value, map[string]Value) (Value, error)) {
	m.fns[name] = &NativeFunc{Name: m.name + "." + name, Call: fn}
}

// GetAttr implements Attributable.
func (m *nativeModule) GetAttr(name string) (Value, bool) {
	fn, ok := m.fns[name]
	return fn, ok
}

// talibModule backs `import talib` with the subset of
// github.com/markcheno/go-talib's indicators a strategy can reach once the
// static analyzer has allow-listed the talib import: moving averages,
// oscillators, and volatility bands over a price series. A talib attribute
// not registered here fails at call time with an "object has no attribute"
// error rather than panicking.
func talibModule() *nativeModule {
	m := newNativeModule("talib")

	m.reg("SMA", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, period, err := seriesAndPeriod(args, kwargs, "SMA")
		if err != nil {
			return nil, err
		}
		return floatsToValues(talib.Sma(series, period)), nil
	})

	m.reg("EMA", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, period, err := seriesAndPeriod(args, kwargs, "EMA")
		if err != nil {
			return nil, err
		}
		return floatsToValues(talib.Ema(series, period)), nil
	})

	m.reg("WMA", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, period, err := seriesAndPeriod(args, kwargs, "WMA")
		if err != nil {
			return nil, err
		}
		return floatsToValues(talib.Wma(series, period)), nil
	})

	m.reg("RSI", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, period, err := seriesAndPeriod(args, kwargs, "RSI")
		if err != nil {
			return nil, err
		}
		return floatsToValues(talib.Rsi(series, period)), nil
	})

	m.reg("MOM", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, period, err := seriesAndPeriod(args, kwargs, "MOM")
		if err != nil {
			return nil, err
		}
		return floatsToValues(talib.Mom(series, period)), nil
	})

	m.reg("ROC", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, period, err := seriesAndPeriod(args, kwargs, "ROC")
		if err != nil {
			return nil, err
		}
		return floatsToValues(talib.Roc(series, period)), nil
	})

	m.reg("STDDEV", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, err := argFloatSeries(args, 0, "STDDEV")
		if err != nil {
			return nil, err
		}
		period := intArg(args, kwargs, 1, "timeperiod", 5)
		nbdev := floatArg(args, kwargs, 2, "nbdev", 1)
		return floatsToValues(talib.StdDev(series, period, nbdev)), nil
	})

	m.reg("MACD", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, err := argFloatSeries(args, 0, "MACD")
		if err != nil {
			return nil, err
		}
		fast := intArg(args, kwargs, 1, "fastperiod", 12)
		slow := intArg(args, kwargs, 2, "slowperiod", 26)
		signal := intArg(args, kwargs, 3, "signalperiod", 9)
		macd, macdSignal, macdHist := talib.Macd(series, fast, slow, signal)
		return []Value{floatsToValues(macd), floatsToValues(macdSignal), floatsToValues(macdHist)}, nil
	})

	m.reg("BBANDS", func(args []Value, kwargs map[string]Value) (Value, error) {
		series, err := argFloatSeries(args, 0, "BBANDS")
		if err != nil {
			return nil, err
		}
		period := intArg(args, kwargs, 1, "timeperiod", 5)
		devUp := floatArg(args, kwargs, 2, "nbdevup", 2)
		devDn := floatArg(args, kwargs, 3, "nbdevdn", 2)
		upper, middle, lower := talib.Bbands(series, period, devUp, devDn, talib.SMA)
		return []Value{floatsToValues(upper), floatsToValues(middle), floatsToValues(lower)}, nil
	})

	m.reg("ATR", func(args []Value, kwargs map[string]Value) (Value, error) {
		high, err := argFloatSeries(args, 0, "ATR")
		if err != nil {
			return nil, err
		}
		low, err := argFloatSeries(args, 1, "ATR")
		if err != nil {
			return nil, err
		}
		closes, err := argFloatSeries(args, 2, "ATR")
		if err != nil {
			return nil, err
		}
		period := intArg(args, kwargs, 3, "timeperiod", 14)
		return floatsToValues(talib.Atr(high, low, closes, period)), nil
	})

	m.reg("STOCH", func(args []Value, kwargs map[string]Value) (Value, error) {
		high, err := argFloatSeries(args, 0, "STOCH")
		if err != nil {
			return nil, err
		}
		low, err := argFloatSeries(args, 1, "STOCH")
		if err != nil {
			return nil, err
		}
		closes, err := argFloatSeries(args, 2, "STOCH")
		if err != nil {
			return nil, err
		}
		fastK := intArg(args, kwargs, 3, "fastk_period", 5)
		slowK := intArg(args, kwargs, 4, "slowk_period", 3)
		slowD := intArg(args, kwargs, 5, "slowd_period", 3)
		k, d := talib.Stoch(high, low, closes, fastK, slowK, talib.SMA, slowD, talib.SMA)
		return []Value{floatsToValues(k), floatsToValues(d)}, nil
	})

	return m
}

func argFloatSeries(args []Value, i int, fn string) ([]float64, error) {
	items, err := argIterable(args, i, fn)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for j, it := range items {
		f, err := toFloat(it)
		if err != nil {
			return nil, fmt.Errorf("%s() series element %d: %w", fn, j, err)
		}
		out[j] = f
	}
	return out, nil
}

func seriesAndPeriod(args []Value, kwargs map[string]Value, fn string) ([]float64, int, error) {
	series, err := argFloatSeries(args, 0, fn)
	if err != nil {
		return nil, 0, err
	}
	return series, intArg(args, kwargs, 1, "timeperiod", 14), nil
}

func intArg(args []Value, kwargs map[string]Value, pos int, kw string, def int) int {
	if pos < len(args) {
		if f, err := toFloat(args[pos]); err == nil {
			return int(f)
		}
	}
	if v, ok := kwargs[kw]; ok {
		if f, err := toFloat(v); err == nil {
			return int(f)
		}
	}
	return def
}

func floatArg(args []Value, kwargs map[string]Value, pos int, kw string, def float64) float64 {
	if pos < len(args) {
		if f, err := toFloat(args[pos]); err == nil {
			return f
		}
	}
	if v, ok := kwargs[kw]; ok {
		if f, err := toFloat(v); err == nil {
			return f
		}
	}
	return def
}

func floatsToValues(xs []float64) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
