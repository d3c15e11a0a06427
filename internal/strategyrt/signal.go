package strategyrt

import "fmt"

// signalConstructors returns the three host-level "classes" a strategy's
// on_data calls to build its return value: TargetWeights({...}), Liquidate(),
// Hold(). They are ordinary NativeFunc values bound into the global scope
// rather than special-cased syntax, keeping the evaluator's Call handling
// uniform.
func signalConstructors() map[string]*NativeFunc {
	return map[string]*NativeFunc{
		"TargetWeights": {Name: "TargetWeights", Call: func(args []Value, kwargs map[string]Value) (Value, error) {
			weights := map[string]float64{}
			if len(args) > 0 {
				d, ok := args[0].(*Dict)
				if !ok {
					return nil, fmt.Errorf("TargetWeights() expects a dict of symbol -> weight")
				}
				for _, k := range d.Keys() {
					sym, ok := k.(string)
					if !ok {
						return nil, fmt.Errorf("TargetWeights() keys must be ticker strings")
					}
					v, _ := d.Get(k)
					f, err := toFloat(v)
					if err != nil {
						return nil, fmt.Errorf("TargetWeights()[%q]: %w", sym, err)
					}
					weights[sym] = f
				}
			}
			for sym, v := range kwargs {
				f, err := toFloat(v)
				if err != nil {
					return nil, fmt.Errorf("TargetWeights(%s=...): %w", sym, err)
				}
				weights[sym] = f
			}
			return &Signal{Kind: SignalTargetWeights, Weights: weights}, nil
		}},
		"Liquidate": {Name: "Liquidate", Call: func(args []Value, _ map[string]Value) (Value, error) {
			return &Signal{Kind: SignalLiquidate}, nil
		}},
		"Hold": {Name: "Hold", Call: func(args []Value, _ map[string]Value) (Value, error) {
			return &Signal{Kind: SignalHold}, nil
		}},
	}
}
