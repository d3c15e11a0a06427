package strategyrt

import (
	"fmt"
	"math"
	"sort"
)

// builtins returns the Go implementations backing internal/analysis's
// AllowedBuiltins — only the subset a numeric strategy actually needs
// (construction, iteration helpers, aggregation, type coercion, print).
// Anything not implemented here but present on the allow-list simply isn't
// reachable by strategies that pass static analysis but don't call it;
// calling an unimplemented-but-allowed builtin reports a clear error rather
// than panicking.
func builtins() map[string]*NativeFunc {
	fns := map[string]*NativeFunc{}
	reg := func(name string, fn func([]Value, map[string]Value) (Value, error)) {
		fns[name] = &NativeFunc{Name: name, Call: fn}
	}

	reg("print", func(args []Value, _ map[string]Value) (Value, error) { return nil, nil })

	reg("len", func(args []Value, _ map[string]Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len() takes exactly one argument")
		}
		switch v := args[0].(type) {
		case []Value:
			return float64(len(v)), nil
		case *Dict:
			return float64(v.Len()), nil
		case string:
			return float64(len(v)), nil
		default:
			return nil, fmt.Errorf("object of type %T has no len()", v)
		}
	})

	reg("abs", func(args []Value, _ map[string]Value) (Value, error) {
		f, err := argFloat(args, 0, "abs")
		if err != nil {
			return nil, err
		}
		return math.Abs(f), nil
	})

	reg("round", func(args []Value, _ map[string]Value) (Value, error) {
		f, err := argFloat(args, 0, "round")
		if err != nil {
			return nil, err
		}
		if len(args) > 1 {
			ndigits, err := toFloat(args[1])
			if err != nil {
				return nil, err
			}
			mult := math.Pow(10, ndigits)
			return math.Round(f*mult) / mult, nil
		}
		return math.Round(f), nil
	})

	reg("min", func(args []Value, _ map[string]Value) (Value, error) { return minMax(args, false) })
	reg("max", func(args []Value, _ map[string]Value) (Value, error) { return minMax(args, true) })

	reg("sum", func(args []Value, _ map[string]Value) (Value, error) {
		items, err := argIterable(args, 0, "sum")
		if err != nil {
			return nil, err
		}
		total := 0.0
		if len(args) > 1 {
			start, err := toFloat(args[1])
			if err != nil {
				return nil, err
			}
			total = start
		}
		for _, it := range items {
			f, err := toFloat(it)
			if err != nil {
				return nil, err
			}
			total += f
		}
		return total, nil
	})

	reg("float", func(args []Value, _ map[string]Value) (Value, error) { return argFloat(args, 0, "float") })
	reg("int", func(args []Value, _ map[string]Value) (Value, error) {
		f, err := argFloat(args, 0, "int")
		if err != nil {
			return nil, err
		}
		return math.Trunc(f), nil
	})
	reg("bool", func(args []Value, _ map[string]Value) (Value, error) {
		if len(args) == 0 {
			return false, nil
		}
		return Truthy(args[0]), nil
	})
	reg("str", func(args []Value, _ map[string]Value) (Value, error) {
		if len(args) == 0 {
			return "", nil
		}
		return fmt.Sprintf("%v", args[0]), nil
	})

	reg("list", func(args []Value, _ map[string]Value) (Value, error) {
		if len(args) == 0 {
			return []Value{}, nil
		}
		items, err := argIterable(args, 0, "list")
		if err != nil {
			return nil, err
		}
		return append([]Value{}, items...), nil
	})

	reg("dict", func(args []Value, kwargs map[string]Value) (Value, error) {
		d := NewDict()
		for k, v := range kwargs {
			d.Set(k, v)
		}
		return d, nil
	})

	reg("sorted", func(args []Value, kwargs map[string]Value) (Value, error) {
		items, err := argIterable(args, 0, "sorted")
		if err != nil {
			return nil, err
		}
		out := append([]Value{}, items...)
		reverse := Truthy(kwargs["reverse"])
		sort.SliceStable(out, func(i, j int) bool {
			less, _ := compareLess(out[i], out[j])
			if reverse {
				return !less
			}
			return less
		})
		return out, nil
	})

	reg("reversed", func(args []Value, _ map[string]Value) (Value, error) {
		items, err := argIterable(args, 0, "reversed")
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(items))
		for i, v := range items {
			out[len(items)-1-i] = v
		}
		return out, nil
	})

	reg("range", func(args []Value, _ map[string]Value) (Value, error) {
		var start, stop, step float64 = 0, 0, 1
		switch len(args) {
		case 1:
			s, err := toFloat(args[0])
			if err != nil {
				return nil, err
			}
			stop = s
		case 2, 3:
			s0, err := toFloat(args[0])
			if err != nil {
				return nil, err
			}
			s1, err := toFloat(args[1])
			if err != nil {
				return nil, err
			}
			start, stop = s0, s1
			if len(args) == 3 {
				s2, err := toFloat(args[2])
				if err != nil {
					return nil, err
				}
				step = s2
			}
		default:
			return nil, fmt.Errorf("range() expects 1-3 arguments")
		}
		if step == 0 {
			return nil, fmt.Errorf("range() step argument must not be zero")
		}
		out := []Value{}
		if step > 0 {
			for v := start; v < stop; v += step {
				out = append(out, v)
			}
		} else {
			for v := start; v > stop; v += step {
				out = append(out, v)
			}
		}
		return out, nil
	})

	reg("enumerate", func(args []Value, _ map[string]Value) (Value, error) {
		items, err := argIterable(args, 0, "enumerate")
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(items))
		for i, v := range items {
			out[i] = []Value{float64(i), v}
		}
		return out, nil
	})

	reg("all", func(args []Value, _ map[string]Value) (Value, error) {
		items, err := argIterable(args, 0, "all")
		if err != nil {
			return nil, err
		}
		for _, v := range items {
			if !Truthy(v) {
				return false, nil
			}
		}
		return true, nil
	})

	reg("any", func(args []Value, _ map[string]Value) (Value, error) {
		items, err := argIterable(args, 0, "any")
		if err != nil {
			return nil, err
		}
		for _, v := range items {
			if Truthy(v) {
				return true, nil
			}
		}
		return false, nil
	})

	return fns
}

func minMax(args []Value, wantMax bool) (Value, error) {
	items := args
	if len(args) == 1 {
		it, err := argIterable(args, 0, "min/max")
		if err == nil {
			items = it
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("min()/max() arg is an empty sequence")
	}
	best := items[0]
	bestF, err := toFloat(best)
	if err != nil {
		return nil, err
	}
	for _, v := range items[1:] {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if (wantMax && f > bestF) || (!wantMax && f < bestF) {
			best, bestF = v, f
		}
	}
	return best, nil
}

func compareLess(a, b Value) (bool, error) {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return af < bf, nil
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs, nil
	}
	return false, fmt.Errorf("unorderable types in sorted()")
}

func argFloat(args []Value, i int, fn string) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s() missing argument", fn)
	}
	return toFloat(args[i])
}

func argIterable(args []Value, i int, fn string) ([]Value, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s() missing argument", fn)
	}
	switch v := args[i].(type) {
	case []Value:
		return v, nil
	case *Dict:
		return v.Keys(), nil
	case string:
		out := make([]Value, len(v))
		for i, r := range v {
			out[i] = string(r)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s() argument is not iterable", fn)
	}
}

func toFloat(v Value) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}
