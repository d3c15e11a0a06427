// Package strategyrt is the restricted interpreter that runs a strategy's
// already-validated AST inside the isolate. It never evaluates anything the
// static analyzer would have rejected; it only walks the allow-listed node
// kinds (internal/pyast) and interprets them against a tiny host surface
// (Slice, PortfolioView, TargetWeights/Liquidate/Hold) instead of a real
// Python runtime.
package strategyrt

import (
	"fmt"
	"sort"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

// Value is whatever a strategy expression evaluates to. The interpreter
// uses Go's native dynamic typing instead of a hand-rolled tagged union:
// float64, string, bool, nil, []Value, map-like Dict, *Instance, *Class,
// *Function, *BoundMethod, *NativeFunc, *Signal, and the host objects
// (*Slice, SymbolBar, *PortfolioView, the talib module) are the only shapes
// that appear.
type Value interface{}

// Dict preserves Python's insertion order for `for k in dict` iteration and
// repr-stable output, which a plain Go map cannot.
type Dict struct {
	keys   []Value
	values map[interface{}]Value
}

// NewDict returns an empty ordered dict.
func NewDict() *Dict {
	return &Dict{values: make(map[interface{}]Value)}
}

// Set inserts or updates key->value, preserving first-insertion order.
func (d *Dict) Set(key, value Value) {
	k := dictKey(key)
	if _, exists := d.values[k]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[k] = value
}

// Get returns the value for key and whether it was present.
func (d *Dict) Get(key Value) (Value, bool) {
	v, ok := d.values[dictKey(key)]
	return v, ok
}

// Keys returns keys in insertion order.
func (d *Dict) Keys() []Value { return append([]Value(nil), d.keys...) }

// Len reports the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// SortedStringKeys returns the dict's keys as strings, sorted — used when a
// stable iteration order matters more than insertion order (e.g. building
// target weights maps deterministically for tests).
func (d *Dict) SortedStringKeys() []string {
	out := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func dictKey(v Value) interface{} {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		return t
	case bool:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Instance is a runtime object of a user-defined class: field values plus a
// pointer back to its class for method lookup.
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

// Class is a strategy (or helper) class definition bound to its methods.
type Class struct {
	Name    string
	Methods map[string]*Function
}

// Function is a user-defined method or function closure.
type Function struct {
	Name     string
	Params   []string
	Defaults map[string]pyast.Node
	Body     []pyast.Node
	Env      *Env
}

// BoundMethod binds a Function to its receiver instance.
type BoundMethod struct {
	Receiver *Instance
	Fn       *Function
}

// NativeFunc is a Go-implemented callable exposed to strategy code (builtins
// plus the TargetWeights/Liquidate/Hold constructors).
type NativeFunc struct {
	Name string
	Call func(args []Value, kwargs map[string]Value) (Value, error)
}

// SignalKind distinguishes the three shapes on_data may return.
type SignalKind string

const (
	SignalTargetWeights SignalKind = "TargetWeights"
	SignalLiquidate     SignalKind = "Liquidate"
	SignalHold          SignalKind = "Hold"
)

// Signal is the value on_data must return: one of TargetWeights(map),
// Liquidate(), or Hold().
type Signal struct {
	Kind    SignalKind
	Weights map[string]float64
}

// Truthy implements Python-ish truthiness for the value shapes this
// interpreter produces.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []Value:
		return len(t) > 0
	case *Dict:
		return t.Len() > 0
	default:
		return true
	}
}
