package strategyrt

import (
	"fmt"
	"strings"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

// Interpreter owns one loaded strategy instance and the global scope it
// closes over. A fresh Interpreter is built once per backtest run inside
// the isolate.
type Interpreter struct {
	globals  *Env
	class    *Class
	instance *Instance
}

// Load walks mod, registers every class definition, locates the Strategy
// subclass (the static analyzer already guaranteed exactly one exists),
// instantiates it, and runs its `initialize` method if defined.
func Load(mod *pyast.Module) (*Interpreter, error) {
	globals := NewEnv(nil)
	for name, fn := range builtins() {
		globals.Declare(name, fn)
	}
	for name, fn := range signalConstructors() {
		globals.Declare(name, fn)
	}
	globals.Declare("talib", talibModule())

	classes := map[string]*Class{}
	var strategyDef *pyast.ClassDef
	for _, stmt := range mod.Body {
		cd, ok := stmt.(*pyast.ClassDef)
		if !ok {
			continue
		}
		classes[cd.Name] = buildClass(cd, globals)
		if strategyDef == nil && isStrategyBase(cd) {
			strategyDef = cd
		}
	}
	if strategyDef == nil {
		return nil, fmt.Errorf("no class inheriting from Strategy found")
	}

	class := classes[strategyDef.Name]
	instance := &Instance{Class: class, Fields: map[string]Value{}}

	interp := &Interpreter{globals: globals, class: class, instance: instance}

	if init, ok := class.Methods["initialize"]; ok {
		if _, _, err := interp.callFunction(init, instance, nil, nil); err != nil {
			return nil, fmt.Errorf("initialize(): %w", err)
		}
	}

	return interp, nil
}

func isStrategyBase(cd *pyast.ClassDef) bool {
	for _, base := range cd.Bases {
		if base == "Strategy" || strings.HasSuffix(base, ".Strategy") {
			return true
		}
	}
	return false
}

func buildClass(cd *pyast.ClassDef, globals *Env) *Class {
	class := &Class{Name: cd.Name, Methods: map[string]*Function{}}
	for _, item := range cd.Body {
		fd, ok := item.(*pyast.FunctionDef)
		if !ok {
			continue
		}
		class.Methods[fd.Name] = &Function{
			Name:     fd.Name,
			Params:   fd.Args,
			Defaults: fd.Defaults,
			Body:     fd.Body,
			Env:      globals,
		}
	}
	return class
}

// CallOnData invokes the strategy's on_data(self, slice, view) method and
// requires it to return a *Signal. A user-code panic recovered here is
// reported as an ordinary error; the engine turns it into an Execution
// error, aborting the backtest with no partial result.
func (in *Interpreter) CallOnData(slice *Slice, view *PortfolioView) (result *Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy raised during on_data: %v", r)
		}
	}()

	fn, ok := in.class.Methods["on_data"]
	if !ok {
		return nil, fmt.Errorf("strategy class %s has no on_data method", in.class.Name)
	}

	ctrl, value, err := in.callFunction(fn, in.instance, []Value{slice, view}, nil)
	if err != nil {
		return nil, err
	}
	if ctrl != ctrlReturn || value == nil {
		return &Signal{Kind: SignalHold}, nil
	}
	sig, ok := value.(*Signal)
	if !ok {
		return nil, fmt.Errorf("on_data must return TargetWeights(...), Liquidate(), or Hold(), got %T", value)
	}
	return sig, nil
}

// callFunction binds positional args (the first parameter is `self`,
// bound to receiver when non-nil) and runs the body in a fresh scope
// chained to the function's closure environment.
func (in *Interpreter) callFunction(fn *Function, receiver *Instance, args []Value, kwargs map[string]Value) (ctrlSignal, Value, error) {
	env := NewEnv(fn.Env)
	params := fn.Params
	argIdx := 0
	for i, p := range params {
		if i == 0 && p == "self" {
			env.Declare("self", receiver)
			continue
		}
		if argIdx < len(args) {
			env.Declare(p, args[argIdx])
			argIdx++
			continue
		}
		if kwargs != nil {
			if v, ok := kwargs[p]; ok {
				env.Declare(p, v)
				continue
			}
		}
		if d, ok := fn.Defaults[p]; ok {
			v, err := in.eval(d, env)
			if err != nil {
				return ctrlNone, nil, err
			}
			env.Declare(p, v)
			continue
		}
		env.Declare(p, nil)
	}

	return in.execBody(fn.Body, env)
}
