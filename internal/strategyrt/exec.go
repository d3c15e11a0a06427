package strategyrt

import (
	"fmt"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

// ctrlSignal reports how a statement or block exited: fell through, or
// propagated a return/break/continue up to the nearest handler.
type ctrlSignal int

const (
	ctrlNone ctrlSignal = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

func (in *Interpreter) execBody(stmts []pyast.Node, env *Env) (ctrlSignal, Value, error) {
	for _, stmt := range stmts {
		ctrl, val, err := in.execStmt(stmt, env)
		if err != nil {
			return ctrlNone, nil, err
		}
		if ctrl != ctrlNone {
			return ctrl, val, nil
		}
	}
	return ctrlNone, nil, nil
}

func (in *Interpreter) execStmt(stmt pyast.Node, env *Env) (ctrlSignal, Value, error) {
	switch s := stmt.(type) {
	case *pyast.Pass:
		return ctrlNone, nil, nil
	case *pyast.Break:
		return ctrlBreak, nil, nil
	case *pyast.Continue:
		return ctrlContinue, nil, nil
	case *pyast.Return:
		if s.Value == nil {
			return ctrlReturn, nil, nil
		}
		v, err := in.eval(s.Value, env)
		if err != nil {
			return ctrlNone, nil, err
		}
		return ctrlReturn, v, nil
	case *pyast.ExprStmt:
		_, err := in.eval(s.Value, env)
		return ctrlNone, nil, err
	case *pyast.Assign:
		return ctrlNone, nil, in.execAssign(s, env)
	case *pyast.AugAssign:
		return ctrlNone, nil, in.execAugAssign(s, env)
	case *pyast.If:
		return in.execIf(s, env)
	case *pyast.For:
		return in.execFor(s, env)
	case *pyast.While:
		return in.execWhile(s, env)
	case *pyast.Match:
		return in.execMatch(s, env)
	case *pyast.FunctionDef:
		env.Declare(s.Name, &Function{Name: s.Name, Params: s.Args, Defaults: s.Defaults, Body: s.Body, Env: env})
		return ctrlNone, nil, nil
	case *pyast.ClassDef:
		env.Declare(s.Name, buildClass(s, env))
		return ctrlNone, nil, nil
	case *pyast.Import, *pyast.ImportFrom:
		return ctrlNone, nil, nil
	default:
		return ctrlNone, nil, fmt.Errorf("unsupported statement %T", stmt)
	}
}

func (in *Interpreter) execAssign(s *pyast.Assign, env *Env) error {
	value, err := in.eval(s.Value, env)
	if err != nil {
		return err
	}
	for _, target := range s.Targets {
		if err := in.assignTo(target, value, env); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) assignTo(target pyast.Node, value Value, env *Env) error {
	switch t := target.(type) {
	case *pyast.Name:
		env.Set(t.Id, value)
		return nil
	case *pyast.Attribute:
		obj, err := in.eval(t.Value, env)
		if err != nil {
			return err
		}
		inst, ok := obj.(*Instance)
		if !ok {
			return fmt.Errorf("cannot assign attribute %s on non-instance value", t.Attr)
		}
		inst.Fields[t.Attr] = value
		return nil
	case *pyast.Subscript:
		obj, err := in.eval(t.Value, env)
		if err != nil {
			return err
		}
		key, err := in.eval(t.Index, env)
		if err != nil {
			return err
		}
		d, ok := obj.(*Dict)
		if !ok {
			return fmt.Errorf("subscript assignment requires a dict")
		}
		d.Set(key, value)
		return nil
	case *pyast.Tuple:
		items, ok := value.([]Value)
		if !ok {
			return fmt.Errorf("cannot unpack non-sequence value")
		}
		if len(items) != len(t.Elts) {
			return fmt.Errorf("unpacking mismatch: expected %d values, got %d", len(t.Elts), len(items))
		}
		for i, elt := range t.Elts {
			if err := in.assignTo(elt, items[i], env); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported assignment target %T", target)
	}
}

func (in *Interpreter) execAugAssign(s *pyast.AugAssign, env *Env) error {
	current, err := in.eval(s.Target, env)
	if err != nil {
		return err
	}
	rhs, err := in.eval(s.Value, env)
	if err != nil {
		return err
	}
	result, err := applyBinOp(s.Op, current, rhs)
	if err != nil {
		return err
	}
	return in.assignTo(s.Target, result, env)
}

func (in *Interpreter) execIf(s *pyast.If, env *Env) (ctrlSignal, Value, error) {
	test, err := in.eval(s.Test, env)
	if err != nil {
		return ctrlNone, nil, err
	}
	if Truthy(test) {
		return in.execBody(s.Body, env)
	}
	return in.execBody(s.Orelse, env)
}

func (in *Interpreter) execWhile(s *pyast.While, env *Env) (ctrlSignal, Value, error) {
	for {
		test, err := in.eval(s.Test, env)
		if err != nil {
			return ctrlNone, nil, err
		}
		if !Truthy(test) {
			return ctrlNone, nil, nil
		}
		ctrl, val, err := in.execBody(s.Body, env)
		if err != nil {
			return ctrlNone, nil, err
		}
		switch ctrl {
		case ctrlBreak:
			return ctrlNone, nil, nil
		case ctrlReturn:
			return ctrlReturn, val, nil
		}
	}
}

func (in *Interpreter) execFor(s *pyast.For, env *Env) (ctrlSignal, Value, error) {
	iterVal, err := in.eval(s.Iter, env)
	if err != nil {
		return ctrlNone, nil, err
	}
	items, err := toIterable(iterVal)
	if err != nil {
		return ctrlNone, nil, err
	}

	for _, item := range items {
		if err := in.assignTo(s.Target, item, env); err != nil {
			return ctrlNone, nil, err
		}
		ctrl, val, err := in.execBody(s.Body, env)
		if err != nil {
			return ctrlNone, nil, err
		}
		switch ctrl {
		case ctrlBreak:
			return ctrlNone, nil, nil
		case ctrlReturn:
			return ctrlReturn, val, nil
		}
	}
	return ctrlNone, nil, nil
}

// execMatch runs the first case whose pattern matches subject and whose
// guard (if any) is truthy; a capture pattern binds its name in env before
// the guard is evaluated, so a guard may reference it. No case matching is
// a no-op, same as an if/elif chain with no true branch.
func (in *Interpreter) execMatch(s *pyast.Match, env *Env) (ctrlSignal, Value, error) {
	subject, err := in.eval(s.Subject, env)
	if err != nil {
		return ctrlNone, nil, err
	}
	for _, c := range s.Cases {
		matched, err := in.matchPattern(c.Pattern, subject, env)
		if err != nil {
			return ctrlNone, nil, err
		}
		if !matched {
			continue
		}
		if c.Guard != nil {
			g, err := in.eval(c.Guard, env)
			if err != nil {
				return ctrlNone, nil, err
			}
			if !Truthy(g) {
				continue
			}
		}
		return in.execBody(c.Body, env)
	}
	return ctrlNone, nil, nil
}

func (in *Interpreter) matchPattern(pattern pyast.Node, subject Value, env *Env) (bool, error) {
	switch p := pattern.(type) {
	case *pyast.MatchWildcard:
		return true, nil
	case *pyast.MatchCapture:
		env.Set(p.Name, subject)
		return true, nil
	case *pyast.MatchValue:
		v, err := in.eval(p.Value, env)
		if err != nil {
			return false, err
		}
		return valuesEqual(v, subject), nil
	case *pyast.MatchOr:
		for _, alt := range p.Patterns {
			ok, err := in.matchPattern(alt, subject, env)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported match pattern %T", pattern)
	}
}

func toIterable(v Value) ([]Value, error) {
	switch t := v.(type) {
	case []Value:
		return t, nil
	case *Dict:
		return t.Keys(), nil
	case string:
		out := make([]Value, len(t))
		for i, r := range t {
			out[i] = string(r)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%T' object is not iterable", v)
	}
}
