package strategyrt

import (
	"fmt"
	"math"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/pyast"
)

func (in *Interpreter) eval(node pyast.Node, env *Env) (Value, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *pyast.Constant:
		return constantValue(n), nil
	case *pyast.Name:
		if n.Id == "None" {
			return nil, nil
		}
		if n.Id == "True" {
			return true, nil
		}
		if n.Id == "False" {
			return false, nil
		}
		v, ok := env.Get(n.Id)
		if !ok {
			return nil, fmt.Errorf("name '%s' is not defined", n.Id)
		}
		return v, nil
	case *pyast.List:
		items := make([]Value, len(n.Elts))
		for i, e := range n.Elts {
			v, err := in.eval(e, env)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case *pyast.Tuple:
		items := make([]Value, len(n.Elts))
		for i, e := range n.Elts {
			v, err := in.eval(e, env)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case *pyast.Dict:
		d := NewDict()
		for i, k := range n.Keys {
			kv, err := in.eval(k, env)
			if err != nil {
				return nil, err
			}
			vv, err := in.eval(n.Values[i], env)
			if err != nil {
				return nil, err
			}
			d.Set(kv, vv)
		}
		return d, nil
	case *pyast.BinOp:
		left, err := in.eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := in.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return applyBinOp(n.Op, left, right)
	case *pyast.UnaryOp:
		v, err := in.eval(n.Operand, env)
		if err != nil {
			return nil, err
		}
		return applyUnaryOp(n.Op, v)
	case *pyast.BoolOp:
		return in.evalBoolOp(n, env)
	case *pyast.Compare:
		return in.evalCompare(n, env)
	case *pyast.IfExp:
		test, err := in.eval(n.Test, env)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return in.eval(n.Body, env)
		}
		return in.eval(n.Orelse, env)
	case *pyast.Attribute:
		return in.evalAttribute(n, env)
	case *pyast.Subscript:
		return in.evalSubscript(n, env)
	case *pyast.Call:
		return in.evalCall(n, env)
	case *pyast.ListComp:
		return in.evalListComp(n, env)
	default:
		return nil, fmt.Errorf("unsupported expression %T", node)
	}
}

func constantValue(c *pyast.Constant) Value {
	switch c.Kind {
	case "int":
		return float64(c.Int)
	case "float":
		return c.Float
	case "string":
		return c.Str
	case "bool":
		return c.Bool
	default:
		return nil
	}
}

func (in *Interpreter) evalBoolOp(n *pyast.BoolOp, env *Env) (Value, error) {
	var last Value
	for _, v := range n.Values {
		val, err := in.eval(v, env)
		if err != nil {
			return nil, err
		}
		last = val
		if n.Op == "and" && !Truthy(val) {
			return val, nil
		}
		if n.Op == "or" && Truthy(val) {
			return val, nil
		}
	}
	return last, nil
}

func (in *Interpreter) evalCompare(n *pyast.Compare, env *Env) (Value, error) {
	left, err := in.eval(n.Left, env)
	if err != nil {
		return nil, err
	}
	for i, op := range n.Ops {
		right, err := in.eval(n.Comparators[i], env)
		if err != nil {
			return nil, err
		}
		ok, err := compareOp(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compareOp(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return valuesEqual(a, b), nil
	case "!=":
		return !valuesEqual(a, b), nil
	case "is":
		return a == nil && b == nil || valuesEqual(a, b), nil
	case "is not":
		return !(a == nil && b == nil) && !valuesEqual(a, b), nil
	case "in":
		return containsValue(b, a)
	case "not in":
		ok, err := containsValue(b, a)
		return !ok, err
	}
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		switch op {
		case "<":
			return af < bf, nil
		case "<=":
			return af <= bf, nil
		case ">":
			return af > bf, nil
		case ">=":
			return af >= bf, nil
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch op {
		case "<":
			return as < bs, nil
		case "<=":
			return as <= bs, nil
		case ">":
			return as > bs, nil
		case ">=":
			return as >= bs, nil
		}
	}
	return false, fmt.Errorf("unsupported comparison %s between %T and %T", op, a, b)
}

func valuesEqual(a, b Value) bool {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return a == b
}

func containsValue(container, item Value) (bool, error) {
	switch c := container.(type) {
	case []Value:
		for _, v := range c {
			if valuesEqual(v, item) {
				return true, nil
			}
		}
		return false, nil
	case *Dict:
		_, ok := c.Get(item)
		return ok, nil
	case string:
		s, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand")
		}
		return contains(c, s), nil
	default:
		return false, fmt.Errorf("argument of type '%T' is not iterable", container)
	}
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func applyBinOp(op string, a, b Value) (Value, error) {
	if op == "+" {
		if as, ok := a.(string); ok {
			if bs, ok := b.(string); ok {
				return as + bs, nil
			}
		}
		if al, ok := a.([]Value); ok {
			if bl, ok := b.([]Value); ok {
				return append(append([]Value{}, al...), bl...), nil
			}
		}
	}
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr != nil || berr != nil {
		return nil, fmt.Errorf("unsupported operand type(s) for %s: %T and %T", op, a, b)
	}
	switch op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	case "/":
		if bf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return af / bf, nil
	case "//":
		if bf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Floor(af / bf), nil
	case "%":
		if bf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Mod(af, bf), nil
	case "**":
		return math.Pow(af, bf), nil
	default:
		return nil, fmt.Errorf("unsupported binary operator %s", op)
	}
}

func applyUnaryOp(op string, v Value) (Value, error) {
	switch op {
	case "not":
		return !Truthy(v), nil
	case "-":
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return -f, nil
	case "+":
		return toFloat(v)
	default:
		return nil, fmt.Errorf("unsupported unary operator %s", op)
	}
}

func (in *Interpreter) evalAttribute(n *pyast.Attribute, env *Env) (Value, error) {
	obj, err := in.eval(n.Value, env)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *Instance:
		if v, ok := o.Fields[n.Attr]; ok {
			return v, nil
		}
		if fn, ok := o.Class.Methods[n.Attr]; ok {
			return &BoundMethod{Receiver: o, Fn: fn}, nil
		}
		return nil, nil
	case Attributable:
		v, ok := o.GetAttr(n.Attr)
		if !ok {
			return nil, fmt.Errorf("object has no attribute '%s'", n.Attr)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("'%T' object has no attribute '%s'", obj, n.Attr)
	}
}

func (in *Interpreter) evalSubscript(n *pyast.Subscript, env *Env) (Value, error) {
	obj, err := in.eval(n.Value, env)
	if err != nil {
		return nil, err
	}
	if sl, ok := n.Index.(*pyast.Slice); ok {
		return in.evalSliceExpr(obj, sl, env)
	}
	key, err := in.eval(n.Index, env)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case []Value:
		idx, err := toFloat(key)
		if err != nil {
			return nil, err
		}
		i := int(idx)
		if i < 0 {
			i += len(o)
		}
		if i < 0 || i >= len(o) {
			return nil, fmt.Errorf("list index out of range")
		}
		return o[i], nil
	case *Dict:
		v, ok := o.Get(key)
		if !ok {
			return nil, fmt.Errorf("key %v not found", key)
		}
		return v, nil
	case Subscriptable:
		v, ok := o.GetItem(key)
		if !ok {
			return nil, fmt.Errorf("key %v not found", key)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("'%T' object is not subscriptable", obj)
	}
}

func (in *Interpreter) evalSliceExpr(obj Value, sl *pyast.Slice, env *Env) (Value, error) {
	list, ok := obj.([]Value)
	if !ok {
		return nil, fmt.Errorf("slicing requires a list")
	}
	lower, upper := 0, len(list)
	if sl.Lower != nil {
		v, err := in.eval(sl.Lower, env)
		if err != nil {
			return nil, err
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		lower = int(f)
	}
	if sl.Upper != nil {
		v, err := in.eval(sl.Upper, env)
		if err != nil {
			return nil, err
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		upper = int(f)
	}
	if lower < 0 {
		lower += len(list)
	}
	if upper < 0 {
		upper += len(list)
	}
	if lower < 0 {
		lower = 0
	}
	if upper > len(list) {
		upper = len(list)
	}
	if lower > upper {
		return []Value{}, nil
	}
	return append([]Value{}, list[lower:upper]...), nil
}

func (in *Interpreter) evalCall(n *pyast.Call, env *Env) (Value, error) {
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := in.eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	kwargs := make(map[string]Value, len(n.Keywords))
	for k, expr := range n.Keywords {
		v, err := in.eval(expr, env)
		if err != nil {
			return nil, err
		}
		kwargs[k] = v
	}

	callee, err := in.eval(n.Func, env)
	if err != nil {
		return nil, err
	}

	switch fn := callee.(type) {
	case *NativeFunc:
		return fn.Call(args, kwargs)
	case *Function:
		_, v, err := in.callFunction(fn, nil, args, kwargs)
		return v, err
	case *BoundMethod:
		_, v, err := in.callFunction(fn.Fn, fn.Receiver, args, kwargs)
		return v, err
	default:
		return nil, fmt.Errorf("'%T' object is not callable", callee)
	}
}

func (in *Interpreter) evalListComp(n *pyast.ListComp, env *Env) (Value, error) {
	iterVal, err := in.eval(n.Iter, env)
	if err != nil {
		return nil, err
	}
	items, err := toIterable(iterVal)
	if err != nil {
		return nil, err
	}

	out := []Value{}
	inner := NewEnv(env)
	for _, item := range items {
		if err := in.assignTo(n.Target, item, inner); err != nil {
			return nil, err
		}
		keep := true
		for _, cond := range n.Ifs {
			v, err := in.eval(cond, inner)
			if err != nil {
				return nil, err
			}
			if !Truthy(v) {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		v, err := in.eval(n.Elt, inner)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
